package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // echo web framework

	"github.com/slotforge/slot-engine/internal/handler"    // handlers bind requests and call the engine
	"github.com/slotforge/slot-engine/internal/middleware" // JWT authentication and role enforcement
	"github.com/slotforge/slot-engine/internal/model"      // role names
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check used by load balancers and
// monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Unauthenticated
// operations live under /v1/auth; /v1/me requires a valid access
// token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either a refresh token in the body or a bearer
	// token, so it stays outside the JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterSlots registers the slot engine surface. User endpoints allow
// any authenticated role; the engine still enforces ownership per
// slot. Admin endpoints are gated on the ADMIN/DEVELOPER roles here
// and re-checked inside the engine.
func RegisterSlots(e *echo.Echo, s *handler.SlotHandler, a *handler.AdminSlotHandler, fc *handler.FieldConfigHandler, jwtSecret string) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin, model.RoleDeveloper))

	v1.POST("/slots", s.CreateSlot)
	v1.GET("/slots", s.ListSlots)
	v1.GET("/slots/:id", s.GetSlot)
	v1.POST("/slots/:id/fill", s.FillSlot)
	v1.PATCH("/slots/:id/fields", s.UpdateSlotFields)
	v1.POST("/slots/:id/status", s.SetSlotStatus)
	v1.GET("/slots/:id/history", s.GetSlotHistory)
	v1.GET("/slots/:id/ranking", s.GetSlotRanking)
	v1.GET("/field-configs", s.GetFieldConfigs)
	v1.GET("/allocation", s.GetMyAllocation)

	adm := e.Group("/v1/admin")
	adm.Use(middleware.JWTAuth(jwtSecret))
	adm.Use(middleware.RequireRole(model.RoleAdmin, model.RoleDeveloper))

	adm.POST("/slots/:id/approve", a.ApproveSlot)
	adm.POST("/slots/:id/reject", a.RejectSlot)
	adm.POST("/slots/:id/refund", a.RefundSlot)
	adm.POST("/slots/:id/extend", a.ExtendSlot)
	adm.POST("/provision", a.ProvisionSlots)
	adm.GET("/users/:id/allocation", a.GetOwnerAllocation)

	adm.GET("/field-configs", fc.ListFieldConfigs)
	adm.POST("/field-configs", fc.CreateFieldConfig)
	adm.PUT("/field-configs/:id", fc.UpdateFieldConfig)
	adm.PATCH("/field-configs/:id/enabled", fc.SetFieldConfigEnabled)
}
