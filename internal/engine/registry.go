package engine

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/slotforge/slot-engine/internal/model"
)

// Keys of the system-generated fields derived from the slot URL.
const (
	DerivedProductID    = "url_product_id"
	DerivedItemID       = "url_item_id"
	DerivedVendorItemID = "url_vendor_item_id"
)

// Field keys mirrored onto slot columns in addition to the value table.
const (
	FieldKeyword = "keyword"
	FieldURL     = "url"
	FieldMID     = "mid"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	productPathRe  = regexp.MustCompile(`/products/(\d+)`)
	itemIDRe       = regexp.MustCompile(`itemId=(\d+)`)
	vendorItemIDRe = regexp.MustCompile(`vendorItemId=(\d+)`)
)

// Registry validates user-supplied field maps against the enabled field
// configs and derives system-generated fields from the slot URL. It is
// built per operation from the configs loaded inside that operation's
// transaction, so a concurrent admin edit of the schema never straddles
// a single validation pass.
type Registry struct {
	configs []model.FieldConfig
}

// NewRegistry builds a Registry over the given configs. Disabled
// configs are dropped; the rest are ordered by display order then key
// so validation errors and change-log key lists come out deterministic.
func NewRegistry(configs []model.FieldConfig) *Registry {
	enabled := make([]model.FieldConfig, 0, len(configs))
	for _, fc := range configs {
		if fc.IsEnabled {
			enabled = append(enabled, fc)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].DisplayOrder != enabled[j].DisplayOrder {
			return enabled[i].DisplayOrder < enabled[j].DisplayOrder
		}
		return enabled[i].FieldKey < enabled[j].FieldKey
	})
	return &Registry{configs: enabled}
}

// Configs returns the enabled configs in display order.
func (r *Registry) Configs() []model.FieldConfig { return r.configs }

// OrderKeys sorts the given field keys by config display order, with
// unknown keys last in lexical order. Used when batching multi-field
// change-log entries.
func (r *Registry) OrderKeys(keys []string) []string {
	rank := make(map[string]int, len(r.configs))
	for i, fc := range r.configs {
		rank[fc.FieldKey] = i
	}
	out := append([]string(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// Validate checks user input against the enabled configs and returns
// one FieldError per problem. An empty result means the input is
// acceptable. System-generated keys present in the input are rejected
// outright rather than stripped, so a client mistakenly posting derived
// values hears about it. A malformed admin-entered validation regex is
// treated as "no constraint", not as a failure.
func (r *Registry) Validate(fields map[string]string) []FieldError {
	var errs []FieldError
	for _, fc := range r.configs {
		raw, present := fields[fc.FieldKey]
		value := strings.TrimSpace(raw)

		if fc.IsSystemGenerated {
			if present {
				errs = append(errs, FieldError{Field: fc.FieldKey, Message: "field is system generated"})
			}
			continue
		}
		if value == "" {
			if fc.IsRequired {
				errs = append(errs, FieldError{Field: fc.FieldKey, Message: fc.Label + " is required"})
			}
			continue
		}
		if msg := checkType(fc.FieldType, value); msg != "" {
			errs = append(errs, FieldError{Field: fc.FieldKey, Message: msg})
			continue
		}
		if fc.ValidationRule != "" {
			if re, err := regexp.Compile(fc.ValidationRule); err == nil && !re.MatchString(value) {
				errs = append(errs, FieldError{Field: fc.FieldKey, Message: fc.Label + " has an invalid format"})
			}
		}
	}
	return errs
}

func checkType(fieldType, value string) string {
	switch fieldType {
	case model.FieldTypeURL:
		u, err := url.Parse(value)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return "must be an absolute URL"
		}
	case model.FieldTypeEmail:
		if !emailRe.MatchString(value) {
			return "must be a valid email address"
		}
	case model.FieldTypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "must be a number"
		}
	}
	return ""
}

// Derive extracts system-generated fields from the url field of the
// input. Recognized marketplace shapes:
//
//	coupang.com            /products/(\d+), itemId=(\d+), vendorItemId=(\d+)
//	11st.co.kr             /products/(\d+)
//	smartstore.naver.com   /products/(\d+)
//
// A URL matching no pattern yields an empty map; that is not an error.
// Derived values overwrite whatever was stored before on every save.
func (r *Registry) Derive(fields map[string]string) map[string]string {
	derived := map[string]string{}
	raw := strings.TrimSpace(fields[FieldURL])
	if raw == "" {
		return derived
	}
	u, err := url.Parse(raw)
	if err != nil {
		return derived
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "coupang.com"):
		if m := productPathRe.FindStringSubmatch(u.Path); m != nil {
			derived[DerivedProductID] = m[1]
		}
		if m := itemIDRe.FindStringSubmatch(raw); m != nil {
			derived[DerivedItemID] = m[1]
		}
		if m := vendorItemIDRe.FindStringSubmatch(raw); m != nil {
			derived[DerivedVendorItemID] = m[1]
		}
	case strings.Contains(host, "11st.co.kr"), strings.Contains(host, "smartstore.naver.com"):
		if m := productPathRe.FindStringSubmatch(u.Path); m != nil {
			derived[DerivedProductID] = m[1]
		}
	}
	return derived
}
