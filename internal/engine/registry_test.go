package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotforge/slot-engine/internal/model"
)

func fieldMessages(errs []FieldError) map[string]string {
	out := map[string]string{}
	for _, e := range errs {
		out[e.Field] = e.Message
	}
	return out
}

func TestRegistryValidate(t *testing.T) {
	reg := NewRegistry(testConfigs())

	t.Run("valid input passes", func(t *testing.T) {
		errs := reg.Validate(map[string]string{
			"keyword":       "wireless mouse",
			"url":           "https://www.coupang.com/vp/products/12345",
			"contact_email": "owner@example.com",
			"daily_budget":  "15000",
		})
		assert.Empty(t, errs)
	})

	t.Run("missing required field", func(t *testing.T) {
		errs := reg.Validate(map[string]string{"url": "https://www.coupang.com/vp/products/1"})
		msgs := fieldMessages(errs)
		assert.Contains(t, msgs, "keyword")
	})

	t.Run("blank required field", func(t *testing.T) {
		errs := reg.Validate(map[string]string{"keyword": "   "})
		msgs := fieldMessages(errs)
		assert.Contains(t, msgs, "keyword")
	})

	t.Run("relative url rejected", func(t *testing.T) {
		errs := reg.Validate(map[string]string{"keyword": "k", "url": "/vp/products/1"})
		msgs := fieldMessages(errs)
		assert.Equal(t, "must be an absolute URL", msgs["url"])
	})

	t.Run("bad email rejected", func(t *testing.T) {
		errs := reg.Validate(map[string]string{"keyword": "k", "contact_email": "not-an-email"})
		msgs := fieldMessages(errs)
		assert.Equal(t, "must be a valid email address", msgs["contact_email"])
	})

	t.Run("bad number rejected", func(t *testing.T) {
		errs := reg.Validate(map[string]string{"keyword": "k", "daily_budget": "lots"})
		msgs := fieldMessages(errs)
		assert.Equal(t, "must be a number", msgs["daily_budget"])
	})

	t.Run("system generated key rejected", func(t *testing.T) {
		errs := reg.Validate(map[string]string{"keyword": "k", DerivedProductID: "999"})
		msgs := fieldMessages(errs)
		assert.Equal(t, "field is system generated", msgs[DerivedProductID])
	})

	t.Run("custom rule enforced", func(t *testing.T) {
		configs := append(testConfigs(), model.FieldConfig{
			FieldKey: "sku", Label: "SKU", FieldType: model.FieldTypeText,
			IsEnabled: true, ValidationRule: `^[A-Z]{3}-\d{4}$`, DisplayOrder: 6,
		})
		r := NewRegistry(configs)
		errs := r.Validate(map[string]string{"keyword": "k", "sku": "nope"})
		assert.Contains(t, fieldMessages(errs), "sku")
		errs = r.Validate(map[string]string{"keyword": "k", "sku": "ABC-1234"})
		assert.Empty(t, errs)
	})

	t.Run("malformed rule is ignored", func(t *testing.T) {
		configs := append(testConfigs(), model.FieldConfig{
			FieldKey: "sku", Label: "SKU", FieldType: model.FieldTypeText,
			IsEnabled: true, ValidationRule: `([`, DisplayOrder: 6,
		})
		r := NewRegistry(configs)
		errs := r.Validate(map[string]string{"keyword": "k", "sku": "anything"})
		assert.Empty(t, errs)
	})

	t.Run("disabled config is skipped", func(t *testing.T) {
		configs := append(testConfigs(), model.FieldConfig{
			FieldKey: "off", Label: "Off", FieldType: model.FieldTypeText,
			IsRequired: true, IsEnabled: false,
		})
		r := NewRegistry(configs)
		errs := r.Validate(map[string]string{"keyword": "k"})
		assert.Empty(t, errs)
	})
}

func TestRegistryDerive(t *testing.T) {
	reg := NewRegistry(testConfigs())

	t.Run("coupang full url", func(t *testing.T) {
		d := reg.Derive(map[string]string{
			"url": "https://www.coupang.com/vp/products/12345?itemId=999&vendorItemId=888",
		})
		require.Len(t, d, 3)
		assert.Equal(t, "12345", d[DerivedProductID])
		assert.Equal(t, "999", d[DerivedItemID])
		assert.Equal(t, "888", d[DerivedVendorItemID])
	})

	t.Run("coupang product only", func(t *testing.T) {
		d := reg.Derive(map[string]string{"url": "https://www.coupang.com/vp/products/42"})
		assert.Equal(t, map[string]string{DerivedProductID: "42"}, d)
	})

	t.Run("11st", func(t *testing.T) {
		d := reg.Derive(map[string]string{"url": "https://www.11st.co.kr/products/777"})
		assert.Equal(t, map[string]string{DerivedProductID: "777"}, d)
	})

	t.Run("smartstore", func(t *testing.T) {
		d := reg.Derive(map[string]string{"url": "https://smartstore.naver.com/shop/products/55?x=1"})
		assert.Equal(t, map[string]string{DerivedProductID: "55"}, d)
	})

	t.Run("unknown host yields nothing", func(t *testing.T) {
		d := reg.Derive(map[string]string{"url": "https://example.com/products/1"})
		assert.Empty(t, d)
	})

	t.Run("no url yields nothing", func(t *testing.T) {
		assert.Empty(t, reg.Derive(map[string]string{"keyword": "k"}))
	})
}

func TestRegistryOrderKeys(t *testing.T) {
	reg := NewRegistry(testConfigs())
	got := reg.OrderKeys([]string{"zzz", "mid", DerivedProductID, "keyword", "aaa"})
	assert.Equal(t, []string{"keyword", "mid", DerivedProductID, "aaa", "zzz"}, got)
}
