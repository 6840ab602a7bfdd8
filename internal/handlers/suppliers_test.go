package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/apperr"
	"supplyhub/internal/geo"
	"supplyhub/internal/models"
)

func strPtr(s string) *string      { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestSupplierRequestFieldsOnlySetsProvidedValues(t *testing.T) {
	req := supplierRequest{
		Name:           strPtr("  Annapurna Traders "),
		City:           strPtr("Chennai"),
		Category:       strPtr("Dairy & Eggs"),
		PaymentMethods: []string{models.PaymentMethodCash, models.PaymentMethodUPI},
	}

	set, msg := req.fields()

	require.Empty(t, msg)
	assert.Equal(t, "Annapurna Traders", set["name"])
	assert.Equal(t, "Chennai", set["city"])
	assert.Equal(t, models.StringList{models.PaymentMethodCash, models.PaymentMethodUPI}, set["paymentMethods"])
	assert.NotContains(t, set, "phone")
	assert.NotContains(t, set, "description")
}

func TestSupplierRequestFieldsRejectsUnknownValues(t *testing.T) {
	_, msg := supplierRequest{Category: strPtr("Electronics")}.fields()
	assert.Equal(t, "Invalid supplier category", msg)

	_, msg = supplierRequest{PaymentMethods: []string{"Barter"}}.fields()
	assert.Equal(t, "Invalid payment method Barter", msg)

	set, msg := supplierRequest{Name: strPtr("   ")}.fields()
	assert.Equal(t, "Please add a supplier name", msg)
	assert.Nil(t, set)
}

func TestSupplierRequestPoint(t *testing.T) {
	ctx := context.Background()
	geocoder := geo.NewCityGeocoder()

	p, msg := supplierRequest{Latitude: floatPtr(12.97), Longitude: floatPtr(77.59)}.point(ctx, geocoder)
	require.Empty(t, msg)
	assert.Equal(t, 12.97, p.Lat())
	assert.Equal(t, 77.59, p.Lon())

	_, msg = supplierRequest{Latitude: floatPtr(12.97)}.point(ctx, geocoder)
	assert.NotEmpty(t, msg)

	p, msg = supplierRequest{Address: strPtr("Stall 4, Koyambedu"), City: strPtr("Chennai")}.point(ctx, geocoder)
	require.Empty(t, msg)
	require.NotNil(t, p)
	assert.InDelta(t, 13.0827, p.Lat(), 1e-9)

	p, msg = supplierRequest{City: strPtr("Atlantis")}.point(ctx, geocoder)
	assert.Empty(t, msg)
	assert.Nil(t, p)

	p, _ = supplierRequest{Name: strPtr("No address")}.point(ctx, geocoder)
	assert.Nil(t, p)
}

func TestWithDistanceSkipsSuppliersWithoutLocation(t *testing.T) {
	suppliers := []models.Supplier{
		{Name: "Here", Location: models.NewGeoPoint(19.076, 72.8777)},
		{Name: "Nowhere"},
	}

	withDistance(suppliers, 19.076, 72.8777)

	require.NotNil(t, suppliers[0].Distance)
	assert.Zero(t, *suppliers[0].Distance)
	assert.Nil(t, suppliers[1].Distance)
}

func TestContainsInsensitiveEscapesPattern(t *testing.T) {
	re := containsInsensitive("chaat (spicy)")
	assert.Equal(t, `chaat \(spicy\)`, re.Pattern)
	assert.Equal(t, "i", re.Options)
}

func TestProductRequestFields(t *testing.T) {
	set, msg := productRequest{
		Name:     strPtr(" Basmati Rice "),
		Category: strPtr("Grains"),
		Unit:     strPtr("kg"),
		Currency: strPtr("usd"),
		Tags:     []string{"rice", "premium"},
	}.fields()
	require.Empty(t, msg)
	assert.Equal(t, "Basmati Rice", set["name"])
	assert.Equal(t, "USD", set["currency"])
	assert.Equal(t, models.StringList{"rice", "premium"}, set["tags"])

	cases := []struct {
		req  productRequest
		want string
	}{
		{productRequest{Name: strPtr("  ")}, "Please add a product name"},
		{productRequest{Category: strPtr("Gadgets")}, "Invalid product category"},
		{productRequest{Unit: strPtr("barrel")}, "Invalid unit"},
		{productRequest{Currency: strPtr("GBP")}, "Invalid currency"},
	}
	for _, tc := range cases {
		_, msg := tc.req.fields()
		assert.Equal(t, tc.want, msg)
	}
}

func TestCanManage(t *testing.T) {
	owner := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleSupplier}
	stranger := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleSupplier}
	admin := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

	cases := []struct {
		name  string
		actor models.Actor
		owner primitive.ObjectID
		want  bool
	}{
		{"owner", owner, owner.ID, true},
		{"stranger", stranger, owner.ID, false},
		{"buyer", models.Actor{ID: primitive.NewObjectID(), Role: models.RoleBuyer}, owner.ID, false},
		{"admin", admin, owner.ID, true},
		{"admin on orphaned record", admin, primitive.NilObjectID, true},
		{"anonymous on orphaned record", models.Actor{}, primitive.NilObjectID, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, canManage(tc.actor, tc.owner))
		})
	}
}

func TestProductSupplierTarget(t *testing.T) {
	own := &models.Supplier{ID: primitive.NewObjectID(), Name: "Fresh Veggie Hub"}
	elsewhere := primitive.NewObjectID()
	supplier := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleSupplier}
	admin := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

	cases := []struct {
		name      string
		actor     models.Actor
		requested string
		owned     *models.Supplier
		want      primitive.ObjectID
		wantKind  apperr.Kind
		wantMsg   string
	}{
		{name: "owner files under own profile", actor: supplier, owned: own, want: own.ID},
		{name: "owner cannot redirect to another supplier", actor: supplier, requested: elsewhere.Hex(), owned: own, want: own.ID},
		{name: "supplier without profile", actor: supplier, wantKind: apperr.KindForbidden, wantMsg: "You must create a supplier profile first"},
		{name: "stranger naming a supplier", actor: supplier, requested: elsewhere.Hex(), wantKind: apperr.KindForbidden, wantMsg: "You must create a supplier profile first"},
		{name: "admin names a supplier", actor: admin, requested: elsewhere.Hex(), want: elsewhere},
		{name: "admin with a malformed id", actor: admin, requested: "not-an-id", wantKind: apperr.KindValidation, wantMsg: "Invalid supplier id"},
		{name: "admin falls back to own profile", actor: admin, owned: own, want: own.ID},
		{name: "admin without profile or target", actor: admin, wantKind: apperr.KindForbidden, wantMsg: "You must create a supplier profile first"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := productSupplierTarget(tc.actor, tc.requested, tc.owned)
			if tc.wantKind != 0 {
				appErr, ok := apperr.As(err)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, tc.wantKind, appErr.Kind)
				assert.Equal(t, tc.wantMsg, appErr.Message)
				assert.True(t, id.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)
		})
	}
}
