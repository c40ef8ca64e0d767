package request

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/evermart/cart/internal/validate"
)

func TestInsertCartItemValidation(t *testing.T) {
	valid := InsertCartItem{
		ProductId:   uuid.New(),
		ProductName: "cable",
		Sku:         "CB-1",
		Quantity:    1,
		UnitPrice:   decimal.NewFromInt(10),
	}

	tests := []struct {
		name    string
		mutate  func(r *InsertCartItem)
		wantErr bool
	}{
		{name: "valid item passes", mutate: func(r *InsertCartItem) {}, wantErr: false},
		{
			name:    "zero quantity is rejected",
			mutate:  func(r *InsertCartItem) { r.Quantity = 0 },
			wantErr: true,
		},
		{
			name:    "negative quantity is rejected",
			mutate:  func(r *InsertCartItem) { r.Quantity = -1 },
			wantErr: true,
		},
		{
			name:    "negative unit price is rejected",
			mutate:  func(r *InsertCartItem) { r.UnitPrice = decimal.NewFromInt(-1) },
			wantErr: true,
		},
		{
			name:    "free item is allowed",
			mutate:  func(r *InsertCartItem) { r.UnitPrice = decimal.Zero },
			wantErr: false,
		},
		{
			name:    "missing product id is rejected",
			mutate:  func(r *InsertCartItem) { r.ProductId = uuid.Nil },
			wantErr: true,
		},
		{
			name:    "missing sku is rejected",
			mutate:  func(r *InsertCartItem) { r.Sku = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := validate.Get().Struct(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUpdateCartItemValidation(t *testing.T) {
	zero := int32(0)
	negativePrice := decimal.NewFromInt(-5)

	assert.NoError(t, validate.Get().Struct(UpdateCartItem{}), "empty patch is a no-op")
	assert.Error(t, validate.Get().Struct(UpdateCartItem{Quantity: &zero}))
	assert.Error(t, validate.Get().Struct(UpdateCartItem{UnitPrice: &negativePrice}))
}

func TestUpdateCartValidation(t *testing.T) {
	usd := "USD"
	empty := ""
	bogus := "RUPEES"

	assert.NoError(t, validate.Get().Struct(UpdateCart{}), "empty patch is a no-op")
	assert.NoError(t, validate.Get().Struct(UpdateCart{Currency: &usd}))
	assert.Error(t, validate.Get().Struct(UpdateCart{Currency: &empty}),
		"a pointer to an empty currency must not pass as absent")
	assert.Error(t, validate.Get().Struct(UpdateCart{Currency: &bogus}))
}

func TestCreateCartValidation(t *testing.T) {
	assert.NoError(t, validate.Get().Struct(CreateCart{}), "currency is optional")
	assert.NoError(t, validate.Get().Struct(CreateCart{Currency: "INR"}))
	assert.Error(t, validate.Get().Struct(CreateCart{Currency: "RUPEES"}))
}

func TestMergeCartValidation(t *testing.T) {
	assert.Error(t, validate.Get().Struct(MergeCart{}))
	assert.NoError(t, validate.Get().Struct(MergeCart{SessionId: uuid.NewString()}))
}
