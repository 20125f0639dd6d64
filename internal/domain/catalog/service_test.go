package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/infrastructure/storage/memory/memtest"
)

func TestParseKind(t *testing.T) {
	for in, want := range map[string]catalog.Kind{
		"product":    catalog.KindProduct,
		"Warehouses": catalog.KindWarehouse,
		"batches":    catalog.KindBatch,
		"series":     catalog.KindSeries,
		"locations":  catalog.KindLocation,
	} {
		got, err := catalog.ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := catalog.ParseKind("pallets")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestCreate_ScopedKinds(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()

	_, err := f.Services.Catalog.Create(ctx, f.Actor, catalog.CreateInput{Kind: catalog.KindLocation, Code: "A1", Name: "A1"})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "location needs a warehouse")

	_, err = f.Services.Catalog.Create(ctx, f.Actor, catalog.CreateInput{
		Kind: catalog.KindLocation, ParentID: &f.Product, Code: "A1", Name: "A1",
	})
	assert.True(t, apperror.IsNotFound(err), "parent must be a warehouse")

	loc, err := f.Services.Catalog.Create(ctx, f.Actor, catalog.CreateInput{
		Kind: catalog.KindLocation, ParentID: &f.Warehouse1, Code: "A1", Name: "A1",
	})
	require.NoError(t, err)
	assert.True(t, loc.Active)
	assert.Equal(t, f.Actor.TenantID, loc.TenantID)
}

func TestCreate_DuplicateCode(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()

	_, err := f.Services.Catalog.Create(ctx, f.Actor, catalog.CreateInput{Kind: catalog.KindProduct, Code: "P-1", Name: "dup"})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	// Codes are unique per kind.
	_, err = f.Services.Catalog.Create(ctx, f.Actor, catalog.CreateInput{Kind: catalog.KindBatch, Code: "P-1", Name: "lot"})
	assert.NoError(t, err)
}

func TestGet_OtherTenantIsNotFound(t *testing.T) {
	f := memtest.New(t)
	stranger := actor.New(id.New(), "stranger")

	_, err := f.Services.Catalog.Get(context.Background(), stranger, catalog.KindProduct, f.Product)
	assert.True(t, apperror.IsNotFound(err))
}

func TestValidate(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	tenant := f.Actor.TenantID

	loc := f.CreateItem(t, catalog.KindLocation, &f.Warehouse1, "A1")
	variant := f.CreateItem(t, catalog.KindVariant, &f.Product, "RED")
	other := f.CreateItem(t, catalog.KindProduct, nil, "P-2")

	ok := catalog.Refs{ProductID: f.Product, VariantID: &variant, WarehouseID: f.Warehouse1, LocationID: &loc}
	assert.NoError(t, f.Services.Catalog.Validate(ctx, tenant, ok))

	wrongLoc := ok
	wrongLoc.WarehouseID = f.Warehouse2
	assert.True(t, apperror.IsNotFound(f.Services.Catalog.Validate(ctx, tenant, wrongLoc)))

	wrongVariant := ok
	wrongVariant.ProductID = other
	assert.True(t, apperror.IsNotFound(f.Services.Catalog.Validate(ctx, tenant, wrongVariant)))

	batch := id.New()
	missing := catalog.Refs{ProductID: f.Product, WarehouseID: f.Warehouse1, BatchID: &batch}
	assert.True(t, apperror.IsNotFound(f.Services.Catalog.Validate(ctx, tenant, missing)))

	assert.True(t, apperror.IsNotFound(f.Services.Catalog.Validate(ctx, id.New(), catalog.Refs{
		ProductID: f.Product, WarehouseID: f.Warehouse1,
	})))
}

func TestList(t *testing.T) {
	f := memtest.New(t)
	f.CreateItem(t, catalog.KindWarehouse, nil, "W0")

	res, err := f.Services.Catalog.List(context.Background(), f.Actor, catalog.ListFilter{Kind: catalog.KindWarehouse})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.TotalCount)
	assert.Equal(t, "W0", res.Items[0].Code)
}
