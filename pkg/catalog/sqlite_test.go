package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/catalog"
)

func newSeededSQLite(t *testing.T) *catalog.SQLite {
	t.Helper()
	db, err := catalog.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	seed, err := catalog.LoadSeed("testdata/seed.yaml")
	gt.NoError(t, err)
	gt.NoError(t, db.Seed(context.Background(), seed.UMKM, seed.Products))
	return db
}

func TestSQLiteUMKM(t *testing.T) {
	ctx := context.Background()
	db := newSeededSQLite(t)

	u, err := db.GetUMKM(ctx, 1)
	gt.NoError(t, err)
	gt.Equal(t, u.Name, "Songket Cek Ipah")
	gt.Equal(t, u.Phone, "0711-123456")
	gt.Equal(t, u.Image, "umkm_1.jpg")

	_, err = db.GetUMKM(ctx, 99)
	gt.True(t, errors.Is(err, catalog.ErrNotFound))

	found, err := db.SearchUMKM(ctx, "zainal")
	gt.NoError(t, err)
	gt.A(t, found).Length(1)
	gt.Equal(t, found[0].ID, int64(2))

	found, err = db.SearchUMKM(ctx, "songket")
	gt.NoError(t, err)
	gt.A(t, found).Length(2)
}

func TestSQLiteProducts(t *testing.T) {
	ctx := context.Background()
	db := newSeededSQLite(t)

	products, err := db.ProductsByUMKM(ctx, 1)
	gt.NoError(t, err)
	gt.A(t, products).Length(2)
	gt.Equal(t, products[0].Name, "Songket Lepus Emas")
	gt.NotNil(t, products[0].Price)
	gt.Equal(t, *products[0].Price, 2500000.0)
	gt.True(t, products[1].Price == nil)

	products, err = db.SearchProducts(ctx, "TABUR")
	gt.NoError(t, err)
	gt.A(t, products).Length(1)
	gt.Equal(t, products[0].UMKMName, "Zainal Songket")

	p, err := db.GetProduct(ctx, 10)
	gt.NoError(t, err)
	gt.Equal(t, p.UMKMID, int64(1))
	gt.Equal(t, p.UMKMName, "Songket Cek Ipah")

	_, err = db.GetProduct(ctx, 404)
	gt.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestSQLiteUpdateImage(t *testing.T) {
	ctx := context.Background()
	db := newSeededSQLite(t)

	gt.NoError(t, db.UpdateUMKMImage(ctx, 2, "umkm_2_1700000000_abcd1234.png"))
	u, err := db.GetUMKM(ctx, 2)
	gt.NoError(t, err)
	gt.Equal(t, u.Image, "umkm_2_1700000000_abcd1234.png")

	gt.NoError(t, db.UpdateProductImage(ctx, 11, "product_11.jpg"))
	p, err := db.GetProduct(ctx, 11)
	gt.NoError(t, err)
	gt.Equal(t, p.Image, "product_11.jpg")

	err = db.UpdateUMKMImage(ctx, 99, "x.png")
	gt.True(t, errors.Is(err, catalog.ErrNotFound))
	err = db.UpdateProductImage(ctx, 99, "x.png")
	gt.True(t, errors.Is(err, catalog.ErrNotFound))
}
