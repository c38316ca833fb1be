package catalog

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
)

var ErrNotFound = goerr.New("catalog entity not found")

// Catalog is the store of producers (UMKM) and their products. Image fields
// hold the stored reference; callers resolve them to URLs.
type Catalog interface {
	// GetUMKM returns ErrNotFound when the id does not exist
	GetUMKM(ctx context.Context, id int64) (*model.UMKM, error)

	// SearchUMKM matches name as a case-insensitive substring
	SearchUMKM(ctx context.Context, name string) ([]*model.UMKM, error)

	ProductsByUMKM(ctx context.Context, umkmID int64) ([]*model.Product, error)

	// SearchProducts matches name as a case-insensitive substring; each
	// product carries its UMKM name
	SearchProducts(ctx context.Context, name string) ([]*model.Product, error)

	// GetProduct returns ErrNotFound when the id does not exist
	GetProduct(ctx context.Context, id int64) (*model.Product, error)

	// UpdateUMKMImage and UpdateProductImage return ErrNotFound when the id
	// does not exist
	UpdateUMKMImage(ctx context.Context, id int64, image string) error
	UpdateProductImage(ctx context.Context, id int64, image string) error

	Close() error
}
