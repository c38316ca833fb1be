package catalog

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/catalog"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/tool"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
)

const (
	GetUMKMByID         = "get_umkm_by_id"
	SearchUMKMByName    = "search_umkm_by_name"
	GetProductsByUMKM   = "get_products_by_umkm"
	SearchProductByName = "search_product_by_name"
)

// Envelope is the {status, data} shape picked up by the response
// post-processor
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

func success(data any) *Envelope {
	return &Envelope{Status: "success", Data: data}
}

func list[T any](items []T) *Envelope {
	n := len(items)
	if items == nil {
		items = []T{}
	}
	return &Envelope{Status: "success", Data: items, Count: &n}
}

func failure(msg string) *Envelope {
	return &Envelope{Status: "error", Message: msg}
}

// Tool answers catalog questions with envelope results
type Tool struct {
	catalog catalog.Catalog
	baseURL string
}

var _ tool.Tool = (*Tool)(nil)

// New creates the catalog tool. Image references are resolved under baseURL.
func New(c catalog.Catalog, baseURL string) *Tool {
	return &Tool{catalog: c, baseURL: baseURL}
}

func (t *Tool) Specs() []*tool.Spec {
	return []*tool.Spec{
		{
			Name:        GetUMKMByID,
			Description: "Mengambil detail UMKM berdasarkan ID",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"umkm_id": tool.Integer("ID UMKM", tool.Min(1)),
			}, "umkm_id"),
		},
		{
			Name:        SearchUMKMByName,
			Description: "Mencari UMKM berdasarkan nama (mirip/LIKE)",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"name": tool.String("Nama atau potongan nama UMKM", 0),
			}, "name"),
		},
		{
			Name:        GetProductsByUMKM,
			Description: "Mengambil daftar produk dari sebuah UMKM berdasarkan umkm_id",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"umkm_id": tool.Integer("ID UMKM", tool.Min(1)),
			}, "umkm_id"),
		},
		{
			Name:        SearchProductByName,
			Description: "Mencari produk songket berdasarkan nama, lengkap dengan nama UMKM penjualnya",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"name": tool.String("Nama atau potongan nama produk", 0),
			}, "name"),
		},
	}
}

func (t *Tool) Prompt(ctx context.Context) string {
	return `Database tools (UMKM Songket Palembang) mengembalikan JSON {"status", "data"}. Untuk produk dari UMKM yang disebut dengan nama, panggil search_umkm_by_name dulu lalu get_products_by_umkm.`
}

type idInput struct {
	UMKMID int64 `json:"umkm_id"`
}

type nameInput struct {
	Name string `json:"name"`
}

func (t *Tool) Run(ctx context.Context, name string, args map[string]any) (any, error) {
	var (
		result *Envelope
		err    error
	)

	switch name {
	case GetUMKMByID:
		var input idInput
		if err := tool.Decode(args, &input); err != nil {
			return nil, err
		}
		result, err = t.getUMKM(ctx, input.UMKMID)

	case SearchUMKMByName:
		var input nameInput
		if err := tool.Decode(args, &input); err != nil {
			return nil, err
		}
		result, err = t.searchUMKM(ctx, input.Name)

	case GetProductsByUMKM:
		var input idInput
		if err := tool.Decode(args, &input); err != nil {
			return nil, err
		}
		result, err = t.productsByUMKM(ctx, input.UMKMID)

	case SearchProductByName:
		var input nameInput
		if err := tool.Decode(args, &input); err != nil {
			return nil, err
		}
		result, err = t.searchProducts(ctx, input.Name)

	default:
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown catalog function", goerr.V("name", name))
	}

	if err != nil {
		logging.From(ctx).Error("catalog lookup failed", "tool", name, logging.ErrAttr(err))
		return failure("Terjadi kesalahan saat mengakses database katalog."), nil
	}
	return result, nil
}

func (t *Tool) getUMKM(ctx context.Context, id int64) (*Envelope, error) {
	u, err := t.catalog.GetUMKM(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return failure("UMKM tidak ditemukan"), nil
	}
	if err != nil {
		return nil, err
	}
	return success(u.WithImageURL(t.baseURL)), nil
}

func (t *Tool) searchUMKM(ctx context.Context, name string) (*Envelope, error) {
	found, err := t.catalog.SearchUMKM(ctx, name)
	if err != nil {
		return nil, err
	}
	items := make([]*model.UMKM, len(found))
	for i, u := range found {
		items[i] = u.WithImageURL(t.baseURL)
	}
	return list(items), nil
}

func (t *Tool) productsByUMKM(ctx context.Context, umkmID int64) (*Envelope, error) {
	products, err := t.catalog.ProductsByUMKM(ctx, umkmID)
	if err != nil {
		return nil, err
	}
	return list(t.resolveProducts(products)), nil
}

func (t *Tool) searchProducts(ctx context.Context, name string) (*Envelope, error) {
	products, err := t.catalog.SearchProducts(ctx, name)
	if err != nil {
		return nil, err
	}
	return list(t.resolveProducts(products)), nil
}

func (t *Tool) resolveProducts(products []*model.Product) []*model.Product {
	items := make([]*model.Product, len(products))
	for i, p := range products {
		items[i] = p.WithImageURL(t.baseURL)
	}
	return items
}
