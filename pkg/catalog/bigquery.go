package catalog

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"github.com/m-mizutani/sribot/pkg/model"
)

// BigQuery is a Catalog over the UMKM_Profile and Product tables of a dataset
type BigQuery struct {
	bq      adapter.BigQuery
	dataset string
}

var _ Catalog = (*BigQuery)(nil)

// NewBigQuery uses tables in dataset, given as "project.dataset" or "dataset"
func NewBigQuery(bq adapter.BigQuery, dataset string) *BigQuery {
	return &BigQuery{bq: bq, dataset: dataset}
}

func (c *BigQuery) table(name string) string {
	return fmt.Sprintf("`%s.%s`", c.dataset, name)
}

func (c *BigQuery) Close() error {
	return c.bq.Close()
}

func str(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func integer(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func rowToUMKM(row map[string]any) *model.UMKM {
	return &model.UMKM{
		ID:      integer(row, "umkm_id"),
		Name:    str(row, "umkm_name"),
		About:   str(row, "umkm_about"),
		Phone:   str(row, "umkm_notelp"),
		Email:   str(row, "umkm_email"),
		Address: str(row, "umkm_alamat"),
		Social:  str(row, "umkm_sosmed"),
		Image:   str(row, "umkm_image"),
	}
}

func rowToProduct(row map[string]any) *model.Product {
	p := &model.Product{
		ID:          integer(row, "product_id"),
		Name:        str(row, "product_name"),
		Description: str(row, "product_desc"),
		Stock:       integer(row, "product_stock"),
		Image:       str(row, "product_image"),
		UMKMID:      integer(row, "umkm_id"),
		UMKMName:    str(row, "umkm_name"),
	}
	if price, ok := row["product_price"].(float64); ok {
		p.Price = &price
	}
	return p
}

func (c *BigQuery) queryUMKM(ctx context.Context, where string, params map[string]any) ([]*model.UMKM, error) {
	sql := fmt.Sprintf(`SELECT umkm_id, umkm_name, umkm_about, umkm_notelp, umkm_email, umkm_alamat, umkm_sosmed, umkm_image
FROM %s WHERE %s ORDER BY umkm_id`, c.table("UMKM_Profile"), where)

	rows, err := c.bq.Query(ctx, sql, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query umkm")
	}
	result := make([]*model.UMKM, len(rows))
	for i, row := range rows {
		result[i] = rowToUMKM(row)
	}
	return result, nil
}

func (c *BigQuery) queryProducts(ctx context.Context, where string, params map[string]any) ([]*model.Product, error) {
	sql := fmt.Sprintf(`SELECT p.product_id, p.product_name, p.product_desc, p.product_price, p.product_stock, p.product_image, p.umkm_id, u.umkm_name
FROM %s p JOIN %s u ON p.umkm_id = u.umkm_id
WHERE %s ORDER BY p.product_id`, c.table("Product"), c.table("UMKM_Profile"), where)

	rows, err := c.bq.Query(ctx, sql, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query products")
	}
	result := make([]*model.Product, len(rows))
	for i, row := range rows {
		result[i] = rowToProduct(row)
	}
	return result, nil
}

func (c *BigQuery) GetUMKM(ctx context.Context, id int64) (*model.UMKM, error) {
	result, err := c.queryUMKM(ctx, "umkm_id = @id", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, goerr.Wrap(ErrNotFound, "umkm not found", goerr.V("umkm_id", id))
	}
	return result[0], nil
}

func (c *BigQuery) SearchUMKM(ctx context.Context, name string) ([]*model.UMKM, error) {
	return c.queryUMKM(ctx, "LOWER(umkm_name) LIKE LOWER(@pattern)", map[string]any{"pattern": "%" + name + "%"})
}

func (c *BigQuery) ProductsByUMKM(ctx context.Context, umkmID int64) ([]*model.Product, error) {
	return c.queryProducts(ctx, "p.umkm_id = @id", map[string]any{"id": umkmID})
}

func (c *BigQuery) SearchProducts(ctx context.Context, name string) ([]*model.Product, error) {
	return c.queryProducts(ctx, "LOWER(p.product_name) LIKE LOWER(@pattern)", map[string]any{"pattern": "%" + name + "%"})
}

func (c *BigQuery) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	result, err := c.queryProducts(ctx, "p.product_id = @id", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, goerr.Wrap(ErrNotFound, "product not found", goerr.V("product_id", id))
	}
	return result[0], nil
}

func (c *BigQuery) updateImage(ctx context.Context, table, imageCol, idCol string, id int64, image string) error {
	sql := fmt.Sprintf("UPDATE %s SET %s = @image WHERE %s = @id", c.table(table), imageCol, idCol)
	n, err := c.bq.Exec(ctx, sql, map[string]any{"image": image, "id": id})
	if err != nil {
		return goerr.Wrap(err, "failed to update image", goerr.V("table", table), goerr.V("id", id))
	}
	if n == 0 {
		return goerr.Wrap(ErrNotFound, "no row to update", goerr.V("table", table), goerr.V("id", id))
	}
	return nil
}

func (c *BigQuery) UpdateUMKMImage(ctx context.Context, id int64, image string) error {
	return c.updateImage(ctx, "UMKM_Profile", "umkm_image", "umkm_id", id, image)
}

func (c *BigQuery) UpdateProductImage(ctx context.Context, id int64, image string) error {
	return c.updateImage(ctx, "Product", "product_image", "product_id", id, image)
}
