package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Catalog backed by a local SQLite database file
type SQLite struct {
	db *sql.DB
}

var _ Catalog = (*SQLite)(nil)

// NewSQLite opens or creates the database at path. Use ":memory:" for a
// throwaway catalog.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	// an in-memory database exists per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to enable foreign keys")
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS UMKM_Profile (
		umkm_id INTEGER PRIMARY KEY,
		umkm_name TEXT NOT NULL,
		umkm_about TEXT NOT NULL DEFAULT '',
		umkm_notelp TEXT NOT NULL DEFAULT '',
		umkm_email TEXT NOT NULL DEFAULT '',
		umkm_alamat TEXT NOT NULL DEFAULT '',
		umkm_sosmed TEXT NOT NULL DEFAULT '',
		umkm_image TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS Product (
		product_id INTEGER PRIMARY KEY,
		product_name TEXT NOT NULL,
		product_desc TEXT NOT NULL DEFAULT '',
		product_price REAL,
		product_stock INTEGER NOT NULL DEFAULT 0,
		product_image TEXT NOT NULL DEFAULT '',
		umkm_id INTEGER NOT NULL,
		FOREIGN KEY(umkm_id) REFERENCES UMKM_Profile(umkm_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_product_umkm ON Product(umkm_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return goerr.Wrap(err, "failed to initialize catalog schema")
	}
	return nil
}

func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close sqlite")
	}
	return nil
}

// Seed upserts producers and products
func (s *SQLite) Seed(ctx context.Context, umkms []*model.UMKM, products []*model.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range umkms {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO UMKM_Profile (umkm_id, umkm_name, umkm_about, umkm_notelp, umkm_email, umkm_alamat, umkm_sosmed, umkm_image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(umkm_id) DO UPDATE SET
			umkm_name=excluded.umkm_name,
			umkm_about=excluded.umkm_about,
			umkm_notelp=excluded.umkm_notelp,
			umkm_email=excluded.umkm_email,
			umkm_alamat=excluded.umkm_alamat,
			umkm_sosmed=excluded.umkm_sosmed,
			umkm_image=excluded.umkm_image`,
			u.ID, u.Name, u.About, u.Phone, u.Email, u.Address, u.Social, u.Image)
		if err != nil {
			return goerr.Wrap(err, "failed to insert umkm", goerr.V("umkm_id", u.ID))
		}
	}

	for _, p := range products {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO Product (product_id, product_name, product_desc, product_price, product_stock, product_image, umkm_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			product_name=excluded.product_name,
			product_desc=excluded.product_desc,
			product_price=excluded.product_price,
			product_stock=excluded.product_stock,
			product_image=excluded.product_image,
			umkm_id=excluded.umkm_id`,
			p.ID, p.Name, p.Description, p.Price, p.Stock, p.Image, p.UMKMID)
		if err != nil {
			return goerr.Wrap(err, "failed to insert product", goerr.V("product_id", p.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit seed")
	}
	return nil
}

const umkmColumns = `umkm_id, umkm_name, umkm_about, umkm_notelp, umkm_email, umkm_alamat, umkm_sosmed, umkm_image`

func scanUMKM(row interface{ Scan(...any) error }) (*model.UMKM, error) {
	var u model.UMKM
	if err := row.Scan(&u.ID, &u.Name, &u.About, &u.Phone, &u.Email, &u.Address, &u.Social, &u.Image); err != nil {
		return nil, err
	}
	return &u, nil
}

const productColumns = `p.product_id, p.product_name, p.product_desc, p.product_price, p.product_stock, p.product_image, p.umkm_id, u.umkm_name`

func scanProduct(row interface{ Scan(...any) error }) (*model.Product, error) {
	var (
		p     model.Product
		price sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.Image, &p.UMKMID, &p.UMKMName); err != nil {
		return nil, err
	}
	if price.Valid {
		p.Price = &price.Float64
	}
	return &p, nil
}

func (s *SQLite) GetUMKM(ctx context.Context, id int64) (*model.UMKM, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+umkmColumns+` FROM UMKM_Profile WHERE umkm_id = ?`, id)
	u, err := scanUMKM(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "umkm not found", goerr.V("umkm_id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get umkm", goerr.V("umkm_id", id))
	}
	return u, nil
}

func (s *SQLite) SearchUMKM(ctx context.Context, name string) ([]*model.UMKM, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+umkmColumns+` FROM UMKM_Profile WHERE LOWER(umkm_name) LIKE LOWER(?) ORDER BY umkm_id`,
		"%"+name+"%")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search umkm", goerr.V("name", name))
	}
	defer rows.Close()

	var result []*model.UMKM
	for rows.Next() {
		u, err := scanUMKM(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan umkm")
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate umkm")
	}
	return result, nil
}

func (s *SQLite) queryProducts(ctx context.Context, where string, args ...any) ([]*model.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM Product p JOIN UMKM_Profile u ON p.umkm_id = u.umkm_id WHERE `+where+` ORDER BY p.product_id`,
		args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query products")
	}
	defer rows.Close()

	var result []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan product")
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate products")
	}
	return result, nil
}

func (s *SQLite) ProductsByUMKM(ctx context.Context, umkmID int64) ([]*model.Product, error) {
	return s.queryProducts(ctx, `p.umkm_id = ?`, umkmID)
}

func (s *SQLite) SearchProducts(ctx context.Context, name string) ([]*model.Product, error) {
	return s.queryProducts(ctx, `LOWER(p.product_name) LIKE LOWER(?)`, "%"+name+"%")
}

func (s *SQLite) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	products, err := s.queryProducts(ctx, `p.product_id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, goerr.Wrap(ErrNotFound, "product not found", goerr.V("product_id", id))
	}
	return products[0], nil
}

func (s *SQLite) updateImage(ctx context.Context, query string, id int64, image string) error {
	res, err := s.db.ExecContext(ctx, query, image, id)
	if err != nil {
		return goerr.Wrap(err, "failed to update image", goerr.V("id", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to get affected rows")
	}
	if n == 0 {
		return goerr.Wrap(ErrNotFound, "no row to update", goerr.V("id", id))
	}
	return nil
}

func (s *SQLite) UpdateUMKMImage(ctx context.Context, id int64, image string) error {
	return s.updateImage(ctx, `UPDATE UMKM_Profile SET umkm_image = ? WHERE umkm_id = ?`, id, image)
}

func (s *SQLite) UpdateProductImage(ctx context.Context, id int64, image string) error {
	return s.updateImage(ctx, `UPDATE Product SET product_image = ? WHERE product_id = ?`, id, image)
}
