package model

import (
	"strings"
)

// UMKM is a producer profile in the catalog
type UMKM struct {
	ID      int64  `json:"umkm_id" bigquery:"umkm_id" yaml:"umkm_id"`
	Name    string `json:"umkm_name" bigquery:"umkm_name" yaml:"umkm_name"`
	About   string `json:"umkm_about,omitempty" bigquery:"umkm_about" yaml:"umkm_about"`
	Phone   string `json:"umkm_notelp,omitempty" bigquery:"umkm_notelp" yaml:"umkm_notelp"`
	Email   string `json:"umkm_email,omitempty" bigquery:"umkm_email" yaml:"umkm_email"`
	Address string `json:"umkm_alamat,omitempty" bigquery:"umkm_alamat" yaml:"umkm_alamat"`
	Social  string `json:"umkm_sosmed,omitempty" bigquery:"umkm_sosmed" yaml:"umkm_sosmed"`
	Image   string `json:"umkm_image,omitempty" bigquery:"umkm_image" yaml:"umkm_image"`
}

// Product is an item sold by a UMKM
type Product struct {
	ID          int64    `json:"product_id" bigquery:"product_id" yaml:"product_id"`
	Name        string   `json:"product_name" bigquery:"product_name" yaml:"product_name"`
	Description string   `json:"product_desc,omitempty" bigquery:"product_desc" yaml:"product_desc"`
	Price       *float64 `json:"product_price" bigquery:"product_price" yaml:"product_price"`
	Stock       int64    `json:"product_stock" bigquery:"product_stock" yaml:"product_stock"`
	Image       string   `json:"product_image,omitempty" bigquery:"product_image" yaml:"product_image"`
	UMKMID      int64    `json:"umkm_id" bigquery:"umkm_id" yaml:"umkm_id"`

	// Filled by product search only
	UMKMName string `json:"umkm_name,omitempty" bigquery:"umkm_name" yaml:"umkm_name"`
}

// ResolveImageURL turns a stored image reference into an absolute URL
// under baseURL. Absolute references and empty values are returned as is.
func ResolveImageURL(baseURL, image string) string {
	if image == "" {
		return ""
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return strings.TrimRight(baseURL, "/") + "/uploads/" + strings.TrimLeft(image, "/")
}

// WithImageURL returns a copy of the UMKM with an absolute image URL
func (u UMKM) WithImageURL(baseURL string) *UMKM {
	u.Image = ResolveImageURL(baseURL, u.Image)
	return &u
}

// WithImageURL returns a copy of the product with an absolute image URL
func (p Product) WithImageURL(baseURL string) *Product {
	p.Image = ResolveImageURL(baseURL, p.Image)
	return &p
}
