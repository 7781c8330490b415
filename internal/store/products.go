package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pricing-engine/internal/models"
)

const productColumns = `id, sku, title, base_price, currency, tax_rate, tax_inclusive,
	max_discount_cap, category, stock, created_at, updated_at`

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY id")
	return products, err
}

// ListProductIDsByCategory returns the ids of products in category
func (s *Store) ListProductIDsByCategory(ctx context.Context, category string) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM products WHERE category = $1 ORDER BY id", category)
	return ids, err
}

// CreateProduct inserts a product and fills its generated fields
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (sku, title, base_price, currency, tax_rate, tax_inclusive,
			max_discount_cap, category, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.SKU, p.Title, p.BasePrice, p.Currency, p.TaxRate, p.TaxInclusive,
		p.MaxDiscountCap, p.Category, p.Stock,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateProduct overwrites every mutable column of a product
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products SET sku = $1, title = $2, base_price = $3, currency = $4, tax_rate = $5,
			tax_inclusive = $6, max_discount_cap = $7, category = $8, stock = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.SKU, p.Title, p.BasePrice, p.Currency, p.TaxRate,
		p.TaxInclusive, p.MaxDiscountCap, p.Category, p.Stock, p.ID,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", models.ErrProductNotFound, p.ID)
	}
	return err
}

// DeleteProduct removes a product; its promotions cascade
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", models.ErrProductNotFound, id)
	}
	return nil
}
