package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pricing-engine/internal/models"
)

const promotionColumns = `id, name, discount_type, discount_value, buy_quantity, get_quantity,
	min_quantity, min_amount, category_filter, applies_to_category, priority, stacking_enabled,
	start_date, end_date, is_active, product_id, created_at, updated_at`

// ListEligibleCandidates returns active promotions scoped to the product or
// its category (case-sensitive). Time windows and thresholds are left to
// the engine.
func (s *Store) ListEligibleCandidates(ctx context.Context, productID int64, category *string) ([]models.Promotion, error) {
	query := `
		SELECT ` + promotionColumns + `
		FROM promotions
		WHERE is_active
		  AND ((NOT applies_to_category AND product_id = $1)
		       OR (applies_to_category AND $2::text IS NOT NULL AND category_filter = $2))
		ORDER BY priority, id`

	promos := []models.Promotion{}
	err := s.db.SelectContext(ctx, &promos, query, productID, category)
	return promos, err
}

// GetPromotionByID retrieves a promotion by ID
func (s *Store) GetPromotionByID(ctx context.Context, id int64) (*models.Promotion, error) {
	var promo models.Promotion
	err := s.db.GetContext(ctx, &promo, "SELECT "+promotionColumns+" FROM promotions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrPromotionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// ListPromotions retrieves all promotions
func (s *Store) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	promos := []models.Promotion{}
	err := s.db.SelectContext(ctx, &promos, "SELECT "+promotionColumns+" FROM promotions ORDER BY priority, id")
	return promos, err
}

// CountPromotionsForProduct counts promotions scoped directly to a product
func (s *Store) CountPromotionsForProduct(ctx context.Context, productID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM promotions WHERE product_id = $1", productID)
	return n, err
}

// PromotionNameExists reports whether another promotion already uses name
func (s *Store) PromotionNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM promotions WHERE name = $1 AND id <> $2)", name, excludeID)
	return exists, err
}

// ListActiveInScope returns active promotions sharing the scope of p,
// excluding excludeID
func (s *Store) ListActiveInScope(ctx context.Context, p *models.Promotion, excludeID int64) ([]models.Promotion, error) {
	promos := []models.Promotion{}

	if p.AppliesToCategory {
		if p.CategoryFilter == nil {
			return promos, nil
		}
		err := s.db.SelectContext(ctx, &promos,
			"SELECT "+promotionColumns+` FROM promotions
			WHERE is_active AND applies_to_category AND category_filter = $1 AND id <> $2
			ORDER BY priority, id`, *p.CategoryFilter, excludeID)
		return promos, err
	}

	if p.ProductID == nil {
		return promos, nil
	}
	err := s.db.SelectContext(ctx, &promos,
		"SELECT "+promotionColumns+` FROM promotions
		WHERE is_active AND NOT applies_to_category AND product_id = $1 AND id <> $2
		ORDER BY priority, id`, *p.ProductID, excludeID)
	return promos, err
}

// CreatePromotion inserts a promotion and fills its generated fields
func (s *Store) CreatePromotion(ctx context.Context, p *models.Promotion) error {
	query := `
		INSERT INTO promotions (name, discount_type, discount_value, buy_quantity, get_quantity,
			min_quantity, min_amount, category_filter, applies_to_category, priority,
			stacking_enabled, start_date, end_date, is_active, product_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.Name, p.DiscountType, p.DiscountValue, p.BuyQuantity, p.GetQuantity,
		p.MinQuantity, p.MinAmount, p.CategoryFilter, p.AppliesToCategory, p.Priority,
		p.StackingEnabled, p.StartDate, p.EndDate, p.IsActive, p.ProductID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdatePromotion overwrites every mutable column of a promotion
func (s *Store) UpdatePromotion(ctx context.Context, p *models.Promotion) error {
	query := `
		UPDATE promotions SET name = $1, discount_type = $2, discount_value = $3,
			buy_quantity = $4, get_quantity = $5, min_quantity = $6, min_amount = $7,
			category_filter = $8, applies_to_category = $9, priority = $10,
			stacking_enabled = $11, start_date = $12, end_date = $13, is_active = $14,
			product_id = $15, updated_at = NOW()
		WHERE id = $16
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.DiscountType, p.DiscountValue, p.BuyQuantity, p.GetQuantity,
		p.MinQuantity, p.MinAmount, p.CategoryFilter, p.AppliesToCategory, p.Priority,
		p.StackingEnabled, p.StartDate, p.EndDate, p.IsActive, p.ProductID, p.ID,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", models.ErrPromotionNotFound, p.ID)
	}
	return err
}

// DeletePromotion removes a promotion
func (s *Store) DeletePromotion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM promotions WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", models.ErrPromotionNotFound, id)
	}
	return nil
}
