package store

import (
	"context"
	"fmt"
	"strings"

	"pricing-engine/internal/models"
)

const defaultAuditLimit = 100

// InsertAuditLog stores an audit row. Returns false when a row with the
// same event id already exists.
func (s *Store) InsertAuditLog(ctx context.Context, log *models.AuditLog) (bool, error) {
	query := `
		INSERT INTO price_audit_logs (event_id, product_id, quantity, original_price, final_price,
			discount_amount, applied_promotions, currency, tax_amount, tax_rate, cached,
			request_id, client_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (event_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		log.EventID, log.ProductID, log.Quantity, log.OriginalPrice, log.FinalPrice,
		log.DiscountAmount, log.AppliedPromotions, log.Currency, log.TaxAmount, log.TaxRate, log.Cached,
		log.RequestID, log.ClientIP, log.UserAgent)
	if err != nil {
		return false, fmt.Errorf("failed to insert audit log: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// auditWhere renders the WHERE clause and arguments for filter
func auditWhere(filter models.AuditFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		clauses = append(clauses, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListAuditLogs returns audit rows matching filter, newest first
func (s *Store) ListAuditLogs(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	where, args := auditWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT id, event_id, product_id, quantity, original_price, final_price, discount_amount,
			applied_promotions, currency, tax_amount, tax_rate, cached, request_id, client_ip,
			user_agent, created_at
		FROM price_audit_logs%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	logs := []models.AuditLog{}
	err := s.db.SelectContext(ctx, &logs, query, args...)
	return logs, err
}

// AuditStats aggregates audit rows matching filter
func (s *Store) AuditStats(ctx context.Context, filter models.AuditFilter) (*models.AuditStats, error) {
	where, args := auditWhere(filter)

	query := `
		SELECT COUNT(*) AS total_calculations,
			COALESCE(SUM(final_price), 0) AS total_revenue,
			COALESCE(SUM(discount_amount), 0) AS total_discount,
			COALESCE(AVG(discount_amount), 0) AS avg_discount,
			COUNT(DISTINCT product_id) AS unique_products
		FROM price_audit_logs` + where

	var stats models.AuditStats
	if err := s.db.GetContext(ctx, &stats, query, args...); err != nil {
		return nil, err
	}
	stats.AvgDiscount = stats.AvgDiscount.Round(2)
	return &stats, nil
}
