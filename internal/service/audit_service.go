package service

import (
	"context"
	"fmt"

	"pricing-engine/internal/models"
	"pricing-engine/internal/util"

	"go.uber.org/zap"
)

// AuditStore persists and queries price audit logs
type AuditStore interface {
	InsertAuditLog(ctx context.Context, log *models.AuditLog) (bool, error)
	ListAuditLogs(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
	AuditStats(ctx context.Context, filter models.AuditFilter) (*models.AuditStats, error)
}

// AuditService records and reports price computations
type AuditService struct {
	store  AuditStore
	logger *zap.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// RecordPriceComputed stores the audit row for event. Redelivered events
// are ignored.
func (s *AuditService) RecordPriceComputed(ctx context.Context, event *models.PriceComputedEvent) error {
	ctx, span := util.StartSpan(ctx, "AuditService.RecordPriceComputed")
	defer span.End()

	result := event.Result
	log := &models.AuditLog{
		EventID:           event.EventID,
		ProductID:         result.ProductID,
		Quantity:          result.Quantity,
		OriginalPrice:     result.OriginalPrice,
		FinalPrice:        result.FinalPrice,
		DiscountAmount:    result.DiscountAmount,
		AppliedPromotions: models.AppliedPromotions(result.AppliedPromotions),
		Currency:          result.Currency,
		TaxAmount:         result.TaxAmount,
		TaxRate:           result.TaxRate,
		Cached:            result.Cached,
		RequestID:         event.Request.RequestID,
		ClientIP:          event.Request.ClientIP,
		UserAgent:         event.Request.UserAgent,
	}

	inserted, err := s.store.InsertAuditLog(ctx, log)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to record audit log: %w", err)
	}
	if !inserted {
		s.logger.Debug("Duplicate price event ignored", zap.String("event_id", event.EventID))
		return nil
	}

	util.AuditLogsPersistedTotal.Inc()
	return nil
}

// ListLogs returns audit logs matching filter, newest first
func (s *AuditService) ListLogs(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	return s.store.ListAuditLogs(ctx, filter)
}

// Stats aggregates audit logs matching filter
func (s *AuditService) Stats(ctx context.Context, filter models.AuditFilter) (*models.AuditStats, error) {
	return s.store.AuditStats(ctx, filter)
}
