package service

import (
	"context"
	"fmt"
	"time"

	"pricing-engine/internal/cache"
	"pricing-engine/internal/models"
	"pricing-engine/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PromotionStore is the storage the promotion write path needs
type PromotionStore interface {
	PromotionCatalog
	GetPromotionByID(ctx context.Context, id int64) (*models.Promotion, error)
	ListPromotions(ctx context.Context) ([]models.Promotion, error)
	CreatePromotion(ctx context.Context, p *models.Promotion) error
	UpdatePromotion(ctx context.Context, p *models.Promotion) error
	DeletePromotion(ctx context.Context, id int64) error
	ListProductIDsByCategory(ctx context.Context, category string) ([]int64, error)
}

// CatalogPublisher announces catalog writes to other instances
type CatalogPublisher interface {
	PublishCatalogChanged(ctx context.Context, event *models.CatalogChangedEvent) error
}

// PromotionInput carries the fields of a new promotion. Nil fields keep
// their defaults.
type PromotionInput struct {
	Name              *string              `json:"name"`
	DiscountType      *models.DiscountType `json:"discount_type"`
	DiscountValue     *decimal.Decimal     `json:"discount_value"`
	BuyQuantity       *int                 `json:"buy_quantity"`
	GetQuantity       *int                 `json:"get_quantity"`
	MinQuantity       *int                 `json:"min_quantity"`
	MinAmount         *decimal.Decimal     `json:"min_amount"`
	CategoryFilter    *string              `json:"category_filter"`
	AppliesToCategory *bool                `json:"applies_to_category"`
	Priority          *int                 `json:"priority"`
	StackingEnabled   *bool                `json:"stacking_enabled"`
	StartDate         *time.Time           `json:"start_date"`
	EndDate           *time.Time           `json:"end_date"`
	IsActive          *bool                `json:"is_active"`
	ProductID         *int64               `json:"product_id"`
}

// ApplyTo copies the set fields of in onto p
func (in *PromotionInput) ApplyTo(p *models.Promotion) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.DiscountType != nil {
		p.DiscountType = *in.DiscountType
	}
	if in.DiscountValue != nil {
		p.DiscountValue = *in.DiscountValue
	}
	if in.BuyQuantity != nil {
		p.BuyQuantity = in.BuyQuantity
	}
	if in.GetQuantity != nil {
		p.GetQuantity = in.GetQuantity
	}
	if in.MinQuantity != nil {
		p.MinQuantity = in.MinQuantity
	}
	if in.MinAmount != nil {
		p.MinAmount = decimal.NewNullDecimal(*in.MinAmount)
	}
	if in.CategoryFilter != nil {
		p.CategoryFilter = in.CategoryFilter
	}
	if in.AppliesToCategory != nil {
		p.AppliesToCategory = *in.AppliesToCategory
	}
	if in.Priority != nil {
		p.Priority = *in.Priority
	}
	if in.StackingEnabled != nil {
		p.StackingEnabled = *in.StackingEnabled
	}
	if in.StartDate != nil {
		p.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		p.EndDate = *in.EndDate
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.ProductID != nil {
		p.ProductID = in.ProductID
	}
}

// PromotionWriteResult is a stored promotion plus any non-blocking warnings
type PromotionWriteResult struct {
	Promotion *models.Promotion `json:"promotion"`
	Warnings  []string          `json:"warnings"`
}

// PromotionService validates, stores and invalidates promotions
type PromotionService struct {
	store     PromotionStore
	validator *PromotionValidator
	cache     cache.PriceCache
	publisher CatalogPublisher
	logger    *zap.Logger
}

// NewPromotionService creates a new promotion service. publisher may be nil.
func NewPromotionService(store PromotionStore, priceCache cache.PriceCache, publisher CatalogPublisher) *PromotionService {
	return &PromotionService{
		store:     store,
		validator: NewPromotionValidator(store),
		cache:     priceCache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Validate reports on a candidate promotion without storing it
func (s *PromotionService) Validate(ctx context.Context, in *PromotionInput) (*ValidationReport, error) {
	p := newPromotion(in)
	return s.validator.ValidatePromotion(ctx, p, 0)
}

// GetPromotion retrieves a promotion by ID
func (s *PromotionService) GetPromotion(ctx context.Context, id int64) (*models.Promotion, error) {
	return s.store.GetPromotionByID(ctx, id)
}

// ListPromotions retrieves all promotions
func (s *PromotionService) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	return s.store.ListPromotions(ctx)
}

// CreatePromotion validates and stores a new promotion
func (s *PromotionService) CreatePromotion(ctx context.Context, in *PromotionInput) (*PromotionWriteResult, error) {
	ctx, span := util.StartSpan(ctx, "PromotionService.CreatePromotion")
	defer span.End()

	p := newPromotion(in)
	report, err := s.validate(ctx, p, 0)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if err := s.store.CreatePromotion(ctx, p); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}
	util.PromotionWritesTotal.WithLabelValues("create").Inc()
	span.SetAttributes(attribute.Int64("promotion_id", p.ID))

	s.logger.Info("Promotion created", zap.Int64("promotion_id", p.ID), zap.String("name", p.Name))
	s.invalidate(ctx, models.ChangePromotionCreated, p.ID, s.affectedProducts(ctx, p))

	return &PromotionWriteResult{Promotion: p, Warnings: report.Warnings}, nil
}

// UpdatePromotion applies a JSON merge patch to the stored promotion and
// validates the result. A null member clears the field.
func (s *PromotionService) UpdatePromotion(ctx context.Context, id int64, patch []byte) (*PromotionWriteResult, error) {
	ctx, span := util.StartSpan(ctx, "PromotionService.UpdatePromotion", attribute.Int64("promotion_id", id))
	defer span.End()

	existing, err := s.store.GetPromotionByID(ctx, id)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	before := s.affectedProducts(ctx, existing)

	merged, err := mergePatch(existing, patch)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	merged.UpdatedAt = existing.UpdatedAt

	report, err := s.validate(ctx, merged, id)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if err := s.store.UpdatePromotion(ctx, merged); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to update promotion: %w", err)
	}
	util.PromotionWritesTotal.WithLabelValues("update").Inc()

	s.logger.Info("Promotion updated", zap.Int64("promotion_id", id))
	s.invalidate(ctx, models.ChangePromotionUpdated, id, union(before, s.affectedProducts(ctx, merged)))

	return &PromotionWriteResult{Promotion: merged, Warnings: report.Warnings}, nil
}

// DeletePromotion removes a promotion
func (s *PromotionService) DeletePromotion(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "PromotionService.DeletePromotion", attribute.Int64("promotion_id", id))
	defer span.End()

	existing, err := s.store.GetPromotionByID(ctx, id)
	if err != nil {
		util.RecordError(span, err)
		return err
	}
	affected := s.affectedProducts(ctx, existing)

	if err := s.store.DeletePromotion(ctx, id); err != nil {
		util.RecordError(span, err)
		return err
	}
	util.PromotionWritesTotal.WithLabelValues("delete").Inc()

	s.logger.Info("Promotion deleted", zap.Int64("promotion_id", id))
	s.invalidate(ctx, models.ChangePromotionDeleted, id, affected)
	return nil
}

func (s *PromotionService) validate(ctx context.Context, p *models.Promotion, excludeID int64) (*ValidationReport, error) {
	report, err := s.validator.ValidatePromotion(ctx, p, excludeID)
	if err != nil {
		return nil, err
	}
	if !report.Valid {
		util.ValidationFailuresTotal.Inc()
		return nil, report.Err()
	}
	return report, nil
}

// affectedProducts lists the products whose cached prices p can change
func (s *PromotionService) affectedProducts(ctx context.Context, p *models.Promotion) []int64 {
	if !p.AppliesToCategory {
		if p.ProductID == nil {
			return nil
		}
		return []int64{*p.ProductID}
	}
	if p.CategoryFilter == nil {
		return nil
	}

	ids, err := s.store.ListProductIDsByCategory(ctx, *p.CategoryFilter)
	if err != nil {
		s.logger.Error("Failed to list products for category invalidation",
			zap.String("category", *p.CategoryFilter), zap.Error(err))
		return nil
	}
	return ids
}

// invalidate drops cached prices for productIDs and broadcasts the change
func (s *PromotionService) invalidate(ctx context.Context, change string, promotionID int64, productIDs []int64) {
	invalidateAndPublish(ctx, s.cache, s.publisher, s.logger, &models.CatalogChangedEvent{
		Change:      change,
		ProductIDs:  productIDs,
		PromotionID: promotionID,
	})
}

// newPromotion builds a promotion from in with create-time defaults
func newPromotion(in *PromotionInput) *models.Promotion {
	p := &models.Promotion{IsActive: true}
	in.ApplyTo(p)
	return p
}

func invalidateAndPublish(
	ctx context.Context,
	priceCache cache.PriceCache,
	publisher CatalogPublisher,
	logger *zap.Logger,
	event *models.CatalogChangedEvent,
) {
	removed := 0
	for _, id := range event.ProductIDs {
		removed += priceCache.InvalidateProduct(ctx, id)
	}
	util.CacheInvalidatedKeysTotal.Add(float64(removed))
	logger.Info("Invalidated cached prices",
		zap.String("change", event.Change),
		zap.Int("products", len(event.ProductIDs)),
		zap.Int("keys", removed))

	if publisher == nil {
		return
	}

	event.BaseEvent = models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: models.EventTypeCatalogChanged,
		Timestamp: time.Now(),
	}
	if err := publisher.PublishCatalogChanged(ctx, event); err != nil {
		logger.Error("Failed to publish catalog change", zap.String("change", event.Change), zap.Error(err))
	}
}

func union(a, b []int64) []int64 {
	seen := make(map[int64]bool, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, ids := range [][]int64{a, b} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
