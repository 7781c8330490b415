package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pricing-engine/internal/models"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }
func strPtr(v string) *string    { return &v }
func boolPtr(v bool) *bool       { return &v }
func intPtr(v int) *int          { return &v }
func int64Ptr(v int64) *int64    { return &v }

// fakeCatalog is an in-memory stand-in for the PostgreSQL store
type fakeCatalog struct {
	mu             sync.Mutex
	nextID         int64
	products       map[int64]models.Product
	promotions     map[int64]models.Promotion
	audit          []models.AuditLog
	candidateCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products:   map[int64]models.Product{},
		promotions: map[int64]models.Promotion{},
	}
}

func (f *fakeCatalog) id() int64 {
	f.nextID++
	return f.nextID
}

// addProduct stores p and returns its id
func (f *fakeCatalog) addProduct(p models.Product) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == 0 {
		p.ID = f.id()
	}
	f.products[p.ID] = p
	return p.ID
}

// addPromotion stores p with an active window around testNow
func (f *fakeCatalog) addPromotion(p models.Promotion) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	if p.StartDate.IsZero() {
		p.StartDate = testNow.Add(-24 * time.Hour)
	}
	if p.EndDate.IsZero() {
		p.EndDate = testNow.Add(24 * time.Hour)
	}
	f.promotions[p.ID] = p
	return p.ID
}

func (f *fakeCatalog) promotionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.promotions)
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrProductNotFound, id)
	}
	return &p, nil
}

func (f *fakeCatalog) ListProducts(_ context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCatalog) ListProductIDsByCategory(_ context.Context, category string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []int64{}
	for _, p := range f.products {
		if p.Category != nil && *p.Category == category {
			ids = append(ids, p.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeCatalog) CreateProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	p.CreatedAt = testNow
	p.UpdatedAt = testNow
	f.products[p.ID] = *p
	return nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return fmt.Errorf("%w: %d", models.ErrProductNotFound, p.ID)
	}
	f.products[p.ID] = *p
	return nil
}

func (f *fakeCatalog) DeleteProduct(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return fmt.Errorf("%w: %d", models.ErrProductNotFound, id)
	}
	delete(f.products, id)
	for pid, promo := range f.promotions {
		if promo.ProductID != nil && *promo.ProductID == id {
			delete(f.promotions, pid)
		}
	}
	return nil
}

func (f *fakeCatalog) sortedPromotions(keep func(models.Promotion) bool) []models.Promotion {
	out := []models.Promotion{}
	for _, p := range f.promotions {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *fakeCatalog) ListEligibleCandidates(_ context.Context, productID int64, category *string) ([]models.Promotion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidateCalls++
	return f.sortedPromotions(func(p models.Promotion) bool {
		if !p.IsActive {
			return false
		}
		if p.AppliesToCategory {
			return category != nil && p.CategoryFilter != nil && *p.CategoryFilter == *category
		}
		return p.ProductID != nil && *p.ProductID == productID
	}), nil
}

func (f *fakeCatalog) GetPromotionByID(_ context.Context, id int64) (*models.Promotion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.promotions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrPromotionNotFound, id)
	}
	return &p, nil
}

func (f *fakeCatalog) ListPromotions(_ context.Context) ([]models.Promotion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedPromotions(func(models.Promotion) bool { return true }), nil
}

func (f *fakeCatalog) CreatePromotion(_ context.Context, p *models.Promotion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	f.promotions[p.ID] = *p
	return nil
}

func (f *fakeCatalog) UpdatePromotion(_ context.Context, p *models.Promotion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.promotions[p.ID]; !ok {
		return fmt.Errorf("%w: %d", models.ErrPromotionNotFound, p.ID)
	}
	f.promotions[p.ID] = *p
	return nil
}

func (f *fakeCatalog) DeletePromotion(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.promotions[id]; !ok {
		return fmt.Errorf("%w: %d", models.ErrPromotionNotFound, id)
	}
	delete(f.promotions, id)
	return nil
}

func (f *fakeCatalog) PromotionNameExists(_ context.Context, name string, excludeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.promotions {
		if p.Name == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCatalog) ListActiveInScope(_ context.Context, target *models.Promotion, excludeID int64) ([]models.Promotion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedPromotions(func(p models.Promotion) bool {
		if !p.IsActive || p.ID == excludeID || p.AppliesToCategory != target.AppliesToCategory {
			return false
		}
		if target.AppliesToCategory {
			return target.CategoryFilter != nil && p.CategoryFilter != nil && *p.CategoryFilter == *target.CategoryFilter
		}
		return target.ProductID != nil && p.ProductID != nil && *p.ProductID == *target.ProductID
	}), nil
}

func (f *fakeCatalog) InsertAuditLog(_ context.Context, log *models.AuditLog) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.audit {
		if existing.EventID == log.EventID {
			return false, nil
		}
	}
	row := *log
	row.ID = f.id()
	f.audit = append(f.audit, row)
	return true, nil
}

func (f *fakeCatalog) ListAuditLogs(_ context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.AuditLog{}
	for _, log := range f.audit {
		if filter.ProductID == nil || *filter.ProductID == log.ProductID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeCatalog) AuditStats(ctx context.Context, filter models.AuditFilter) (*models.AuditStats, error) {
	logs, _ := f.ListAuditLogs(ctx, filter)
	stats := &models.AuditStats{}
	seen := map[int64]bool{}
	for _, log := range logs {
		stats.TotalCalculations++
		stats.TotalRevenue = stats.TotalRevenue.Add(log.FinalPrice)
		stats.TotalDiscount = stats.TotalDiscount.Add(log.DiscountAmount)
		seen[log.ProductID] = true
	}
	stats.UniqueProducts = len(seen)
	if stats.TotalCalculations > 0 {
		stats.AvgDiscount = stats.TotalDiscount.Div(decimal.NewFromInt(int64(stats.TotalCalculations))).Round(2)
	}
	return stats, nil
}

// recordingPublisher captures catalog change events
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.CatalogChangedEvent
}

func (r *recordingPublisher) PublishCatalogChanged(_ context.Context, event *models.CatalogChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}
