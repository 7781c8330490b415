package models

import "time"

// Event types
const (
	EventTypePriceComputed  = "PRICE_COMPUTED"
	EventTypeCatalogChanged = "CATALOG_CHANGED"
)

// Catalog change kinds
const (
	ChangeProductCreated   = "product_created"
	ChangeProductUpdated   = "product_updated"
	ChangeProductDeleted   = "product_deleted"
	ChangePromotionCreated = "promotion_created"
	ChangePromotionUpdated = "promotion_updated"
	ChangePromotionDeleted = "promotion_deleted"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestMeta describes the caller of a pricing request
type RequestMeta struct {
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// PriceComputedEvent published after a price is returned to a caller
type PriceComputedEvent struct {
	BaseEvent
	Result  PricingResult `json:"result"`
	Request RequestMeta   `json:"request"`
}

// CatalogChangedEvent published when products or promotions are written
type CatalogChangedEvent struct {
	BaseEvent
	Change      string  `json:"change"`
	ProductIDs  []int64 `json:"product_ids"`
	PromotionID int64   `json:"promotion_id,omitempty"`
}
