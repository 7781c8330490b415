package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Lookup errors
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrPromotionNotFound = errors.New("promotion not found")
)

// Product represents a product in the catalog
type Product struct {
	ID             int64               `db:"id" json:"id"`
	SKU            string              `db:"sku" json:"sku"`
	Title          string              `db:"title" json:"title"`
	BasePrice      decimal.Decimal     `db:"base_price" json:"base_price"`
	Currency       string              `db:"currency" json:"currency"`
	TaxRate        decimal.Decimal     `db:"tax_rate" json:"tax_rate"`
	TaxInclusive   bool                `db:"tax_inclusive" json:"tax_inclusive"`
	MaxDiscountCap decimal.NullDecimal `db:"max_discount_cap" json:"max_discount_cap"`
	Category       *string             `db:"category" json:"category,omitempty"`
	Stock          int                 `db:"stock" json:"stock"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// DiscountType is the stored tag of a promotion's discount kind
type DiscountType string

// Discount types
const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
	DiscountBOGO       DiscountType = "bogo"
)

// Promotion represents a discount rule scoped to a product or a category
type Promotion struct {
	ID                int64               `db:"id" json:"id"`
	Name              string              `db:"name" json:"name"`
	DiscountType      DiscountType        `db:"discount_type" json:"discount_type"`
	DiscountValue     decimal.Decimal     `db:"discount_value" json:"discount_value"`
	BuyQuantity       *int                `db:"buy_quantity" json:"buy_quantity,omitempty"`
	GetQuantity       *int                `db:"get_quantity" json:"get_quantity,omitempty"`
	MinQuantity       *int                `db:"min_quantity" json:"min_quantity,omitempty"`
	MinAmount         decimal.NullDecimal `db:"min_amount" json:"min_amount"`
	CategoryFilter    *string             `db:"category_filter" json:"category_filter,omitempty"`
	AppliesToCategory bool                `db:"applies_to_category" json:"applies_to_category"`
	Priority          int                 `db:"priority" json:"priority"`
	StackingEnabled   bool                `db:"stacking_enabled" json:"stacking_enabled"`
	StartDate         time.Time           `db:"start_date" json:"start_date"`
	EndDate           time.Time           `db:"end_date" json:"end_date"`
	IsActive          bool                `db:"is_active" json:"is_active"`
	ProductID         *int64              `db:"product_id" json:"product_id,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updated_at"`
}

// AppliedPromotion records one promotion's contribution to a price
type AppliedPromotion struct {
	Name           string          `json:"name"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Reason         string          `json:"reason"`
	Priority       int             `json:"priority"`
}

// AppliedPromotions is stored as a JSON column
type AppliedPromotions []AppliedPromotion

// Value implements driver.Valuer
func (a AppliedPromotions) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *AppliedPromotions) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("cannot scan %T into AppliedPromotions", src)
	}
}

// PricingResult is the output of one price computation
type PricingResult struct {
	ProductID          int64              `json:"product_id"`
	Quantity           int                `json:"quantity"`
	OriginalPrice      decimal.Decimal    `json:"original_price"`
	PriceAfterDiscount decimal.Decimal    `json:"price_after_discount"`
	DiscountAmount     decimal.Decimal    `json:"discount_amount"`
	TaxAmount          decimal.Decimal    `json:"tax_amount"`
	TaxRate            decimal.Decimal    `json:"tax_rate"`
	TaxInclusive       bool               `json:"tax_inclusive"`
	FinalPrice         decimal.Decimal    `json:"final_price"`
	Currency           string             `json:"currency"`
	RoundingStrategy   string             `json:"rounding_strategy"`
	AppliedPromotions  []AppliedPromotion `json:"applied_promotions"`
	Explanation        []string           `json:"explanation"`
	Cached             bool               `json:"cached"`
}

// AuditLog is a persisted record of a price computation
type AuditLog struct {
	ID                int64             `db:"id" json:"id"`
	EventID           string            `db:"event_id" json:"event_id"`
	ProductID         int64             `db:"product_id" json:"product_id"`
	Quantity          int               `db:"quantity" json:"quantity"`
	OriginalPrice     decimal.Decimal   `db:"original_price" json:"original_price"`
	FinalPrice        decimal.Decimal   `db:"final_price" json:"final_price"`
	DiscountAmount    decimal.Decimal   `db:"discount_amount" json:"discount_amount"`
	AppliedPromotions AppliedPromotions `db:"applied_promotions" json:"applied_promotions"`
	Currency          string            `db:"currency" json:"currency"`
	TaxAmount         decimal.Decimal   `db:"tax_amount" json:"tax_amount"`
	TaxRate           decimal.Decimal   `db:"tax_rate" json:"tax_rate"`
	Cached            bool              `db:"cached" json:"cached"`
	RequestID         string            `db:"request_id" json:"request_id,omitempty"`
	ClientIP          string            `db:"client_ip" json:"client_ip,omitempty"`
	UserAgent         string            `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
}

// AuditFilter narrows an audit log query
type AuditFilter struct {
	ProductID *int64
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}

// AuditStats summarises audit logs over a period
type AuditStats struct {
	TotalCalculations int             `db:"total_calculations" json:"total_calculations"`
	TotalRevenue      decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	TotalDiscount     decimal.Decimal `db:"total_discount" json:"total_discount"`
	AvgDiscount       decimal.Decimal `db:"avg_discount" json:"avg_discount"`
	UniqueProducts    int             `db:"unique_products" json:"unique_products"`
}
