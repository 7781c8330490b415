package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// DefaultTTL is how long a computed price stays cached
const DefaultTTL = time.Hour

const keyPrefix = "price"

// PriceCache stores serialized pricing results.
// Implementations never return errors: a failed read is a miss and a
// failed write reports false.
type PriceCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	InvalidateProduct(ctx context.Context, productID int64) int
}

// KeyParams are the request parameters a cached price depends on
type KeyParams struct {
	ProductID        int64
	Quantity         int
	TargetCurrency   *string
	IncludeTax       *bool
	RoundingStrategy string
}

// Key builds a deterministic cache key. The product id is kept in clear
// so per-product invalidation can match on the prefix.
func Key(p KeyParams) string {
	currency := "default"
	if p.TargetCurrency != nil {
		currency = *p.TargetCurrency
	}
	tax := "default"
	if p.IncludeTax != nil {
		tax = strconv.FormatBool(*p.IncludeTax)
	}

	raw := fmt.Sprintf("%d|%d|%s|%s|%s", p.ProductID, p.Quantity, currency, tax, p.RoundingStrategy)
	sum := sha256.Sum256([]byte(raw))
	return productPrefix(p.ProductID) + hex.EncodeToString(sum[:])
}

func productPrefix(productID int64) string {
	return fmt.Sprintf("%s:%d:", keyPrefix, productID)
}
