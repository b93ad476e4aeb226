package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
)

// Catalog resolves products by product number. A nil product with a nil error
// means the product does not exist.
type Catalog interface {
	FindByNumber(ctx context.Context, productNumber string) (*cart.Product, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgCatalog reads the product tax mirror table.
type PgCatalog struct {
	DB rowQuerier
}

const findProductSQL = `SELECT id::text, product_number, name, tax_rate::text, custom_fields
FROM products WHERE product_number = $1`

// FindByNumber implements Catalog.
func (c PgCatalog) FindByNumber(ctx context.Context, productNumber string) (*cart.Product, error) {
	var (
		p      cart.Product
		rate   string
		fields []byte
	)
	err := c.DB.QueryRow(ctx, findProductSQL, productNumber).Scan(&p.ID, &p.ProductNumber, &p.Name, &rate, &fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", productNumber, err)
	}
	p.TaxRate, err = decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("product %s tax rate: %w", productNumber, err)
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &p.CustomFields); err != nil {
			return nil, fmt.Errorf("product %s custom fields: %w", productNumber, err)
		}
	}
	return &p, nil
}

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// CachedCatalog serves products from Redis before falling through to Next.
// Only found products are cached.
type CachedCatalog struct {
	Next  Catalog
	Cache *Cache
}

func productCacheKey(number string) string {
	return "taxbridge:product:" + number
}

// FindByNumber implements Catalog.
func (c CachedCatalog) FindByNumber(ctx context.Context, productNumber string) (*cart.Product, error) {
	var cached cart.Product
	if ok, err := c.Cache.GetJSON(ctx, productCacheKey(productNumber), &cached); err == nil && ok {
		return &cached, nil
	}
	p, err := c.Next.FindByNumber(ctx, productNumber)
	if err != nil || p == nil {
		return p, err
	}
	_ = c.Cache.SetJSON(ctx, productCacheKey(productNumber), p)
	return p, nil
}

// StaticCatalog is an in-memory catalog keyed by product number.
type StaticCatalog map[string]cart.Product

// FindByNumber implements Catalog.
func (s StaticCatalog) FindByNumber(_ context.Context, productNumber string) (*cart.Product, error) {
	p, ok := s[productNumber]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
