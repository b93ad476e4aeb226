package quote

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/common"
	"github.com/noah-isme/taxbridge/internal/obs"
	"github.com/noah-isme/taxbridge/internal/session"
)

// SessionStore persists quote state per customer session.
type SessionStore interface {
	Get(ctx context.Context, sessionID, name string, dst any) (bool, error)
	Set(ctx context.Context, sessionID, name string, v any) error
	Clear(ctx context.Context, sessionID string) error
}

// GetTaxService quotes carts and caches the transformed result per session.
type GetTaxService struct {
	Provider Provider
	Builder  Builder
	Session  SessionStore
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Taxes returns the tax result for c. It never returns provider errors:
// failures are reported through StatusFailed.
func (s *GetTaxService) Taxes(ctx context.Context, c *cart.Cart, sc cart.SalesContext) TaxResult {
	ctx, span := otel.Tracer("taxbridge/quote").Start(ctx, "quote.Taxes")
	defer span.End()

	if sc.Customer == nil {
		obs.CountQuote("no_customer")
		cached, _ := s.cached(ctx, sc.SessionID)
		return cached
	}

	req, err := s.Builder.Build(c, sc)
	if err != nil {
		if errors.Is(err, ErrCountryRestricted) {
			if err := s.Session.Clear(ctx, sc.SessionID); err != nil {
				s.Logger.Warn().Err(err).Msg("quote_session_clear_failed")
			}
			s.set(ctx, sc.SessionID, session.KeyTaxesTransformed, statusOnly(StatusNotNeeded))
		}
		obs.CountQuote("not_needed")
		span.SetAttributes(attribute.String("quote.result", string(StatusNotNeeded)))
		return statusOnly(StatusNotNeeded)
	}

	key, err := common.ContentHash(req)
	if err != nil {
		s.Logger.Error().Err(err).Msg("quote_hash_failed")
		return statusOnly(StatusFailed)
	}

	var cachedKey string
	_, _ = s.Session.Get(ctx, sc.SessionID, session.KeyModelKey, &cachedKey)
	cached, found := s.cached(ctx, sc.SessionID)
	if key == cachedKey && found && cached.Valid() && cached.Status != StatusFailed {
		obs.CountQuote("cached")
		s.Logger.Debug().Str("session_id", sc.SessionID).Str("status", string(cached.Status)).Msg("quote_cache_hit")
		span.SetAttributes(attribute.Bool("quote.cached", true))
		return cached
	}

	s.set(ctx, sc.SessionID, session.KeyModel, req)
	s.set(ctx, sc.SessionID, session.KeyModelKey, key)

	Disambiguate(&req)
	req.Date = s.now().Format(time.RFC3339)

	start := time.Now()
	resp, err := s.Provider.CreateTransaction(ctx, req)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		s.Logger.Error().Err(err).Str("customer", req.CustomerCode).Int("lines", len(req.Lines)).Msg("quote_provider_failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failed")
		resp = nil
	}

	result := Transform(resp, c)
	obs.ObserveQuoteLatency(string(result.Status), elapsed)
	obs.CountQuote(string(result.Status))
	span.SetAttributes(attribute.String("quote.result", string(result.Status)))

	s.set(ctx, sc.SessionID, session.KeyTaxes, resp)
	s.set(ctx, sc.SessionID, session.KeyTaxesTransformed, result)
	return result
}

// Cached returns the last transformed result of a session.
func (s *GetTaxService) Cached(ctx context.Context, sessionID string) TaxResult {
	r, _ := s.cached(ctx, sessionID)
	return r
}

func (s *GetTaxService) cached(ctx context.Context, sessionID string) (TaxResult, bool) {
	var r TaxResult
	ok, err := s.Session.Get(ctx, sessionID, session.KeyTaxesTransformed, &r)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("quote_session_read_failed")
		return TaxResult{}, false
	}
	return r, ok
}

func (s *GetTaxService) set(ctx context.Context, sessionID, name string, v any) {
	if err := s.Session.Set(ctx, sessionID, name, v); err != nil {
		s.Logger.Warn().Err(err).Str("key", name).Msg("quote_session_write_failed")
	}
}

func (s *GetTaxService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
