package quote

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ServiceID identifies a provider-backed service.
type ServiceID int

const (
	ServiceGetTax ServiceID = iota + 1
	ServicePing
)

func (id ServiceID) String() string {
	switch id {
	case ServiceGetTax:
		return "get_tax"
	case ServicePing:
		return "ping"
	default:
		return "unknown"
	}
}

// ErrServiceUnavailable is returned for a service the adapter was built without.
var ErrServiceUnavailable = errors.New("quote: service unavailable")

// Pinger checks provider connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Adapter resolves every provider-backed service once, at construction.
type Adapter struct {
	getTax *GetTaxService
	pinger Pinger
}

// AdapterConfig lists the collaborators of an Adapter.
type AdapterConfig struct {
	Provider Provider
	Builder  Builder
	Session  SessionStore
	Logger   zerolog.Logger
}

// NewAdapter builds the service table. The provider doubles as Pinger when it
// implements it.
func NewAdapter(cfg AdapterConfig) *Adapter {
	a := &Adapter{
		getTax: &GetTaxService{
			Provider: cfg.Provider,
			Builder:  cfg.Builder,
			Session:  cfg.Session,
			Logger:   cfg.Logger.With().Str("service", ServiceGetTax.String()).Logger(),
		},
	}
	if p, ok := cfg.Provider.(Pinger); ok {
		a.pinger = p
	}
	return a
}

// GetTax returns the get-tax service.
func (a *Adapter) GetTax() *GetTaxService {
	return a.getTax
}

// Has reports whether id is backed by a collaborator.
func (a *Adapter) Has(id ServiceID) bool {
	switch id {
	case ServiceGetTax:
		return a.getTax != nil && a.getTax.Provider != nil
	case ServicePing:
		return a.pinger != nil
	default:
		return false
	}
}

// Ping checks the provider.
func (a *Adapter) Ping(ctx context.Context) error {
	if !a.Has(ServicePing) {
		return ErrServiceUnavailable
	}
	return a.pinger.Ping(ctx)
}
