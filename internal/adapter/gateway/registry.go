package gateway

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"pliz-ledger/config"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"
	"pliz-ledger/pkg/circuitbreaker"
	"pliz-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// Options are shared by every adapter a registry builds.
type Options struct {
	Timeout    time.Duration
	Currency   string
	HTTPClient *http.Client
	Breakers   *circuitbreaker.Manager
	Log        zerolog.Logger
}

func (o Options) breaker(id string) *circuitbreaker.Breaker {
	if o.Breakers == nil {
		return nil
	}
	return o.Breakers.Get(id)
}

func (o Options) logger() zerolog.Logger {
	return logger.Component(o.Log, "gateway")
}

// Registry resolves partner ids to configured gateways.
type Registry struct {
	gateways map[string]ports.PartnerGateway
}

var _ ports.GatewayRegistry = (*Registry)(nil)

// NewRegistry builds one gateway per configured partner. Unknown drivers
// and missing credentials fail the whole build.
func NewRegistry(partners map[string]config.PartnerConfig, opts Options) (*Registry, error) {
	r := &Registry{gateways: make(map[string]ports.PartnerGateway, len(partners))}
	for id, cfg := range partners {
		id = strings.ToLower(id)
		gw, err := build(id, cfg, opts)
		if err != nil {
			return nil, fmt.Errorf("partner %s: %w", id, err)
		}
		r.gateways[id] = gw
	}
	return r, nil
}

func build(id string, cfg config.PartnerConfig, opts Options) (ports.PartnerGateway, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = id
	}
	switch driver {
	case "djamo":
		return NewDjamo(id, cfg, opts)
	case "samirpay", "orange_money", "wave":
		return NewSamirPay(id, cfg, opts)
	case "mtn_money":
		return NewMTNMoney(id, cfg, opts.Currency, opts)
	case "ecobank":
		return NewEcobank(id, cfg, opts.Currency, opts)
	default:
		return nil, apperror.ErrUnknownPartner(driver)
	}
}

// Register adds or replaces a gateway.
func (r *Registry) Register(gw ports.PartnerGateway) {
	r.gateways[strings.ToLower(gw.Name())] = gw
}

// Get returns the gateway for a partner id, case-insensitively.
func (r *Registry) Get(partner string) (ports.PartnerGateway, error) {
	gw, ok := r.gateways[strings.ToLower(partner)]
	if !ok {
		return nil, apperror.ErrUnknownPartner(partner)
	}
	return gw, nil
}

// Names lists the configured partner ids in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for id := range r.gateways {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}
