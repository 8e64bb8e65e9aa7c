package okx

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"marketpulse/pkg/market"
)

const defaultProviderTimeout = 8 * time.Second

// Provider wraps OKX client calls behind the generic market.Provider contract.
type Provider struct {
	client      *Client
	timeout     time.Duration
	persistence market.Persistence
	providerID  string
	cacheMu     sync.RWMutex
	snapshots   map[string]cachedSnapshot
	assets      cachedAssets
}

type providerConfig struct {
	timeout      time.Duration
	clientConfig []Option
}

// ProviderOption customises the OKX provider.
type ProviderOption func(*providerConfig)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(cfg *providerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithClientOptions passes options to the underlying OKX client.
func WithClientOptions(options ...Option) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.clientConfig = append(cfg.clientConfig, options...)
	}
}

// NewProvider constructs an OKX market provider.
func NewProvider(opts ...ProviderOption) *Provider {
	cfg := &providerConfig{
		timeout: defaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := NewClient(cfg.clientConfig...)
	return &Provider{
		client:    client,
		timeout:   cfg.timeout,
		snapshots: make(map[string]cachedSnapshot),
	}
}

func init() {
	market.RegisterProvider("okx", func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		opts := []ProviderOption{}
		clientOptions := []Option{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.HTTPTimeout > 0 {
			clientOptions = append(clientOptions, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.BaseURL != "" {
			clientOptions = append(clientOptions, WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxRetries > 0 {
			clientOptions = append(clientOptions, WithMaxRetries(cfg.MaxRetries))
		}
		if len(clientOptions) > 0 {
			opts = append(opts, WithClientOptions(clientOptions...))
		}
		provider := NewProvider(opts...)
		provider.providerID = name
		return provider, nil
	})
}

// Snapshot implements market.Provider by returning an aggregated market snapshot.
func (p *Provider) Snapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if snap, ok := p.loadSnapshot(symbol); ok {
		return snap, nil
	}
	snap, err := p.client.buildSnapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	p.persistSnapshot(ctx, symbol, snap)
	p.storeSnapshot(symbol, snap)
	return snap, nil
}

// ListAssets implements market.Provider by returning USDT-quoted spot
// instruments.
func (p *Provider) ListAssets(ctx context.Context) ([]market.Asset, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if assets, ok := p.loadAssets(); ok {
		return assets, nil
	}

	instruments, err := p.client.GetInstruments(ctx, "SPOT")
	if err != nil {
		return nil, err
	}
	assets := collectAssets(instruments)
	p.persistAssets(ctx, assets)
	p.storeAssets(assets)
	return assets, nil
}

func collectAssets(instruments []Instrument) []market.Asset {
	assets := make([]market.Asset, 0, len(instruments))
	for _, inst := range instruments {
		if inst.QuoteCcy != "USDT" || inst.BaseCcy == "" {
			continue
		}
		assets = append(assets, market.Asset{
			Symbol:    inst.BaseCcy,
			Base:      inst.BaseCcy,
			Quote:     inst.QuoteCcy,
			Precision: precisionFromTick(inst.TickSz),
			IsActive:  inst.State == "live",
			RawMetadata: map[string]any{
				"instId": inst.InstID,
				"tickSz": inst.TickSz,
				"lotSz":  inst.LotSz,
			},
		})
	}

	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Symbol < assets[j].Symbol
	})
	return assets
}

// precisionFromTick counts decimal places in a tick size like "0.0001".
func precisionFromTick(tick string) int {
	if i := strings.IndexByte(tick, '.'); i >= 0 {
		return len(tick) - i - 1
	}
	return 0
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, p.timeout)
}

// SetPersistence wires a persistence layer for market data.
func (p *Provider) SetPersistence(persist market.Persistence) {
	p.persistence = persist
}

const (
	snapshotCacheTTL = 15 * time.Second
	assetCacheTTL    = 5 * time.Minute
)

type cachedSnapshot struct {
	Snapshot *market.Snapshot
	Fetched  time.Time
}

type cachedAssets struct {
	Assets  []market.Asset
	Fetched time.Time
}

func (p *Provider) loadSnapshot(symbol string) (*market.Snapshot, bool) {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	entry, ok := p.snapshots[normalizeSymbol(symbol)]
	if !ok || time.Since(entry.Fetched) > snapshotCacheTTL || entry.Snapshot == nil {
		return nil, false
	}
	copied := *entry.Snapshot
	return &copied, true
}

func (p *Provider) storeSnapshot(symbol string, snapshot *market.Snapshot) {
	if snapshot == nil {
		return
	}
	copied := *snapshot
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if p.snapshots == nil {
		p.snapshots = make(map[string]cachedSnapshot)
	}
	p.snapshots[normalizeSymbol(symbol)] = cachedSnapshot{Snapshot: &copied, Fetched: time.Now()}
}

func (p *Provider) loadAssets() ([]market.Asset, bool) {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	if len(p.assets.Assets) == 0 || time.Since(p.assets.Fetched) > assetCacheTTL {
		return nil, false
	}
	assets := make([]market.Asset, len(p.assets.Assets))
	copy(assets, p.assets.Assets)
	return assets, true
}

func (p *Provider) storeAssets(assets []market.Asset) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	clone := make([]market.Asset, len(assets))
	copy(clone, assets)
	p.assets = cachedAssets{Assets: clone, Fetched: time.Now()}
}

func (p *Provider) providerName() string {
	if strings.TrimSpace(p.providerID) != "" {
		return p.providerID
	}
	return "okx"
}
