// Package archive persists metric samples and market snapshots to Postgres
// and mirrors hot values into Redis. Writes are best-effort from the caller's
// point of view: the in-memory store stays authoritative and archive failures
// must never block a report or a poll cycle.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "marketpulse/internal/cache"
	"marketpulse/pkg/history"
	"marketpulse/pkg/market"
)

var _ market.Persistence = (*Service)(nil)

// Service implements metric and market data persistence hooks.
type Service struct {
	sqlConn sqlx.SqlConn
	cache   gocache.Cache
	ttl     cachekeys.TTLSet
}

// Config enumerates dependencies required to archive metric data.
type Config struct {
	SQLConn sqlx.SqlConn
	Cache   gocache.Cache
	TTL     cachekeys.TTLSet
}

// NewService wires an archive service. Returns nil when no database is configured.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil {
		return nil
	}
	return &Service{
		sqlConn: cfg.SQLConn,
		cache:   cfg.Cache,
		ttl:     cfg.TTL,
	}
}

// RecordSample appends one metric observation to Postgres and refreshes the
// Redis mirror of the latest value. Re-recording the same timestamp updates
// the stored value instead of duplicating the row.
func (s *Service) RecordSample(ctx context.Context, symbol string, metric history.Kind, value float64, at time.Time) error {
	if s == nil || s.sqlConn == nil {
		return nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || !metric.Valid() {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	stmt := `
INSERT INTO public.metric_samples (symbol, metric, value, recorded_at, created_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (symbol, metric, recorded_at) DO UPDATE SET
    value = EXCLUDED.value;`
	if _, err := s.sqlConn.ExecCtx(ctx, stmt, symbol, string(metric), value, at.UTC()); err != nil {
		return err
	}
	s.cacheMetric(ctx, symbol, metric, value, at)
	return nil
}

// PruneSamples deletes archived samples recorded before the cutoff and
// reports how many rows were removed.
func (s *Service) PruneSamples(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.sqlConn == nil {
		return 0, nil
	}
	res, err := s.sqlConn.ExecCtx(ctx, `DELETE FROM public.metric_samples WHERE recorded_at < $1;`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertAssets persists static instrument metadata and refreshes Redis cache.
func (s *Service) UpsertAssets(ctx context.Context, provider string, assets []market.Asset) error {
	if s == nil || s.sqlConn == nil || len(assets) == 0 {
		return nil
	}
	stmt := `
INSERT INTO public.market_assets (
    provider, symbol, name, px_precision, inst_id, is_delisted, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, NOW(), NOW()
)
ON CONFLICT (provider, symbol) DO UPDATE SET
    name = EXCLUDED.name,
    px_precision = EXCLUDED.px_precision,
    inst_id = EXCLUDED.inst_id,
    is_delisted = EXCLUDED.is_delisted,
    updated_at = NOW();`
	for _, asset := range assets {
		if strings.TrimSpace(asset.Symbol) == "" {
			continue
		}
		name := asset.Symbol
		if base := strings.TrimSpace(asset.Base); base != "" {
			name = base
		}
		precision := sql.NullInt64{}
		if asset.Precision > 0 {
			precision = sql.NullInt64{Int64: int64(asset.Precision), Valid: true}
		}
		instID := nullStringFromMeta(asset.RawMetadata, "instId", "inst_id")
		isDelisted := !asset.IsActive
		if _, err := s.sqlConn.ExecCtx(ctx, stmt,
			provider,
			asset.Symbol,
			sql.NullString{String: name, Valid: name != ""},
			precision,
			instID,
			isDelisted,
		); err != nil {
			return err
		}
		s.cacheAsset(ctx, provider, asset)
	}
	return nil
}

// RecordSnapshot persists the latest price view to Postgres + Redis.
func (s *Service) RecordSnapshot(ctx context.Context, provider string, snapshot *market.Snapshot) error {
	if s == nil || s.sqlConn == nil || snapshot == nil || strings.TrimSpace(snapshot.Symbol) == "" {
		return nil
	}
	now := time.Now().UTC()
	raw, _ := json.Marshal(snapshot)
	stmt := `
INSERT INTO public.price_latest (provider, symbol, price, ts_ms, raw, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (provider, symbol) DO UPDATE SET
    price = EXCLUDED.price,
    ts_ms = EXCLUDED.ts_ms,
    raw = EXCLUDED.raw,
    updated_at = NOW();`
	if _, err := s.sqlConn.ExecCtx(ctx, stmt, provider, snapshot.Symbol, snapshot.Price, now.UnixMilli(), string(raw)); err != nil {
		return err
	}

	s.cachePrice(ctx, provider, snapshot.Symbol, snapshot.Price, now)
	s.updateCryptoPrices(ctx, provider, snapshot.Symbol, snapshot.Price)
	return nil
}

func (s *Service) cacheMetric(ctx context.Context, symbol string, metric history.Kind, value float64, at time.Time) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.MetricLatestTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	key := cachekeys.MetricLatestKey(symbol, string(metric))
	payload := map[string]any{
		"value": value,
		"ts":    at.UTC().UnixMilli(),
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("archive: cache metric key=%s err=%v", key, err)
	}
}

func (s *Service) cacheAsset(ctx context.Context, provider string, asset market.Asset) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.MarketAssetTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	key := cachekeys.MarketAssetKey(provider, asset.Symbol)
	payload := map[string]any{
		"symbol":     asset.Symbol,
		"base":       asset.Base,
		"quote":      asset.Quote,
		"precision":  asset.Precision,
		"is_active":  asset.IsActive,
		"metadata":   asset.RawMetadata,
		"updated_at": time.Now().UTC().UnixMilli(),
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("archive: cache asset key=%s err=%v", key, err)
	}
}

func (s *Service) cachePrice(ctx context.Context, provider, symbol string, price float64, ts time.Time) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.PriceTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	// Provider scoped key
	key := cachekeys.PriceLatestByProviderKey(provider, symbol)
	payload := map[string]any{
		"price": price,
		"ts":    ts.UnixMilli(),
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("archive: cache price key=%s err=%v", key, err)
	}
	// Global key
	global := cachekeys.PriceLatestKey(symbol)
	if err := s.cache.SetWithExpireCtx(ctx, global, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("archive: cache price key=%s err=%v", global, err)
	}
}

func (s *Service) updateCryptoPrices(ctx context.Context, provider, symbol string, price float64) {
	if s.cache == nil {
		return
	}
	key := cachekeys.CryptoPricesKey()
	var payload map[string]float64
	if err := s.cache.GetCtx(ctx, key, &payload); err != nil && !s.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("archive: load crypto prices key=%s err=%v", key, err)
		return
	}
	if payload == nil {
		payload = make(map[string]float64)
	}
	field := provider + ":" + symbol
	payload[field] = price
	ttl := cachekeys.CryptoPricesTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("archive: cache crypto prices key=%s err=%v", key, err)
	}
}

func nullStringFromMeta(meta map[string]any, keys ...string) sql.NullString {
	for _, key := range keys {
		if v, ok := meta[key]; ok {
			if str, conv := v.(string); conv && strings.TrimSpace(str) != "" {
				return sql.NullString{String: str, Valid: true}
			}
		}
	}
	return sql.NullString{}
}
