package svc

import (
	"errors"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	"marketpulse/internal/archive"
	cachekeys "marketpulse/internal/cache"
	"marketpulse/internal/config"
	"marketpulse/pkg/confkit"
	"marketpulse/pkg/history"
	marketpkg "marketpulse/pkg/market"
	_ "marketpulse/pkg/market/okx"
	"marketpulse/pkg/market/sentiment"
	"marketpulse/pkg/report"
)

var errCacheNotFound = errors.New("marketpulse: cache miss")

type ServiceContext struct {
	Config config.Config

	// Store holds the rolling metric history; FileStore persists it between runs.
	Store     *history.Store
	FileStore *history.FileStore

	MarketConfig    *marketpkg.Config
	MarketProviders map[string]marketpkg.Provider
	DefaultMarket   marketpkg.Provider

	Sentiment *sentiment.Client
	Flavor    *report.Flavor
	Reporter  *report.Reporter

	// Optional Postgres/Redis plumbing; nil unless configured.
	Archive *archive.Service
	DBConn  sqlx.SqlConn
	Cache   gocache.Cache
}

func NewServiceContext(c config.Config, mainConfigPath string) *ServiceContext {
	svc := &ServiceContext{Config: c}

	fileStore := history.NewFileStore(c.DataFilePath())
	store, err := fileStore.Load()
	if err != nil {
		// Corrupt data files are recoverable: start from the empty store.
		logx.Errorf("svc: load metric store: %v (starting empty)", err)
	}
	svc.FileStore = fileStore
	svc.Store = store

	baseDir := confkit.BaseDir(mainConfigPath)

	// Use the market config hydrated by config.Load, falling back to loading
	// it here when the caller assembled the Config by hand.
	marketCfg := c.Market.Value
	if marketCfg == nil && c.Market.File != "" {
		loaded, err := marketpkg.LoadConfig(confkit.ResolvePath(baseDir, c.Market.File))
		if err != nil {
			log.Fatalf("failed to load market config: %v", err)
		}
		marketCfg = loaded
	}
	if marketCfg == nil {
		// No market section configured: default to a plain OKX provider.
		marketCfg = &marketpkg.Config{
			Default:   "okx",
			Providers: map[string]*marketpkg.ProviderConfig{"okx": {Type: "okx"}},
		}
	}
	providers, err := marketCfg.BuildProviders()
	if err != nil {
		log.Fatalf("failed to build market providers: %v", err)
	}
	svc.MarketConfig = marketCfg
	svc.MarketProviders = providers
	if name := marketCfg.DefaultName(); name != "" {
		svc.DefaultMarket = providers[name]
	}
	if svc.DefaultMarket == nil {
		log.Fatalf("market config must declare a default provider")
	}

	var sentimentOpts []sentiment.Option
	if c.Sentiment.BaseURL != "" {
		sentimentOpts = append(sentimentOpts, sentiment.WithBaseURL(c.Sentiment.BaseURL))
	}
	svc.Sentiment = sentiment.NewClient(sentimentOpts...)

	svc.Flavor = report.LoadFlavor(c.SynPath(), c.TrailsPath())

	if c.Redis.Host != "" {
		rds := redis.MustNewRedis(c.Redis)
		svc.Cache = gocache.NewNode(rds, syncx.NewSingleFlight(), gocache.NewStat(cachekeys.Namespace), errCacheNotFound)
	}

	// Only wire the archive when a DSN is provided; the in-memory store stays
	// authoritative either way.
	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svc.DBConn = conn
		svc.Archive = archive.NewService(archive.Config{
			SQLConn: conn,
			Cache:   svc.Cache,
			TTL:     cachekeys.NewTTLSet(c.TTL),
		})
	}

	if svc.Archive != nil {
		for _, provider := range svc.MarketProviders {
			if setter, ok := provider.(marketpkg.PersistenceSetter); ok {
				setter.SetPersistence(svc.Archive)
			}
		}
	}

	reporterOpts := []report.ReporterOption{
		report.WithSentiment(svc.Sentiment),
		report.WithFlavor(svc.Flavor),
		report.WithSaver(fileStore),
	}
	if svc.Archive != nil {
		reporterOpts = append(reporterOpts, report.WithArchiver(svc.Archive))
	}
	svc.Reporter = report.NewReporter(store, svc.DefaultMarket, reporterOpts...)

	return svc
}

// Close flushes the metric store to disk. Callers invoke it on shutdown.
func (s *ServiceContext) Close() {
	if s == nil || s.FileStore == nil || s.Store == nil {
		return
	}
	if err := s.FileStore.Save(s.Store); err != nil {
		logx.Errorf("svc: final store save: %v", err)
	}
}
