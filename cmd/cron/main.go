package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"marketpulse/internal/cli"
	"marketpulse/internal/config"
	"marketpulse/internal/observability"
	"marketpulse/internal/svc"
	"marketpulse/pkg/history"
	"marketpulse/pkg/journal"
	"marketpulse/pkg/market/okx"
	"marketpulse/pkg/report"
)

const shutdownTimeout = 10 * time.Second // Grace period for shutdown

var configFile = flag.String("f", "etc/marketpulse.yaml", "the config file")

// task is one scheduled unit of work. Every background job the daemon runs
// goes through the same ticker loop.
type task struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context)
}

// daemon bundles the shared state the scheduled tasks operate on.
type daemon struct {
	cfg     *config.Config
	svcCtx  *svc.ServiceContext
	journal *journal.Writer
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting metric poller...")

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[main] Failed to load config: %v", err)
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(cfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*cfg, cfg.MainPath())
	defer svcCtx.Close()

	d := &daemon{
		cfg:     cfg,
		svcCtx:  svcCtx,
		journal: journal.NewWriter(cfg.JournalPath()),
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = observability.Serve(cfg.MetricsAddr)
		log.Printf("[main] Prometheus metrics on %s/metrics", cfg.MetricsAddr)
	}

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks := []task{
		{name: "poll", interval: cfg.Poll.Interval, run: d.pollOnce},
		{name: "evict", interval: cfg.Poll.EvictInterval, run: d.evictOnce},
	}
	if cfg.Status.Live {
		tasks = append(tasks, task{name: "status", interval: cfg.Status.Interval, run: d.streamStatus})
	} else {
		tasks = append(tasks, task{name: "status", interval: cfg.Status.Interval, run: d.refreshStatus})
	}

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			runTask(ctx, t)
		}(t)
	}

	log.Println("[main] Poller started. Press Ctrl+C to stop.")

	// Wait for signal
	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping tasks...")

	// Give tasks time to complete current work
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Printf("[main] Poller stopped with %d samples in store", svcCtx.Store.Len())
}

// runTask runs a task immediately, then on every tick until ctx is cancelled.
func runTask(ctx context.Context, t task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.run(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] stopping", t.name)
			return
		case <-ticker.C:
			t.run(ctx)
		}
	}
}

// pollOnce fetches a snapshot for every configured symbol plus the market
// sentiment index and records all tracked metrics.
func (d *daemon) pollOnce(parentCtx context.Context) {
	if parentCtx.Err() != nil {
		return
	}
	start := time.Now()
	rec := &journal.PollRecord{
		Provider: d.svcCtx.MarketConfig.DefaultName(),
		Symbols:  d.cfg.Symbols,
	}

	for _, symbol := range d.cfg.Symbols {
		n, err := d.pollSymbol(parentCtx, symbol)
		rec.Samples += n
		if err != nil {
			rec.Errors = append(rec.Errors, fmt.Sprintf("%s: %v", symbol, err))
		}
	}

	n, err := d.pollSentiment(parentCtx)
	rec.Samples += n
	if err != nil {
		rec.Errors = append(rec.Errors, fmt.Sprintf("sentiment: %v", err))
	}

	rec.Success = len(rec.Errors) == 0
	if _, err := d.journal.WritePoll(rec); err != nil {
		log.Printf("[poll] [ERROR] journal write: %v", err)
	}
	if err := d.svcCtx.FileStore.Save(d.svcCtx.Store); err != nil {
		log.Printf("[poll] [ERROR] store save: %v", err)
	}

	status := "ok"
	if !rec.Success {
		status = "error"
	}
	observability.RecordPollCycle(status, time.Since(start).Seconds())
	observability.UpdateStoreSize(len(d.svcCtx.Store.Keys()), d.svcCtx.Store.Len())
	log.Printf("[poll] [%s] recorded %d samples across %d symbols, took %dms",
		strings.ToUpper(status), rec.Samples, len(d.cfg.Symbols), time.Since(start).Milliseconds())
}

// pollSymbol records every metric the snapshot carries for one symbol.
func (d *daemon) pollSymbol(parentCtx context.Context, symbol string) (int, error) {
	ctx, cancel := context.WithTimeout(parentCtx, d.cfg.Poll.Timeout)
	defer cancel()

	start := time.Now()
	snapshot, err := d.svcCtx.DefaultMarket.Snapshot(ctx, symbol)
	elapsed := time.Since(start)
	if err != nil {
		observability.RecordFetchError(symbol)
		log.Printf("[poll.%s] [ERROR] %v, took %dms", symbol, err, elapsed.Milliseconds())
		return 0, err
	}

	at := snapshot.FetchedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	n := 0
	if snapshot.Price > 0 {
		d.record(ctx, symbol, history.KindPrice, snapshot.Price, at)
		n++
	}
	if funding := snapshot.Funding; funding != nil {
		d.record(ctx, symbol, history.KindFundingRate, funding.Rate, at)
		n++
	}
	if oi := snapshot.OpenInterest; oi != nil {
		d.record(ctx, symbol, history.KindOpenInterest, oi.Coin, at)
		n++
	}
	if spot := snapshot.SpotVolume; spot != nil {
		d.record(ctx, symbol, history.KindSpotVolume, spot.Quote, at)
		n++
	}
	if perp := snapshot.PerpVolume; perp != nil {
		d.record(ctx, symbol, history.KindPerpVolume, perp.Base, at)
		n++
	}

	log.Printf("[poll.%s] [OK] price=%.2f, %d metrics recorded, took %dms",
		symbol, snapshot.Price, n, elapsed.Milliseconds())
	return n, nil
}

// pollSentiment records the market-wide Fear & Greed reading. The index
// updates daily, so repeated polls of the same reading collapse into one
// sample via the store's replace window.
func (d *daemon) pollSentiment(parentCtx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(parentCtx, d.cfg.Poll.Timeout)
	defer cancel()

	start := time.Now()
	index, err := d.svcCtx.Sentiment.FearGreed(ctx)
	elapsed := time.Since(start)
	if err != nil {
		log.Printf("[poll.sentiment] [ERROR] %v, took %dms", err, elapsed.Milliseconds())
		return 0, err
	}

	at := index.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	d.record(ctx, history.MarketSymbol, history.KindFearGreed, index.Value, at)
	log.Printf("[poll.sentiment] [OK] value=%.0f (%s), took %dms",
		index.Value, index.Classification, elapsed.Milliseconds())
	return 1, nil
}

// record inserts one sample and mirrors it to the archive when configured.
func (d *daemon) record(ctx context.Context, symbol string, metric history.Kind, value float64, at time.Time) {
	d.svcCtx.Store.Insert(symbol, metric, value, at)
	observability.RecordSample(string(metric))
	if err := d.svcCtx.Archive.RecordSample(ctx, symbol, metric, value, at); err != nil {
		log.Printf("[poll.%s] [WARN] archive %s: %v", symbol, metric, err)
	}
}

// evictOnce drops samples past retention and prunes the archive to match.
func (d *daemon) evictOnce(parentCtx context.Context) {
	if parentCtx.Err() != nil {
		return
	}
	now := time.Now().UTC()
	evicted := d.svcCtx.Store.EvictStale(now)
	observability.RecordEvictions(evicted)
	observability.UpdateStoreSize(len(d.svcCtx.Store.Keys()), d.svcCtx.Store.Len())
	if evicted > 0 {
		if err := d.svcCtx.FileStore.Save(d.svcCtx.Store); err != nil {
			log.Printf("[evict] [ERROR] store save: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(parentCtx, d.cfg.Poll.Timeout)
	defer cancel()
	pruned, err := d.svcCtx.Archive.PruneSamples(ctx, now.Add(-history.DefaultRetention))
	if err != nil {
		log.Printf("[evict] [ERROR] archive prune: %v", err)
	}

	log.Printf("[evict] [OK] evicted %d samples, pruned %d archive rows", evicted, pruned)
}

// refreshStatus publishes the "watching btc $65,123" status line and gauge.
func (d *daemon) refreshStatus(parentCtx context.Context) {
	if parentCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parentCtx, d.cfg.Poll.Timeout)
	defer cancel()

	symbol := d.cfg.Status.Symbol
	snapshot, err := d.svcCtx.DefaultMarket.Snapshot(ctx, symbol)
	if err != nil {
		log.Printf("[status] watching crypto metrics (%s price unavailable: %v)", symbol, err)
		return
	}
	if snapshot.Price <= 0 {
		log.Printf("[status] watching crypto metrics (%s price unavailable)", symbol)
		return
	}

	observability.UpdateStatusPrice(symbol, snapshot.Price)
	log.Printf("[status] watching %s %s", strings.ToLower(symbol), report.FormatUSD(snapshot.Price, 0))
}

// streamStatus drives the status line from the websocket ticker feed instead
// of polling. It blocks until ctx is cancelled; the stream reconnects itself.
// Ticks land in the in-memory store only; the hourly poll remains the
// archival path.
func (d *daemon) streamStatus(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	wsURL := ""
	if pc := d.svcCtx.MarketConfig.Providers[d.svcCtx.MarketConfig.DefaultName()]; pc != nil {
		wsURL = pc.WSURL
	}

	symbol := d.cfg.Status.Symbol
	var mu sync.Mutex
	var lastLog time.Time
	stream := okx.NewTickerStream(wsURL, []string{symbol}, func(sym string, price float64, at time.Time) {
		d.svcCtx.Store.Insert(sym, history.KindPrice, price, at)
		observability.UpdateStatusPrice(sym, price)

		mu.Lock()
		defer mu.Unlock()
		if time.Since(lastLog) < d.cfg.Status.Interval {
			return
		}
		lastLog = time.Now()
		log.Printf("[status] watching %s %s (live)", strings.ToLower(sym), report.FormatUSD(price, 0))
	})

	log.Printf("[status] live ticker stream for %s", symbol)
	if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[status] [ERROR] ticker stream: %v", err)
	}
}
