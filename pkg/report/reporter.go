// Package report renders the metric report commands: live market data from a
// provider combined with locally tracked 24h changes.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketpulse/pkg/history"
	"marketpulse/pkg/market"
	"marketpulse/pkg/market/sentiment"
)

const defaultSymbol = "BTC"

// SentimentSource serves Fear & Greed index readings.
type SentimentSource interface {
	FearGreed(ctx context.Context) (*sentiment.Index, error)
}

// Saver persists the metric store after a command records new samples.
type Saver interface {
	Save(store *history.Store) error
}

// Archiver mirrors recorded samples into long-term storage.
type Archiver interface {
	RecordSample(ctx context.Context, symbol string, metric history.Kind, value float64, at time.Time) error
}

// Reporter executes report commands. Every command that touches a tracked
// metric records the fresh value before computing its 24h change, so the
// store keeps filling up as people ask questions.
type Reporter struct {
	store     *history.Store
	provider  market.Provider
	sentiment SentimentSource
	flavor    *Flavor
	saver     Saver
	archiver  Archiver
	nowFn     func() time.Time
}

// ReporterOption customises a Reporter.
type ReporterOption func(*Reporter)

// WithSentiment wires the Fear & Greed source used by the fear command.
func WithSentiment(source SentimentSource) ReporterOption {
	return func(r *Reporter) {
		r.sentiment = source
	}
}

// WithFlavor sets the flavor line source.
func WithFlavor(flavor *Flavor) ReporterOption {
	return func(r *Reporter) {
		r.flavor = flavor
	}
}

// WithSaver persists the store after each recording command.
func WithSaver(saver Saver) ReporterOption {
	return func(r *Reporter) {
		r.saver = saver
	}
}

// WithArchiver mirrors recorded samples into an archive.
func WithArchiver(archiver Archiver) ReporterOption {
	return func(r *Reporter) {
		r.archiver = archiver
	}
}

// WithNowFunc overrides the clock, mainly for tests.
func WithNowFunc(now func() time.Time) ReporterOption {
	return func(r *Reporter) {
		if now != nil {
			r.nowFn = now
		}
	}
}

// NewReporter wires a Reporter around the shared metric store and a market
// data provider.
func NewReporter(store *history.Store, provider market.Provider, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		store:    store,
		provider: provider,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle runs one report command and returns its text. An empty symbol
// defaults to BTC; an empty command renders help.
func (r *Reporter) Handle(ctx context.Context, command, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		symbol = defaultSymbol
	}

	switch strings.ToLower(strings.TrimSpace(command)) {
	case "fear":
		return r.fearReport(ctx)
	case "fund":
		return r.fundReport(ctx, symbol)
	case "oi":
		return r.oiReport(ctx, symbol)
	case "vol":
		return r.volReport(ctx, symbol)
	case "all":
		return r.allReport(ctx, symbol)
	case "help", "":
		return r.helpReport(), nil
	default:
		return "", fmt.Errorf("report: unknown command %q", command)
	}
}

func (r *Reporter) fearReport(ctx context.Context) (string, error) {
	if r.sentiment == nil {
		return "", fmt.Errorf("report: sentiment source not configured")
	}
	index, err := r.sentiment.FearGreed(ctx)
	if err != nil {
		return "", fmt.Errorf("report: fetch fear & greed: %w", err)
	}

	r.record(ctx, history.MarketSymbol, history.KindFearGreed, index.Value)
	r.flush(ctx)

	changeStr := "(tracking)"
	if change, ok := r.change(history.MarketSymbol, history.KindFearGreed); ok {
		changeStr = fmt.Sprintf("(%+.1f%%)", change)
	}
	updated := "unknown"
	if !index.At.IsZero() {
		updated = index.At.Format("2006-01-02 15:04 UTC")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", r.flavor.Line())
	b.WriteString("fear & greed index\n")
	fmt.Fprintf(&b, "value: %.0f/100 %s\n", index.Value, changeStr)
	fmt.Fprintf(&b, "classification: %s\n", strings.ToLower(index.Classification))
	fmt.Fprintf(&b, "updated: %s", updated)
	return b.String(), nil
}

func (r *Reporter) fundReport(ctx context.Context, symbol string) (string, error) {
	snapshot, err := r.provider.Snapshot(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("report: fetch %s snapshot: %w", symbol, err)
	}
	funding := snapshot.Funding
	if funding == nil {
		return fmt.Sprintf("%s\nno funding rate data found for %s", r.flavor.Line(), symbol), nil
	}

	r.record(ctx, symbol, history.KindFundingRate, funding.Rate)
	r.flush(ctx)

	changeStr := "tracking started"
	if change, ok := r.change(symbol, history.KindFundingRate); ok {
		changeStr = fmt.Sprintf("%+.2f%%", change)
	}
	nextFunding := "unknown"
	if !funding.NextTime.IsZero() {
		nextFunding = funding.NextTime.Format("2006-01-02 15:04 UTC")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", r.flavor.Line())
	fmt.Fprintf(&b, "%s funding rate\n", symbol)
	fmt.Fprintf(&b, "rate: %.4f%%\n", funding.Rate)
	fmt.Fprintf(&b, "24h change: %s\n", changeStr)
	fmt.Fprintf(&b, "next funding: %s\n", nextFunding)
	fmt.Fprintf(&b, "instrument: %s", instrumentLabel(funding.Instrument))
	return b.String(), nil
}

func (r *Reporter) oiReport(ctx context.Context, symbol string) (string, error) {
	snapshot, err := r.provider.Snapshot(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("report: fetch %s snapshot: %w", symbol, err)
	}
	oi := snapshot.OpenInterest
	if oi == nil {
		return fmt.Sprintf("%s\nno open interest data found for %s", r.flavor.Line(), symbol), nil
	}

	r.record(ctx, symbol, history.KindOpenInterest, oi.Coin)
	r.flush(ctx)

	changeStr := "tracking started"
	if change, ok := r.change(symbol, history.KindOpenInterest); ok {
		changeStr = fmt.Sprintf("%+.2f%%", change)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", r.flavor.Line())
	fmt.Fprintf(&b, "%s open interest\n", symbol)
	fmt.Fprintf(&b, "contracts: %s\n", FormatCompact(oi.Contracts))
	fmt.Fprintf(&b, "value: %s %s\n", FormatCompact(oi.Coin), symbol)
	fmt.Fprintf(&b, "24h change: %s\n", changeStr)
	fmt.Fprintf(&b, "instrument: %s", instrumentLabel(oi.Instrument))
	return b.String(), nil
}

func (r *Reporter) volReport(ctx context.Context, symbol string) (string, error) {
	snapshot, err := r.provider.Snapshot(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("report: fetch %s snapshot: %w", symbol, err)
	}
	spot, perp := snapshot.SpotVolume, snapshot.PerpVolume
	if spot == nil && perp == nil {
		return fmt.Sprintf("%s\nno volume data found for %s", r.flavor.Line(), symbol), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", r.flavor.Line())
	fmt.Fprintf(&b, "%s volume\n", symbol)
	if spot != nil {
		r.record(ctx, symbol, history.KindSpotVolume, spot.Quote)
		fmt.Fprintf(&b, "spot (24h): %s %s ($%s)\n", FormatCompact(spot.Base), symbol, FormatCompact(spot.Quote))
	}
	if perp != nil {
		r.record(ctx, symbol, history.KindPerpVolume, perp.Base)
		changeStr := "tracking started"
		if change, ok := r.change(symbol, history.KindPerpVolume); ok {
			changeStr = fmt.Sprintf("%+.2f%%", change)
		}
		fmt.Fprintf(&b, "perp (24h): %s %s\n", FormatCompact(perp.Base), symbol)
		fmt.Fprintf(&b, "24h change: %s", changeStr)
	}
	r.flush(ctx)
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Reporter) allReport(ctx context.Context, symbol string) (string, error) {
	snapshot, err := r.provider.Snapshot(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("report: fetch %s snapshot: %w", symbol, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", r.flavor.Line())
	fmt.Fprintf(&b, "%s metrics\n", symbol)

	r.record(ctx, symbol, history.KindPrice, snapshot.Price)
	fmt.Fprintf(&b, "price: %s\n", FormatUSD(snapshot.Price, 2))

	if funding := snapshot.Funding; funding != nil {
		r.record(ctx, symbol, history.KindFundingRate, funding.Rate)
		fmt.Fprintf(&b, "funding: %.4f%%\n", funding.Rate)
	} else {
		b.WriteString("funding: n/a\n")
	}

	if oi := snapshot.OpenInterest; oi != nil {
		r.record(ctx, symbol, history.KindOpenInterest, oi.Coin)
		if change, ok := r.change(symbol, history.KindOpenInterest); ok {
			fmt.Fprintf(&b, "oi: %s (%+.1f%%)\n", FormatCompact(oi.Coin), change)
		} else {
			fmt.Fprintf(&b, "oi: %s (tracking)\n", FormatCompact(oi.Coin))
		}
	} else {
		b.WriteString("oi: n/a\n")
	}

	if spot := snapshot.SpotVolume; spot != nil {
		r.record(ctx, symbol, history.KindSpotVolume, spot.Quote)
	}
	if perp := snapshot.PerpVolume; perp != nil {
		r.record(ctx, symbol, history.KindPerpVolume, perp.Base)
		if change, ok := r.change(symbol, history.KindPerpVolume); ok {
			fmt.Fprintf(&b, "volume: %s (%+.1f%%)", FormatCompact(perp.Base), change)
		} else {
			fmt.Fprintf(&b, "volume: %s (tracking)", FormatCompact(perp.Base))
		}
	} else {
		b.WriteString("volume: n/a")
	}

	r.flush(ctx)
	return b.String(), nil
}

func (r *Reporter) helpReport() string {
	var b strings.Builder
	b.WriteString("marketpulse commands\n")
	b.WriteString("all commands support any cryptocurrency symbol (e.g., btc, eth, sol)\n")
	b.WriteString("24h changes are tracked locally\n\n")
	b.WriteString("fear - get current fear & greed index\n")
	b.WriteString("fund [symbol] - get current funding rate (default: btc)\n")
	b.WriteString("oi [symbol] - get open interest data with 24h change\n")
	b.WriteString("vol [symbol] - get spot and perpetual volume with 24h change\n")
	b.WriteString("all [symbol] - get all metrics with 24h changes\n")
	b.WriteString("help - show this help message\n\n")
	b.WriteString("spot + derivatives data | local 24h tracking")
	return b.String()
}

// record inserts a fresh sample and mirrors it to the archive when one is
// configured. Archive failures never fail the report.
func (r *Reporter) record(ctx context.Context, symbol string, metric history.Kind, value float64) {
	at := r.now()
	r.store.Insert(symbol, metric, value, at)
	if r.archiver != nil {
		if err := r.archiver.RecordSample(ctx, symbol, metric, value, at); err != nil {
			logx.WithContext(ctx).Errorf("report: archive %s %s: %v", symbol, metric, err)
		}
	}
}

// flush saves the store once per command, after all of its records.
func (r *Reporter) flush(ctx context.Context) {
	if r.saver == nil {
		return
	}
	if err := r.saver.Save(r.store); err != nil {
		logx.WithContext(ctx).Errorf("report: save store: %v", err)
	}
}

func (r *Reporter) change(symbol string, metric history.Kind) (float64, bool) {
	return r.store.ChangeSince(symbol, metric, r.now(), history.DefaultLookback)
}

func (r *Reporter) now() time.Time {
	if r.nowFn != nil {
		return r.nowFn()
	}
	return time.Now().UTC()
}

func instrumentLabel(instrument string) string {
	if instrument == "" {
		return "unknown"
	}
	return instrument
}
