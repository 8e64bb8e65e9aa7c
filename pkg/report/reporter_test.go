package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/pkg/history"
	"marketpulse/pkg/market"
	"marketpulse/pkg/market/sentiment"
)

var reportBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestHandleHelp(t *testing.T) {
	reporter := NewReporter(history.NewStore(), &stubProvider{})

	text, err := reporter.Handle(context.Background(), "help", "")
	require.NoError(t, err)
	assert.Contains(t, text, "marketpulse commands")
	assert.Contains(t, text, "fund [symbol] - get current funding rate (default: btc)")

	// empty command falls back to help as well
	text, err = reporter.Handle(context.Background(), "", "")
	require.NoError(t, err)
	assert.Contains(t, text, "marketpulse commands")
}

func TestHandleUnknownCommand(t *testing.T) {
	reporter := NewReporter(history.NewStore(), &stubProvider{})

	_, err := reporter.Handle(context.Background(), "moon", "BTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "moon"`)
}

func TestHandleFear(t *testing.T) {
	store := history.NewStore()
	saver := &countingSaver{}
	reporter := NewReporter(store, &stubProvider{},
		WithSentiment(&stubSentiment{index: &sentiment.Index{
			Value:          39,
			Classification: "Fear",
			At:             time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC),
		}}),
		WithSaver(saver),
		WithNowFunc(func() time.Time { return reportBase }),
	)

	text, err := reporter.Handle(context.Background(), "fear", "")
	require.NoError(t, err)
	require.Equal(t, "carving fresh powder...\n\n"+
		"fear & greed index\n"+
		"value: 39/100 (tracking)\n"+
		"classification: fear\n"+
		"updated: 2023-11-14 22:13 UTC", text)

	latest, ok := store.Latest(history.MarketSymbol, history.KindFearGreed)
	require.True(t, ok, "fear command should record the reading")
	assert.InDelta(t, 39.0, latest.Value, 1e-9)
	assert.Equal(t, 1, saver.calls)
}

func TestHandleFearReportsChange(t *testing.T) {
	store := history.NewStore()
	store.Insert(history.MarketSymbol, history.KindFearGreed, 30, reportBase.Add(-24*time.Hour))

	reporter := NewReporter(store, &stubProvider{},
		WithSentiment(&stubSentiment{index: &sentiment.Index{Value: 39, Classification: "Fear"}}),
		WithNowFunc(func() time.Time { return reportBase }),
	)

	text, err := reporter.Handle(context.Background(), "fear", "")
	require.NoError(t, err)
	assert.Contains(t, text, "value: 39/100 (+30.0%)")
	assert.Contains(t, text, "updated: unknown")
}

func TestHandleFearWithoutSentiment(t *testing.T) {
	reporter := NewReporter(history.NewStore(), &stubProvider{})

	_, err := reporter.Handle(context.Background(), "fear", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentiment source not configured")
}

func TestHandleFund(t *testing.T) {
	store := history.NewStore()
	reporter := NewReporter(store, &stubProvider{snapshot: fullSnapshot()},
		WithNowFunc(func() time.Time { return reportBase }),
	)

	text, err := reporter.Handle(context.Background(), "fund", "btc")
	require.NoError(t, err)
	require.Equal(t, "carving fresh powder...\n\n"+
		"BTC funding rate\n"+
		"rate: 0.0125%\n"+
		"24h change: tracking started\n"+
		"next funding: 2023-11-15 04:53 UTC\n"+
		"instrument: BTC-USDT-SWAP", text)

	latest, ok := store.Latest("BTC", history.KindFundingRate)
	require.True(t, ok)
	assert.InDelta(t, 0.0125, latest.Value, 1e-9)
}

func TestHandleFundReportsChange(t *testing.T) {
	store := history.NewStore()
	store.Insert("BTC", history.KindFundingRate, 0.01, reportBase.Add(-24*time.Hour))

	reporter := NewReporter(store, &stubProvider{snapshot: fullSnapshot()},
		WithNowFunc(func() time.Time { return reportBase }),
	)

	text, err := reporter.Handle(context.Background(), "fund", "BTC")
	require.NoError(t, err)
	assert.Contains(t, text, "24h change: +25.00%")
}

func TestHandleFundMissingSection(t *testing.T) {
	snapshot := fullSnapshot()
	snapshot.Funding = nil
	saver := &countingSaver{}
	reporter := NewReporter(history.NewStore(), &stubProvider{snapshot: snapshot}, WithSaver(saver))

	text, err := reporter.Handle(context.Background(), "fund", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "carving fresh powder...\nno funding rate data found for BTC", text)
	assert.Zero(t, saver.calls, "nothing recorded, nothing saved")
}

func TestHandleOi(t *testing.T) {
	store := history.NewStore()
	reporter := NewReporter(store, &stubProvider{snapshot: fullSnapshot()},
		WithNowFunc(func() time.Time { return reportBase }),
	)

	text, err := reporter.Handle(context.Background(), "oi", "BTC")
	require.NoError(t, err)
	require.Equal(t, "carving fresh powder...\n\n"+
		"BTC open interest\n"+
		"contracts: 2.40M\n"+
		"value: 36.00K BTC\n"+
		"24h change: tracking started\n"+
		"instrument: BTC-USDT-SWAP", text)

	latest, ok := store.Latest("BTC", history.KindOpenInterest)
	require.True(t, ok, "oi command records open interest in coin units")
	assert.InDelta(t, 36000.5, latest.Value, 1e-9)
}

func TestHandleVol(t *testing.T) {
	store := history.NewStore()
	saver := &countingSaver{}
	reporter := NewReporter(store, &stubProvider{snapshot: fullSnapshot()},
		WithSaver(saver),
		WithNowFunc(func() time.Time { return reportBase }),
	)

	text, err := reporter.Handle(context.Background(), "vol", "BTC")
	require.NoError(t, err)
	require.Equal(t, "carving fresh powder...\n\n"+
		"BTC volume\n"+
		"spot (24h): 12.00K BTC ($780.00M)\n"+
		"perp (24h): 52.00K BTC\n"+
		"24h change: tracking started", text)

	spot, ok := store.Latest("BTC", history.KindSpotVolume)
	require.True(t, ok)
	assert.InDelta(t, 780000000, spot.Value, 1e-9)
	perp, ok := store.Latest("BTC", history.KindPerpVolume)
	require.True(t, ok)
	assert.InDelta(t, 52000.75, perp.Value, 1e-9)
	assert.Equal(t, 1, saver.calls, "one save per command, not per sample")
}

func TestHandleVolSpotOnly(t *testing.T) {
	snapshot := fullSnapshot()
	snapshot.PerpVolume = nil
	reporter := NewReporter(history.NewStore(), &stubProvider{snapshot: snapshot},
		WithNowFunc(func() time.Time { return reportBase }),
	)

	text, err := reporter.Handle(context.Background(), "vol", "BTC")
	require.NoError(t, err)
	assert.Contains(t, text, "spot (24h): 12.00K BTC ($780.00M)")
	assert.NotContains(t, text, "perp (24h)")
	assert.False(t, len(text) > 0 && text[len(text)-1] == '\n', "no trailing newline")
}

func TestHandleVolNoData(t *testing.T) {
	snapshot := fullSnapshot()
	snapshot.SpotVolume = nil
	snapshot.PerpVolume = nil
	reporter := NewReporter(history.NewStore(), &stubProvider{snapshot: snapshot})

	text, err := reporter.Handle(context.Background(), "vol", "SOL")
	require.NoError(t, err)
	assert.Equal(t, "carving fresh powder...\nno volume data found for SOL", text)
}

func TestHandleAll(t *testing.T) {
	store := history.NewStore()
	reporter := NewReporter(store, &stubProvider{snapshot: fullSnapshot()},
		WithNowFunc(func() time.Time { return reportBase }),
	)

	text, err := reporter.Handle(context.Background(), "all", "BTC")
	require.NoError(t, err)
	require.Equal(t, "carving fresh powder...\n\n"+
		"BTC metrics\n"+
		"price: $65,123.50\n"+
		"funding: 0.0125%\n"+
		"oi: 36.00K (tracking)\n"+
		"volume: 52.00K (tracking)", text)

	assert.Equal(t, 5, store.Len(), "all records every metric the snapshot carries")
}

func TestHandleAllPartial(t *testing.T) {
	reporter := NewReporter(history.NewStore(), &stubProvider{snapshot: &market.Snapshot{
		Symbol: "SOL",
		Price:  152.3,
	}})

	text, err := reporter.Handle(context.Background(), "all", "SOL")
	require.NoError(t, err)
	assert.Contains(t, text, "price: $152.30")
	assert.Contains(t, text, "funding: n/a")
	assert.Contains(t, text, "oi: n/a")
	assert.Contains(t, text, "volume: n/a")
}

func TestHandleAllReportsChange(t *testing.T) {
	store := history.NewStore()
	store.Insert("BTC", history.KindOpenInterest, 30000, reportBase.Add(-24*time.Hour))

	reporter := NewReporter(store, &stubProvider{snapshot: fullSnapshot()},
		WithNowFunc(func() time.Time { return reportBase }),
	)

	text, err := reporter.Handle(context.Background(), "all", "BTC")
	require.NoError(t, err)
	assert.Contains(t, text, "oi: 36.00K (+20.0%)")
}

func TestHandleSymbolDefaultsAndUppercases(t *testing.T) {
	provider := &stubProvider{snapshot: fullSnapshot()}
	reporter := NewReporter(history.NewStore(), provider)

	_, err := reporter.Handle(context.Background(), "all", "")
	require.NoError(t, err)
	assert.Equal(t, "BTC", provider.lastSymbol)

	_, err = reporter.Handle(context.Background(), "all", " sol ")
	require.NoError(t, err)
	assert.Equal(t, "SOL", provider.lastSymbol)
}

func TestHandleProviderError(t *testing.T) {
	reporter := NewReporter(history.NewStore(), &stubProvider{err: assert.AnError})

	_, err := reporter.Handle(context.Background(), "oi", "BTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch BTC snapshot")
}

func TestHandleArchiverRecordsSamples(t *testing.T) {
	archiver := &captureArchiver{}
	reporter := NewReporter(history.NewStore(), &stubProvider{snapshot: fullSnapshot()},
		WithArchiver(archiver),
		WithNowFunc(func() time.Time { return reportBase }),
	)

	_, err := reporter.Handle(context.Background(), "oi", "BTC")
	require.NoError(t, err)
	require.Len(t, archiver.records, 1)
	assert.Equal(t, "BTC", archiver.records[0].symbol)
	assert.Equal(t, history.KindOpenInterest, archiver.records[0].metric)
	assert.InDelta(t, 36000.5, archiver.records[0].value, 1e-9)
	assert.Equal(t, reportBase, archiver.records[0].at)
}

func TestHandleArchiverFailureIsTolerated(t *testing.T) {
	reporter := NewReporter(history.NewStore(), &stubProvider{snapshot: fullSnapshot()},
		WithArchiver(&captureArchiver{fail: true}),
	)

	text, err := reporter.Handle(context.Background(), "all", "BTC")
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

// --- helpers ---

func fullSnapshot() *market.Snapshot {
	return &market.Snapshot{
		Symbol: "BTC",
		Price:  65123.5,
		Funding: &market.FundingInfo{
			Rate:       0.0125,
			NextTime:   time.Date(2023, 11, 15, 4, 53, 20, 0, time.UTC),
			Instrument: "BTC-USDT-SWAP",
		},
		OpenInterest: &market.OpenInterestInfo{
			Contracts:  2400000,
			Coin:       36000.5,
			Instrument: "BTC-USDT-SWAP",
		},
		SpotVolume: &market.VolumeInfo{Base: 12000.5, Quote: 780000000},
		PerpVolume: &market.VolumeInfo{Base: 52000.75},
		FetchedAt:  reportBase,
	}
}

type stubProvider struct {
	snapshot   *market.Snapshot
	err        error
	lastSymbol string
}

func (s *stubProvider) Snapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	s.lastSymbol = symbol
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func (s *stubProvider) ListAssets(ctx context.Context) ([]market.Asset, error) {
	return nil, nil
}

type stubSentiment struct {
	index *sentiment.Index
	err   error
}

func (s *stubSentiment) FearGreed(ctx context.Context) (*sentiment.Index, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.index, nil
}

type countingSaver struct {
	calls int
}

func (s *countingSaver) Save(store *history.Store) error {
	s.calls++
	return nil
}

type archivedSample struct {
	symbol string
	metric history.Kind
	value  float64
	at     time.Time
}

type captureArchiver struct {
	fail    bool
	records []archivedSample
}

func (a *captureArchiver) RecordSample(ctx context.Context, symbol string, metric history.Kind, value float64, at time.Time) error {
	if a.fail {
		return assert.AnError
	}
	a.records = append(a.records, archivedSample{symbol: symbol, metric: metric, value: value, at: at})
	return nil
}
