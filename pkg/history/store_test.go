package history

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seriesSamples(t *testing.T, s *Store, symbol string, metric Kind) []Sample {
	t.Helper()
	samples, ok := s.Snapshot()[NewKey(symbol, metric)]
	require.True(t, ok, "series %s/%s missing", symbol, metric)
	return samples
}

func TestInsertKeepsSeriesOrdered(t *testing.T) {
	s := NewStore()
	s.Insert("BTC", KindPrice, 3, testBase)
	s.Insert("BTC", KindPrice, 1, testBase.Add(-2*time.Hour))
	s.Insert("BTC", KindPrice, 2, testBase.Add(-1*time.Hour))

	samples := seriesSamples(t, s, "BTC", KindPrice)
	require.Len(t, samples, 3)
	for i := 1; i < len(samples); i++ {
		assert.False(t, samples[i].At.Before(samples[i-1].At), "series out of order at %d", i)
	}
	assert.Equal(t, []float64{1, 2, 3}, []float64{samples[0].Value, samples[1].Value, samples[2].Value})
}

func TestInsertReplacesWithinWindow(t *testing.T) {
	s := NewStore()
	s.Insert("BTC", KindPrice, 10, testBase)
	s.Insert("BTC", KindPrice, 11, testBase.Add(30*time.Second))

	samples := seriesSamples(t, s, "BTC", KindPrice)
	require.Len(t, samples, 1)
	assert.Equal(t, 11.0, samples[0].Value)
	assert.True(t, samples[0].At.Equal(testBase.Add(30*time.Second)))

	// identical timestamp overwrites too
	s.Insert("BTC", KindPrice, 12, testBase.Add(30*time.Second))
	samples = seriesSamples(t, s, "BTC", KindPrice)
	require.Len(t, samples, 1)
	assert.Equal(t, 12.0, samples[0].Value)

	// outside the window a new sample appends
	s.Insert("BTC", KindPrice, 13, testBase.Add(30*time.Minute))
	assert.Len(t, seriesSamples(t, s, "BTC", KindPrice), 2)
}

func TestInsertNormalisesSymbol(t *testing.T) {
	s := NewStore()
	s.Insert(" btc ", KindPrice, 42, testBase)

	sample, ok := s.Latest("BTC", KindPrice)
	require.True(t, ok)
	assert.Equal(t, 42.0, sample.Value)

	keys := s.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "BTC", keys[0].Symbol)
}

func TestInsertIgnoresNonFinite(t *testing.T) {
	s := NewStore()
	s.Insert("BTC", KindPrice, math.NaN(), testBase)
	s.Insert("BTC", KindPrice, math.Inf(1), testBase)
	assert.Zero(t, s.Len())
}

func TestInsertPrunesStaleTail(t *testing.T) {
	s := NewStore()
	s.Insert("BTC", KindPrice, 1, testBase.Add(-49*time.Hour))
	s.Insert("BTC", KindPrice, 2, testBase)

	samples := seriesSamples(t, s, "BTC", KindPrice)
	require.Len(t, samples, 1)
	assert.Equal(t, 2.0, samples[0].Value)
}

func TestQueryNear(t *testing.T) {
	s := NewStore()
	s.Insert("BTC", KindPrice, 100, testBase.Add(-26*time.Hour))
	s.Insert("BTC", KindPrice, 105, testBase.Add(-25*time.Hour))
	s.Insert("BTC", KindPrice, 112, testBase.Add(-23*time.Hour))

	tests := []struct {
		name      string
		target    time.Time
		wantValue float64
		wantOK    bool
	}{
		{
			name:      "equidistant neighbours prefer the earlier sample",
			target:    testBase.Add(-24 * time.Hour),
			wantValue: 105,
			wantOK:    true,
		},
		{
			name:      "nearest wins when distances differ",
			target:    testBase.Add(-23*time.Hour - 20*time.Minute),
			wantValue: 112,
			wantOK:    true,
		},
		{
			name:      "exactly at the tolerance boundary still matches",
			target:    testBase.Add(-21 * time.Hour),
			wantValue: 112,
			wantOK:    true,
		},
		{
			name:   "nothing within tolerance",
			target: testBase,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample, ok := s.QueryNear("BTC", KindPrice, tt.target)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantValue, sample.Value)
			}
		})
	}

	_, ok := s.QueryNear("ETH", KindPrice, testBase.Add(-24*time.Hour))
	assert.False(t, ok, "unknown series should not match")
}

func TestEvictStale(t *testing.T) {
	s := NewStore()
	s.Insert("BTC", KindPrice, 1, testBase.Add(-47*time.Hour))
	s.Insert("BTC", KindPrice, 2, testBase.Add(-1*time.Hour))
	s.Insert("ETH", KindPrice, 3, testBase.Add(-49*time.Hour))

	evicted := s.EvictStale(testBase.Add(time.Hour))
	assert.Equal(t, 2, evicted)

	samples := seriesSamples(t, s, "BTC", KindPrice)
	require.Len(t, samples, 1)
	assert.Equal(t, 2.0, samples[0].Value)

	keys := s.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "BTC", keys[0].Symbol, "emptied series should be removed")
}

func TestLatest(t *testing.T) {
	s := NewStore()
	_, ok := s.Latest("BTC", KindPrice)
	assert.False(t, ok)

	s.Insert("BTC", KindPrice, 100, testBase.Add(-2*time.Hour))
	s.Insert("BTC", KindPrice, 110, testBase)

	sample, ok := s.Latest("BTC", KindPrice)
	require.True(t, ok)
	assert.Equal(t, 110.0, sample.Value)
}

func TestChangeSince(t *testing.T) {
	s := NewStore()

	_, ok := s.ChangeSince("BTC", KindPrice, testBase, DefaultLookback)
	assert.False(t, ok, "empty series has no change")

	s.Insert("BTC", KindPrice, 100, testBase.Add(-24*time.Hour))
	s.Insert("BTC", KindPrice, 110, testBase)

	pct, ok := s.ChangeSince("BTC", KindPrice, testBase, DefaultLookback)
	require.True(t, ok)
	assert.InDelta(t, 10, pct, 1e-9)

	// a lone sample sitting exactly at the lookback target must not act as
	// its own baseline
	s.Insert("ETH", KindPrice, 50, testBase.Add(-24*time.Hour))
	_, ok = s.ChangeSince("ETH", KindPrice, testBase, DefaultLookback)
	assert.False(t, ok)

	// zero baseline is undefined
	s.Insert("SOL", KindPrice, 0, testBase.Add(-24*time.Hour))
	s.Insert("SOL", KindPrice, 5, testBase)
	_, ok = s.ChangeSince("SOL", KindPrice, testBase, DefaultLookback)
	assert.False(t, ok)
}

func TestKeysAndLen(t *testing.T) {
	s := NewStore()
	s.Insert("ETH", KindPrice, 1, testBase)
	s.Insert("BTC", KindPerpVolume, 2, testBase)
	s.Insert("BTC", KindPrice, 3, testBase)

	keys := s.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, Key{Symbol: "BTC", Metric: KindPerpVolume}, keys[0])
	assert.Equal(t, Key{Symbol: "BTC", Metric: KindPrice}, keys[1])
	assert.Equal(t, Key{Symbol: "ETH", Metric: KindPrice}, keys[2])
	assert.Equal(t, 3, s.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.Insert("BTC", KindPrice, 1, testBase)

	snap := s.Snapshot()
	snap[NewKey("BTC", KindPrice)][0].Value = 999

	sample, ok := s.Latest("BTC", KindPrice)
	require.True(t, ok)
	assert.Equal(t, 1.0, sample.Value)
}
