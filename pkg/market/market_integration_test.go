//go:build integration
// +build integration

package market

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigBuildProviders_Integration(t *testing.T) {
	RegisterProvider("okx", func(name string, cfg *ProviderConfig) (Provider, error) {
		return &mockProvider{}, nil
	})

	configYAML := []byte(`
default: okx-test
providers:
  okx-test:
    type: okx
    base_url: https://www.okx.com
    timeout: 10s
    http_timeout: 8s
    max_retries: 3
`)

	config, err := LoadConfigFromReader(strings.NewReader(string(configYAML)))
	require.NoError(t, err)

	providers, err := config.BuildProviders()
	require.NoError(t, err)
	require.Len(t, providers, 1)

	provider, exists := providers["okx-test"]
	assert.True(t, exists)
	assert.NotNil(t, provider)
}

func TestProviderSnapshot_Integration(t *testing.T) {
	RegisterProvider("okx", func(name string, cfg *ProviderConfig) (Provider, error) {
		return &mockProvider{}, nil
	})

	cfg := &Config{
		Providers: map[string]*ProviderConfig{
			"test": {
				Type: "okx",
			},
		},
	}

	providers, err := cfg.BuildProviders()
	require.NoError(t, err)
	require.Len(t, providers, 1)

	provider := providers["test"]
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snapshot, err := provider.Snapshot(ctx, "BTC")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.NotEmpty(t, snapshot.Symbol)
	assert.Greater(t, snapshot.Price, 0.0)
	assert.NotNil(t, snapshot.Funding)
	assert.NotNil(t, snapshot.PerpVolume)
}

func TestProviderListAssets_Integration(t *testing.T) {
	RegisterProvider("okx", func(name string, cfg *ProviderConfig) (Provider, error) {
		return &mockProvider{}, nil
	})

	cfg := &Config{
		Providers: map[string]*ProviderConfig{
			"test": {
				Type: "okx",
			},
		},
	}

	providers, err := cfg.BuildProviders()
	require.NoError(t, err)
	require.Len(t, providers, 1)

	provider := providers["test"]
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	assets, err := provider.ListAssets(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, assets)
	for _, asset := range assets {
		assert.NotEmpty(t, asset.Symbol)
		assert.True(t, asset.Precision >= 0)
	}
}

type mockProvider struct{}

func (m *mockProvider) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	return &Snapshot{
		Symbol: "BTC",
		Price:  50000.0,
		Funding: &FundingInfo{
			Rate:     0.01,
			NextTime: time.Now().Add(4 * time.Hour),
		},
		OpenInterest: &OpenInterestInfo{
			Contracts: 1000.0,
			Coin:      100.0,
		},
		SpotVolume: &VolumeInfo{
			Base:  120.5,
			Quote: 6_000_000,
		},
		PerpVolume: &VolumeInfo{
			Base: 980.25,
		},
		FetchedAt: time.Now(),
	}, nil
}

func (m *mockProvider) ListAssets(ctx context.Context) ([]Asset, error) {
	return []Asset{
		{
			Symbol:    "BTC",
			Base:      "BTC",
			Quote:     "USDT",
			Precision: 8,
			IsActive:  true,
			RawMetadata: map[string]any{
				"lotSz": "0.00000001",
			},
		},
		{
			Symbol:    "ETH",
			Base:      "ETH",
			Quote:     "USDT",
			Precision: 8,
			IsActive:  true,
			RawMetadata: map[string]any{
				"lotSz": "0.000001",
			},
		},
	}, nil
}
