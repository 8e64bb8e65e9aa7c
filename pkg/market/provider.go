package market

import (
	"context"
	"time"
)

// Provider exposes exchange-agnostic market data.
type Provider interface {
	// Snapshot returns a normalized market snapshot for the specified symbol.
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)
	// ListAssets returns all supported symbols along with metadata.
	ListAssets(ctx context.Context) ([]Asset, error)
}

// Snapshot captures a normalized market view for a symbol. Optional sections
// are nil when the exchange could not serve them; partial data is still
// usable data.
type Snapshot struct {
	Symbol       string            // Exchange symbol as traded, e.g. "BTC"
	Price        float64           // Last spot trade price in quote units
	Funding      *FundingInfo      // Perpetual funding information, if available
	OpenInterest *OpenInterestInfo // Derivatives interest data, if available
	SpotVolume   *VolumeInfo       // Rolling 24h spot volume, if available
	PerpVolume   *VolumeInfo       // Rolling 24h perpetual volume, if available
	FetchedAt    time.Time         // When the snapshot was assembled
}

// Asset describes a tradeable instrument.
type Asset struct {
	Symbol      string         // Exchange-native symbol, e.g. "BTC"
	Base        string         // Optional base asset
	Quote       string         // Optional quote asset
	Precision   int            // Price precision when available
	IsActive    bool           // Whether the asset is currently tradeable
	RawMetadata map[string]any // Exchange-specific fields for callers that need more detail
}

// FundingInfo captures perpetual funding rate data.
type FundingInfo struct {
	Rate       float64   // percent per funding interval (0.0100 means 0.01%)
	NextTime   time.Time // next funding settlement, zero when unknown
	Instrument string    // exchange instrument the rate applies to
}

// OpenInterestInfo reports derivatives open interest.
type OpenInterestInfo struct {
	Contracts  float64 // outstanding contracts
	Coin       float64 // open interest in base coin units
	Instrument string  // exchange instrument the figures apply to
}

// VolumeInfo reports rolling 24h traded volume. Quote stays zero when the
// exchange does not serve a quote-denominated figure.
type VolumeInfo struct {
	Base  float64 // volume in base currency units
	Quote float64 // volume in quote currency units
}
