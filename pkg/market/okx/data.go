package okx

import (
	"context"
	"fmt"
	"math"
	"time"

	"marketpulse/pkg/market"
)

// buildSnapshot assembles a market snapshot from the spot ticker plus the
// perpetual's funding, open interest and volume. The spot price is required;
// every other section degrades to nil when its fetch or parse fails.
func (c *Client) buildSnapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	canonical := normalizeSymbol(symbol)
	if canonical == "" {
		return nil, fmt.Errorf("okx: empty symbol")
	}

	spot, err := c.GetTicker(ctx, spotInstID(canonical))
	if err != nil {
		return nil, err
	}
	last, err := parseFloat(spot.Last)
	if err != nil {
		return nil, fmt.Errorf("okx: parse last price for %s: %w", canonical, err)
	}
	if math.IsNaN(last) {
		return nil, fmt.Errorf("okx: missing last price for %s", canonical)
	}

	snapshot := &market.Snapshot{
		Symbol:     canonical,
		Price:      last,
		SpotVolume: volumeFromTicker(spot),
		FetchedAt:  time.Now().UTC(),
	}

	if perp, err := c.GetTicker(ctx, perpInstID(canonical)); err != nil {
		c.logf("okx: perp ticker for %s unavailable: %v", canonical, err)
	} else if vol, err := parseFloat(perp.VolCcy24h); err == nil && !math.IsNaN(vol) {
		snapshot.PerpVolume = &market.VolumeInfo{Base: vol}
	}

	if funding, err := c.GetFundingRate(ctx, perpInstID(canonical)); err != nil {
		c.logf("okx: funding rate for %s unavailable: %v", canonical, err)
	} else if rate, err := parseFloat(funding.FundingRate); err == nil && !math.IsNaN(rate) {
		info := &market.FundingInfo{Rate: rate * 100, Instrument: funding.InstID}
		if next, err := parseMillis(funding.NextFundingTime); err == nil {
			info.NextTime = next
		}
		snapshot.Funding = info
	}

	if oi, err := c.GetOpenInterest(ctx, perpInstID(canonical)); err != nil {
		c.logf("okx: open interest for %s unavailable: %v", canonical, err)
	} else {
		contracts, contractsErr := parseFloat(oi.OI)
		coin, coinErr := parseFloat(oi.OICcy)
		if coinErr == nil && !math.IsNaN(coin) {
			if contractsErr != nil || math.IsNaN(contracts) {
				contracts = 0
			}
			snapshot.OpenInterest = &market.OpenInterestInfo{Contracts: contracts, Coin: coin, Instrument: oi.InstID}
		}
	}

	return snapshot, nil
}

// volumeFromTicker extracts 24h spot volume; nil when the ticker carries no
// quote figure.
func volumeFromTicker(t *Ticker) *market.VolumeInfo {
	quote, quoteErr := parseFloat(t.VolCcy24h)
	if quoteErr != nil || math.IsNaN(quote) {
		return nil
	}
	base, baseErr := parseFloat(t.Vol24h)
	if baseErr != nil || math.IsNaN(base) {
		base = 0
	}
	return &market.VolumeInfo{Base: base, Quote: quote}
}
