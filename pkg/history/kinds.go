package history

import (
	"fmt"
	"strings"
)

// Kind enumerates the metric kinds a series can track.
type Kind string

const (
	KindPrice        Kind = "price"
	KindFundingRate  Kind = "funding_rate"
	KindOpenInterest Kind = "open_interest"
	KindSpotVolume   Kind = "spot_volume"
	KindPerpVolume   Kind = "perp_volume"
	KindFearGreed    Kind = "fear_greed"
)

// MarketSymbol is the reserved symbol for market-wide series such as the
// fear & greed index.
const MarketSymbol = "MARKET"

// Kinds returns every known kind in display order.
func Kinds() []Kind {
	return []Kind{KindPrice, KindFundingRate, KindOpenInterest, KindSpotVolume, KindPerpVolume, KindFearGreed}
}

// Valid reports whether k names a known metric kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPrice, KindFundingRate, KindOpenInterest, KindSpotVolume, KindPerpVolume, KindFearGreed:
		return true
	}
	return false
}

// ParseKind converts user input into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("history: unknown metric kind %q", s)
	}
	return k, nil
}
