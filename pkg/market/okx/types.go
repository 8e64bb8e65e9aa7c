package okx

import "encoding/json"

// apiResponse is the shared envelope for OKX v5 REST responses. Code "0"
// signals success; anything else carries an error in Msg.
type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Ticker mirrors one entry of /api/v5/market/ticker. Numeric fields arrive as
// strings.
type Ticker struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	Vol24h    string `json:"vol24h"`    // base units for spot, contracts for swaps
	VolCcy24h string `json:"volCcy24h"` // quote units for spot, coin units for swaps
	TS        string `json:"ts"`        // unix millis
}

// FundingRate mirrors one entry of /api/v5/public/funding-rate.
type FundingRate struct {
	InstID          string `json:"instId"`
	FundingRate     string `json:"fundingRate"`     // decimal fraction per interval
	NextFundingTime string `json:"nextFundingTime"` // unix millis
}

// OpenInterest mirrors one entry of /api/v5/public/open-interest.
type OpenInterest struct {
	InstID string `json:"instId"`
	OI     string `json:"oi"`    // outstanding contracts
	OICcy  string `json:"oiCcy"` // base coin units
}

// Instrument mirrors one entry of /api/v5/public/instruments.
type Instrument struct {
	InstID   string `json:"instId"`
	BaseCcy  string `json:"baseCcy"`
	QuoteCcy string `json:"quoteCcy"`
	TickSz   string `json:"tickSz"`
	LotSz    string `json:"lotSz"`
	State    string `json:"state"` // "live" when tradeable
}
