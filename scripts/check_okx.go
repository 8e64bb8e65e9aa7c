package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"marketpulse/internal/config"
	_ "marketpulse/pkg/market/okx"
)

type okxResponse struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data []json.RawMessage `json:"data"`
}

func queryOKX(baseURL, path string) (*okxResponse, string, error) {
	c := &http.Client{Timeout: 10 * time.Second}
	resp, err := c.Get(baseURL + path)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	var out okxResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, resp.Status, fmt.Errorf("decode: %v (raw: %.120s)", err, string(b))
	}
	return &out, resp.Status, nil
}

func probe(baseURL, label, path string) {
	out, status, err := queryOKX(baseURL, path)
	if err != nil {
		fmt.Printf("%-22s ERROR  %v\n", label, err)
		return
	}
	if out.Code != "0" {
		fmt.Printf("%-22s FAIL   http=%s code=%s msg=%s\n", label, status, out.Code, out.Msg)
		return
	}
	fmt.Printf("%-22s OK     http=%s rows=%d\n", label, status, len(out.Data))
}

func main() {
	// Ensure default market config (and .env) is loaded before probing.
	marketCfg := config.MustLoadMarket()

	symbol := "BTC"
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		symbol = strings.ToUpper(strings.TrimSpace(os.Args[1]))
	}

	baseURL := "https://www.okx.com"
	if pc := marketCfg.Providers[marketCfg.Default]; pc != nil && pc.BaseURL != "" {
		baseURL = strings.TrimRight(pc.BaseURL, "/")
	}

	spot := symbol + "-USDT"
	swap := symbol + "-USDT-SWAP"

	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("OKX endpoint probe: %s (symbol %s)\n", baseURL, symbol)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	probe(baseURL, "spot ticker", "/api/v5/market/ticker?instId="+spot)
	probe(baseURL, "swap ticker", "/api/v5/market/ticker?instId="+swap)
	probe(baseURL, "funding rate", "/api/v5/public/funding-rate?instId="+swap)
	probe(baseURL, "open interest", "/api/v5/public/open-interest?instType=SWAP&instId="+swap)
	probe(baseURL, "instruments", "/api/v5/public/instruments?instType=SPOT&instId="+spot)

	fmt.Println()
	fmt.Println("--- alternative.me ---")
	c := &http.Client{Timeout: 10 * time.Second}
	resp, err := c.Get("https://api.alternative.me/fng/?limit=1&format=json")
	if err != nil {
		fmt.Printf("%-22s ERROR  %v\n", "fear & greed", err)
		return
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Printf("%-22s %s  %.120s\n", "fear & greed", resp.Status, string(b))
}
