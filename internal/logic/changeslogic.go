package logic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketpulse/internal/svc"
	"marketpulse/internal/types"
	"marketpulse/pkg/history"
)

type ChangesLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewChangesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ChangesLogic {
	return &ChangesLogic{ctx: ctx, svcCtx: svcCtx}
}

// Changes reports the latest sample for a symbol/metric series along with the
// 24h percent change when a usable baseline exists.
func (l *ChangesLogic) Changes(req *types.ChangeReq) (*types.ChangeResp, error) {
	metric, err := history.ParseKind(req.Metric)
	if err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		if metric == history.KindFearGreed {
			symbol = history.MarketSymbol
		} else {
			symbol = "BTC"
		}
	}

	sample, ok := l.svcCtx.Store.Latest(symbol, metric)
	if !ok {
		return nil, fmt.Errorf("no samples recorded for %s %s", symbol, metric)
	}
	change, has := l.svcCtx.Store.ChangeSince(symbol, metric, time.Now().UTC(), history.DefaultLookback)

	return &types.ChangeResp{
		Symbol:    symbol,
		Metric:    string(metric),
		Value:     sample.Value,
		At:        sample.At.UTC().Format(time.RFC3339),
		ChangePct: change,
		HasChange: has,
	}, nil
}
