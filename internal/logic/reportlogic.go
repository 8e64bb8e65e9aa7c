package logic

import (
	"context"
	"strings"

	"marketpulse/internal/observability"
	"marketpulse/internal/svc"
	"marketpulse/internal/types"
)

type ReportLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewReportLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ReportLogic {
	return &ReportLogic{ctx: ctx, svcCtx: svcCtx}
}

// Report runs one report command and returns its rendered text.
func (l *ReportLogic) Report(req *types.ReportReq) (*types.ReportResp, error) {
	command := strings.ToLower(strings.TrimSpace(req.Command))
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		symbol = "BTC"
	}

	text, err := l.svcCtx.Reporter.Handle(l.ctx, command, symbol)
	if err != nil {
		return nil, err
	}
	observability.RecordReport(command)

	return &types.ReportResp{
		Command: command,
		Symbol:  symbol,
		Text:    text,
	}, nil
}
