package logic

import (
	"context"

	"marketpulse/internal/svc"
	"marketpulse/internal/types"
)

type HealthLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewHealthLogic(ctx context.Context, svcCtx *svc.ServiceContext) *HealthLogic {
	return &HealthLogic{ctx: ctx, svcCtx: svcCtx}
}

func (l *HealthLogic) Health() (*types.HealthResp, error) {
	return &types.HealthResp{
		Status:  "ok",
		Series:  len(l.svcCtx.Store.Keys()),
		Samples: l.svcCtx.Store.Len(),
	}, nil
}
