package okx

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	marketpkg "marketpulse/pkg/market"
)

// persistSnapshot writes the given snapshot to the persistence hook (if
// configured) and logs errors without blocking the data path.
func (p *Provider) persistSnapshot(ctx context.Context, symbol string, snap *marketpkg.Snapshot) {
	if p.persistence == nil || snap == nil {
		return
	}
	if err := p.persistence.RecordSnapshot(ctx, p.providerName(), snap); err != nil {
		logx.WithContext(ctx).Errorf("okx: persist snapshot provider=%s symbol=%s err=%v", p.providerName(), symbol, err)
	}
}

// persistAssets writes asset metadata via the persistence hook when one is
// configured.
func (p *Provider) persistAssets(ctx context.Context, assets []marketpkg.Asset) {
	if p.persistence == nil || len(assets) == 0 {
		return
	}
	if err := p.persistence.UpsertAssets(ctx, p.providerName(), assets); err != nil {
		logx.WithContext(ctx).Errorf("okx: persist assets provider=%s err=%v", p.providerName(), err)
	}
}
