package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"marketpulse/internal/logic"
	"marketpulse/internal/svc"
	"marketpulse/internal/types"
)

func ReportHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ReportReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := logic.NewReportLogic(r.Context(), svcCtx)
		resp, err := l.Report(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
