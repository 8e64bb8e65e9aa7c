package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"marketpulse/internal/logic"
	"marketpulse/internal/svc"
	"marketpulse/internal/types"
)

func ChangesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ChangeReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := logic.NewChangesLogic(r.Context(), svcCtx)
		resp, err := l.Changes(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
