// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package types

type ReportReq struct {
	Command string `path:"command"`
	Symbol  string `form:"symbol,optional"`
}

type ReportResp struct {
	Command string `json:"command"`
	Symbol  string `json:"symbol"`
	Text    string `json:"text"`
}

type ChangeReq struct {
	Symbol string `form:"symbol,optional"`
	Metric string `form:"metric"`
}

type ChangeResp struct {
	Symbol    string  `json:"symbol"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	At        string  `json:"at"`
	ChangePct float64 `json:"change_pct"`
	HasChange bool    `json:"has_change"`
}

type HealthResp struct {
	Status  string `json:"status"`
	Series  int    `json:"series"`
	Samples int    `json:"samples"`
}
