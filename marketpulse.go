// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package main

import (
	"flag"
	"fmt"

	"marketpulse/internal/config"
	"marketpulse/internal/handler"
	"marketpulse/internal/observability"
	"marketpulse/internal/svc"

	"github.com/zeromicro/go-zero/rest"
)

var configFile = flag.String("f", "etc/marketpulse.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()

	ctx := svc.NewServiceContext(*cfg, cfg.MainPath())
	defer ctx.Close()
	handler.RegisterHandlers(server, ctx)

	if cfg.MetricsAddr != "" {
		observability.Serve(cfg.MetricsAddr)
	}

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
