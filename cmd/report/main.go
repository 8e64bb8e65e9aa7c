package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketpulse/internal/config"
	"marketpulse/internal/svc"
)

const commandTimeout = 30 * time.Second

var configFile = flag.String("f", "etc/marketpulse.yaml", "the config file")

func usage() {
	fmt.Fprintln(os.Stderr, "usage: report [-f config] <command> [symbol]")
	fmt.Fprintln(os.Stderr, "commands: fear, fund, oi, vol, all, help")
}

func fatalf(format string, args ...interface{}) {
	logx.Errorf(format, args...)
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	logx.MustSetup(logx.LogConf{})
	logx.DisableStat()

	command := flag.Arg(0)
	if command == "" {
		command = "help"
	}
	symbol := flag.Arg(1)

	cfg, err := config.Load(*configFile)
	if err != nil {
		fatalf("load config: %v", err)
	}

	svcCtx := svc.NewServiceContext(*cfg, cfg.MainPath())
	defer svcCtx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	text, err := svcCtx.Reporter.Handle(ctx, command, symbol)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Println(text)
}
