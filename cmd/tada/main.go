package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Makepad-fr/tada/internal/cli"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand). Set flags take precedence
	// over the environment in config.Load.
	var ov config.Overrides
	groupPending := flag.Bool("group", false, "group output by pending/done")
	flag.StringVar(&ov.APIURL, "api", "", "base URL of the todo service (default $TADA_API_URL or "+config.DefaultAPIURL+")")
	flag.DurationVar(&ov.Timeout, "timeout", 0, "per-request timeout (default $TADA_TIMEOUT or 10s)")
	flag.StringVar(&ov.Theme, "theme", "", "classic, neon or mono (default $TADA_THEME or classic)")
	flag.StringVar(&ov.LogLevel, "log-level", "", "debug, info, warn or error (default $TADA_LOG_LEVEL or warn)")
	flag.Parse()

	cfg, err := config.Load(ov)
	if err != nil {
		ui.Fail("config: " + err.Error())
		os.Exit(2)
	}
	ui.SetTheme(cfg.Theme)

	// Hand the remaining args to the CLI runner.
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, args, cli.Options{
		Group:  *groupPending,
		Config: cfg,
		Logger: cfg.NewLogger(os.Stderr),
	})
	stop()
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
