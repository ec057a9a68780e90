// Package main implements the main entry point for a JIT compiler of the eight instruction tape language
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/bfjit/internal/cli"
	"github.com/retroenv/bfjit/internal/config"
	"github.com/retroenv/bfjit/internal/session"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	opts, runtimeOptions, err := cli.ParseFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			session.PrintBanner(logger, opts, version, commit, date)
			if usageErr.Error() != "" {
				logger.Error(usageErr.Error())
			}
			usageErr.ShowUsage()
		} else {
			logger.Fatal(err.Error())
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	session.PrintBanner(logger, opts, version, commit, date)

	s, err := session.New(logger, opts, runtimeOptions, os.Stdin, os.Stdout)
	if err != nil {
		logger.Fatal("Creating session failed", log.Err(err))
	}

	// a running program can not be interrupted, exit directly
	go func() {
		<-ctx.Done()
		logger.Info("Operation cancelled")
		os.Exit(1)
	}()

	if opts.File != "" {
		err = s.RunFile(opts.File)
	} else {
		err = s.Interactive(ctx)
	}
	logger.Closer(s, "Closing session failed")

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Execution failed", log.Err(err))
	}
}
