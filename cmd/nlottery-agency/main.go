// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nishisan-dev/n-lottery/internal/agency"
	"github.com/nishisan-dev/n-lottery/internal/config"
	"github.com/nishisan-dev/n-lottery/internal/logging"
)

func main() {
	configPath := flag.String("config", "/etc/nlottery/agency.yaml", "path to agency config file")
	showProgress := flag.Bool("progress", false, "show submission progress on stderr")
	flag.Parse()

	cfg, err := config.LoadAgencyConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.NewLogger(cfg.Logging)
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	client := agency.NewClient(cfg, logger)
	winners, err := client.Run(ctx, *showProgress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("run cancelled by shutdown")
			return
		}
		logger.Error("agency run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("draw results received", "winners", len(winners))
	for _, w := range winners {
		logger.Info("winning bet", "document", w.Document, "number", w.Number)
	}
}
