// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package server implementa o servidor central da loteria (nlottery-server):
// aceita conexões de agência, armazena lotes de apostas no ledger e, depois
// que todas as agências sinalizam END, responde consultas de ganhadores.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nishisan-dev/n-lottery/internal/archive"
	"github.com/nishisan-dev/n-lottery/internal/config"
	"github.com/nishisan-dev/n-lottery/internal/logging"
	"github.com/nishisan-dev/n-lottery/internal/lottery"
	"github.com/nishisan-dev/n-lottery/internal/server/observability"
)

// Server agrega o estado compartilhado entre as sessões: ledger, barreira de
// notificações, registry de sessões e o monitor de máquina. Nada disso vive em
// globals; tudo chega às sessões por referência explícita.
type Server struct {
	cfg           *config.ServerConfig
	logger        *slog.Logger
	store         *lottery.FileStore
	notifications *NotificationSet
	registry      *observability.Registry
	monitor       *SystemMonitor
}

// StatusSnapshot implementa observability.StatusSource para GET /api/v1/status.
func (s *Server) StatusSnapshot() observability.StatusData {
	return observability.StatusData{
		BetsStored:       s.store.Count(),
		ActiveSessions:   s.registry.Active(),
		AgenciesDone:     s.notifications.Done(),
		RequiredAgencies: s.notifications.Required(),
		DrawComplete:     s.notifications.AllReceived(),
		Stats:            s.monitor.RuntimeStats(),
	}
}

// Run inicia o servidor da loteria e bloqueia até o context ser cancelado.
func Run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Listen, err)
	}
	defer ln.Close()

	logger.Info("server listening", "address", cfg.Server.Listen)
	return RunWithListener(ctx, ln, cfg, logger)
}

// RunWithListener inicia o servidor com um listener já existente (para testes).
func RunWithListener(ctx context.Context, ln net.Listener, cfg *config.ServerConfig, logger *slog.Logger) error {
	store, err := lottery.NewFileStore(cfg.Lottery.LedgerPath)
	if err != nil {
		return fmt.Errorf("opening bet store: %w", err)
	}

	notifications := NewNotificationSet(cfg.Server.RequiredAgencies)
	registry := observability.NewRegistry(cfg.Observability.EventBuffer)

	if cfg.Observability.Enabled {
		// Espelha warnings e erros do log global no ring de eventos da API
		capture := observability.NewSlogCapture(registry.Events(), slog.LevelWarn)
		logger = slog.New(logging.NewFanOutHandler(logger.Handler(), capture))
	}

	handler := NewHandler(cfg, logger, store, notifications, registry)

	monitor := NewSystemMonitor(logger, cfg.Lottery.LedgerPath)
	monitor.Start()
	defer monitor.Stop()

	srv := &Server{
		cfg:           cfg,
		logger:        logger,
		store:         store,
		notifications: notifications,
		registry:      registry,
		monitor:       monitor,
	}

	go handler.StartStatsReporter(ctx, monitor)

	if cfg.Observability.Enabled {
		startObservabilityAPI(ctx, cfg, srv, registry, logger)
	}

	stopArchiver, err := startArchiver(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	defer stopArchiver()

	// Goroutine de shutdown: fecha o listener (derruba o accept) e todas as
	// conexões ativas (derruba as sessões paradas em Read/Write)
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		ln.Close()
		if n := registry.CloseAll(); n > 0 {
			logger.Info("closed active sessions", "count", n)
		}
	}()

	// O listen_backlog limita sessões servidas em paralelo. O backlog do
	// kernel não é exposto pelo net.Listener do Go; o knob vira um semáforo
	// que segura conexões excedentes antes do handshake.
	sem := make(chan struct{}, cfg.Server.ListenBacklog)
	var wg sync.WaitGroup

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				wg.Wait()
				logger.Info("server shutdown complete")
				return nil
			default:
				logger.Error("accepting connection", "error", err)
				continue
			}
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			conn.Close()
			wg.Wait()
			logger.Info("server shutdown complete")
			return nil
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			handler.HandleConnection(ctx, conn)
		}()
	}
}

// startObservabilityAPI sobe o listener HTTP read-only da API de
// acompanhamento e o derruba junto com o context do servidor.
func startObservabilityAPI(ctx context.Context, cfg *config.ServerConfig, srv *Server, registry *observability.Registry, logger *slog.Logger) {
	acl := observability.NewACL(cfg.Observability.ParsedCIDRs)
	api := &http.Server{
		Addr:         cfg.Observability.Listen,
		Handler:      observability.NewRouter(srv, registry, acl),
		ReadTimeout:  cfg.Observability.ReadTimeout,
		WriteTimeout: cfg.Observability.WriteTimeout,
		IdleTimeout:  cfg.Observability.IdleTimeout,
	}

	go func() {
		logger.Info("observability API listening", "address", cfg.Observability.Listen)
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("observability API failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		api.Shutdown(shutdownCtx)
	}()
}

// startArchiver monta o pipeline de arquivamento do ledger conforme a config:
// uploader S3 opcional, archiver e scheduler cron. Retorna a função de parada
// (no-op quando o arquivamento está desabilitado).
func startArchiver(ctx context.Context, cfg *config.ServerConfig, store *lottery.FileStore, logger *slog.Logger) (func(), error) {
	if cfg.Archive.Schedule == "" && !cfg.Archive.S3.Enabled {
		return func() {}, nil
	}

	var uploader archive.Uploader
	if cfg.Archive.S3.Enabled {
		s3up, err := archive.NewS3Uploader(ctx, cfg.Archive.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring s3 uploader: %w", err)
		}
		uploader = s3up
	}

	archiver, err := archive.New(cfg.Archive, store, logger, uploader)
	if err != nil {
		return nil, fmt.Errorf("configuring archiver: %w", err)
	}

	if cfg.Archive.Schedule == "" {
		return func() {}, nil
	}

	scheduler, err := archive.NewScheduler(cfg.Archive.Schedule, logger, func(runCtx context.Context) error {
		_, err := archiver.Archive(runCtx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("configuring archive scheduler: %w", err)
	}
	scheduler.Start()

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
	}, nil
}
