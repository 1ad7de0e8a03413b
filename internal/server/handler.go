// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/nishisan-dev/n-lottery/internal/config"
	"github.com/nishisan-dev/n-lottery/internal/lottery"
	"github.com/nishisan-dev/n-lottery/internal/protocol"
	"github.com/nishisan-dev/n-lottery/internal/server/observability"
)

// Handler processa conexões individuais de agência.
type Handler struct {
	cfg           *config.ServerConfig
	logger        *slog.Logger
	store         *lottery.FileStore
	notifications *NotificationSet
	registry      *observability.Registry

	// Métricas observáveis pelo stats reporter
	TrafficIn   atomic.Int64 // bytes recebidos da rede (acumulado desde último reset)
	BetsStored  atomic.Int64 // apostas aceitas (acumulado desde último reset)
	ActiveConns atomic.Int32 // conexões ativas no momento
}

// NewHandler cria um novo Handler.
func NewHandler(cfg *config.ServerConfig, logger *slog.Logger, store *lottery.FileStore, notifications *NotificationSet, registry *observability.Registry) *Handler {
	return &Handler{
		cfg:           cfg,
		logger:        logger,
		store:         store,
		notifications: notifications,
		registry:      registry,
	}
}

// HandleConnection processa uma conexão de agência do handshake ao desfecho.
func (h *Handler) HandleConnection(ctx context.Context, conn net.Conn) {
	h.ActiveConns.Add(1)
	defer h.ActiveConns.Add(-1)
	defer conn.Close()

	sess := h.registry.Register(conn)
	outcome := "disconnect"
	defer func() { h.registry.Unregister(sess, outcome) }()

	logger := h.logger.With("remote", conn.RemoteAddr().String(), "session", sess.ID)

	// Handshake com deadline próprio: uma conexão que não se identifica
	// não pode segurar um slot de sessão indefinidamente.
	conn.SetReadDeadline(time.Now().Add(h.cfg.Server.HandshakeTimeout))
	agencyID, err := protocol.ReadAgencyID(conn)
	if err != nil {
		var nerr net.Error
		switch {
		case ctx.Err() != nil:
			logger.Info("session closed by shutdown")
			outcome = "shutdown"
		case errors.As(err, &nerr) && nerr.Timeout():
			logger.Warn("handshake timeout")
			outcome = "io_error"
		case errors.Is(err, protocol.ErrInvalidHandshake):
			logger.Warn("invalid handshake", "error", err)
			h.registry.Events().PushEvent("warn", "protocol_error", 0, sess.ID, err.Error())
			outcome = "protocol_error"
		default:
			logger.Warn("reading handshake", "error", err)
			outcome = "io_error"
		}
		return
	}
	conn.SetReadDeadline(time.Time{})

	sess.SetAgency(agencyID)
	logger = logger.With("agency", agencyID)
	logger.Info("agency connected")

	// Lê frames em sequência; a leitura é bufferizada, a escrita vai
	// direto na conn para a confirmação não ficar presa em buffer.
	br := bufio.NewReader(conn)
	for {
		msgType, err := protocol.ReadMessageType(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// EOF entre frames é o encerramento normal do cliente
				logger.Info("client disconnected")
				outcome = "disconnect"
			} else {
				outcome = h.classify(ctx, sess, logger, err, "reading message type")
			}
			return
		}

		switch msgType {
		case protocol.MsgBet:
			if err := h.handleBatch(br, conn, sess, agencyID, logger); err != nil {
				outcome = h.classify(ctx, sess, logger, err, "processing batch")
				return
			}
		case protocol.MsgEnd:
			h.handleEnd(sess, agencyID, logger)
			outcome = "end"
			return
		case protocol.MsgWinners:
			outcome = h.handleWinners(conn, sess, agencyID, logger)
			return
		default:
			// WINNER só existe no sentido servidor→agência
			logger.Warn("unexpected message type", "type", msgType.String())
			h.registry.Events().PushEvent("warn", "protocol_error", agencyID, sess.ID, "unexpected "+msgType.String()+" frame")
			outcome = "protocol_error"
			return
		}
	}
}

// handleBatch lê, valida e armazena um lote BET, confirmando com OK.
// Qualquer aposta inválida descarta o lote inteiro: nada é armazenado e a
// sessão cai sem confirmação.
func (h *Handler) handleBatch(r io.Reader, conn net.Conn, sess *observability.Session, agencyID int, logger *slog.Logger) error {
	payload, err := protocol.ReadBatch(r, uint32(h.cfg.Lottery.MaxBatchSizeRaw))
	if err != nil {
		return fmt.Errorf("reading batch: %w", err)
	}
	h.TrafficIn.Add(int64(len(payload)) + 5) // 1B tipo + 4B comprimento

	records, err := protocol.SplitRecords(payload)
	if err != nil {
		sess.NoteRejected()
		h.registry.Events().PushEvent("warn", "batch_rejected", agencyID, sess.ID, err.Error())
		return fmt.Errorf("splitting batch: %w", err)
	}

	bets, err := lottery.ParseBatch(agencyID, records)
	if err != nil {
		sess.NoteRejected()
		h.registry.Events().PushEvent("warn", "batch_rejected", agencyID, sess.ID, err.Error())
		return fmt.Errorf("parsing batch of %d records: %w", len(records), err)
	}

	if err := h.store.Append(bets); err != nil {
		return fmt.Errorf("storing batch: %w", err)
	}
	h.BetsStored.Add(int64(len(bets)))
	sess.NoteBatch(len(bets))
	h.registry.Events().PushEvent("info", "batch_stored", agencyID, sess.ID, fmt.Sprintf("%d bets stored", len(bets)))
	logger.Info("batch stored", "bets", len(bets))

	if err := protocol.WriteConfirmation(conn); err != nil {
		return fmt.Errorf("writing confirmation: %w", err)
	}
	return nil
}

// handleEnd registra o END da agência. A sessão fecha sem confirmação.
func (h *Handler) handleEnd(sess *observability.Session, agencyID int, logger *slog.Logger) {
	newly, done := h.notifications.Mark(agencyID)
	h.registry.NoteEnd(agencyID)
	h.registry.Events().PushEvent("info", "end", agencyID, sess.ID, "agency finished submitting bets")

	if !newly {
		logger.Info("end repeated", "agencies_done", done)
		return
	}
	logger.Info("end received", "agencies_done", done, "required", h.notifications.Required())

	// Só a chamada que inseriu a última agência observa done == required
	if done == h.notifications.Required() {
		logger.Info("draw complete", "agencies", done)
		h.registry.Events().PushEvent("info", "draw_complete", 0, 0, "all agencies finished, draw complete")
	}
}

// handleWinners atende uma consulta de ganhadores. Antes do sorteio completar
// a conexão é fechada sem resposta nenhuma; a agência tenta de novo depois.
func (h *Handler) handleWinners(conn net.Conn, sess *observability.Session, agencyID int, logger *slog.Logger) string {
	if !h.notifications.AllReceived() {
		logger.Info("winners query refused, draw pending",
			"agencies_done", h.notifications.Done(),
			"required", h.notifications.Required())
		return "winners_refused"
	}

	sess.SetState(observability.StateServingWinners)

	var count int
	err := h.store.Scan(func(b lottery.Bet) error {
		if b.Agency != agencyID || !lottery.HasWon(b) {
			return nil
		}
		if err := protocol.WriteWinner(conn, b.Record()); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		logger.Error("serving winners", "error", err)
		return "io_error"
	}

	if err := protocol.WriteEnd(conn); err != nil {
		logger.Error("writing winners terminator", "error", err)
		return "io_error"
	}

	h.registry.NoteWinners(agencyID)
	h.registry.Events().PushEvent("info", "winners_served", agencyID, sess.ID, fmt.Sprintf("%d winners", count))
	logger.Info("winners served", "count", count)
	return "winners_served"
}

// classify decide log e desfecho para erros de sessão. Erros de protocolo e
// parse derrubam a sessão com warning; o fechamento forçado do shutdown é
// esperado e vira info.
func (h *Handler) classify(ctx context.Context, sess *observability.Session, logger *slog.Logger, err error, doing string) string {
	switch {
	case ctx.Err() != nil:
		logger.Info("session closed by shutdown")
		return "shutdown"
	case errors.Is(err, protocol.ErrBatchTooLarge), errors.Is(err, protocol.ErrInvalidMessageType):
		logger.Warn(doing, "error", err)
		h.registry.Events().PushEvent("warn", "protocol_error", sess.Agency(), sess.ID, err.Error())
		return "protocol_error"
	case errors.Is(err, protocol.ErrMalformedBatch), errors.Is(err, lottery.ErrInvalidRecord):
		// Evento batch_rejected já foi emitido por handleBatch
		logger.Warn(doing, "error", err)
		return "parse_error"
	case errors.Is(err, io.ErrUnexpectedEOF):
		logger.Warn(doing, "error", err)
		return "io_error"
	default:
		logger.Error(doing, "error", err)
		return "io_error"
	}
}

// StartStatsReporter imprime métricas do servidor a cada stats.interval:
// conexões ativas, taxa de apostas, progresso das notificações e métricas
// de máquina do monitor. Bloqueia até o context ser cancelado.
func (h *Handler) StartStatsReporter(ctx context.Context, monitor *SystemMonitor) {
	interval := h.cfg.Stats.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Swap-and-reset: lê o acumulado e zera
			trafficIn := h.TrafficIn.Swap(0)
			bets := h.BetsStored.Swap(0)
			conns := h.ActiveConns.Load()

			secs := interval.Seconds()
			args := []any{
				"conns", conns,
				"bets_total", h.store.Count(),
				"bets_per_s", fmt.Sprintf("%.1f", float64(bets)/secs),
				"traffic_in_KBps", fmt.Sprintf("%.2f", float64(trafficIn)/secs/1024),
				"agencies_done", h.notifications.Done(),
				"required", h.notifications.Required(),
			}
			if monitor != nil {
				s := monitor.Stats()
				args = append(args,
					"cpu_percent", fmt.Sprintf("%.1f", s.CPUPercent),
					"mem_percent", fmt.Sprintf("%.1f", s.MemoryPercent),
					"load_avg", fmt.Sprintf("%.2f", s.LoadAverage),
				)
			}
			h.logger.Info("server stats", args...)
		}
	}
}
