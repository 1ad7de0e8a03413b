// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package agency

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/nishisan-dev/n-lottery/internal/config"
	"github.com/nishisan-dev/n-lottery/internal/lottery"
	"github.com/nishisan-dev/n-lottery/internal/protocol"
)

// ErrWinnersUnavailable indica que todas as tentativas de consulta se
// esgotaram sem o sorteio completar no servidor.
var ErrWinnersUnavailable = errors.New("agency: winners unavailable after all attempts")

// Client executa uma rodada completa da agência: fase de submissão (lotes BET
// + END) seguida da fase de consulta de ganhadores com retry.
type Client struct {
	cfg    *config.AgencyConfig
	logger *slog.Logger
}

// NewClient cria o client da agência.
func NewClient(cfg *config.AgencyConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With("agency", cfg.Agency.ID),
	}
}

// Run envia todas as apostas do dataset e depois consulta os ganhadores.
// Retorna as apostas premiadas desta agência.
func (c *Client) Run(ctx context.Context, showProgress bool) ([]lottery.Bet, error) {
	sent, err := c.Submit(ctx, showProgress)
	if err != nil {
		return nil, err
	}
	c.logger.Info("submission complete", "bets", sent)

	winners, err := c.QueryWinners(ctx)
	if err != nil {
		return nil, err
	}
	return winners, nil
}

// Submit conecta ao servidor, envia o dataset inteiro em lotes BET — cada um
// confirmado com OK antes do próximo — e sinaliza END. Retorna o total de
// apostas confirmadas. Qualquer lote não confirmado aborta a rodada: o
// servidor não manda NACK, só fecha a conexão.
func (c *Client) Submit(ctx context.Context, showProgress bool) (int, error) {
	dataset, err := OpenDataset(c.cfg.Agency.DataFile, c.cfg.Agency.ID)
	if err != nil {
		return 0, err
	}
	defer dataset.Close()

	conn, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	c.logger.Info("connected to server", "address", c.cfg.Server.Address)

	// O pacing só atua na escrita; confirmações são lidas direto da conn
	w := NewPacedWriter(ctx, conn, c.cfg.Pacing.RateLimitRaw)

	if err := protocol.WriteAgencyID(w, c.cfg.Agency.ID); err != nil {
		return 0, fmt.Errorf("handshake: %w", err)
	}

	var progress *ProgressReporter
	if showProgress {
		progress = NewProgressReporter(c.cfg.Agency.ID)
		defer progress.Stop()
	}

	var (
		payload []byte
		pending int
		total   int
	)

	flush := func() error {
		if pending == 0 {
			return nil
		}
		if err := protocol.WriteBatch(w, payload); err != nil {
			return fmt.Errorf("sending batch: %w", err)
		}
		if err := protocol.ReadConfirmation(conn); err != nil {
			return fmt.Errorf("awaiting confirmation: %w", err)
		}
		total += pending
		if progress != nil {
			progress.AddBatch(pending)
		}
		c.logger.Debug("batch confirmed", "bets", pending, "bytes", len(payload))
		payload = payload[:0]
		pending = 0
		return nil
	}

	for {
		bet, err := dataset.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return total, err
		}

		record := bet.BatchRecord()
		// Fecha o lote atual quando atingir o limite de registros ou quando o
		// próximo registro estouraria o limite de bytes do payload
		if pending > 0 &&
			(pending == c.cfg.Batch.MaxRecords ||
				int64(len(payload)+1+len(record)) > c.cfg.Batch.MaxSizeRaw) {
			if err := flush(); err != nil {
				return total, err
			}
		}

		payload, err = protocol.AppendRecord(payload, record)
		if err != nil {
			return total, fmt.Errorf("encoding bet: %w", err)
		}
		pending++
	}

	if err := flush(); err != nil {
		return total, err
	}

	if err := protocol.WriteEnd(w); err != nil {
		return total, fmt.Errorf("signaling end: %w", err)
	}
	return total, nil
}

// QueryWinners consulta os ganhadores da agência. Enquanto o sorteio não
// completa, o servidor fecha a conexão sem resposta; cada tentativa espera um
// backoff exponencial (initial_delay * 2^n, limitado a max_delay) antes de
// reconectar. Esgotadas as tentativas, retorna ErrWinnersUnavailable.
func (c *Client) QueryWinners(ctx context.Context) ([]lottery.Bet, error) {
	for attempt := 0; attempt < c.cfg.Winners.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt)
			c.logger.Info("draw pending, retrying winners query", "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		winners, err := c.queryOnce(ctx)
		if err == nil {
			c.logger.Info("winners received", "count", len(winners))
			return winners, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Conexão fechada sem frame nenhum = barreira ainda não satisfeita
		c.logger.Debug("winners query attempt failed", "attempt", attempt, "error", err)
	}
	return nil, ErrWinnersUnavailable
}

// retryDelay calcula o backoff da tentativa: initial_delay dobrando a cada
// retry e estacionando em max_delay. Dobrar em loop (em vez de shift) evita
// overflow do time.Duration com max_attempts grandes.
func (c *Client) retryDelay(attempt int) time.Duration {
	delay := c.cfg.Winners.InitialDelay
	for i := 1; i < attempt; i++ {
		if delay >= c.cfg.Winners.MaxDelay {
			return c.cfg.Winners.MaxDelay
		}
		delay *= 2
	}
	if delay > c.cfg.Winners.MaxDelay {
		delay = c.cfg.Winners.MaxDelay
	}
	return delay
}

// queryOnce abre uma sessão nova, pede WINNERS e lê a resposta até o END.
func (c *Client) queryOnce(ctx context.Context) ([]lottery.Bet, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := protocol.WriteAgencyID(conn, c.cfg.Agency.ID); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if err := protocol.WriteWinnersRequest(conn); err != nil {
		return nil, fmt.Errorf("requesting winners: %w", err)
	}

	winners := []lottery.Bet{}
	for {
		msgType, err := protocol.ReadMessageType(conn)
		if err != nil {
			return nil, fmt.Errorf("reading winners response: %w", err)
		}

		switch msgType {
		case protocol.MsgWinner:
			record, err := protocol.ReadWinnerRecord(conn)
			if err != nil {
				return nil, fmt.Errorf("reading winner record: %w", err)
			}
			bet, err := lottery.ParseBet(record)
			if err != nil {
				return nil, fmt.Errorf("parsing winner record: %w", err)
			}
			winners = append(winners, bet)
		case protocol.MsgEnd:
			return winners, nil
		default:
			return nil, fmt.Errorf("%w: unexpected %s frame in winners response",
				protocol.ErrInvalidMessageType, msgType)
		}
	}
}

// dial conecta ao servidor respeitando o contexto. Um cancelamento durante a
// sessão fecha a conexão, derrubando qualquer Read/Write em andamento.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Server.Address)
	if err != nil {
		return nil, fmt.Errorf("connecting to server: %w", err)
	}
	context.AfterFunc(ctx, func() { conn.Close() })
	return conn, nil
}
