// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package agency

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// ProgressReporter exibe o progresso da submissão no terminal: apostas
// enviadas, lotes confirmados, taxa e elapsed, em uma única linha atualizada
// via carriage return no stderr.
type ProgressReporter struct {
	name string

	// Contadores atômicos
	betsSent  atomic.Int64
	batchesOK atomic.Int64

	startTime time.Time
	done      chan struct{}
}

// NewProgressReporter cria um reporter e inicia o ticker de renderização.
func NewProgressReporter(agencyID int) *ProgressReporter {
	p := &ProgressReporter{
		name:      fmt.Sprintf("agency %d", agencyID),
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
	go p.renderLoop()
	return p
}

// AddBatch registra um lote confirmado pelo servidor com bets apostas.
func (p *ProgressReporter) AddBatch(bets int) {
	p.betsSent.Add(int64(bets))
	p.batchesOK.Add(1)
}

// Stop para o ticker e imprime a linha final.
func (p *ProgressReporter) Stop() {
	close(p.done)
	p.render(true)
}

// renderLoop atualiza o terminal a cada 500ms.
func (p *ProgressReporter) renderLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.render(false)
		}
	}
}

// render desenha a linha de progresso no stderr.
func (p *ProgressReporter) render(final bool) {
	bets := p.betsSent.Load()
	batches := p.batchesOK.Load()
	elapsed := time.Since(p.startTime)

	var rate float64
	if secs := elapsed.Seconds(); secs > 0.1 {
		rate = float64(bets) / secs
	}

	line := fmt.Sprintf("\r[%s] %s bets  │  %s bets/s  │  %s batches  │  %s",
		p.name,
		formatNumber(bets),
		formatNumber(int64(rate)),
		formatNumber(batches),
		formatDuration(elapsed),
	)

	// Pad com espaços para limpar restos de linha anterior
	if len(line) < 100 {
		line += strings.Repeat(" ", 100-len(line))
	}

	if final {
		fmt.Fprintf(os.Stderr, "%s\n", line)
	} else {
		fmt.Fprint(os.Stderr, line)
	}
}

// formatDuration formata duração como M:SS ou H:MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatNumber formata número com separador de milhar.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	// Insere separador a cada 3 dígitos da direita
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}
