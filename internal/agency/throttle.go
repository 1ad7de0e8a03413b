// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package agency

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurstSize é o burst máximo do rate limiter (64KB). Um lote BET nunca
// passa de 8KB, então o burst cobre vários lotes sem liberar rajadas longas.
const maxBurstSize = 64 * 1024

// PacedWriter é um io.Writer com rate limiting por token bucket. Limita a
// banda de envio da agência a bytesPerSec bytes/segundo.
type PacedWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// NewPacedWriter cria um PacedWriter com a taxa máxima em bytes/segundo.
// Se bytesPerSec <= 0, retorna o writer original sem pacing (bypass).
func NewPacedWriter(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}

	burst := int(bytesPerSec)
	if burst > maxBurstSize {
		burst = maxBurstSize
	}

	return &PacedWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

// Write implementa io.Writer com rate limiting.
// Divide escritas maiores que o burst em pedaços para consumir tokens gradualmente.
func (pw *PacedWriter) Write(p []byte) (int, error) {
	totalWritten := 0

	for len(p) > 0 {
		// Limita cada pedaço ao burst size para evitar reservas enormes
		chunk := len(p)
		if chunk > pw.limiter.Burst() {
			chunk = pw.limiter.Burst()
		}

		// Espera tokens disponíveis (bloqueia respeitando o rate)
		if err := pw.limiter.WaitN(pw.ctx, chunk); err != nil {
			return totalWritten, err
		}

		n, err := pw.w.Write(p[:chunk])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		p = p[n:]
	}

	return totalWritten, nil
}
