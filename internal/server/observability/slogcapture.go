// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package observability

import (
	"context"
	"log/slog"
)

// slogCapture é um slog.Handler que espelha registros de log no EventRing.
// Combinado com logging.NewFanOutHandler, faz com que warnings e erros do
// log global apareçam em GET /api/v1/events sem instrumentação extra.
type slogCapture struct {
	ring  *EventRing
	min   slog.Level
	attrs []slog.Attr
}

// NewSlogCapture cria o handler de captura. Registros abaixo de min são ignorados.
func NewSlogCapture(ring *EventRing, min slog.Level) slog.Handler {
	return &slogCapture{ring: ring, min: min}
}

func (c *slogCapture) Enabled(_ context.Context, level slog.Level) bool {
	return level >= c.min
}

func (c *slogCapture) Handle(_ context.Context, r slog.Record) error {
	e := EventEntry{
		Level:   levelString(r.Level),
		Type:    "log",
		Message: r.Message,
	}
	for _, a := range c.attrs {
		applyAttr(&e, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		applyAttr(&e, a)
		return true
	})
	c.ring.Push(e)
	return nil
}

func (c *slogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(c.attrs)+len(attrs))
	merged = append(merged, c.attrs...)
	merged = append(merged, attrs...)
	return &slogCapture{ring: c.ring, min: c.min, attrs: merged}
}

// WithGroup achata grupos: o evento capturado só guarda agency e session.
func (c *slogCapture) WithGroup(string) slog.Handler { return c }

// applyAttr extrai os campos estruturados que o EventEntry conhece.
func applyAttr(e *EventEntry, a slog.Attr) {
	switch a.Key {
	case "agency":
		if a.Value.Kind() == slog.KindInt64 {
			e.Agency = int(a.Value.Int64())
		}
	case "session":
		if a.Value.Kind() == slog.KindUint64 {
			e.Session = a.Value.Uint64()
		} else if a.Value.Kind() == slog.KindInt64 {
			e.Session = uint64(a.Value.Int64())
		}
	}
}

func levelString(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	default:
		return "info"
	}
}
