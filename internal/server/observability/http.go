// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package observability

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"
)

// startTime registra quando o processo iniciou (para cálculo de uptime).
var startTime = time.Now()

// Version é preenchida via ldflags no build (-X ...Version=x.y.z).
var Version = "dev"

// StatusSource define a interface read-only que o router precisa do servidor.
// Isso desacopla o pacote observability do server sem expor o Server inteiro.
type StatusSource interface {
	StatusSnapshot() StatusData
}

// StatusData contém o estado do sorteio coletado do servidor.
type StatusData struct {
	BetsStored       int64
	ActiveSessions   int
	AgenciesDone     int
	RequiredAgencies int
	DrawComplete     bool
	Stats            *RuntimeStats
}

// NewRouter cria o http.Handler para a API de observabilidade.
// Aplica middleware ACL em todas as rotas.
func NewRouter(status StatusSource, reg *Registry, acl *ACL) http.Handler {
	mux := http.NewServeMux()

	// API v1
	mux.HandleFunc("GET /api/v1/status", makeStatusHandler(status))
	mux.HandleFunc("GET /api/v1/events", makeEventsHandler(reg))
	mux.HandleFunc("GET /api/v1/sessions", makeSessionsHandler(reg))
	mux.HandleFunc("GET /api/v1/agencies", makeAgenciesHandler(reg))

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<!DOCTYPE html><html><head><title>NLottery Observability</title></head><body><h1>NLottery Server</h1><p>API em /api/v1/status.</p></body></html>`))
	})

	return acl.Middleware(mux)
}

// makeStatusHandler retorna status do processo, uptime e progresso do sorteio.
func makeStatusHandler(status StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := status.StatusSnapshot()
		resp := StatusResponse{
			Status:           "ok",
			Uptime:           time.Since(startTime).String(),
			Version:          Version,
			Go:               runtime.Version(),
			BetsStored:       data.BetsStored,
			ActiveSessions:   data.ActiveSessions,
			AgenciesDone:     data.AgenciesDone,
			RequiredAgencies: data.RequiredAgencies,
			DrawComplete:     data.DrawComplete,
			Stats:            data.Stats,
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// makeEventsHandler serve os eventos recentes do ring. Aceita ?limit=N.
func makeEventsHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		writeJSON(w, http.StatusOK, reg.Events().Recent(limit))
	}
}

func makeSessionsHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.Sessions())
	}
}

func makeAgenciesHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.Agencies())
	}
}

// writeJSON serializa v como JSON e envia com status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
