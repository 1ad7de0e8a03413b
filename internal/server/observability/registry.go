// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package observability

import (
	"net"
	"sort"
	"sync"
	"time"
)

// Estados de uma sessão ativa, como expostos em GET /api/v1/sessions.
const (
	StateHandshake      = "handshake"
	StateReceiving      = "receiving"
	StateServingWinners = "serving_winners"
)

// Session é o registro vivo de uma conexão de agência. O handler atualiza a
// sessão conforme processa frames; o Registry fecha a conexão no shutdown.
type Session struct {
	ID uint64

	reg  *Registry
	conn net.Conn

	mu           sync.Mutex
	agency       int
	state        string
	startedAt    time.Time
	lastActivity time.Time
	batches      int64
	bets         int64
}

// SetAgency registra a agência autenticada pelo handshake.
func (s *Session) SetAgency(agency int) {
	s.mu.Lock()
	s.agency = agency
	s.state = StateReceiving
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.reg.noteSession(agency)
}

// SetState troca o estado exposto pela API.
func (s *Session) SetState(state string) {
	s.mu.Lock()
	s.state = state
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// NoteBatch contabiliza um lote aceito e armazenado.
func (s *Session) NoteBatch(bets int) {
	s.mu.Lock()
	s.batches++
	s.bets += int64(bets)
	agency := s.agency
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.reg.noteBatch(agency, bets)
}

// NoteRejected contabiliza um lote recusado (parse ou protocolo).
func (s *Session) NoteRejected() {
	s.mu.Lock()
	agency := s.agency
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.reg.noteRejected(agency)
}

// Agency retorna a agência da sessão (0 antes do handshake).
func (s *Session) Agency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agency
}

func (s *Session) summary() SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSummary{
		SessionID:    s.ID,
		Agency:       s.agency,
		RemoteAddr:   s.conn.RemoteAddr().String(),
		State:        s.state,
		StartedAt:    s.startedAt.Format(time.RFC3339),
		LastActivity: s.lastActivity.Format(time.RFC3339),
		Batches:      s.batches,
		Bets:         s.bets,
	}
}

// agencyTally acumula os números de uma agência entre sessões.
type agencyTally struct {
	sessions      int64
	batchesStored int64
	betsStored    int64
	rejected      int64
	endReceived   bool
	endAt         time.Time
	winnersServed int64
	lastSeen      time.Time
}

// Registry acompanha as sessões ativas e os agregados por agência.
// Tem papel duplo: alimenta a API de observabilidade e oferece CloseAll()
// para o shutdown derrubar todas as conexões de uma vez.
type Registry struct {
	mu       sync.RWMutex
	nextID   uint64
	sessions map[uint64]*Session
	tallies  map[int]*agencyTally
	history  *historyRing
	events   *EventRing
}

// NewRegistry cria o registry com o ring de eventos de capacidade eventCap.
func NewRegistry(eventCap int) *Registry {
	return &Registry{
		sessions: make(map[uint64]*Session),
		tallies:  make(map[int]*agencyTally),
		history:  newHistoryRing(100),
		events:   NewEventRing(eventCap),
	}
}

// Events expõe o ring de eventos para handlers e para a API.
func (g *Registry) Events() *EventRing { return g.events }

// Register cria a sessão para uma conexão aceita.
func (g *Registry) Register(conn net.Conn) *Session {
	now := time.Now()

	g.mu.Lock()
	g.nextID++
	s := &Session{
		ID:           g.nextID,
		reg:          g,
		conn:         conn,
		state:        StateHandshake,
		startedAt:    now,
		lastActivity: now,
	}
	g.sessions[s.ID] = s
	g.mu.Unlock()

	g.events.PushEvent("info", "session_open", 0, s.ID, "connection from "+conn.RemoteAddr().String())
	return s
}

// Unregister remove a sessão e grava o desfecho no histórico.
func (g *Registry) Unregister(s *Session, outcome string) {
	s.mu.Lock()
	entry := SessionHistoryEntry{
		SessionID:  s.ID,
		Agency:     s.agency,
		RemoteAddr: s.conn.RemoteAddr().String(),
		StartedAt:  s.startedAt.Format(time.RFC3339),
		EndedAt:    time.Now().Format(time.RFC3339),
		Batches:    s.batches,
		Bets:       s.bets,
		Outcome:    outcome,
	}
	s.mu.Unlock()

	g.mu.Lock()
	delete(g.sessions, s.ID)
	g.mu.Unlock()

	g.history.Push(entry)
}

// Active retorna o número de sessões ativas.
func (g *Registry) Active() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// CloseAll fecha as conexões de todas as sessões ativas. Usado no shutdown:
// fechar o socket desbloqueia as goroutines paradas em Read/Write.
// Retorna quantas conexões foram fechadas.
func (g *Registry) CloseAll() int {
	g.mu.RLock()
	conns := make([]net.Conn, 0, len(g.sessions))
	for _, s := range g.sessions {
		conns = append(conns, s.conn)
	}
	g.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
	return len(conns)
}

// NoteEnd registra que a agência sinalizou o fim das apostas.
func (g *Registry) NoteEnd(agency int) {
	now := time.Now()
	g.mu.Lock()
	t := g.tally(agency)
	t.endReceived = true
	t.endAt = now
	t.lastSeen = now
	g.mu.Unlock()
}

// NoteWinners registra uma consulta de ganhadores atendida.
func (g *Registry) NoteWinners(agency int) {
	now := time.Now()
	g.mu.Lock()
	t := g.tally(agency)
	t.winnersServed++
	t.lastSeen = now
	g.mu.Unlock()
}

func (g *Registry) noteSession(agency int) {
	now := time.Now()
	g.mu.Lock()
	t := g.tally(agency)
	t.sessions++
	t.lastSeen = now
	g.mu.Unlock()
}

func (g *Registry) noteBatch(agency, bets int) {
	now := time.Now()
	g.mu.Lock()
	t := g.tally(agency)
	t.batchesStored++
	t.betsStored += int64(bets)
	t.lastSeen = now
	g.mu.Unlock()
}

func (g *Registry) noteRejected(agency int) {
	now := time.Now()
	g.mu.Lock()
	t := g.tally(agency)
	t.rejected++
	t.lastSeen = now
	g.mu.Unlock()
}

// tally retorna (criando se preciso) o acumulador da agência. Chamar com g.mu held.
func (g *Registry) tally(agency int) *agencyTally {
	t, ok := g.tallies[agency]
	if !ok {
		t = &agencyTally{}
		g.tallies[agency] = t
	}
	return t
}

// Sessions monta a resposta de GET /api/v1/sessions.
func (g *Registry) Sessions() SessionsResponse {
	g.mu.RLock()
	active := make([]SessionSummary, 0, len(g.sessions))
	for _, s := range g.sessions {
		active = append(active, s.summary())
	}
	g.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool { return active[i].SessionID < active[j].SessionID })

	return SessionsResponse{
		Active: active,
		Recent: g.history.Recent(0),
	}
}

// Agencies monta a resposta de GET /api/v1/agencies, ordenada por agência.
func (g *Registry) Agencies() []AgencySummary {
	g.mu.RLock()
	out := make([]AgencySummary, 0, len(g.tallies))
	for agency, t := range g.tallies {
		entry := AgencySummary{
			Agency:          agency,
			Sessions:        t.sessions,
			BatchesStored:   t.batchesStored,
			BetsStored:      t.betsStored,
			RejectedBatches: t.rejected,
			EndReceived:     t.endReceived,
			WinnersServed:   t.winnersServed,
			LastSeen:        t.lastSeen.Format(time.RFC3339),
		}
		if t.endReceived {
			entry.EndAt = t.endAt.Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Agency < out[j].Agency })
	return out
}

// historyRing é um ring buffer thread-safe para sessões finalizadas.
type historyRing struct {
	mu  sync.RWMutex
	buf []SessionHistoryEntry
	pos int
	cap int
	len int
}

func newHistoryRing(capacity int) *historyRing {
	if capacity <= 0 {
		capacity = 100
	}
	return &historyRing{
		buf: make([]SessionHistoryEntry, capacity),
		cap: capacity,
	}
}

func (r *historyRing) Push(e SessionHistoryEntry) {
	r.mu.Lock()
	r.buf[r.pos] = e
	r.pos = (r.pos + 1) % r.cap
	if r.len < r.cap {
		r.len++
	}
	r.mu.Unlock()
}

// Recent retorna as últimas N entradas em ordem cronológica (mais antigo primeiro).
func (r *historyRing) Recent(limit int) []SessionHistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.len
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return []SessionHistoryEntry{}
	}

	result := make([]SessionHistoryEntry, n)
	start := (r.pos - n + r.cap) % r.cap
	for i := 0; i < n; i++ {
		result[i] = r.buf[(start+i)%r.cap]
	}
	return result
}
