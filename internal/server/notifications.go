// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package server

import (
	"sort"
	"sync"
)

// NotificationSet rastreia quais agências já sinalizaram END. O sorteio só
// acontece depois que todas as agências requeridas notificaram; até lá,
// consultas de ganhadores são recusadas.
type NotificationSet struct {
	mu       sync.Mutex
	done     map[int]struct{}
	required int
}

// NewNotificationSet cria o conjunto para required agências.
func NewNotificationSet(required int) *NotificationSet {
	return &NotificationSet{
		done:     make(map[int]struct{}),
		required: required,
	}
}

// Mark registra o END de uma agência. ENDs repetidos da mesma agência não
// contam duas vezes. Retorna se a agência é nova no conjunto e o total de
// agências distintas após a marcação: quando o total atinge exatamente o
// requerido na chamada que inseriu, essa chamada observou o sorteio completar.
func (n *NotificationSet) Mark(agency int) (bool, int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.done[agency]; ok {
		return false, len(n.done)
	}
	n.done[agency] = struct{}{}
	return true, len(n.done)
}

// Done retorna quantas agências distintas já sinalizaram END.
func (n *NotificationSet) Done() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.done)
}

// Required retorna o número de agências necessário para liberar o sorteio.
func (n *NotificationSet) Required() int {
	return n.required
}

// AllReceived informa se o sorteio pode acontecer.
func (n *NotificationSet) AllReceived() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.done) >= n.required
}

// Agencies retorna as agências que já notificaram, em ordem crescente.
func (n *NotificationSet) Agencies() []int {
	n.mu.Lock()
	ids := make([]int, 0, len(n.done))
	for id := range n.done {
		ids = append(ids, id)
	}
	n.mu.Unlock()

	sort.Ints(ids)
	return ids
}
