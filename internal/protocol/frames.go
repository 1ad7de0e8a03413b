// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package protocol implementa o protocolo binário de apostas entre agência e
// servidor sobre TCP. Todos os inteiros multi-byte são big-endian sem sinal.
package protocol

import "errors"

// MsgType identifica o tipo de um frame trocado após o handshake.
type MsgType byte

// Tipos de frame do protocolo.
const (
	MsgBet     MsgType = 0 // agência → servidor: lote de apostas
	MsgEnd     MsgType = 1 // bidirecional: fim de envio / fim da lista de ganhadores
	MsgWinners MsgType = 2 // agência → servidor: consulta de ganhadores
	MsgWinner  MsgType = 3 // servidor → agência: uma aposta ganhadora
)

// String retorna o nome do tipo para logs.
func (t MsgType) String() string {
	switch t {
	case MsgBet:
		return "BET"
	case MsgEnd:
		return "END"
	case MsgWinners:
		return "WINNERS"
	case MsgWinner:
		return "WINNER"
	}
	return "UNKNOWN"
}

// Confirmation é a resposta do servidor a um lote armazenado: os dois bytes
// ASCII "OK", sem prefixo de tipo nem de tamanho. O client a reconhece por
// posição no fluxo, imediatamente após enviar um frame BET.
var Confirmation = [2]byte{'O', 'K'}

// DefaultMaxBatchBytes é o limite default para o comprimento declarado de um
// lote. Um lote maior que o limite encerra a sessão com erro de protocolo.
const DefaultMaxBatchBytes = 8 * 1024

// MaxRecordBytes é o tamanho máximo de um registro dentro de um lote,
// imposto pelo prefixo de comprimento de 1 byte.
const MaxRecordBytes = 255

// maxAgencyIDDigits limita o handshake a ids de agência plausíveis.
const maxAgencyIDDigits = 10

// Erros do protocolo.
var (
	ErrInvalidMessageType   = errors.New("protocol: invalid message type")
	ErrBatchTooLarge        = errors.New("protocol: declared batch length exceeds limit")
	ErrInvalidHandshake     = errors.New("protocol: malformed agency handshake")
	ErrMalformedBatch       = errors.New("protocol: malformed batch payload")
	ErrRecordTooLong        = errors.New("protocol: record exceeds 255 bytes")
	ErrConfirmationMismatch = errors.New("protocol: unexpected confirmation bytes")
)
