// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ReadAgencyID lê o handshake: dígitos ASCII do id da agência terminados por
// '\n'. A leitura é byte a byte para não consumir dados do frame seguinte.
// Formato: [Dígitos ASCII 1..10B] ['\n' 1B]
func ReadAgencyID(r io.Reader) (int, error) {
	digits := make([]byte, 0, maxAgencyIDDigits)
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return 0, fmt.Errorf("reading agency id: %w", err)
		}
		if b[0] == '\n' {
			break
		}
		if b[0] < '0' || b[0] > '9' {
			return 0, fmt.Errorf("%w: non-digit byte 0x%02x", ErrInvalidHandshake, b[0])
		}
		if len(digits) == maxAgencyIDDigits {
			return 0, fmt.Errorf("%w: agency id longer than %d digits", ErrInvalidHandshake, maxAgencyIDDigits)
		}
		digits = append(digits, b[0])
	}
	if len(digits) == 0 {
		return 0, fmt.Errorf("%w: empty agency id", ErrInvalidHandshake)
	}
	id, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: agency id must be positive", ErrInvalidHandshake)
	}
	return id, nil
}

// ReadMessageType lê o byte de tipo do próximo frame e o valida contra os
// quatro tipos conhecidos. Um io.EOF limpo (peer fechou entre frames) é
// devolvido sem wrap, para o caller distinguir desconexão normal de frame
// truncado.
func ReadMessageType(r io.Reader) (MsgType, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("reading message type: %w", err)
	}
	t := MsgType(b[0])
	switch t {
	case MsgBet, MsgEnd, MsgWinners, MsgWinner:
		return t, nil
	}
	return 0, fmt.Errorf("%w: 0x%02x", ErrInvalidMessageType, b[0])
}

// ReadBatch lê o corpo de um frame BET, após o byte de tipo já ter sido lido.
// Um comprimento declarado acima de maxLen encerra a leitura com ErrBatchTooLarge.
// Formato: [Len uint32 4B] [Payload Len B]
func ReadBatch(r io.Reader, maxLen uint32) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading batch length: %w", err)
	}
	batchLen := binary.BigEndian.Uint32(lenBuf[:])
	if batchLen > maxLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, batchLen, maxLen)
	}
	payload := make([]byte, batchLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading batch payload: %w", err)
	}
	return payload, nil
}

// SplitRecords separa o payload de um lote em registros individuais.
// Cada registro é [Len uint8 1B] [Texto UTF-8 Len B], empacotados um atrás do
// outro; o payload deve ser consumido por inteiro, sem bytes sobrando.
func SplitRecords(payload []byte) ([]string, error) {
	var records []string
	for i := 0; i < len(payload); {
		recLen := int(payload[i])
		if recLen == 0 {
			return nil, fmt.Errorf("%w: zero-length record at offset %d", ErrMalformedBatch, i)
		}
		i++
		if i+recLen > len(payload) {
			return nil, fmt.Errorf("%w: record of %d bytes overruns payload at offset %d",
				ErrMalformedBatch, recLen, i-1)
		}
		records = append(records, string(payload[i:i+recLen]))
		i += recLen
	}
	return records, nil
}

// ReadConfirmation lê e valida os dois bytes de confirmação (Server → Client).
func ReadConfirmation(r io.Reader) error {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("reading confirmation: %w", err)
	}
	if buf != Confirmation {
		return fmt.Errorf("%w: %q", ErrConfirmationMismatch, buf[:])
	}
	return nil
}

// ReadWinnerRecord lê o corpo de um frame WINNER, após o byte de tipo já ter
// sido lido pelo client.
// Formato: [Len uint8 1B] [Registro UTF-8 Len B]
func ReadWinnerRecord(r io.Reader) (string, error) {
	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("reading winner record length: %w", err)
	}
	buf := make([]byte, int(lenBuf[0]))
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("reading winner record: %w", err)
	}
	return string(buf), nil
}
