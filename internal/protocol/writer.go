// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// WriteAll escreve buf por inteiro, repetindo a escrita enquanto o destino
// aceitar menos bytes do que o oferecido. io.Writer bem-comportados nunca
// retornam escrita parcial sem erro, mas sockets crus e mocks retornam.
func WriteAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// WriteAgencyID escreve o handshake (Client → Server).
// Formato: [Dígitos ASCII] ['\n' 1B]
func WriteAgencyID(w io.Writer, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: agency id must be positive", ErrInvalidHandshake)
	}
	if err := WriteAll(w, []byte(strconv.Itoa(id)+"\n")); err != nil {
		return fmt.Errorf("writing agency id: %w", err)
	}
	return nil
}

// WriteBatch escreve um frame BET completo (Client → Server).
// Formato: [Tipo 1B] [Len uint32 4B] [Payload Len B]
func WriteBatch(w io.Writer, payload []byte) error {
	header := make([]byte, 5) // 1B tipo + 4B comprimento
	header[0] = byte(MsgBet)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(payload)))
	if err := WriteAll(w, header); err != nil {
		return fmt.Errorf("writing batch header: %w", err)
	}
	if err := WriteAll(w, payload); err != nil {
		return fmt.Errorf("writing batch payload: %w", err)
	}
	return nil
}

// AppendRecord anexa um registro com prefixo de comprimento de 1 byte ao
// payload de um lote em construção.
func AppendRecord(payload []byte, record string) ([]byte, error) {
	if len(record) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrMalformedBatch)
	}
	if len(record) > MaxRecordBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLong, len(record))
	}
	payload = append(payload, byte(len(record)))
	payload = append(payload, record...)
	return payload, nil
}

// WriteEnd escreve um frame END: enviado pelo client ao terminar a submissão
// e pelo servidor ao terminar a lista de ganhadores.
// Formato: [Tipo 1B]
func WriteEnd(w io.Writer) error {
	if err := WriteAll(w, []byte{byte(MsgEnd)}); err != nil {
		return fmt.Errorf("writing end frame: %w", err)
	}
	return nil
}

// WriteWinnersRequest escreve um frame WINNERS (Client → Server).
// Formato: [Tipo 1B]
func WriteWinnersRequest(w io.Writer) error {
	if err := WriteAll(w, []byte{byte(MsgWinners)}); err != nil {
		return fmt.Errorf("writing winners request: %w", err)
	}
	return nil
}

// WriteConfirmation escreve os dois bytes ASCII "OK" (Server → Client).
// A confirmação não leva tipo nem tamanho; o client a reconhece por posição.
func WriteConfirmation(w io.Writer) error {
	if err := WriteAll(w, Confirmation[:]); err != nil {
		return fmt.Errorf("writing confirmation: %w", err)
	}
	return nil
}

// WriteWinner escreve um frame WINNER (Server → Client).
// Formato: [Tipo 1B] [Len uint8 1B] [Registro UTF-8 Len B]
func WriteWinner(w io.Writer, record string) error {
	if len(record) == 0 {
		return fmt.Errorf("%w: empty record", ErrMalformedBatch)
	}
	if len(record) > MaxRecordBytes {
		return fmt.Errorf("%w: %d bytes", ErrRecordTooLong, len(record))
	}
	buf := make([]byte, 0, 2+len(record))
	buf = append(buf, byte(MsgWinner), byte(len(record)))
	buf = append(buf, record...)
	if err := WriteAll(w, buf); err != nil {
		return fmt.Errorf("writing winner frame: %w", err)
	}
	return nil
}
