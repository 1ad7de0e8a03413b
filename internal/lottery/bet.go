// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package lottery implementa o registro de aposta, o ledger persistente e o
// predicado do sorteio.
package lottery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// betFieldCount é o número de campos de um registro completo de aposta.
const betFieldCount = 6

// dateLayout é o formato ISO da data de nascimento.
const dateLayout = "2006-01-02"

// ErrInvalidRecord indica um registro de aposta estruturalmente inválido:
// número errado de campos, campo vazio, valor não numérico ou data ilegível.
var ErrInvalidRecord = errors.New("lottery: invalid bet record")

// Bet é uma aposta imutável de loteria.
type Bet struct {
	Agency    int    // id da agência que submeteu a aposta
	FirstName string
	LastName  string
	Document  string // documento de identidade, somente dígitos
	Birthdate string // data ISO YYYY-MM-DD, validada no parse
	Number    int    // número apostado
}

// Record serializa a aposta na forma completa de seis campos usada no ledger
// e no payload do frame WINNER.
// Formato: <agency>;<first>;<last>;<document>;<birthdate>;<number>
func (b Bet) Record() string {
	fields := [betFieldCount]string{
		strconv.Itoa(b.Agency),
		b.FirstName,
		b.LastName,
		b.Document,
		b.Birthdate,
		strconv.Itoa(b.Number),
	}
	return strings.Join(fields[:], ";")
}

// BatchRecord serializa a aposta na forma de cinco campos enviada dentro de um
// lote BET. A agência não viaja no registro: o servidor marca cada aposta com o
// id da sessão que a submeteu.
// Formato: <first>;<last>;<document>;<birthdate>;<number>
func (b Bet) BatchRecord() string {
	fields := [betFieldCount - 1]string{
		b.FirstName,
		b.LastName,
		b.Document,
		b.Birthdate,
		strconv.Itoa(b.Number),
	}
	return strings.Join(fields[:], ";")
}

// ParseBet interpreta um registro completo de seis campos separados por ';'.
func ParseBet(record string) (Bet, error) {
	fields := strings.Split(record, ";")
	if len(fields) != betFieldCount {
		return Bet{}, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidRecord, betFieldCount, len(fields))
	}
	for i, f := range fields {
		if f == "" {
			return Bet{}, fmt.Errorf("%w: empty field at position %d", ErrInvalidRecord, i)
		}
	}

	agency, err := strconv.Atoi(fields[0])
	if err != nil || agency <= 0 {
		return Bet{}, fmt.Errorf("%w: agency %q", ErrInvalidRecord, fields[0])
	}
	for _, r := range fields[3] {
		if r < '0' || r > '9' {
			return Bet{}, fmt.Errorf("%w: document %q", ErrInvalidRecord, fields[3])
		}
	}
	if _, err := time.Parse(dateLayout, fields[4]); err != nil {
		return Bet{}, fmt.Errorf("%w: birthdate %q", ErrInvalidRecord, fields[4])
	}
	number, err := strconv.Atoi(fields[5])
	if err != nil || number <= 0 {
		return Bet{}, fmt.Errorf("%w: number %q", ErrInvalidRecord, fields[5])
	}

	return Bet{
		Agency:    agency,
		FirstName: fields[1],
		LastName:  fields[2],
		Document:  fields[3],
		Birthdate: fields[4],
		Number:    number,
	}, nil
}

// ParseWireRecord interpreta um registro de cinco campos vindo de um lote,
// prefixando o id da agência da sessão. A agência da aposta resultante é
// SEMPRE a da sessão, nunca um valor carregado dentro do payload.
func ParseWireRecord(agencyID int, record string) (Bet, error) {
	return ParseBet(strconv.Itoa(agencyID) + ";" + record)
}

// ParseBatch interpreta todos os registros de um lote já separado. Qualquer
// registro malformado invalida o lote inteiro: nenhuma aposta é devolvida.
func ParseBatch(agencyID int, records []string) ([]Bet, error) {
	bets := make([]Bet, 0, len(records))
	for i, rec := range records {
		bet, err := ParseWireRecord(agencyID, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		bets = append(bets, bet)
	}
	return bets, nil
}

// ParseCSV interpreta uma linha do dataset de uma agência: cinco campos
// separados por vírgula, sem o campo de agência.
// Formato: <first>,<last>,<document>,<birthdate>,<number>
func ParseCSV(agencyID int, line string) (Bet, error) {
	fields := strings.Split(line, ",")
	if len(fields) != betFieldCount-1 {
		return Bet{}, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidRecord, betFieldCount-1, len(fields))
	}
	return ParseWireRecord(agencyID, strings.Join(fields, ";"))
}
