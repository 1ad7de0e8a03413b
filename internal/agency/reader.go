// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package agency implementa o client de agência (nlottery-agency): lê o
// dataset de apostas, envia lotes BET ao servidor central, sinaliza END e
// consulta os ganhadores com retry até o sorteio completar.
package agency

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nishisan-dev/n-lottery/internal/lottery"
)

// DatasetReader percorre o arquivo CSV de apostas de uma agência, uma aposta
// por linha: <first>,<last>,<document>,<birthdate>,<number>. Linhas em branco
// são puladas; terminadores \r\n são aceitos. A agência não viaja no arquivo —
// toda aposta lida é marcada com o id da agência dona do dataset.
type DatasetReader struct {
	f        *os.File
	sc       *bufio.Scanner
	agencyID int
	line     int
}

// OpenDataset abre o arquivo de apostas da agência.
func OpenDataset(path string, agencyID int) (*DatasetReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	return &DatasetReader{
		f:        f,
		sc:       bufio.NewScanner(f),
		agencyID: agencyID,
	}, nil
}

// Next devolve a próxima aposta do dataset, ou io.EOF após a última linha.
// Uma linha malformada interrompe a leitura com o erro de parse: a agência não
// envia datasets parciais.
func (r *DatasetReader) Next() (lottery.Bet, error) {
	for r.sc.Scan() {
		r.line++
		line := strings.TrimSuffix(r.sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		bet, err := lottery.ParseCSV(r.agencyID, line)
		if err != nil {
			return lottery.Bet{}, fmt.Errorf("dataset line %d: %w", r.line, err)
		}
		return bet, nil
	}
	if err := r.sc.Err(); err != nil {
		return lottery.Bet{}, fmt.Errorf("reading dataset: %w", err)
	}
	return lottery.Bet{}, io.EOF
}

// Close fecha o arquivo do dataset.
func (r *DatasetReader) Close() error {
	return r.f.Close()
}
