// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package lottery

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// FileStore persiste apostas em um único arquivo texto, uma linha por aposta,
// criado no primeiro Append. Um mutex serializa Append, Scan e SnapshotTo por
// inteiro: leitores da fase de ganhadores precisam observar o conjunto
// completo já confirmado, e nenhuma agência envia apostas e consulta
// ganhadores ao mesmo tempo, então a contenção é benigna.
type FileStore struct {
	path  string
	mu    sync.Mutex
	count atomic.Int64
}

// NewFileStore cria o store apontando para path. O diretório é criado se não
// existir; o arquivo em si só nasce no primeiro Append.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Path retorna o caminho do arquivo de ledger.
func (s *FileStore) Path() string {
	return s.path
}

// Count retorna o total de apostas anexadas nesta vida do processo.
func (s *FileStore) Count() int64 {
	return s.count.Load()
}

// Append anexa todas as apostas, na ordem dada, em uma única seção crítica.
// Ou todas as linhas são gravadas ou a sessão chamadora recebe o erro; apostas
// de chamadas concorrentes nunca se intercalam dentro de um mesmo Append.
func (s *FileStore) Append(bets []Bet) error {
	if len(bets) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, b := range bets {
		if _, err := w.WriteString(b.Record() + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("appending bet: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing ledger: %w", err)
	}

	s.count.Add(int64(len(bets)))
	return nil
}

// Scan visita toda aposta anexada até aqui, na ordem de gravação, chamando fn
// para cada uma. Um erro de fn interrompe a varredura e é propagado. Uma linha
// ilegível do ledger aborta a varredura com o erro de parse embrulhado.
func (s *FileStore) Scan(fn func(Bet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		bet, err := ParseBet(sc.Text())
		if err != nil {
			return fmt.Errorf("ledger line %d: %w", line, err)
		}
		if err := fn(bet); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}
	return nil
}

// SnapshotTo copia os bytes atuais do ledger para w sob o mesmo lock de
// serialização, produzindo uma visão consistente para o arquivador. Retorna o
// número de bytes copiados; zero sem erro quando o ledger ainda não existe.
func (s *FileStore) SnapshotTo(w io.Writer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("copying ledger: %w", err)
	}
	return n, nil
}
