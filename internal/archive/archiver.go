// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package archive implementa o arquivamento pós-sorteio do ledger de apostas:
// snapshot consistente → compressão (gzip|zstd) → sidecar sha256 → rotação →
// upload S3 opcional.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/nishisan-dev/n-lottery/internal/config"
	"github.com/nishisan-dev/n-lottery/internal/lottery"
)

// Result contém o desfecho de uma execução de arquivamento.
type Result struct {
	Path              string
	UncompressedBytes int64
	CompressedBytes   int64
	SHA256            string
	Duration          time.Duration
	Uploaded          bool
}

// Uploader envia um artefato local para um destino remoto sob a chave key.
// A implementação de produção é o S3Uploader; testes usam fakes.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// Archiver produz archives comprimidos do ledger. O snapshot passa pelo lock
// do store, então o archive é sempre uma visão consistente das apostas já
// confirmadas.
type Archiver struct {
	cfg      config.ArchiveConfig
	store    *lottery.FileStore
	logger   *slog.Logger
	uploader Uploader
}

// New cria o Archiver, garantindo o diretório de destino. uploader pode ser
// nil: o upload é opcional e falha de upload nunca invalida o artefato local.
func New(cfg config.ArchiveConfig, store *lottery.FileStore, logger *slog.Logger, uploader Uploader) (*Archiver, error) {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &Archiver{
		cfg:      cfg,
		store:    store,
		logger:   logger.With("component", "archiver"),
		uploader: uploader,
	}, nil
}

// Archive executa uma rodada completa de arquivamento. Com o ledger ainda
// vazio a rodada é pulada sem produzir artefato. O arquivo final só aparece
// no diretório depois de completo (escrita em .tmp → rename).
func (a *Archiver) Archive(ctx context.Context) (*Result, error) {
	start := time.Now()

	f, err := os.CreateTemp(a.cfg.Directory, "ledger-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := f.Name()

	// SHA-256 calculado inline sobre o stream COMPRIMIDO: o sidecar valida o
	// artefato como ele está em disco, sem precisar descomprimir.
	hasher := sha256.New()
	counter := &countWriter{w: io.MultiWriter(f, hasher)}

	compressor, err := newCompressor(counter, a.cfg.Compression)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	rawBytes, err := a.store.SnapshotTo(compressor)
	if err != nil {
		compressor.Close()
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("snapshotting ledger: %w", err)
	}

	if rawBytes == 0 {
		compressor.Close()
		f.Close()
		os.Remove(tmpPath)
		a.logger.Info("archive skipped, ledger is empty")
		return nil, nil
	}

	if err := compressor.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing compressor: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing temp archive: %w", err)
	}

	name := "ledger-" + start.UTC().Format("2006-01-02T15-04-05") + a.cfg.FileExtension()
	finalPath := filepath.Join(a.cfg.Directory, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("renaming temp to final: %w", err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	sidecar := finalPath + ".sha256"
	if err := os.WriteFile(sidecar, []byte(digest+"  "+name+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("writing checksum sidecar: %w", err)
	}

	if err := rotate(a.cfg.Directory, a.cfg.FileExtension(), a.cfg.Retain); err != nil {
		return nil, fmt.Errorf("rotating archives: %w", err)
	}

	result := &Result{
		Path:              finalPath,
		UncompressedBytes: rawBytes,
		CompressedBytes:   int64(counter.n),
		SHA256:            digest,
		Duration:          time.Since(start),
	}

	if a.uploader != nil {
		if err := a.upload(ctx, finalPath, sidecar, name); err != nil {
			// Upload é best-effort: o artefato local permanece válido
			a.logger.Error("archive upload failed", "archive", name, "error", err)
		} else {
			result.Uploaded = true
		}
	}

	a.logger.Info("archive complete",
		"archive", name,
		"raw_bytes", result.UncompressedBytes,
		"compressed_bytes", result.CompressedBytes,
		"sha256", digest,
		"duration", result.Duration.Round(time.Millisecond).String(),
		"uploaded", result.Uploaded,
	)
	return result, nil
}

// upload envia o archive e o sidecar na mesma rodada.
func (a *Archiver) upload(ctx context.Context, archivePath, sidecarPath, name string) error {
	if err := a.uploader.Upload(ctx, archivePath, name); err != nil {
		return fmt.Errorf("uploading archive: %w", err)
	}
	if err := a.uploader.Upload(ctx, sidecarPath, name+".sha256"); err != nil {
		return fmt.Errorf("uploading sidecar: %w", err)
	}
	return nil
}

// newCompressor cria o io.WriteCloser de compressão conforme o modo da config.
func newCompressor(w io.Writer, mode string) (io.WriteCloser, error) {
	switch mode {
	case "zst":
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default: // gzip
		gzWriter, err := pgzip.NewWriterLevel(w, pgzip.BestSpeed)
		if err != nil {
			return nil, fmt.Errorf("creating gzip writer: %w", err)
		}
		if err := gzWriter.SetConcurrency(1<<20, runtime.GOMAXPROCS(0)); err != nil {
			return nil, fmt.Errorf("configuring gzip concurrency: %w", err)
		}
		return gzWriter, nil
	}
}

// rotate remove archives excedentes, mantendo os retain mais recentes.
// O nome carrega o timestamp UTC, então ordem lexicográfica = ordem cronológica.
// Sidecars .sha256 acompanham o archive correspondente.
func rotate(dir, ext string, retain int) error {
	if retain <= 0 {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading archive directory: %w", err)
	}

	var archives []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			archives = append(archives, e.Name())
		}
	}
	sort.Strings(archives)

	if len(archives) <= retain {
		return nil
	}
	for _, name := range archives[:len(archives)-retain] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("removing old archive %s: %w", name, err)
		}
		if err := os.Remove(filepath.Join(dir, name+".sha256")); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing old sidecar %s: %w", name, err)
		}
	}
	return nil
}

// countWriter conta os bytes comprimidos escritos no destino.
type countWriter struct {
	w io.Writer
	n uint64
}

func (cw *countWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}
