// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config carrega e valida os arquivos YAML do nlottery-server e
// do nlottery-agency. Defaults são aplicados em validate(), nunca no uso.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AgencyConfig representa a configuração completa do nlottery-agency.
type AgencyConfig struct {
	Agency  AgencyInfo   `yaml:"agency"`
	Server  ServerAddr   `yaml:"server"`
	Batch   BatchInfo    `yaml:"batch"`
	Pacing  PacingInfo   `yaml:"pacing"`
	Winners WinnersRetry `yaml:"winners"`
	Logging LoggingInfo  `yaml:"logging"`
}

// AgencyInfo identifica a agência e a fonte de apostas.
type AgencyInfo struct {
	ID       int    `yaml:"id"`
	DataFile string `yaml:"data_file"`
}

// ServerAddr é o endereço TCP do servidor central.
type ServerAddr struct {
	Address string `yaml:"address"`
}

// BatchInfo controla o particionamento das apostas em lotes BET.
type BatchInfo struct {
	// MaxRecords limita quantas apostas vão em um lote. Default: 100.
	MaxRecords int `yaml:"max_records"`

	// MaxSize limita o payload serializado de um lote. O valor precisa
	// caber no limite do servidor. Formato: "8kb". Default: "8kb".
	MaxSize    string `yaml:"max_size"`
	MaxSizeRaw int64  `yaml:"-"`
}

// PacingInfo limita a banda de envio da agência.
type PacingInfo struct {
	// RateLimit é a banda máxima de escrita, ex: "512kb" (por segundo).
	// Vazio desabilita o pacing.
	RateLimit    string `yaml:"rate_limit"`
	RateLimitRaw int64  `yaml:"-"`
}

// WinnersRetry controla a repetição da consulta de ganhadores enquanto o
// sorteio ainda não aconteceu (o servidor fecha a conexão sem resposta).
type WinnersRetry struct {
	MaxAttempts  int           `yaml:"max_attempts"`  // default: 10
	InitialDelay time.Duration `yaml:"initial_delay"` // default: 500ms
	MaxDelay     time.Duration `yaml:"max_delay"`     // default: 8s
}

// LoggingInfo configura o logger estruturado de ambos os binários.
type LoggingInfo struct {
	Level  string `yaml:"level"`  // debug|info|warn|error (default: info)
	Format string `yaml:"format"` // json|text (default: json)
	File   string `yaml:"file"`   // vazio = stderr
}

// LoadAgencyConfig lê e valida o arquivo YAML de configuração da agência.
func LoadAgencyConfig(path string) (*AgencyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agency config: %w", err)
	}

	var cfg AgencyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing agency config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating agency config: %w", err)
	}

	return &cfg, nil
}

func (c *AgencyConfig) validate() error {
	if c.Agency.ID <= 0 {
		return fmt.Errorf("agency.id must be a positive integer, got %d", c.Agency.ID)
	}
	if c.Agency.DataFile == "" {
		return fmt.Errorf("agency.data_file is required")
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}

	if c.Batch.MaxRecords < 0 {
		return fmt.Errorf("batch.max_records must be >= 0, got %d", c.Batch.MaxRecords)
	}
	if c.Batch.MaxRecords == 0 {
		c.Batch.MaxRecords = 100
	}
	if c.Batch.MaxSize == "" {
		c.Batch.MaxSize = "8kb"
	}
	parsed, err := ParseByteSize(c.Batch.MaxSize)
	if err != nil {
		return fmt.Errorf("batch.max_size: %w", err)
	}
	if parsed < 256 {
		return fmt.Errorf("batch.max_size must fit at least one record, got %s", c.Batch.MaxSize)
	}
	c.Batch.MaxSizeRaw = parsed

	if c.Pacing.RateLimit != "" {
		parsed, err := ParseByteSize(c.Pacing.RateLimit)
		if err != nil {
			return fmt.Errorf("pacing.rate_limit: %w", err)
		}
		if parsed <= 0 {
			return fmt.Errorf("pacing.rate_limit must be positive, got %s", c.Pacing.RateLimit)
		}
		c.Pacing.RateLimitRaw = parsed
	}

	if c.Winners.MaxAttempts <= 0 {
		c.Winners.MaxAttempts = 10
	}
	if c.Winners.InitialDelay <= 0 {
		c.Winners.InitialDelay = 500 * time.Millisecond
	}
	if c.Winners.MaxDelay <= 0 {
		c.Winners.MaxDelay = 8 * time.Second
	}
	if c.Winners.MaxDelay < c.Winners.InitialDelay {
		return fmt.Errorf("winners.max_delay must be >= winners.initial_delay")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}

// ParseByteSize converte tamanhos human-readable ("8kb", "512b", "1gb")
// para bytes. Sufixos são case-insensitive; sem sufixo assume bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	multipliers := []struct {
		suffix string
		factor int64
	}{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			num := strings.TrimSpace(strings.TrimSuffix(s, m.suffix))
			value, err := strconv.ParseInt(num, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
			}
			if value < 0 {
				return 0, fmt.Errorf("byte size must be non-negative, got %q", s)
			}
			return value * m.factor, nil
		}
	}

	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("byte size must be non-negative, got %q", s)
	}
	return value, nil
}
