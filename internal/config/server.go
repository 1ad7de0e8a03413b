// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig representa a configuração completa do nlottery-server.
type ServerConfig struct {
	Server        ServerListen        `yaml:"server"`
	Lottery       LotteryInfo         `yaml:"lottery"`
	Observability ObservabilityConfig `yaml:"observability"`
	Stats         StatsConfig         `yaml:"stats"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Logging       LoggingInfo         `yaml:"logging"`
}

// ServerListen contém o endereço de escuta e os parâmetros de sessão.
type ServerListen struct {
	Listen string `yaml:"listen"`

	// ListenBacklog limita quantas sessões são atendidas simultaneamente.
	// O kernel gerencia a fila de accept; este valor segura as sessões
	// excedentes antes do handshake. Default: 32.
	ListenBacklog int `yaml:"listen_backlog"`

	// RequiredAgencies é o número de agências que precisam sinalizar END
	// antes de qualquer consulta de ganhadores ser atendida. Default: 5.
	RequiredAgencies int `yaml:"required_agencies"`

	// HandshakeTimeout é o deadline de leitura do handshake. Default: 10s.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// LotteryInfo contém os parâmetros do ledger de apostas.
type LotteryInfo struct {
	LedgerPath string `yaml:"ledger_path"`

	// MaxBatchSize limita o comprimento declarado de um lote BET.
	// Formato human-readable: "8kb", "64kb". Default: "8kb".
	MaxBatchSize    string `yaml:"max_batch_size"`
	MaxBatchSizeRaw int64  `yaml:"-"`
}

// ObservabilityConfig configura o listener HTTP da API de observabilidade.
type ObservabilityConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Listen       string        `yaml:"listen"`        // default: "127.0.0.1:9946"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 15s
	IdleTimeout  time.Duration `yaml:"idle_timeout"`  // default: 60s
	AllowOrigins []string      `yaml:"allow_origins"` // IP ou CIDR (deny-by-default)
	EventBuffer  int           `yaml:"event_buffer"`  // default: 256

	// ParsedCIDRs é preenchido em validate(); não vem do YAML.
	ParsedCIDRs []*net.IPNet `yaml:"-"`
}

// StatsConfig configura o relatório periódico de métricas no log.
type StatsConfig struct {
	Interval time.Duration `yaml:"interval"` // default: 60s
}

// ArchiveConfig configura o arquivamento agendado do ledger.
type ArchiveConfig struct {
	// Schedule é a cron expression do arquivamento; vazio desabilita.
	Schedule    string   `yaml:"schedule"`
	Directory   string   `yaml:"directory"`
	Compression string   `yaml:"compression"` // gzip|zst (default: gzip)
	Retain      int      `yaml:"retain"`      // default: 7
	S3          S3Config `yaml:"s3"`
}

// S3Config configura o upload opcional dos archives para um bucket S3.
type S3Config struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"` // vazio usa o endpoint default da AWS
	Region         string `yaml:"region"`   // default: "us-east-1"
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"` // default: "ledger"
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// FileExtension retorna a extensão dos archives deste modo de compressão.
func (a ArchiveConfig) FileExtension() string {
	switch a.Compression {
	case "zst":
		return ".csv.zst"
	default:
		return ".csv.gz"
	}
}

// LoadServerConfig lê e valida o arquivo YAML de configuração do server.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config: %w", err)
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	return &cfg, nil
}

func (c *ServerConfig) validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Server.ListenBacklog < 0 {
		return fmt.Errorf("server.listen_backlog must be >= 0, got %d", c.Server.ListenBacklog)
	}
	if c.Server.ListenBacklog == 0 {
		c.Server.ListenBacklog = 32
	}
	if c.Server.RequiredAgencies < 0 {
		return fmt.Errorf("server.required_agencies must be >= 0, got %d", c.Server.RequiredAgencies)
	}
	if c.Server.RequiredAgencies == 0 {
		c.Server.RequiredAgencies = 5
	}
	if c.Server.HandshakeTimeout <= 0 {
		c.Server.HandshakeTimeout = 10 * time.Second
	}

	if c.Lottery.LedgerPath == "" {
		return fmt.Errorf("lottery.ledger_path is required")
	}
	if c.Lottery.MaxBatchSize == "" {
		c.Lottery.MaxBatchSize = "8kb"
	}
	parsed, err := ParseByteSize(c.Lottery.MaxBatchSize)
	if err != nil {
		return fmt.Errorf("lottery.max_batch_size: %w", err)
	}
	if parsed < 256 {
		return fmt.Errorf("lottery.max_batch_size must fit at least one record, got %s", c.Lottery.MaxBatchSize)
	}
	c.Lottery.MaxBatchSizeRaw = parsed

	if c.Stats.Interval <= 0 {
		c.Stats.Interval = 60 * time.Second
	}

	// Archive defaults e validação
	if c.Archive.Schedule != "" || c.Archive.S3.Enabled {
		if c.Archive.Directory == "" {
			return fmt.Errorf("archive.directory is required when archiving is configured")
		}
	}
	if c.Archive.Compression == "" {
		c.Archive.Compression = "gzip"
	}
	c.Archive.Compression = strings.ToLower(strings.TrimSpace(c.Archive.Compression))
	if c.Archive.Compression != "gzip" && c.Archive.Compression != "zst" {
		return fmt.Errorf("archive.compression must be gzip or zst, got %q", c.Archive.Compression)
	}
	if c.Archive.Retain <= 0 {
		c.Archive.Retain = 7
	}
	if c.Archive.S3.Enabled {
		if c.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required when s3 is enabled")
		}
		if c.Archive.S3.Region == "" {
			c.Archive.S3.Region = "us-east-1"
		}
		if c.Archive.S3.Prefix == "" {
			c.Archive.S3.Prefix = "ledger"
		}
		if (c.Archive.S3.AccessKey == "") != (c.Archive.S3.SecretKey == "") {
			return fmt.Errorf("archive.s3.access_key and secret_key must be set together")
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	// Observability defaults e validação
	if c.Observability.Enabled {
		if c.Observability.Listen == "" {
			c.Observability.Listen = "127.0.0.1:9946"
		}
		if c.Observability.ReadTimeout <= 0 {
			c.Observability.ReadTimeout = 5 * time.Second
		}
		if c.Observability.WriteTimeout <= 0 {
			c.Observability.WriteTimeout = 15 * time.Second
		}
		if c.Observability.IdleTimeout <= 0 {
			c.Observability.IdleTimeout = 60 * time.Second
		}
		if c.Observability.EventBuffer <= 0 {
			c.Observability.EventBuffer = 256
		}
		if len(c.Observability.AllowOrigins) == 0 {
			return fmt.Errorf("observability.allow_origins is required when observability is enabled (deny-by-default)")
		}
		for _, origin := range c.Observability.AllowOrigins {
			_, cidr, err := net.ParseCIDR(origin)
			if err != nil {
				// Tenta como IP único → converte para /32 ou /128
				ip := net.ParseIP(strings.TrimSpace(origin))
				if ip == nil {
					return fmt.Errorf("observability.allow_origins: %q is not a valid IP or CIDR", origin)
				}
				if ip.To4() != nil {
					_, cidr, _ = net.ParseCIDR(ip.String() + "/32")
				} else {
					_, cidr, _ = net.ParseCIDR(ip.String() + "/128")
				}
			}
			c.Observability.ParsedCIDRs = append(c.Observability.ParsedCIDRs, cidr)
		}
	}

	return nil
}
