// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServerConfig_ExampleFile(t *testing.T) {
	cfgPath := filepath.Join("..", "..", "configs", "server.example.yaml")
	cfg, err := LoadServerConfig(cfgPath)
	if err != nil {
		t.Fatalf("failed to load server example config: %v", err)
	}

	if cfg.Server.Listen != "0.0.0.0:12345" {
		t.Errorf("expected listen '0.0.0.0:12345', got %q", cfg.Server.Listen)
	}
	if cfg.Server.ListenBacklog != 32 {
		t.Errorf("expected listen_backlog 32, got %d", cfg.Server.ListenBacklog)
	}
	if cfg.Server.RequiredAgencies != 5 {
		t.Errorf("expected required_agencies 5, got %d", cfg.Server.RequiredAgencies)
	}
	if cfg.Server.HandshakeTimeout != 10*time.Second {
		t.Errorf("expected handshake_timeout 10s, got %v", cfg.Server.HandshakeTimeout)
	}
	if cfg.Lottery.LedgerPath != "/var/lib/nlottery/bets.csv" {
		t.Errorf("expected ledger_path '/var/lib/nlottery/bets.csv', got %q", cfg.Lottery.LedgerPath)
	}
	if cfg.Lottery.MaxBatchSizeRaw != 8*1024 {
		t.Errorf("expected max_batch_size 8192 bytes, got %d", cfg.Lottery.MaxBatchSizeRaw)
	}
	if !cfg.Observability.Enabled {
		t.Error("expected observability to be enabled")
	}
	if cfg.Observability.Listen != "127.0.0.1:9946" {
		t.Errorf("expected observability listen '127.0.0.1:9946', got %q", cfg.Observability.Listen)
	}
	if len(cfg.Observability.ParsedCIDRs) != 2 {
		t.Fatalf("expected 2 parsed allow_origins, got %d", len(cfg.Observability.ParsedCIDRs))
	}
	if cfg.Observability.ParsedCIDRs[0].String() != "127.0.0.1/32" {
		t.Errorf("expected first origin '127.0.0.1/32', got %q", cfg.Observability.ParsedCIDRs[0].String())
	}
	if cfg.Observability.ParsedCIDRs[1].String() != "10.0.0.0/8" {
		t.Errorf("expected second origin '10.0.0.0/8', got %q", cfg.Observability.ParsedCIDRs[1].String())
	}
	if cfg.Stats.Interval != 60*time.Second {
		t.Errorf("expected stats interval 60s, got %v", cfg.Stats.Interval)
	}
	if cfg.Archive.Schedule != "0 3 * * *" {
		t.Errorf("expected archive schedule '0 3 * * *', got %q", cfg.Archive.Schedule)
	}
	if cfg.Archive.Compression != "gzip" {
		t.Errorf("expected archive compression 'gzip', got %q", cfg.Archive.Compression)
	}
	if cfg.Archive.Retain != 7 {
		t.Errorf("expected archive retain 7, got %d", cfg.Archive.Retain)
	}
	if cfg.Archive.S3.Enabled {
		t.Error("expected s3 to be disabled in the example")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected logging format 'json', got %q", cfg.Logging.Format)
	}
}

func TestLoadAgencyConfig_ExampleFile(t *testing.T) {
	cfgPath := filepath.Join("..", "..", "configs", "agency.example.yaml")
	cfg, err := LoadAgencyConfig(cfgPath)
	if err != nil {
		t.Fatalf("failed to load agency example config: %v", err)
	}

	if cfg.Agency.ID != 1 {
		t.Errorf("expected agency.id 1, got %d", cfg.Agency.ID)
	}
	if cfg.Agency.DataFile != "/var/lib/nlottery/agency-1.csv" {
		t.Errorf("expected data_file '/var/lib/nlottery/agency-1.csv', got %q", cfg.Agency.DataFile)
	}
	if cfg.Server.Address != "127.0.0.1:12345" {
		t.Errorf("expected server address '127.0.0.1:12345', got %q", cfg.Server.Address)
	}
	if cfg.Batch.MaxRecords != 100 {
		t.Errorf("expected batch.max_records 100, got %d", cfg.Batch.MaxRecords)
	}
	if cfg.Batch.MaxSizeRaw != 8*1024 {
		t.Errorf("expected batch.max_size 8192 bytes, got %d", cfg.Batch.MaxSizeRaw)
	}
	if cfg.Pacing.RateLimitRaw != 512*1024 {
		t.Errorf("expected pacing.rate_limit 524288 bytes, got %d", cfg.Pacing.RateLimitRaw)
	}
	if cfg.Winners.MaxAttempts != 10 {
		t.Errorf("expected winners.max_attempts 10, got %d", cfg.Winners.MaxAttempts)
	}
	if cfg.Winners.InitialDelay != 500*time.Millisecond {
		t.Errorf("expected winners.initial_delay 500ms, got %v", cfg.Winners.InitialDelay)
	}
	if cfg.Winners.MaxDelay != 8*time.Second {
		t.Errorf("expected winners.max_delay 8s, got %v", cfg.Winners.MaxDelay)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected logging format 'text', got %q", cfg.Logging.Format)
	}
}

// validServerYAML retorna um YAML mínimo válido para testes.
// Testes de validação podem substituir campos com writeTempConfig.
const validServerYAML = `
server:
  listen: "127.0.0.1:12345"
lottery:
  ledger_path: /tmp/bets.csv
`

// validAgencyYAML é o equivalente mínimo para o nlottery-agency.
const validAgencyYAML = `
agency:
  id: 3
  data_file: /tmp/agency-3.csv
server:
  address: "127.0.0.1:12345"
`

func TestLoadServerConfig_MissingListen(t *testing.T) {
	content := `
server:
  listen: ""
lottery:
  ledger_path: /tmp/bets.csv
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadServerConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for empty server.listen")
	}
}

func TestLoadServerConfig_MissingLedgerPath(t *testing.T) {
	content := `
server:
  listen: "127.0.0.1:12345"
lottery:
  ledger_path: ""
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadServerConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for empty lottery.ledger_path")
	}
}

func TestLoadServerConfig_InvalidCompression(t *testing.T) {
	content := `
server:
  listen: "127.0.0.1:12345"
lottery:
  ledger_path: /tmp/bets.csv
archive:
  schedule: "0 3 * * *"
  directory: /tmp/archives
  compression: bzip2
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadServerConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for unsupported compression")
	}
}

func TestLoadServerConfig_ArchiveRequiresDirectory(t *testing.T) {
	content := `
server:
  listen: "127.0.0.1:12345"
lottery:
  ledger_path: /tmp/bets.csv
archive:
  schedule: "0 3 * * *"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadServerConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for archive schedule without directory")
	}
}

func TestLoadServerConfig_S3RequiresBucket(t *testing.T) {
	content := `
server:
  listen: "127.0.0.1:12345"
lottery:
  ledger_path: /tmp/bets.csv
archive:
  directory: /tmp/archives
  s3:
    enabled: true
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadServerConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for enabled s3 without bucket")
	}
}

func TestLoadServerConfig_ObservabilityRequiresOrigins(t *testing.T) {
	content := `
server:
  listen: "127.0.0.1:12345"
lottery:
  ledger_path: /tmp/bets.csv
observability:
  enabled: true
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadServerConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for enabled observability without allow_origins")
	}
}

func TestLoadServerConfig_InvalidAllowOrigin(t *testing.T) {
	content := `
server:
  listen: "127.0.0.1:12345"
lottery:
  ledger_path: /tmp/bets.csv
observability:
  enabled: true
  allow_origins:
    - "not-an-ip"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadServerConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for malformed allow_origins entry")
	}
}

func TestLoadServerConfig_BatchSizeTooSmall(t *testing.T) {
	content := `
server:
  listen: "127.0.0.1:12345"
lottery:
  ledger_path: /tmp/bets.csv
  max_batch_size: "100b"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadServerConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for max_batch_size below one record")
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	cfgPath := writeTempConfig(t, validServerYAML)
	cfg, err := LoadServerConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenBacklog != 32 {
		t.Errorf("expected default listen_backlog 32, got %d", cfg.Server.ListenBacklog)
	}
	if cfg.Server.RequiredAgencies != 5 {
		t.Errorf("expected default required_agencies 5, got %d", cfg.Server.RequiredAgencies)
	}
	if cfg.Server.HandshakeTimeout != 10*time.Second {
		t.Errorf("expected default handshake_timeout 10s, got %v", cfg.Server.HandshakeTimeout)
	}
	if cfg.Lottery.MaxBatchSizeRaw != 8*1024 {
		t.Errorf("expected default max_batch_size 8kb, got %d", cfg.Lottery.MaxBatchSizeRaw)
	}
	if cfg.Stats.Interval != 60*time.Second {
		t.Errorf("expected default stats interval 60s, got %v", cfg.Stats.Interval)
	}
	if cfg.Archive.Compression != "gzip" {
		t.Errorf("expected default compression 'gzip', got %q", cfg.Archive.Compression)
	}
	if cfg.Archive.Retain != 7 {
		t.Errorf("expected default retain 7, got %d", cfg.Archive.Retain)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default logging level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected default logging format 'json', got %q", cfg.Logging.Format)
	}
}

func TestLoadServerConfig_ObservabilityDefaults(t *testing.T) {
	content := `
server:
  listen: "127.0.0.1:12345"
lottery:
  ledger_path: /tmp/bets.csv
observability:
  enabled: true
  allow_origins:
    - "::1"
`
	cfgPath := writeTempConfig(t, content)
	cfg, err := LoadServerConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Observability.Listen != "127.0.0.1:9946" {
		t.Errorf("expected default listen '127.0.0.1:9946', got %q", cfg.Observability.Listen)
	}
	if cfg.Observability.EventBuffer != 256 {
		t.Errorf("expected default event_buffer 256, got %d", cfg.Observability.EventBuffer)
	}
	if len(cfg.Observability.ParsedCIDRs) != 1 {
		t.Fatalf("expected 1 parsed origin, got %d", len(cfg.Observability.ParsedCIDRs))
	}
	if cfg.Observability.ParsedCIDRs[0].String() != "::1/128" {
		t.Errorf("expected IPv6 origin '::1/128', got %q", cfg.Observability.ParsedCIDRs[0].String())
	}
}

func TestLoadAgencyConfig_MissingID(t *testing.T) {
	content := `
agency:
  data_file: /tmp/agency.csv
server:
  address: "127.0.0.1:12345"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgencyConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for missing agency.id")
	}
}

func TestLoadAgencyConfig_MissingDataFile(t *testing.T) {
	content := `
agency:
  id: 3
server:
  address: "127.0.0.1:12345"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgencyConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for missing agency.data_file")
	}
}

func TestLoadAgencyConfig_MissingAddress(t *testing.T) {
	content := `
agency:
  id: 3
  data_file: /tmp/agency.csv
server:
  address: ""
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgencyConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for empty server.address")
	}
}

func TestLoadAgencyConfig_InvalidRateLimit(t *testing.T) {
	content := `
agency:
  id: 3
  data_file: /tmp/agency.csv
server:
  address: "127.0.0.1:12345"
pacing:
  rate_limit: "fast"
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgencyConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for unparseable rate_limit")
	}
}

func TestLoadAgencyConfig_MaxDelayBelowInitial(t *testing.T) {
	content := `
agency:
  id: 3
  data_file: /tmp/agency.csv
server:
  address: "127.0.0.1:12345"
winners:
  initial_delay: 5s
  max_delay: 1s
`
	cfgPath := writeTempConfig(t, content)
	_, err := LoadAgencyConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for max_delay < initial_delay")
	}
}

func TestLoadAgencyConfig_Defaults(t *testing.T) {
	cfgPath := writeTempConfig(t, validAgencyYAML)
	cfg, err := LoadAgencyConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Batch.MaxRecords != 100 {
		t.Errorf("expected default max_records 100, got %d", cfg.Batch.MaxRecords)
	}
	if cfg.Batch.MaxSizeRaw != 8*1024 {
		t.Errorf("expected default max_size 8kb, got %d", cfg.Batch.MaxSizeRaw)
	}
	if cfg.Pacing.RateLimitRaw != 0 {
		t.Errorf("expected pacing disabled by default, got %d", cfg.Pacing.RateLimitRaw)
	}
	if cfg.Winners.MaxAttempts != 10 {
		t.Errorf("expected default max_attempts 10, got %d", cfg.Winners.MaxAttempts)
	}
	if cfg.Winners.InitialDelay != 500*time.Millisecond {
		t.Errorf("expected default initial_delay 500ms, got %v", cfg.Winners.InitialDelay)
	}
	if cfg.Winners.MaxDelay != 8*time.Second {
		t.Errorf("expected default max_delay 8s, got %v", cfg.Winners.MaxDelay)
	}
}

func TestLoadAgencyConfig_FileNotFound(t *testing.T) {
	_, err := LoadAgencyConfig("/nonexistent/path/agency.yaml")
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestLoadAgencyConfig_InvalidYAML(t *testing.T) {
	cfgPath := writeTempConfig(t, "{{invalid yaml}}")
	_, err := LoadAgencyConfig(cfgPath)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestArchiveConfig_FileExtension(t *testing.T) {
	gz := ArchiveConfig{Compression: "gzip"}
	if ext := gz.FileExtension(); ext != ".csv.gz" {
		t.Errorf("expected '.csv.gz', got %q", ext)
	}
	zst := ArchiveConfig{Compression: "zst"}
	if ext := zst.FileExtension(); ext != ".csv.zst" {
		t.Errorf("expected '.csv.zst', got %q", ext)
	}
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"8kb", 8 * 1024},
		{"8KB", 8 * 1024},
		{" 512b ", 512},
		{"2mb", 2 * 1024 * 1024},
		{"1gb", 1024 * 1024 * 1024},
		{"4096", 4096},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := ParseByteSize(tc.in)
		if err != nil {
			t.Errorf("ParseByteSize(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseByteSize_Invalid(t *testing.T) {
	for _, in := range []string{"", "kb", "8xb", "-1kb", "1.5mb"} {
		if _, err := ParseByteSize(in); err == nil {
			t.Errorf("ParseByteSize(%q): expected error", in)
		}
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
