package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendFile {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if !reflect.DeepEqual(cfg.LoanDurations, []int64{86400}) {
		t.Fatalf("durations = %v", cfg.LoanDurations)
	}
	want := []uint64{2_000_000_000, 5_000_000_000, 10_000_000_000, 20_000_000_000}
	if !reflect.DeepEqual(cfg.Principals, want) {
		t.Fatalf("principals = %v", cfg.Principals)
	}
	if cfg.CreatePoolFee != 150_000_000 {
		t.Fatalf("create pool fee = %d", cfg.CreatePoolFee)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custody.yaml")
	body := "backend: postgres\npg-dsn: postgres://localhost/custody\nprincipals: [\"1.5\"]\nnow: \"2024-01-02T00:00:00Z\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("as", "", "")
	if err := flags.Parse([]string{"--as", "So11111111111111111111111111111111111111112"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendPostgres || cfg.PGDSN == "" {
		t.Fatalf("backend settings not read: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Principals, []uint64{1_500_000_000}) {
		t.Fatalf("principals = %v", cfg.Principals)
	}
	if cfg.Now != 1704153600 {
		t.Fatalf("now = %d", cfg.Now)
	}
	if cfg.Caller != "So11111111111111111111111111111111111111112" {
		t.Fatalf("caller = %q", cfg.Caller)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CUSTODY_BACKEND", "sqlite")
	chdir(t, t.TempDir())
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected backend error")
	}
}

func TestLoadKeeper(t *testing.T) {
	t.Setenv("CUSTODY_SLIPPAGE_BPS", "250")
	chdir(t, t.TempDir())
	cfg, err := LoadKeeper("", nil)
	if err != nil {
		t.Fatalf("load keeper: %v", err)
	}
	if cfg.SlippageBps != 250 || cfg.Interval != 30*time.Second || cfg.StateName != "keeper" {
		t.Fatalf("unexpected keeper config: %+v", cfg)
	}
}

func TestLoadKeeperRejectsRemoteQuotes(t *testing.T) {
	t.Setenv("CUSTODY_RPC", "https://api.mainnet-beta.solana.com")
	chdir(t, t.TempDir())
	if _, err := LoadKeeper("", nil); err == nil {
		t.Fatalf("expected rpc to be rejected for the keeper")
	}
	if _, err := Load("", nil); err != nil {
		t.Fatalf("rpc must stay valid for other commands: %v", err)
	}
}

func TestParseSOL(t *testing.T) {
	cases := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"2.1", 2_100_000_000, false},
		{"2.499999998", 2_499_999_998, false},
		{"0.2", 200_000_000, false},
		{"1e-9", 1, false},
		{"0.0000000001", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"18446744073.709551616", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseSOL(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseSOL(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSOL(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatSOL(t *testing.T) {
	if got := FormatSOL(2_100_000_000); got != "2.1" {
		t.Fatalf("FormatSOL = %q", got)
	}
	if got := FormatAmount(1_500, 6); got != "0.0015" {
		t.Fatalf("FormatAmount = %q", got)
	}
}

func TestParseDuration(t *testing.T) {
	for in, want := range map[string]int64{"86400": 86400, "24h": 86400, "90s": 90} {
		got, err := ParseDuration(in)
		if err != nil || got != want {
			t.Fatalf("ParseDuration(%q) = %d, %v", in, got, err)
		}
	}
	if _, err := ParseDuration("1500ms"); err == nil {
		t.Fatalf("expected sub-second error")
	}
}
