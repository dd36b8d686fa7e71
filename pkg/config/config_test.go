package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.Pricing.Prompt != 0.1 || cfg.Pricing.Generation != 0.5 {
		t.Fatalf("pricing defaults: %+v", cfg.Pricing)
	}
	if cfg.Ledger.DefaultBalances["token"] != 10 {
		t.Fatalf("default balance: %v", cfg.Ledger.DefaultBalances)
	}
}

func TestLoadFileAndTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatledger.yaml")
	body := `
server:
  address: 0.0.0.0
  port: 9090
chat:
  autosave_interval: 5s
detection:
  timeout: 90s
  max_image_size: 2MB
retention:
  enabled: true
  period: 720h
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:9090" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.Chat.AutosaveInterval.Std() != 5*time.Second {
		t.Fatalf("autosave = %v", cfg.Chat.AutosaveInterval.Std())
	}
	if cfg.Detection.Timeout.Std() != 90*time.Second {
		t.Fatalf("timeout = %v", cfg.Detection.Timeout.Std())
	}
	if uint64(cfg.Detection.MaxImageSize) != 2_000_000 {
		t.Fatalf("max image = %d", cfg.Detection.MaxImageSize)
	}
	if cfg.Retention.Period.Std() != 720*time.Hour {
		t.Fatalf("period = %v", cfg.Retention.Period.Std())
	}
	// values the file omits keep their defaults
	if cfg.Detection.URL != "http://localhost:8000" {
		t.Fatalf("detection url = %q", cfg.Detection.URL)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHATLEDGER_ADDR", "10.0.0.1")
	t.Setenv("CHATLEDGER_PORT", "7070")
	t.Setenv("CHATLEDGER_DETECTION_URL", "http://yolo:8000")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "10.0.0.1:7070" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.Detection.URL != "http://yolo:8000" {
		t.Fatalf("detection url = %q", cfg.Detection.URL)
	}
}

func TestSplitAddr(t *testing.T) {
	host, port, ok := SplitAddr("0.0.0.0:9090")
	if !ok || host != "0.0.0.0" || port != 9090 {
		t.Fatalf("got %q %d %v", host, port, ok)
	}
	if _, _, ok := SplitAddr("no-port"); ok {
		t.Fatal("expected parse failure")
	}
	if _, _, ok := SplitAddr("host:abc"); ok {
		t.Fatal("expected parse failure")
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("custom.yaml", true); got != "custom.yaml" {
		t.Fatalf("flag should win: %q", got)
	}
	t.Setenv("CHATLEDGER_CONFIG", "/etc/chatledger.yaml")
	if got := ResolveConfigPath("", false); got != "/etc/chatledger.yaml" {
		t.Fatalf("env should win over default: %q", got)
	}
}
