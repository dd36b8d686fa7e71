package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before the file, env, and flags are layered on.
// Precedence: flags > env > config file > defaults.
func defaults() Config {
	var c Config
	c.Server.Address = "127.0.0.1"
	c.Server.Port = 8080
	c.Server.DBPath = "./db"
	c.Logging.Level = "info"
	c.Ledger.DefaultBalances = map[string]float64{"token": 10}
	c.Chat.AutosaveInterval = Duration(30 * time.Second)
	c.Chat.WelcomeTitle = "New Chat"
	c.Chat.WelcomeText = "Hello! Upload an image and I'll tell you what objects I can detect."
	c.Detection.URL = "http://localhost:8000"
	c.Detection.Timeout = Duration(60 * time.Second)
	c.Detection.MaxImageSize = ByteSize(5 << 20)
	c.Pricing.Currency = "token"
	c.Pricing.Prompt = 0.1
	c.Pricing.Generation = 0.5
	c.Retention.Cron = "0 2 * * *"
	c.Retention.Period = Duration(30 * 24 * time.Hour)
	return c
}

// Load reads the config file at path (optional) and applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv layers CHATLEDGER_* environment variables over the config.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CHATLEDGER_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CHATLEDGER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("CHATLEDGER_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("CHATLEDGER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHATLEDGER_DETECTION_URL"); v != "" {
		cfg.Detection.URL = v
	}
	if v := os.Getenv("CHATLEDGER_AUDIT_DIR"); v != "" {
		cfg.Ledger.AuditDir = v
	}
}

// ResolveConfigPath picks the config file path: the flag wins when set,
// then CHATLEDGER_CONFIG, then the conventional default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv("CHATLEDGER_CONFIG"); v != "" {
		return v
	}
	return "chatledger.yaml"
}

// SplitAddr parses a "host:port" string into its parts.
func SplitAddr(addr string) (host string, port int, ok bool) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, false
	}
	return h, n, true
}

// ParseCommandFlags registers and parses the server's command-line
// flags. It returns the raw values plus a set recording which flags the
// user passed explicitly, so explicit flags can win over env/config.
func ParseCommandFlags() (addr, db, cfgPath string, set map[string]bool) {
	addrFlag := flag.String("addr", "", "listen address (host:port)")
	dbFlag := flag.String("db", "", "database directory")
	cfgFlag := flag.String("config", "", "path to config file")
	flag.Parse()
	set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *addrFlag, *dbFlag, *cfgFlag, set
}
