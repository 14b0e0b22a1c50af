package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"adboard/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Google Sheets source
	SpreadsheetID string
	MetricsRange  string
	ExpenseRange  string

	// Reconciliation constants, injected rather than hard-coded so the
	// pipeline is testable against arbitrary fixtures.
	AllowedCodes []string
	CutoffDate   string // canonical YYYY-MM-DD, empty for no cutoff
	CountryCodes core.CountryCodes

	// Auth gate
	AllowedEmails []string
	AuthSecret    string // HS256 signing key; empty disables the gate

	// Refresh cycle
	RefreshInterval time.Duration
	CacheTTL        time.Duration

	// Backend selection
	DataBackend string
	DataDir     string

	// Snapshot warm-start store; empty disables persistence
	SnapshotDBPath string

	// AMQP refresh events; empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8082"),

		SpreadsheetID: getEnv("GOOGLE_SHEET_ID", ""),
		MetricsRange:  getEnv("METRICS_RANGE", "Test_data!A2:Z"),
		ExpenseRange:  getEnv("EXPENSE_RANGE", "Manual!A2:G"),

		AllowedCodes: splitCSV(getEnv("ALLOWED_CODES", "CXNL01,CXNL05,CXSE01")),
		CutoffDate:   getEnv("CUTOFF_DATE", "2025-11-01"),
		CountryCodes: parseCountryCodes(getEnv("COUNTRY_CODES", "NL:CXNL01|CXNL05;FR:CXFR11;SE:CXSE01")),

		AllowedEmails: lowerAll(splitCSV(getEnv("ALLOWED_EMAILS", ""))),
		AuthSecret:    getEnv("AUTH_SECRET", ""),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 5*time.Minute),
		CacheTTL:        getEnvDuration("CACHE_TTL", 60*time.Second),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
		DataDir:     getEnv("DATA_DIR", "./data"),

		SnapshotDBPath: getEnv("SNAPSHOT_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "adboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dashboard_refreshed"),
	}

	return cfg
}

// Pipeline returns the reconciliation options implied by the configuration.
// Call after Validate; an unparsable cutoff reads as no cutoff here.
func (c *Config) Pipeline() core.PipelineOptions {
	opts := core.PipelineOptions{AllowedCodes: c.AllowedCodes}
	if t, ok := core.ParseDay(c.CutoffDate); ok {
		opts.Cutoff = t
	}
	return opts
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sheets"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sheets" && c.SpreadsheetID == "" {
		errors = append(errors, "Google spreadsheet ID is required when using sheets backend")
	}
	if c.MetricsRange == "" {
		errors = append(errors, "metrics range cannot be empty")
	}
	if c.ExpenseRange == "" {
		errors = append(errors, "expense range cannot be empty")
	}

	if len(c.AllowedCodes) == 0 {
		errors = append(errors, "allowed codes cannot be empty")
	}
	if c.CutoffDate != "" {
		if _, ok := core.ParseDay(c.CutoffDate); !ok {
			errors = append(errors, fmt.Sprintf("invalid cutoff date '%s': must be YYYY-MM-DD", c.CutoffDate))
		}
	}
	if len(c.CountryCodes) == 0 {
		errors = append(errors, "country code mapping cannot be empty")
	}

	for _, email := range c.AllowedEmails {
		if !strings.Contains(email, "@") {
			errors = append(errors, fmt.Sprintf("invalid allowed email '%s'", email))
		}
	}
	if c.AuthSecret != "" && len(c.AllowedEmails) == 0 {
		errors = append(errors, "allowed emails cannot be empty when an auth secret is configured")
	}

	if c.RefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	// Validate snapshot DB path if persistence is enabled
	if c.SnapshotDBPath != "" {
		dir := filepath.Dir(c.SnapshotDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create snapshot database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP settings if publishing is enabled
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// parseCountryCodes parses "NL:CXNL01|CXNL05;FR:CXFR11" into the country
// mapping. Malformed entries are skipped.
func parseCountryCodes(s string) core.CountryCodes {
	out := core.CountryCodes{}
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		country, codes, ok := strings.Cut(entry, ":")
		country = strings.TrimSpace(country)
		if !ok || country == "" {
			continue
		}
		var list []string
		for _, code := range strings.Split(codes, "|") {
			if code = strings.TrimSpace(code); code != "" {
				list = append(list, code)
			}
		}
		if len(list) > 0 {
			out[country] = list
		}
	}
	return out
}

func splitCSV(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(v)
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
