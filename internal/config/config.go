package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mithrel/inkwell/internal/db"
	"github.com/mithrel/inkwell/internal/session"
)

const appName = "inkwell"

// Output modes accepted by the output key.
var OutputModes = []string{"plain", "pretty", "json"}

// LogLevels accepted by the log.level key.
var LogLevels = []string{"debug", "info", "warn", "error"}

// applyDefaults seeds Viper with defaults defined in GetConfigOptions.
// This centralizes default values and descriptions in one place.
func applyDefaults(v *viper.Viper) {
	for _, o := range GetConfigOptions() {
		v.SetDefault(o.Key, o.Default)
	}
}

// Load resolves configuration with precedence: defaults < file < .env < env.
// The provided Viper instance is mutated with defaults, file contents, and env.
func Load(ctx context.Context, v *viper.Viper) error {
	// Configure Viper search paths. If SetConfigFile was provided upstream,
	// it takes precedence; these paths are harmless fallbacks.
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, appName))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", appName))
		}
		v.AddConfigPath(".")
	}

	// Apply centralized defaults (lowest precedence)
	applyDefaults(v)

	// Read config file if present (overrides defaults). A file that exists
	// but does not parse is an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	// .env never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	// Environment variables: INKWELL_* (highest among these sources)
	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Normalize a few dependent values post-merge
	if strings.TrimSpace(v.GetString("data_dir")) == "" {
		v.Set("data_dir", defaultDataDir())
	}
	v.Set("data_dir", expandHome(v.GetString("data_dir")))
	v.Set("storage.driver", strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))))
	return nil
}

func expandHome(dir string) string {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[1:])
		}
	}
	return dir
}

// defaultDataDir resolves default data dir: $XDG_DATA_HOME/inkwell or ~/.local/share/inkwell
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// DefaultConfigPath resolves the standard config.toml location.
func DefaultConfigPath() string {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		home, _ := os.UserHomeDir()
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, appName, "config.toml")
}

type ConfigOption struct {
	Key     string
	Default any
	Comment string
}

// GetConfigOptions returns the default configuration options and their meanings.
func GetConfigOptions() []ConfigOption {
	return []ConfigOption{
		// Core paths and conventions
		{Key: "data_dir", Default: defaultDataDir(), Comment: "Directory for local state: database, session token, signing secret"},
		{Key: "http_addr", Default: ":8080", Comment: "HTTP listen address for `inkwell-cli server`"},
		{Key: "output", Default: "plain", Comment: "CLI output mode: plain, pretty or json"},

		{Key: "storage.driver", Default: "sqlite", Comment: "Storage backend: sqlite, postgres, local or mem"},
		{Key: "storage.dsn", Default: "", Comment: "Backend DSN; empty means data_dir/inkwell.db (sqlite) or data_dir/inkwell.json (local)"},

		{Key: "auth.secret", Default: "", Comment: "HS256 signing secret; empty generates one in data_dir/auth.secret"},
		{Key: "auth.token_ttl", Default: "720h", Comment: "Lifetime of issued session tokens"},

		{Key: "session.store", Default: "file", Comment: "Where the CLI keeps its sign-in token: file (data_dir/session.json) or keyring"},

		{Key: "tls.domain", Default: "", Comment: "Serve HTTPS with a certificate obtained for this domain via ACME"},
		{Key: "tls.email", Default: "", Comment: "ACME account email"},
		{Key: "tls.ca", Default: "", Comment: "ACME directory URL; empty means Let's Encrypt production"},
		{Key: "tls.storage_dir", Default: "", Comment: "Certificate cache; empty means data_dir/certmagic"},
		{Key: "tls.http_challenge_addr", Default: "", Comment: "Address answering HTTP-01 challenges, e.g. :80; empty disables HTTP-01"},
		{Key: "tls.cert_file", Default: "", Comment: "PEM certificate for HTTPS with your own certificate"},
		{Key: "tls.key_file", Default: "", Comment: "PEM private key matching tls.cert_file"},

		{Key: "cors.allow_origin", Default: "*", Comment: "Value of Access-Control-Allow-Origin on API responses"},
		{Key: "log.level", Default: "info", Comment: "Log level: debug, info, warn or error"},
		{Key: "search.fuzzy", Default: true, Comment: "Rank search results by fuzzy title match"},
		{Key: "editor.delete_empty", Default: true, Comment: "Delete a new note if the editor exits with no content"},
	}
}

// ResolveDSN returns the storage DSN, deriving file locations from data_dir
// when storage.dsn is unset.
func ResolveDSN(v *viper.Viper) string {
	if dsn := strings.TrimSpace(v.GetString("storage.dsn")); dsn != "" {
		return dsn
	}
	dir := expandHome(v.GetString("data_dir"))
	if dir == "" {
		dir = defaultDataDir()
	}
	switch v.GetString("storage.driver") {
	case "local":
		return filepath.Join(dir, appName+".json")
	case "postgres", "pgx", "mem":
		return ""
	}
	return "sqlite://" + filepath.Join(dir, appName+".db")
}

// TokenTTL parses auth.token_ttl.
func TokenTTL(v *viper.Viper) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString("auth.token_ttl")))
	if err != nil {
		return 0, fmt.Errorf("auth.token_ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("auth.token_ttl must be positive")
	}
	return d, nil
}

// CheckConfigValidity reports every problem in v as one joined error.
func CheckConfigValidity(v *viper.Viper) error {
	var errs []error
	if strings.TrimSpace(v.GetString("data_dir")) == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if strings.TrimSpace(v.GetString("http_addr")) == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	driver := strings.ToLower(strings.TrimSpace(v.GetString("storage.driver")))
	switch {
	case driver == "pgx":
	case !slices.Contains(db.Drivers, driver):
		errs = append(errs, fmt.Errorf("storage.driver must be one of %s", strings.Join(db.Drivers, ", ")))
	case driver == "postgres" && strings.TrimSpace(v.GetString("storage.dsn")) == "":
		errs = append(errs, errors.New("storage.dsn is required for postgres"))
	}
	if _, err := TokenTTL(v); err != nil {
		errs = append(errs, err)
	}
	if out := v.GetString("output"); !slices.Contains(OutputModes, out) {
		errs = append(errs, fmt.Errorf("output must be one of %s", strings.Join(OutputModes, ", ")))
	}
	if lvl := strings.ToLower(v.GetString("log.level")); !slices.Contains(LogLevels, lvl) {
		errs = append(errs, fmt.Errorf("log.level must be one of %s", strings.Join(LogLevels, ", ")))
	}
	if st := strings.ToLower(strings.TrimSpace(v.GetString("session.store"))); !slices.Contains(session.TokenStores, st) {
		errs = append(errs, fmt.Errorf("session.store must be one of %s", strings.Join(session.TokenStores, ", ")))
	}
	certFile, keyFile := strings.TrimSpace(v.GetString("tls.cert_file")), strings.TrimSpace(v.GetString("tls.key_file"))
	if (certFile == "") != (keyFile == "") {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file must be set together"))
	}
	if certFile != "" && strings.TrimSpace(v.GetString("tls.domain")) != "" {
		errs = append(errs, errors.New("tls.domain and tls.cert_file are mutually exclusive"))
	}
	if strings.TrimSpace(v.GetString("cors.allow_origin")) == "" {
		errs = append(errs, errors.New("cors.allow_origin is required"))
	}
	return errors.Join(errs...)
}
