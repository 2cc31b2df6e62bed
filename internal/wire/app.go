package wire

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mithrel/inkwell/internal/auth"
	"github.com/mithrel/inkwell/internal/config"
	"github.com/mithrel/inkwell/internal/db"
	"github.com/mithrel/inkwell/internal/service"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/pkg/api"
)

// SecretFile holds the generated signing secret when auth.secret is unset.
const SecretFile = "auth.secret"

// App aggregates the major services for easy injection.
type App struct {
	Cfg        *viper.Viper
	Log        *slog.Logger
	Store      *db.Store
	Signer     *session.Signer
	Auth       *auth.Service
	Notes      *service.Documents
	Blueprints *service.Documents
	Settings   *service.Settings

	closer io.Closer
}

// BuildApp wires dependencies with the provided config.
func BuildApp(ctx context.Context, v *viper.Viper) (*App, error) {
	if err := config.CheckConfigValidity(v); err != nil {
		return nil, err
	}
	logger := NewLogger(os.Stderr, v.GetString("log.level"))

	ttl, err := config.TokenTTL(v)
	if err != nil {
		return nil, err
	}
	secret, err := loadSecret(v)
	if err != nil {
		return nil, err
	}
	signer, err := session.NewSigner(secret, ttl)
	if err != nil {
		return nil, err
	}

	driver := v.GetString("storage.driver")
	store, closer, err := db.Open(ctx, driver, config.ResolveDSN(v))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	logger.Debug("store opened", "driver", driver)

	opts := service.Options{Log: logger, FuzzyRank: v.GetBool("search.fuzzy")}
	return &App{
		Cfg:        v,
		Log:        logger,
		Store:      store,
		Signer:     signer,
		Auth:       auth.New(store.Users, signer, logger),
		Notes:      service.NewDocuments(api.KindNote, store.Documents, opts),
		Blueprints: service.NewDocuments(api.KindBlueprint, store.Documents, opts),
		Settings:   service.NewSettings(store.Settings),
		closer:     closer,
	}, nil
}

// Docs returns the service for kind.
func (a *App) Docs(kind api.Kind) *service.Documents {
	if kind == api.KindBlueprint {
		return a.Blueprints
	}
	return a.Notes
}

// Close releases the store.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// NewLogger returns a text logger at the named level; unknown names mean info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// loadSecret returns auth.secret, or the secret persisted in data_dir,
// generating one on first use.
func loadSecret(v *viper.Viper) (string, error) {
	if s := strings.TrimSpace(v.GetString("auth.secret")); s != "" {
		return s, nil
	}
	path := filepath.Join(v.GetString("data_dir"), SecretFile)
	b, err := os.ReadFile(path)
	if err == nil && len(strings.TrimSpace(string(b))) > 0 {
		return strings.TrimSpace(string(b)), nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(raw)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return secret, nil
}
