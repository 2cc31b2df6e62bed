package service

import (
	"context"
	"fmt"

	"github.com/mithrel/inkwell/internal/db"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/pkg/api"
)

// Settings exposes per-owner preferences.
type Settings struct {
	store db.Settings
}

func NewSettings(store db.Settings) *Settings { return &Settings{store: store} }

func (s *Settings) Theme(ctx context.Context, sess session.Session) (api.Theme, error) {
	if err := session.Require(sess); err != nil {
		return api.Theme{}, err
	}
	t, err := s.store.GetTheme(ctx, sess.UserID)
	if err != nil {
		return api.Theme{}, fmt.Errorf("get theme: %w", err)
	}
	return t, nil
}

func (s *Settings) SetTheme(ctx context.Context, sess session.Session, t api.Theme) error {
	if err := session.Require(sess); err != nil {
		return err
	}
	if err := s.store.SetTheme(ctx, sess.UserID, t); err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	return nil
}

// ParseTheme accepts "dark" or "light".
func ParseTheme(s string) (api.Theme, error) {
	switch s {
	case "dark":
		return api.Theme{Dark: true}, nil
	case "light":
		return api.Theme{}, nil
	}
	return api.Theme{}, fmt.Errorf("%w: theme must be dark or light, got %q", ErrInvalid, s)
}
