// Package otp issues and verifies one-time login codes sent by SMS. Only a
// bcrypt hash of each code is stored.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// MaxAttempts is the number of wrong codes tolerated before the code is burned.
const MaxAttempts = 5

type Config struct {
	Length   int
	TTL      time.Duration
	HashCost int
}

type Manager struct {
	store  Store
	sender Sender
	cfg    Config
	logger zerolog.Logger
}

func NewManager(store Store, sender Sender, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.Length == 0 {
		cfg.Length = 6
	}
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	return &Manager{store: store, sender: sender, cfg: cfg, logger: logger}
}

// TTL reports how long issued codes stay valid.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// Generate returns a random numeric code of n digits.
func Generate(n int) (string, error) {
	buf := make([]byte, n)
	ten := big.NewInt(10)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

// Request issues a new code for phone, replacing any earlier one, and sends it.
func (m *Manager) Request(ctx context.Context, phone string) error {
	code, err := Generate(m.cfg.Length)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), m.cfg.HashCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	if err := m.store.Save(ctx, phone, string(hash), m.cfg.TTL); err != nil {
		return err
	}

	msg := fmt.Sprintf("Your CareLink verification code is %s. It expires in %d minutes.",
		code, int(m.cfg.TTL.Minutes()))
	if err := m.sender.SendSMS(ctx, phone, msg); err != nil {
		m.logger.Error().Err(err).Str("phone", phone).Msg("otp sms delivery failed")
		_ = m.store.Delete(ctx, phone)
		return fmt.Errorf("%w: sms delivery failed", apperr.ErrUpstream)
	}
	return nil
}

// Verify checks code against the stored hash. A correct code is consumed.
func (m *Manager) Verify(ctx context.Context, phone, code string) error {
	entry, err := m.store.Get(ctx, phone)
	if errors.Is(err, ErrNoCode) {
		return fmt.Errorf("%w: code expired or not requested", apperr.ErrUnauthorized)
	}
	if err != nil {
		return err
	}
	if entry.Attempts >= MaxAttempts {
		_ = m.store.Delete(ctx, phone)
		return fmt.Errorf("%w: request a new code", apperr.ErrTooManyAttempts)
	}

	if bcrypt.CompareHashAndPassword([]byte(entry.Hash), []byte(code)) != nil {
		n, err := m.store.IncrAttempts(ctx, phone)
		if err != nil && !errors.Is(err, ErrNoCode) {
			return err
		}
		if n >= MaxAttempts {
			_ = m.store.Delete(ctx, phone)
			return fmt.Errorf("%w: request a new code", apperr.ErrTooManyAttempts)
		}
		return fmt.Errorf("%w: invalid code", apperr.ErrUnauthorized)
	}

	return m.store.Delete(ctx, phone)
}
