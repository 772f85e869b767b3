package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/bpl"
	"github.com/carelink/carelink/internal/platform/auth"
)

// The dashboard reads from the other domains through these narrow views.
type (
	UserCounter interface {
		CountByRole(ctx context.Context) (map[string]int, error)
	}
	OnboardingCounter interface {
		CountPending(ctx context.Context) (map[string]int, error)
	}
	BPLStats interface {
		Stats(ctx context.Context) (*bpl.Stats, error)
	}
	OrderCounter interface {
		OrdersToday(ctx context.Context) (int, error)
	}
	ScreeningCounter interface {
		CountActive(ctx context.Context) (int, error)
	}
)

var (
	allRoles = []string{
		auth.RolePatient, auth.RoleDoctor, auth.RoleLab,
		auth.RoleChemist, auth.RoleHospital, auth.RoleAdmin,
	}
	providerKinds = []string{auth.RoleDoctor, auth.RoleHospital, auth.RoleChemist, auth.RoleLab}
)

type Service struct {
	users      UserCounter
	onboarding OnboardingCounter
	bpl        BPLStats
	orders     OrderCounter
	screening  ScreeningCounter
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(users UserCounter, onboarding OnboardingCounter, bplStats BPLStats,
	orders OrderCounter, screening ScreeningCounter, logger zerolog.Logger) *Service {
	return &Service{
		users: users, onboarding: onboarding, bpl: bplStats,
		orders: orders, screening: screening, logger: logger, now: time.Now,
	}
}

// Dashboard gathers the counters. Every role and provider kind is present in
// the maps, zero when nothing matches.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	started := s.now()
	d := &Dashboard{
		UsersByRole:       make(map[string]int, len(allRoles)),
		PendingOnboarding: make(map[string]int, len(providerKinds)),
		GeneratedAt:       started.UTC(),
	}

	roles, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	for _, r := range allRoles {
		d.UsersByRole[r] = roles[r]
		d.TotalUsers += roles[r]
	}

	pending, err := s.onboarding.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("count onboarding: %w", err)
	}
	for _, k := range providerKinds {
		d.PendingOnboarding[k] = pending[k]
	}

	stats, err := s.bpl.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("bpl stats: %w", err)
	}
	d.BPL = *stats

	if d.OrdersToday, err = s.orders.OrdersToday(ctx); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	if d.ActiveScreenings, err = s.screening.CountActive(ctx); err != nil {
		return nil, fmt.Errorf("count screenings: %w", err)
	}

	s.logger.Debug().Dur("elapsed", s.now().Sub(started)).Msg("admin dashboard built")
	return d, nil
}
