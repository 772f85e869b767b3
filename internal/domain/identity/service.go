package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

// OTPManager issues and checks one-time codes.
type OTPManager interface {
	Request(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) error
	TTL() time.Duration
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role, phone string) (string, time.Time, error)
}

type Service struct {
	users  UserRepository
	otp    OTPManager
	tokens TokenIssuer
	logger zerolog.Logger
}

func NewService(users UserRepository, otp OTPManager, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{users: users, otp: otp, tokens: tokens, logger: logger}
}

// NormalizePhone strips separators and a leading '+' and requires 10 to 15
// digits.
func NormalizePhone(raw string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	p = strings.TrimPrefix(p, "+")
	if len(p) < 10 || len(p) > 15 {
		return "", apperr.Validation("phone must have 10 to 15 digits")
	}
	for _, ch := range p {
		if ch < '0' || ch > '9' {
			return "", apperr.Validation("phone must contain digits only")
		}
	}
	return p, nil
}

// RequestOTP sends a login code and returns how long it stays valid.
func (s *Service) RequestOTP(ctx context.Context, rawPhone string) (time.Duration, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return 0, err
	}
	if u, err := s.users.GetByPhone(ctx, phone); err == nil && !u.IsActive {
		return 0, errAccountDisabled
	}
	if err := s.otp.Request(ctx, phone); err != nil {
		return 0, err
	}
	return s.otp.TTL(), nil
}

var errAccountDisabled = fmt.Errorf("%w: account is disabled", apperr.ErrForbidden)

// VerifyOTP checks the code and logs the user in, registering a new patient
// when the phone is unknown.
func (s *Service) VerifyOTP(ctx context.Context, req VerifyRequest) (*Session, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OTP) == "" {
		return nil, apperr.Validation("otp is required")
	}
	if req.Role != "" && req.Role != auth.RolePatient {
		return nil, apperr.Validation("only patients can self-register; providers must use onboarding")
	}

	if err := s.otp.Verify(ctx, phone, strings.TrimSpace(req.OTP)); err != nil {
		return nil, err
	}

	isNew := false
	u, err := s.users.GetByPhone(ctx, phone)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		u = &User{
			Phone:    phone,
			FullName: strings.TrimSpace(req.FullName),
			Role:     auth.RolePatient,
			IsActive: true,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, err
		}
		isNew = true
		s.logger.Info().Str("user_id", u.ID.String()).Msg("patient registered")
	case err != nil:
		return nil, err
	case !u.IsActive:
		return nil, errAccountDisabled
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Role, u.Phone)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: u, IsNewUser: isNew}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if name == "" {
			return nil, apperr.Validation("full_name cannot be empty")
		}
		u.FullName = name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email == "" {
			u.Email = nil
		} else {
			if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
				return nil, apperr.Validation("email is invalid")
			}
			u.Email = &email
		}
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]*User, int, error) {
	if f.Role != "" && !auth.ValidRole(f.Role) {
		return nil, 0, apperr.Validation("unknown role %q", f.Role)
	}
	return s.users.List(ctx, f)
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *Service) SetActive(ctx context.Context, actor, id uuid.UUID, active bool) (*User, error) {
	if actor == id && !active {
		return nil, apperr.Validation("cannot deactivate your own account")
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

func (s *Service) CountByRole(ctx context.Context) (map[string]int, error) {
	return s.users.CountByRole(ctx)
}

// EnsureAdmin creates an admin account for phone unless one exists. It
// reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, rawPhone, name string) (*User, bool, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, false, err
	}
	u, err := s.users.GetByPhone(ctx, phone)
	if err == nil {
		if u.Role != auth.RoleAdmin {
			return nil, false, apperr.Conflict("phone %s belongs to a %s account", phone, u.Role)
		}
		return u, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}
	if name == "" {
		name = "Administrator"
	}
	u = &User{Phone: phone, FullName: name, Role: auth.RoleAdmin, IsActive: true}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}
