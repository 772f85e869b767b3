package teleconsult

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL is the lifetime of a join token.
const TokenTTL = 2 * time.Hour

// ErrVideoDisabled is returned when no video app credentials are configured.
var ErrVideoDisabled = errors.New("video app credentials not configured")

// AppClaims is the payload the video SDK expects in a client token.
type AppClaims struct {
	jwt.RegisteredClaims
	AccessKey string `json:"access_key"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Type      string `json:"type"`
	Version   int    `json:"version"`
}

// Minter signs join tokens with the video app secret.
type Minter struct {
	appID  string
	secret []byte
	now    func() time.Time
}

func NewMinter(appID, appSecret string) *Minter {
	return &Minter{appID: appID, secret: []byte(appSecret), now: time.Now}
}

// Enabled reports whether both app id and secret are set.
func (m *Minter) Enabled() bool {
	return m.appID != "" && len(m.secret) > 0
}

// Mint returns an HS256 token admitting userID to roomID with the given role.
func (m *Minter) Mint(roomID string, userID uuid.UUID, role string) (string, time.Time, error) {
	if !m.Enabled() {
		return "", time.Time{}, ErrVideoDisabled
	}
	now := m.now()
	exp := now.Add(TokenTTL)
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		AccessKey: m.appID,
		RoomID:    roomID,
		UserID:    userID.String(),
		Role:      role,
		Type:      "app",
		Version:   2,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
