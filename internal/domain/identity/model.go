package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is an account of any role. Providers get their user row through
// onboarding; patients self-register on first OTP login.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Phone     string    `db:"phone" json:"phone"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Role      string    `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter narrows the admin user list. Search matches name or phone.
type UserFilter struct {
	Role   string
	Search string
	Limit  int
	Offset int
}

type OTPRequest struct {
	Phone string `json:"phone"`
}

type VerifyRequest struct {
	Phone    string `json:"phone"`
	OTP      string `json:"otp"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Session is returned after a successful verification.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
	IsNewUser bool      `json:"isNewUser"`
}

type ProfileUpdate struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}
