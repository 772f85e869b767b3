package admin

import (
	"time"

	"github.com/carelink/carelink/internal/domain/bpl"
)

// Dashboard is the platform-wide summary shown to administrators.
type Dashboard struct {
	UsersByRole       map[string]int `json:"users_by_role"`
	TotalUsers        int            `json:"total_users"`
	PendingOnboarding map[string]int `json:"pending_onboarding"`
	BPL               bpl.Stats      `json:"bpl_requests"`
	OrdersToday       int            `json:"orders_today"`
	ActiveScreenings  int            `json:"active_screenings"`
	GeneratedAt       time.Time      `json:"generated_at"`
}
