package teleconsult

import (
	"time"

	"github.com/google/uuid"
)

// Room statuses.
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusEnded     = "ended"
)

var transitions = map[string]string{
	StatusScheduled: StatusLive,
	StatusLive:      StatusEnded,
}

// CanTransition reports whether a room may move from one status to another.
func CanTransition(from, to string) bool {
	next, ok := transitions[from]
	return ok && next == to
}

func validStatus(s string) bool {
	return s == StatusScheduled || s == StatusLive || s == StatusEnded
}

// Participant roles carried in SDK tokens.
const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

type Room struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	RoomName    string    `json:"room_name"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type StatusUpdate struct {
	Status string `json:"status"`
}

// JoinToken is what a participant needs to join the room through the SDK.
type JoinToken struct {
	Token     string    `json:"token"`
	RoomID    uuid.UUID `json:"room_id"`
	RoomName  string    `json:"room_name"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    string
	Limit     int
	Offset    int
}
