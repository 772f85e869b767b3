package pharmacy

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// Allocation is the quantity taken from one batch.
type Allocation struct {
	BatchID   uuid.UUID
	Take      int
	Remaining int
}

// AllocateFEFO takes qty units from batches, earliest expiry first. Batches
// that expired before today or hold no stock are skipped. When the usable
// stock is short of qty nothing is allocated and a conflict is returned.
func AllocateFEFO(batches []*Batch, qty int, today time.Time) ([]Allocation, error) {
	usable := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if b.Quantity > 0 && !b.ExpiryDate.Before(today) {
			usable = append(usable, b)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].ExpiryDate.Before(usable[j].ExpiryDate)
	})

	var out []Allocation
	need := qty
	for _, b := range usable {
		if need == 0 {
			break
		}
		take := b.Quantity
		if take > need {
			take = need
		}
		out = append(out, Allocation{BatchID: b.ID, Take: take, Remaining: b.Quantity - take})
		need -= take
	}
	if need > 0 {
		return nil, apperr.Conflict("insufficient stock: %d more units needed", need)
	}
	return out, nil
}

// startOfDay truncates t to midnight in its location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	return int(startOfDay(to).Sub(startOfDay(from)).Hours() / 24)
}
