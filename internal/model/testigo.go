package model

import (
	"sort"
	"time"
)

// Testigo is a witness a user designated to confirm their death.
type Testigo struct {
	ID        string    `firestore:"-" json:"id"`
	UserID    string    `firestore:"userId" json:"userId"`
	Name      string    `firestore:"name" json:"name"`
	Email     string    `firestore:"email" json:"email"`
	Phone     string    `firestore:"phone,omitempty" json:"phone,omitempty"`
	ImageURL  string    `firestore:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Priority  int       `firestore:"priority,omitempty" json:"priority,omitempty"`
	CreatedAt time.Time `firestore:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// PrimaryTestigo picks the witness with the lowest priority, breaking ties by
// creation time and then by id. Returns nil for an empty slice.
func PrimaryTestigo(testigos []*Testigo) *Testigo {
	if len(testigos) == 0 {
		return nil
	}
	sorted := make([]*Testigo, len(testigos))
	copy(sorted, testigos)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return sorted[0]
}
