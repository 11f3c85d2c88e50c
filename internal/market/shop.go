package market

import (
	"time"

	"github.com/google/uuid"
)

// Shop is a named collection of listings owned by one agent. The listing-id
// list is maintained by the Registry, never mutated directly by callers.
type Shop struct {
	ID        uuid.UUID
	Owner     uuid.UUID
	Name      string
	Territory string // "" = wilderness/unclaimed
	CreatedAt time.Time

	listingIDs []uuid.UUID
}

func NewShop(owner uuid.UUID, name string, territory string) *Shop {
	return &Shop{
		ID:        uuid.New(),
		Owner:     owner,
		Name:      name,
		Territory: territory,
		CreatedAt: time.Now(),
	}
}

// ListingIDs returns a copy; the backing slice belongs to the Registry.
func (s *Shop) ListingIDs() []uuid.UUID {
	out := make([]uuid.UUID, len(s.listingIDs))
	copy(out, s.listingIDs)
	return out
}

func (s *Shop) ListingCount() int { return len(s.listingIDs) }

func (s *Shop) addListing(id uuid.UUID) {
	for _, have := range s.listingIDs {
		if have == id {
			return
		}
	}
	s.listingIDs = append(s.listingIDs, id)
}

func (s *Shop) removeListing(id uuid.UUID) {
	for i, have := range s.listingIDs {
		if have == id {
			s.listingIDs = append(s.listingIDs[:i], s.listingIDs[i+1:]...)
			return
		}
	}
}
