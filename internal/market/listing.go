package market

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirSell Direction = "SELL" // agents buy from this listing
	DirBuy  Direction = "BUY"  // agents sell to this listing
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirSell:
		return DirSell, true
	case DirBuy:
		return DirBuy, true
	default:
		return "", false
	}
}

// Listing is a single priced, directional trading point tied to one physical
// container. Item == "" means the listing is uninitialized and will take on
// the item key of its first deposit.
type Listing struct {
	ID        uuid.UUID
	ShopID    uuid.UUID
	Owner     uuid.UUID // may diverge from the shop owner once a shop is shared
	Pos       Point
	Direction Direction
	Item      string
	Price     float64
	Earnings  float64
	BuyLimit  int // BUY listings only: max stock the owner wants to hold, 0 = unlimited
	CreatedAt time.Time

	// External trading: contract id -> reserved quantity.
	ExternalTrade bool
	Reservations  map[string]int

	Partnership *Partnership
}

func NewListing(shopID, owner uuid.UUID, pos Point, dir Direction, item string, price float64) *Listing {
	return &Listing{
		ID:           uuid.New(),
		ShopID:       shopID,
		Owner:        owner,
		Pos:          pos,
		Direction:    dir,
		Item:         item,
		Price:        price,
		CreatedAt:    time.Now(),
		Reservations: map[string]int{},
	}
}

// ReservedTotal is the sum of all contract holds on this listing's stock.
func (l *Listing) ReservedTotal() int {
	total := 0
	for _, q := range l.Reservations {
		total += q
	}
	return total
}

// RemainingBuyCapacity is how many more units a BUY listing will accept given
// its current physical stock. 0 means full (or unlimited / not a BUY listing,
// which callers check via BuyLimit first).
func (l *Listing) RemainingBuyCapacity(physicalStock int) int {
	if l.Direction != DirBuy || l.BuyLimit == 0 {
		return 0
	}
	remaining := l.BuyLimit - physicalStock
	if remaining < 0 {
		return 0
	}
	return remaining
}
