package market

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Validation errors surfaced by the shop/listing creation workflow. These
// cross the module boundary as values, never as panics.
var (
	ErrBadName         = errors.New("shop name empty or too long")
	ErrNameTaken       = errors.New("shop name already taken for this owner")
	ErrShopLimit       = errors.New("owner has reached the shop limit")
	ErrShopNotFound    = errors.New("shop not found")
	ErrListingLimit    = errors.New("shop has reached the listing limit")
	ErrPointOccupied   = errors.New("a listing already occupies this point")
	ErrBadPrice        = errors.New("price must be positive")
	ErrBadDirection    = errors.New("unknown listing direction")
	ErrListingNotFound = errors.New("listing not found")
	ErrItemConfigured  = errors.New("listing item is already configured")
)

const maxShopNameLen = 32

// Manager is the check-then-register workflow in front of the Registry:
// it owns the pre-checks (name uniqueness, caps, point occupancy) that the
// Registry contract pushes onto callers.
type Manager struct {
	registry  *Registry
	territory Territory // nil = everywhere is wilderness

	maxShopsPerOwner   int
	maxListingsPerShop int
}

func NewManager(registry *Registry, cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{
		registry:           registry,
		maxShopsPerOwner:   cfg.MaxShopsPerOwner,
		maxListingsPerShop: cfg.MaxListingsPerShop,
	}
}

func (m *Manager) SetTerritory(t Territory) { m.territory = t }

func (m *Manager) CreateShop(owner uuid.UUID, name string, pos Point) (*Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxShopNameLen {
		return nil, ErrBadName
	}
	if m.registry.IsNameTaken(owner, name) {
		return nil, ErrNameTaken
	}
	if m.maxShopsPerOwner > 0 && m.registry.ShopCount(owner) >= m.maxShopsPerOwner {
		return nil, ErrShopLimit
	}

	territory := ""
	if m.territory != nil {
		territory = m.territory.Name(pos)
	}

	s := NewShop(owner, name, territory)
	m.registry.RegisterShop(s)
	return s, nil
}

func (m *Manager) RenameShop(id uuid.UUID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" || len(newName) > maxShopNameLen {
		return ErrBadName
	}
	s, ok := m.registry.Shop(id)
	if !ok {
		return ErrShopNotFound
	}
	if !strings.EqualFold(s.Name, newName) && m.registry.IsNameTaken(s.Owner, newName) {
		return ErrNameTaken
	}
	m.registry.RenameShop(id, newName)
	return nil
}

// DeleteShop cascades to the shop's listings via the registry.
func (m *Manager) DeleteShop(id uuid.UUID) bool {
	if _, ok := m.registry.Shop(id); !ok {
		return false
	}
	m.registry.UnregisterShop(id)
	return true
}

func (m *Manager) CreateListing(shopID, owner uuid.UUID, pos Point, dir Direction, item string, price float64, buyLimit int) (*Listing, error) {
	if dir != DirSell && dir != DirBuy {
		return nil, ErrBadDirection
	}
	if price <= 0 {
		return nil, ErrBadPrice
	}
	if _, ok := m.registry.Shop(shopID); !ok {
		return nil, ErrShopNotFound
	}
	if _, occupied := m.registry.ListingAt(pos); occupied {
		return nil, ErrPointOccupied
	}
	if m.maxListingsPerShop > 0 && m.registry.ListingCount(shopID) >= m.maxListingsPerShop {
		return nil, ErrListingLimit
	}

	l := NewListing(shopID, owner, pos, dir, item, price)
	if buyLimit > 0 && dir == DirBuy {
		l.BuyLimit = buyLimit
	}
	m.registry.RegisterListing(l)
	return l, nil
}

func (m *Manager) DeleteListing(id uuid.UUID) bool {
	if _, ok := m.registry.Listing(id); !ok {
		return false
	}
	m.registry.UnregisterListing(id)
	return true
}

func (m *Manager) SetPrice(id uuid.UUID, price float64) error {
	l, ok := m.registry.Listing(id)
	if !ok {
		return ErrListingNotFound
	}
	if price <= 0 {
		return ErrBadPrice
	}
	l.Price = price
	return nil
}

// SetItem configures an uninitialized listing's item from its first deposit.
// Once set, the item key is fixed for the listing's lifetime.
func (m *Manager) SetItem(id uuid.UUID, item string) error {
	l, ok := m.registry.Listing(id)
	if !ok {
		return ErrListingNotFound
	}
	if l.Item != "" {
		return ErrItemConfigured
	}
	l.Item = item
	return nil
}

func (m *Manager) SetBuyLimit(id uuid.UUID, limit int) error {
	l, ok := m.registry.Listing(id)
	if !ok {
		return ErrListingNotFound
	}
	if limit < 0 {
		limit = 0
	}
	l.BuyLimit = limit
	return nil
}

func (m *Manager) SetExternalTrade(id uuid.UUID, enabled bool) error {
	l, ok := m.registry.Listing(id)
	if !ok {
		return ErrListingNotFound
	}
	l.ExternalTrade = enabled
	return nil
}

// ExternalListings enumerates external-trade-enabled listings, optionally
// filtered by region: the territory name at the listing's point, falling
// back to the world name when unclaimed.
func (m *Manager) ExternalListings(region string) []*Listing {
	out := []*Listing{}
	for _, l := range m.registry.AllListings() {
		if !l.ExternalTrade {
			continue
		}
		if region == "" {
			out = append(out, l)
			continue
		}
		name := ""
		if m.territory != nil {
			name = m.territory.Name(l.Pos)
		}
		if name == "" {
			name = l.Pos.World
		}
		if strings.EqualFold(name, region) {
			out = append(out, l)
		}
	}
	return out
}

// TotalEarnings sums accumulated earnings across a shop's listings.
func (m *Manager) TotalEarnings(shopID uuid.UUID) float64 {
	total := 0.0
	for _, l := range m.registry.ListingsByShop(shopID) {
		total += l.Earnings
	}
	return total
}
