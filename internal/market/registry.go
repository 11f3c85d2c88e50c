package market

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry is the single source of truth for which shops and listings exist,
// indexed by id, by (owner, lowercased name), by exact point, and by coarse
// cell. Reads are safe from any goroutine; writes must be serialized by the
// caller (the market runtime loop). Uniqueness of names and points is the
// caller's responsibility: check IsNameTaken / ListingAt before registering.
type Registry struct {
	mu sync.RWMutex

	shopsByID         map[uuid.UUID]*Shop
	shopIDsByOwner    map[uuid.UUID][]uuid.UUID
	shopIDByOwnerName map[uuid.UUID]map[string]uuid.UUID

	listingsByID     map[uuid.UUID]*Listing
	listingIDsByShop map[uuid.UUID][]uuid.UUID
	listingsByPoint  map[Point]*Listing
	listingsByCell   map[Cell][]*Listing
	listingsByOwner  map[uuid.UUID][]*Listing
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.shopsByID = map[uuid.UUID]*Shop{}
	r.shopIDsByOwner = map[uuid.UUID][]uuid.UUID{}
	r.shopIDByOwnerName = map[uuid.UUID]map[string]uuid.UUID{}
	r.listingsByID = map[uuid.UUID]*Listing{}
	r.listingIDsByShop = map[uuid.UUID][]uuid.UUID{}
	r.listingsByPoint = map[Point]*Listing{}
	r.listingsByCell = map[Cell][]*Listing{}
	r.listingsByOwner = map[uuid.UUID][]*Listing{}
}

// Clear drops every shop and listing. Used by loaders and tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

func nameKey(name string) string { return strings.ToLower(name) }

// ===== shops =====

func (r *Registry) RegisterShop(s *Shop) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.shopsByID[s.ID] = s
	r.shopIDsByOwner[s.Owner] = append(r.shopIDsByOwner[s.Owner], s.ID)
	names := r.shopIDByOwnerName[s.Owner]
	if names == nil {
		names = map[string]uuid.UUID{}
		r.shopIDByOwnerName[s.Owner] = names
	}
	names[nameKey(s.Name)] = s.ID
}

// UnregisterShop removes the shop from every index and cascades to its
// listings. Unknown ids are a no-op.
func (r *Registry) UnregisterShop(id uuid.UUID) {
	r.mu.Lock()
	s, ok := r.shopsByID[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.shopsByID, id)

	owned := r.shopIDsByOwner[s.Owner]
	for i, have := range owned {
		if have == id {
			owned = append(owned[:i], owned[i+1:]...)
			break
		}
	}
	if len(owned) == 0 {
		delete(r.shopIDsByOwner, s.Owner)
	} else {
		r.shopIDsByOwner[s.Owner] = owned
	}

	if names := r.shopIDByOwnerName[s.Owner]; names != nil {
		delete(names, nameKey(s.Name))
		if len(names) == 0 {
			delete(r.shopIDByOwnerName, s.Owner)
		}
	}

	// Snapshot before unlocking: UnregisterListing retakes the lock.
	cascade := make([]uuid.UUID, len(s.listingIDs))
	copy(cascade, s.listingIDs)
	r.mu.Unlock()

	for _, lid := range cascade {
		r.UnregisterListing(lid)
	}
}

// RenameShop updates the shop's display name and the owner/name index
// together. The caller pre-checks IsNameTaken, same as registration.
func (r *Registry) RenameShop(id uuid.UUID, newName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shopsByID[id]
	if !ok {
		return false
	}
	names := r.shopIDByOwnerName[s.Owner]
	if names == nil {
		names = map[string]uuid.UUID{}
		r.shopIDByOwnerName[s.Owner] = names
	}
	delete(names, nameKey(s.Name))
	s.Name = newName
	names[nameKey(newName)] = id
	return true
}

func (r *Registry) Shop(id uuid.UUID) (*Shop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shopsByID[id]
	return s, ok
}

func (r *Registry) ShopByOwnerAndName(owner uuid.UUID, name string) (*Shop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.shopIDByOwnerName[owner]
	if names == nil {
		return nil, false
	}
	id, ok := names[nameKey(name)]
	if !ok {
		return nil, false
	}
	s, ok := r.shopsByID[id]
	return s, ok
}

func (r *Registry) ShopsByOwner(owner uuid.UUID) []*Shop {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.shopIDsByOwner[owner]
	out := make([]*Shop, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.shopsByID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) AllShops() []*Shop {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Shop, 0, len(r.shopsByID))
	for _, s := range r.shopsByID {
		out = append(out, s)
	}
	return out
}

func (r *Registry) ShopCount(owner uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shopIDsByOwner[owner])
}

func (r *Registry) IsNameTaken(owner uuid.UUID, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.shopIDByOwnerName[owner]
	if names == nil {
		return false
	}
	_, ok := names[nameKey(name)]
	return ok
}

// ===== listings =====

func (r *Registry) RegisterListing(l *Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listingsByID[l.ID] = l
	r.listingsByPoint[l.Pos] = l
	cell := l.Pos.Cell()
	r.listingsByCell[cell] = append(r.listingsByCell[cell], l)
	r.listingsByOwner[l.Owner] = append(r.listingsByOwner[l.Owner], l)
	r.listingIDsByShop[l.ShopID] = append(r.listingIDsByShop[l.ShopID], l.ID)

	if s, ok := r.shopsByID[l.ShopID]; ok {
		s.addListing(l.ID)
	}
}

func (r *Registry) UnregisterListing(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listingsByID[id]
	if !ok {
		return
	}
	delete(r.listingsByID, id)
	delete(r.listingsByPoint, l.Pos)

	cell := l.Pos.Cell()
	inCell := r.listingsByCell[cell]
	for i, have := range inCell {
		if have.ID == id {
			inCell = append(inCell[:i], inCell[i+1:]...)
			break
		}
	}
	if len(inCell) == 0 {
		delete(r.listingsByCell, cell)
	} else {
		r.listingsByCell[cell] = inCell
	}

	owned := r.listingsByOwner[l.Owner]
	for i, have := range owned {
		if have.ID == id {
			owned = append(owned[:i], owned[i+1:]...)
			break
		}
	}
	if len(owned) == 0 {
		delete(r.listingsByOwner, l.Owner)
	} else {
		r.listingsByOwner[l.Owner] = owned
	}

	inShop := r.listingIDsByShop[l.ShopID]
	for i, have := range inShop {
		if have == id {
			inShop = append(inShop[:i], inShop[i+1:]...)
			break
		}
	}
	if len(inShop) == 0 {
		delete(r.listingIDsByShop, l.ShopID)
	} else {
		r.listingIDsByShop[l.ShopID] = inShop
	}

	if s, ok := r.shopsByID[l.ShopID]; ok {
		s.removeListing(id)
	}
}

func (r *Registry) Listing(id uuid.UUID) (*Listing, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listingsByID[id]
	return l, ok
}

func (r *Registry) ListingAt(p Point) (*Listing, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listingsByPoint[p]
	return l, ok
}

func (r *Registry) ListingsInCell(c Cell) []*Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in := r.listingsByCell[c]
	out := make([]*Listing, len(in))
	copy(out, in)
	return out
}

func (r *Registry) ListingsByShop(shopID uuid.UUID) []*Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.listingIDsByShop[shopID]
	out := make([]*Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := r.listingsByID[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func (r *Registry) ListingsByOwner(owner uuid.UUID) []*Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in := r.listingsByOwner[owner]
	out := make([]*Listing, len(in))
	copy(out, in)
	return out
}

func (r *Registry) AllListings() []*Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Listing, 0, len(r.listingsByID))
	for _, l := range r.listingsByID {
		out = append(out, l)
	}
	return out
}

func (r *Registry) ListingCount(shopID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listingIDsByShop[shopID])
}
