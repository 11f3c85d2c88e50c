package shopdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"bazaarcraft/internal/market"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "market.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	owner := uuid.New()
	shop := market.NewShop(owner, "Iron Works", "Rivertown")
	l := market.NewListing(shop.ID, owner, market.Point{World: "overworld", X: 10, Y: 64, Z: -3}, market.DirBuy, "coal", 2.5)
	l.BuyLimit = 64
	l.Earnings = 17.25
	l.ExternalTrade = true
	l.Reservations["contract-1"] = 4

	s.SaveShop(shop)
	s.SaveListing(l)
	s.Drain()

	shops, listings, err := s.LoadAll(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(shops) != 1 || len(listings) != 1 {
		t.Fatalf("loaded %d shops, %d listings", len(shops), len(listings))
	}

	gotShop := shops[0]
	if gotShop.ID != shop.ID || gotShop.Owner != owner || gotShop.Name != "Iron Works" || gotShop.Territory != "Rivertown" {
		t.Fatalf("shop = %+v", gotShop)
	}
	if gotShop.CreatedAt.UnixMilli() != shop.CreatedAt.UnixMilli() {
		t.Fatalf("created_at drifted: %v vs %v", gotShop.CreatedAt, shop.CreatedAt)
	}

	got := listings[0]
	if got.ID != l.ID || got.ShopID != shop.ID || got.Pos != l.Pos {
		t.Fatalf("listing identity = %+v", got)
	}
	if got.Direction != market.DirBuy || got.Item != "coal" || got.Price != 2.5 {
		t.Fatalf("listing config = %+v", got)
	}
	if got.BuyLimit != 64 || got.Earnings != 17.25 || !got.ExternalTrade {
		t.Fatalf("listing state = %+v", got)
	}
	if got.Reservations["contract-1"] != 4 {
		t.Fatalf("reservations = %v", got.Reservations)
	}
}

func TestStore_UpsertAndDelete(t *testing.T) {
	s := openTestStore(t)

	owner := uuid.New()
	shop := market.NewShop(owner, "First", "")
	s.SaveShop(shop)

	shop.Name = "Renamed"
	s.SaveShop(shop)

	l := market.NewListing(shop.ID, owner, market.Point{World: "overworld", X: 1, Y: 64, Z: 1}, market.DirSell, "coal", 2)
	s.SaveListing(l)
	s.DeleteListing(l.ID)
	s.Drain()

	shops, listings, err := s.LoadAll(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(shops) != 1 || shops[0].Name != "Renamed" {
		t.Fatalf("upsert: %d shops, name %q", len(shops), shops[0].Name)
	}
	if len(listings) != 0 {
		t.Fatalf("deleted listing survived: %d", len(listings))
	}

	s.DeleteShop(shop.ID)
	s.Drain()
	shops, _, _ = s.LoadAll(nil)
	if len(shops) != 0 {
		t.Fatalf("deleted shop survived")
	}
}

type worldGate struct{ world string }

func (g worldGate) KnownWorld(w string) bool { return w == g.world }
func (g worldGate) KnownItem(string) bool    { return true }

func TestStore_LoadSkipsUnresolvableRows(t *testing.T) {
	s := openTestStore(t)

	owner := uuid.New()
	shop := market.NewShop(owner, "Iron Works", "")
	ok := market.NewListing(shop.ID, owner, market.Point{World: "overworld", X: 1, Y: 64, Z: 1}, market.DirSell, "coal", 2)
	gone := market.NewListing(shop.ID, owner, market.Point{World: "deleted_world", X: 1, Y: 64, Z: 1}, market.DirSell, "coal", 2)
	orphan := market.NewListing(uuid.New(), owner, market.Point{World: "overworld", X: 2, Y: 64, Z: 1}, market.DirSell, "coal", 2)

	s.SaveShop(shop)
	s.SaveListing(ok)
	s.SaveListing(gone)
	s.SaveListing(orphan)
	s.Drain()

	_, listings, err := s.LoadAll(worldGate{world: "overworld"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(listings) != 1 || listings[0].ID != ok.ID {
		t.Fatalf("loaded %d listings, want only the resolvable one", len(listings))
	}
}

func TestStore_LegacyNullBuyLimit(t *testing.T) {
	s := openTestStore(t)

	owner := uuid.New()
	shop := market.NewShop(owner, "Iron Works", "")
	s.SaveShop(shop)
	s.Drain()

	// Legacy rows predate the buy_limit column's population.
	_, err := s.db.Exec(
		`INSERT INTO listings (id, shop_id, owner, world, x, y, z, direction,
		   item, price, earnings, buy_limit, created_at, external_trade, reserved)
		 VALUES (?, ?, ?, 'overworld', 0, 64, 0, 'BUY', 'coal', 2, 0, NULL, ?, 0, '{}')`,
		uuid.NewString(), shop.ID.String(), owner.String(), time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	_, listings, err := s.LoadAll(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("loaded %d listings", len(listings))
	}
	if listings[0].BuyLimit != 0 {
		t.Fatalf("null buy_limit should load as 0, got %d", listings[0].BuyLimit)
	}
	if listings[0].Reservations == nil {
		t.Fatalf("reservations map must be initialized")
	}
}
