// Package shopdb persists shops and listings to a local sqlite database.
// Writes are queued onto a single writer goroutine so the market loop never
// waits on disk; loading is synchronous and happens once at startup.
package shopdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"bazaarcraft/internal/market"
)

// Resolver decides whether a stored record still refers to a world and item
// the host can resolve. Records that fail are logged and skipped, never
// fatal: one broken row must not take the rest of the data down with it.
type Resolver interface {
	KnownWorld(world string) bool
	KnownItem(item string) bool
}

// AcceptAll resolves everything. Used when no catalog is configured.
type AcceptAll struct{}

func (AcceptAll) KnownWorld(string) bool { return true }
func (AcceptAll) KnownItem(string) bool  { return true }

type Store struct {
	db  *sql.DB
	log *log.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqSaveShop reqKind = iota + 1
	reqDeleteShop
	reqSaveListing
	reqDeleteListing
)

type req struct {
	kind    reqKind
	id      string
	shop    shopRow
	listing listingRow
	done    chan struct{} // flush sentinel, no write
}

type shopRow struct {
	ID        string
	Owner     string
	Name      string
	Territory string
	CreatedAt int64
}

type listingRow struct {
	ID        string
	ShopID    string
	Owner     string
	World     string
	X, Y, Z   int
	Direction string
	Item      string
	Price     float64
	Earnings  float64
	BuyLimit  sql.NullInt64 // null in legacy rows
	CreatedAt int64
	External  bool
	Reserved  string // json object: contract id -> qty
}

func Open(path string, logger *log.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:  db,
		log: logger,
		ch:  make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shops (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			name TEXT NOT NULL,
			territory TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_shops_owner ON shops(owner);`,
		`CREATE TABLE IF NOT EXISTS listings (
			id TEXT PRIMARY KEY,
			shop_id TEXT NOT NULL,
			owner TEXT NOT NULL,
			world TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			direction TEXT NOT NULL,
			item TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL,
			earnings REAL NOT NULL DEFAULT 0,
			buy_limit INTEGER,
			created_at INTEGER NOT NULL,
			external_trade INTEGER NOT NULL DEFAULT 0,
			reserved TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_shop ON listings(shop_id);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// ===== market.Store (async) =====

func (s *Store) SaveShop(shop *market.Shop) {
	s.enqueue(req{kind: reqSaveShop, shop: shopRow{
		ID:        shop.ID.String(),
		Owner:     shop.Owner.String(),
		Name:      shop.Name,
		Territory: shop.Territory,
		CreatedAt: shop.CreatedAt.UnixMilli(),
	}})
}

func (s *Store) DeleteShop(id uuid.UUID) {
	s.enqueue(req{kind: reqDeleteShop, id: id.String()})
}

func (s *Store) SaveListing(l *market.Listing) {
	reserved, err := json.Marshal(l.Reservations)
	if err != nil {
		reserved = []byte("{}")
	}
	s.enqueue(req{kind: reqSaveListing, listing: listingRow{
		ID:        l.ID.String(),
		ShopID:    l.ShopID.String(),
		Owner:     l.Owner.String(),
		World:     l.Pos.World,
		X:         l.Pos.X,
		Y:         l.Pos.Y,
		Z:         l.Pos.Z,
		Direction: string(l.Direction),
		Item:      l.Item,
		Price:     l.Price,
		Earnings:  l.Earnings,
		BuyLimit:  sql.NullInt64{Int64: int64(l.BuyLimit), Valid: true},
		CreatedAt: l.CreatedAt.UnixMilli(),
		External:  l.ExternalTrade,
		Reserved:  string(reserved),
	}})
}

func (s *Store) DeleteListing(id uuid.UUID) {
	s.enqueue(req{kind: reqDeleteListing, id: id.String()})
}

func (s *Store) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		if s.log != nil {
			s.log.Printf("shopdb: write queue full, dropping %d", r.kind)
		}
	}
}

func (s *Store) loop() {
	for r := range s.ch {
		if r.done != nil {
			close(r.done)
			continue
		}
		var err error
		switch r.kind {
		case reqSaveShop:
			_, err = s.db.Exec(
				`INSERT INTO shops (id, owner, name, territory, created_at)
				 VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET
				   owner=excluded.owner, name=excluded.name,
				   territory=excluded.territory, created_at=excluded.created_at`,
				r.shop.ID, r.shop.Owner, r.shop.Name, r.shop.Territory, r.shop.CreatedAt)
		case reqDeleteShop:
			_, err = s.db.Exec(`DELETE FROM shops WHERE id = ?`, r.id)
		case reqSaveListing:
			l := r.listing
			_, err = s.db.Exec(
				`INSERT INTO listings (id, shop_id, owner, world, x, y, z, direction,
				   item, price, earnings, buy_limit, created_at, external_trade, reserved)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET
				   shop_id=excluded.shop_id, owner=excluded.owner,
				   world=excluded.world, x=excluded.x, y=excluded.y, z=excluded.z,
				   direction=excluded.direction, item=excluded.item,
				   price=excluded.price, earnings=excluded.earnings,
				   buy_limit=excluded.buy_limit, created_at=excluded.created_at,
				   external_trade=excluded.external_trade, reserved=excluded.reserved`,
				l.ID, l.ShopID, l.Owner, l.World, l.X, l.Y, l.Z, l.Direction,
				l.Item, l.Price, l.Earnings, l.BuyLimit, l.CreatedAt, l.External, l.Reserved)
		case reqDeleteListing:
			_, err = s.db.Exec(`DELETE FROM listings WHERE id = ?`, r.id)
		}
		if err != nil && s.log != nil {
			s.log.Printf("shopdb: write failed: %v", err)
		}
	}
}

// Drain blocks until every write queued before the call has been applied.
func (s *Store) Drain() {
	if s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{done: done}
	<-done
}
