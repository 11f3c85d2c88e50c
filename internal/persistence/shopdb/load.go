package shopdb

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"bazaarcraft/internal/market"
)

// LoadAll reads every stored shop and listing. Rows that cannot be resolved
// (unknown world, unknown item, malformed ids) are logged and skipped; a
// listing whose shop row is missing is skipped too.
func (s *Store) LoadAll(res Resolver) ([]*market.Shop, []*market.Listing, error) {
	if res == nil {
		res = AcceptAll{}
	}

	shops, err := s.loadShops()
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uuid.UUID]*market.Shop, len(shops))
	for _, sh := range shops {
		byID[sh.ID] = sh
	}

	listings, err := s.loadListings(res, byID)
	if err != nil {
		return nil, nil, err
	}
	return shops, listings, nil
}

func (s *Store) loadShops() ([]*market.Shop, error) {
	rows, err := s.db.Query(`SELECT id, owner, name, territory, created_at FROM shops`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*market.Shop
	for rows.Next() {
		var r shopRow
		if err := rows.Scan(&r.ID, &r.Owner, &r.Name, &r.Territory, &r.CreatedAt); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(r.ID)
		if err != nil {
			s.warnf("shopdb: skipping shop with bad id %q: %v", r.ID, err)
			continue
		}
		owner, err := uuid.Parse(r.Owner)
		if err != nil {
			s.warnf("shopdb: skipping shop %s with bad owner %q: %v", r.ID, r.Owner, err)
			continue
		}
		out = append(out, &market.Shop{
			ID:        id,
			Owner:     owner,
			Name:      r.Name,
			Territory: r.Territory,
			CreatedAt: time.UnixMilli(r.CreatedAt),
		})
	}
	return out, rows.Err()
}

func (s *Store) loadListings(res Resolver, shops map[uuid.UUID]*market.Shop) ([]*market.Listing, error) {
	rows, err := s.db.Query(
		`SELECT id, shop_id, owner, world, x, y, z, direction, item, price,
		        earnings, buy_limit, created_at, external_trade, reserved
		 FROM listings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*market.Listing
	for rows.Next() {
		var r listingRow
		if err := rows.Scan(&r.ID, &r.ShopID, &r.Owner, &r.World, &r.X, &r.Y, &r.Z,
			&r.Direction, &r.Item, &r.Price, &r.Earnings, &r.BuyLimit,
			&r.CreatedAt, &r.External, &r.Reserved); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(r.ID)
		if err != nil {
			s.warnf("shopdb: skipping listing with bad id %q: %v", r.ID, err)
			continue
		}
		shopID, err := uuid.Parse(r.ShopID)
		if err != nil {
			s.warnf("shopdb: skipping listing %s with bad shop id %q: %v", r.ID, r.ShopID, err)
			continue
		}
		if _, ok := shops[shopID]; !ok {
			s.warnf("shopdb: skipping listing %s: shop %s not found", r.ID, r.ShopID)
			continue
		}
		owner, err := uuid.Parse(r.Owner)
		if err != nil {
			s.warnf("shopdb: skipping listing %s with bad owner %q: %v", r.ID, r.Owner, err)
			continue
		}
		dir, ok := market.ParseDirection(r.Direction)
		if !ok {
			s.warnf("shopdb: skipping listing %s with bad direction %q", r.ID, r.Direction)
			continue
		}
		if !res.KnownWorld(r.World) {
			s.warnf("shopdb: skipping listing %s: unknown world %q", r.ID, r.World)
			continue
		}
		// Item "" is a listing still waiting for its first deposit.
		if r.Item != "" && !res.KnownItem(r.Item) {
			s.warnf("shopdb: skipping listing %s: unknown item %q", r.ID, r.Item)
			continue
		}

		reserved := map[string]int{}
		if r.Reserved != "" {
			if err := json.Unmarshal([]byte(r.Reserved), &reserved); err != nil {
				s.warnf("shopdb: listing %s: resetting unreadable reservations: %v", r.ID, err)
				reserved = map[string]int{}
			}
		}

		buyLimit := 0
		if r.BuyLimit.Valid {
			buyLimit = int(r.BuyLimit.Int64)
		}

		out = append(out, &market.Listing{
			ID:            id,
			ShopID:        shopID,
			Owner:         owner,
			Pos:           market.Point{World: r.World, X: r.X, Y: r.Y, Z: r.Z},
			Direction:     dir,
			Item:          r.Item,
			Price:         r.Price,
			Earnings:      r.Earnings,
			BuyLimit:      buyLimit,
			CreatedAt:     time.UnixMilli(r.CreatedAt),
			ExternalTrade: r.External,
			Reservations:  reserved,
		})
	}
	return out, rows.Err()
}

func (s *Store) warnf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
