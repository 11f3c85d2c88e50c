package market

import (
	"errors"

	"github.com/google/uuid"

	"bazaarcraft/internal/protocol"
)

func (rt *Runtime) result(env OpEnvelope, ok bool, code, msg string, data map[string]any) {
	rt.send(env.Out, protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Ref:             env.Op.ID,
		OK:              ok,
		Code:            code,
		Message:         msg,
		Data:            data,
	})
}

func (rt *Runtime) fail(env OpEnvelope, code, msg string) {
	rt.result(env, false, code, msg, nil)
}

func errCode(err error) string {
	switch {
	case errors.Is(err, ErrNameTaken):
		return protocol.ErrNameTaken
	case errors.Is(err, ErrPointOccupied):
		return protocol.ErrPointOccupied
	case errors.Is(err, ErrShopLimit), errors.Is(err, ErrListingLimit):
		return protocol.ErrLimit
	case errors.Is(err, ErrShopNotFound), errors.Is(err, ErrListingNotFound):
		return protocol.ErrNotFound
	default:
		return protocol.ErrBadRequest
	}
}

func shopData(s *Shop, listingCount int) map[string]any {
	return map[string]any{
		"id": s.ID.String(), "owner": s.Owner.String(), "name": s.Name,
		"territory": s.Territory, "created_at": s.CreatedAt.UnixMilli(),
		"listings": listingCount,
	}
}

func listingData(l *Listing) map[string]any {
	return map[string]any{
		"id": l.ID.String(), "shop": l.ShopID.String(), "owner": l.Owner.String(),
		"world": l.Pos.World, "x": l.Pos.X, "y": l.Pos.Y, "z": l.Pos.Z,
		"direction": string(l.Direction), "item": l.Item, "price": l.Price,
		"earnings": l.Earnings, "buy_limit": l.BuyLimit,
		"external_trade": l.ExternalTrade, "reserved": l.ReservedTotal(),
	}
}

func receiptData(r Receipt) map[string]any {
	return map[string]any{
		"outcome": string(r.Outcome), "quantity": r.Quantity,
		"total": r.Total, "tax": r.Tax, "territory": r.Territory,
	}
}

func (rt *Runtime) dispatch(env OpEnvelope) {
	op := env.Op
	switch op.Op {
	case protocol.OpShopCreate:
		s, err := rt.manager.CreateShop(env.Agent, op.Name, pointFromOp(op))
		if err != nil {
			rt.fail(env, errCode(err), err.Error())
			return
		}
		rt.saveShop(s)
		rt.result(env, true, "", "", shopData(s, 0))

	case protocol.OpShopRename:
		id, ok := parseID(op.Shop)
		if !ok {
			rt.fail(env, protocol.ErrBadRequest, "bad shop id")
			return
		}
		if !rt.ownsShop(env, id) {
			return
		}
		if err := rt.manager.RenameShop(id, op.Name); err != nil {
			rt.fail(env, errCode(err), err.Error())
			return
		}
		if s, ok := rt.registry.Shop(id); ok {
			rt.saveShop(s)
		}
		rt.result(env, true, "", "", nil)

	case protocol.OpShopDelete:
		id, ok := parseID(op.Shop)
		if !ok {
			rt.fail(env, protocol.ErrBadRequest, "bad shop id")
			return
		}
		if !rt.ownsShop(env, id) {
			return
		}
		listings := rt.registry.ListingsByShop(id)
		if !rt.manager.DeleteShop(id) {
			rt.fail(env, protocol.ErrNotFound, "shop not found")
			return
		}
		if rt.store != nil {
			for _, l := range listings {
				rt.store.DeleteListing(l.ID)
			}
			rt.store.DeleteShop(id)
		}
		rt.result(env, true, "", "", nil)

	case protocol.OpShopGet:
		var s *Shop
		var ok bool
		if op.Shop != "" {
			id, idOK := parseID(op.Shop)
			if !idOK {
				rt.fail(env, protocol.ErrBadRequest, "bad shop id")
				return
			}
			s, ok = rt.registry.Shop(id)
		} else {
			owner := env.Agent
			if op.Partner != "" {
				if id, pok := parseID(op.Partner); pok {
					owner = id
				}
			}
			s, ok = rt.registry.ShopByOwnerAndName(owner, op.Name)
		}
		if !ok {
			rt.fail(env, protocol.ErrNotFound, "shop not found")
			return
		}
		rt.result(env, true, "", "", shopData(s, rt.registry.ListingCount(s.ID)))

	case protocol.OpShopList:
		shops := rt.registry.ShopsByOwner(env.Agent)
		out := make([]map[string]any, 0, len(shops))
		for _, s := range shops {
			out = append(out, shopData(s, rt.registry.ListingCount(s.ID)))
		}
		rt.result(env, true, "", "", map[string]any{"shops": out})

	case protocol.OpListingCreate:
		shopID, ok := parseID(op.Shop)
		if !ok {
			rt.fail(env, protocol.ErrBadRequest, "bad shop id")
			return
		}
		if !rt.ownsShop(env, shopID) {
			return
		}
		dir, ok := ParseDirection(op.Direction)
		if !ok {
			rt.fail(env, protocol.ErrBadRequest, "bad direction")
			return
		}
		l, err := rt.manager.CreateListing(shopID, env.Agent, pointFromOp(op), dir, op.Item, op.Price, op.Limit)
		if err != nil {
			rt.fail(env, errCode(err), err.Error())
			return
		}
		rt.saveListing(l)
		rt.result(env, true, "", "", listingData(l))

	case protocol.OpListingDelete:
		l, ok := rt.listingForOwner(env)
		if !ok {
			return
		}
		rt.manager.DeleteListing(l.ID)
		if rt.store != nil {
			rt.store.DeleteListing(l.ID)
		}
		rt.result(env, true, "", "", nil)

	case protocol.OpListingGet:
		id, ok := parseID(op.Listing)
		if !ok {
			rt.fail(env, protocol.ErrBadRequest, "bad listing id")
			return
		}
		l, ok := rt.registry.Listing(id)
		if !ok {
			rt.fail(env, protocol.ErrNotFound, "listing not found")
			return
		}
		rt.result(env, true, "", "", listingData(l))

	case protocol.OpListingAt:
		l, ok := rt.registry.ListingAt(pointFromOp(op))
		if !ok {
			rt.fail(env, protocol.ErrNotFound, "no listing at point")
			return
		}
		rt.result(env, true, "", "", listingData(l))

	case protocol.OpListingsNear:
		cell := pointFromOp(op).Cell()
		listings := rt.registry.ListingsInCell(cell)
		out := make([]map[string]any, 0, len(listings))
		for _, l := range listings {
			out = append(out, listingData(l))
		}
		rt.result(env, true, "", "", map[string]any{"listings": out})

	case protocol.OpListingsExternal:
		listings := rt.manager.ExternalListings(op.Region)
		out := make([]map[string]any, 0, len(listings))
		for _, l := range listings {
			out = append(out, listingData(l))
		}
		rt.result(env, true, "", "", map[string]any{"listings": out})

	case protocol.OpSetPrice:
		l, ok := rt.listingForOwner(env)
		if !ok {
			return
		}
		if err := rt.manager.SetPrice(l.ID, op.Price); err != nil {
			rt.fail(env, errCode(err), err.Error())
			return
		}
		rt.saveListing(l)
		rt.result(env, true, "", "", nil)

	case protocol.OpSetItem:
		l, ok := rt.listingForOwner(env)
		if !ok {
			return
		}
		if err := rt.manager.SetItem(l.ID, op.Item); err != nil {
			rt.fail(env, errCode(err), err.Error())
			return
		}
		rt.saveListing(l)
		rt.result(env, true, "", "", nil)

	case protocol.OpSetBuyLimit:
		l, ok := rt.listingForOwner(env)
		if !ok {
			return
		}
		if err := rt.manager.SetBuyLimit(l.ID, op.Limit); err != nil {
			rt.fail(env, errCode(err), err.Error())
			return
		}
		rt.saveListing(l)
		rt.result(env, true, "", "", nil)

	case protocol.OpSetExternal:
		l, ok := rt.listingForOwner(env)
		if !ok {
			return
		}
		enabled := true
		if op.Enabled != nil {
			enabled = *op.Enabled
		}
		if err := rt.manager.SetExternalTrade(l.ID, enabled); err != nil {
			rt.fail(env, errCode(err), err.Error())
			return
		}
		rt.saveListing(l)
		rt.result(env, true, "", "", nil)

	case protocol.OpBuy:
		l, ok := rt.listingByRef(env)
		if !ok {
			return
		}
		r := rt.engine.ProcessBuy(env.Agent, env.AgentName, l, op.Quantity)
		rt.saveListing(l)
		rt.result(env, r.Outcome == Success, rejectedCode(r.Outcome), "", receiptData(r))

	case protocol.OpSell:
		l, ok := rt.listingByRef(env)
		if !ok {
			return
		}
		r := rt.engine.ProcessSell(env.Agent, env.AgentName, l, op.Quantity)
		rt.saveListing(l)
		rt.result(env, r.Outcome == Success, rejectedCode(r.Outcome), "", receiptData(r))

	case protocol.OpCollect:
		l, ok := rt.listingForOwner(env)
		if !ok {
			return
		}
		er := rt.engine.CollectEarnings(l)
		rt.saveListing(l)
		split := map[string]float64{}
		for agent, amount := range er.Split {
			split[agent.String()] = amount
		}
		rt.result(env, true, "", "", map[string]any{
			"gross": er.Gross, "tax": er.Tax, "net": er.Net,
			"territory": er.Territory, "split": split,
		})

	case protocol.OpReserve:
		l, ok := rt.listingByRef(env)
		if !ok {
			return
		}
		reserved := rt.ledger.Reserve(l, op.Contract, op.Quantity)
		rt.observeReservation("reserve", reserved)
		if reserved {
			rt.saveListing(l)
			rt.result(env, true, "", "", map[string]any{"available": rt.ledger.Available(l)})
			return
		}
		rt.fail(env, protocol.ErrRejected, "reservation refused")

	case protocol.OpRelease:
		l, ok := rt.listingByRef(env)
		if !ok {
			return
		}
		rt.ledger.Release(l, op.Contract)
		rt.observeReservation("release", true)
		rt.saveListing(l)
		rt.result(env, true, "", "", nil)

	case protocol.OpSettle:
		l, ok := rt.listingByRef(env)
		if !ok {
			return
		}
		settled := rt.ledger.Settle(l, op.Contract, op.Amount)
		rt.observeReservation("settle", settled)
		if settled {
			rt.saveListing(l)
			rt.result(env, true, "", "", nil)
			return
		}
		rt.fail(env, protocol.ErrRejected, "settlement refused")

	case protocol.OpPartnerAdd, protocol.OpPartnerUpdate, protocol.OpPartnerRemove:
		rt.dispatchPartner(env)

	default:
		rt.logf("unknown op %q from %s", op.Op, env.Agent)
		rt.fail(env, protocol.ErrBadRequest, "unknown op")
	}
}

func (rt *Runtime) dispatchPartner(env OpEnvelope) {
	l, ok := rt.listingForOwner(env)
	if !ok {
		return
	}
	partner, ok := parseID(env.Op.Partner)
	if !ok {
		rt.fail(env, protocol.ErrBadRequest, "bad partner id")
		return
	}
	if l.Partnership == nil {
		l.Partnership = NewPartnership(l.ID, l.Owner)
	}
	p := l.Partnership
	var applied bool
	switch env.Op.Op {
	case protocol.OpPartnerAdd:
		applied = p.AddPartner(partner, env.Op.Share)
	case protocol.OpPartnerUpdate:
		applied = p.UpdatePartnerShare(partner, env.Op.Share)
	case protocol.OpPartnerRemove:
		applied = p.RemovePartner(partner)
	}
	if !applied {
		rt.fail(env, protocol.ErrRejected, "partner change refused")
		return
	}
	rt.result(env, true, "", "", map[string]any{
		"owner_share": p.OwnerShare(), "partners": p.PartnerCount(),
	})
}

// ===== helpers =====

func parseID(s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func pointFromOp(op protocol.OpMsg) Point {
	return Point{World: op.World, X: op.X, Y: op.Y, Z: op.Z}
}

func rejectedCode(o Outcome) string {
	if o == Success {
		return ""
	}
	return protocol.ErrRejected
}

// listingByRef resolves the op's listing by id or by point. Emits the
// failure result itself when unresolved.
func (rt *Runtime) listingByRef(env OpEnvelope) (*Listing, bool) {
	op := env.Op
	if op.Listing != "" {
		id, ok := parseID(op.Listing)
		if !ok {
			rt.fail(env, protocol.ErrBadRequest, "bad listing id")
			return nil, false
		}
		l, ok := rt.registry.Listing(id)
		if !ok {
			rt.fail(env, protocol.ErrNotFound, "listing not found")
			return nil, false
		}
		return l, true
	}
	l, ok := rt.registry.ListingAt(pointFromOp(op))
	if !ok {
		rt.fail(env, protocol.ErrNotFound, "no listing at point")
		return nil, false
	}
	return l, true
}

// listingForOwner additionally requires the caller to own the listing.
func (rt *Runtime) listingForOwner(env OpEnvelope) (*Listing, bool) {
	l, ok := rt.listingByRef(env)
	if !ok {
		return nil, false
	}
	if l.Owner != env.Agent {
		rt.fail(env, protocol.ErrNoPermission, "not your listing")
		return nil, false
	}
	return l, true
}

func (rt *Runtime) ownsShop(env OpEnvelope, shopID uuid.UUID) bool {
	s, ok := rt.registry.Shop(shopID)
	if !ok {
		rt.fail(env, protocol.ErrNotFound, "shop not found")
		return false
	}
	if s.Owner != env.Agent {
		rt.fail(env, protocol.ErrNoPermission, "not your shop")
		return false
	}
	return true
}

func (rt *Runtime) observeReservation(action string, ok bool) {
	if rt.metrics != nil {
		rt.metrics.ObserveReservation(action, ok)
	}
}

func (rt *Runtime) saveShop(s *Shop) {
	if rt.store != nil {
		rt.store.SaveShop(s)
	}
}

func (rt *Runtime) saveListing(l *Listing) {
	if rt.store != nil {
		rt.store.SaveListing(l)
	}
}
