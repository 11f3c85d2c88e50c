package market_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"bazaarcraft/internal/market"
	"bazaarcraft/internal/protocol"
	"bazaarcraft/internal/sim"
)

type runtimeFixture struct {
	world *sim.World
	rt    *market.Runtime
	out   chan []byte
	agent uuid.UUID

	cancel context.CancelFunc
}

func newRuntimeFixture(t *testing.T) *runtimeFixture {
	t.Helper()
	w := sim.NewWorld()
	registry := market.NewRegistry()
	cfg := market.Config{MaxShopsPerOwner: 5, MaxListingsPerShop: 10, NotifyInterval: time.Hour}
	ledger := market.NewLedger(w, w, nil)
	engine := market.NewEngine(registry, w, w, w, ledger)
	manager := market.NewManager(registry, cfg)
	rt := market.NewRuntime(nil, cfg, registry, manager, engine, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rt.Run(ctx) }()

	f := &runtimeFixture{
		world:  w,
		rt:     rt,
		out:    make(chan []byte, 64),
		agent:  uuid.New(),
		cancel: cancel,
	}
	t.Cleanup(cancel)

	resp := make(chan market.JoinResponse, 1)
	rt.Join() <- market.JoinRequest{AgentID: f.agent, Name: "alex", Out: f.out, Resp: resp}
	select {
	case r := <-resp:
		if r.AgentID != f.agent {
			t.Fatalf("join echoed %s, want %s", r.AgentID, f.agent)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("join timed out")
	}
	return f
}

func (f *runtimeFixture) do(t *testing.T, op protocol.OpMsg) protocol.ResultMsg {
	t.Helper()
	op.Type = protocol.TypeOp
	op.ProtocolVersion = protocol.Version
	if op.ID == "" {
		op.ID = "op-1"
	}
	f.rt.Ops() <- market.OpEnvelope{Agent: f.agent, AgentName: "alex", Op: op, Out: f.out}

	select {
	case raw := <-f.out:
		var res protocol.ResultMsg
		if err := json.Unmarshal(raw, &res); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if res.Ref != op.ID {
			t.Fatalf("ref = %q, want %q", res.Ref, op.ID)
		}
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("no result for %s", op.Op)
		return protocol.ResultMsg{}
	}
}

func TestRuntime_ShopAndListingLifecycle(t *testing.T) {
	f := newRuntimeFixture(t)

	created := f.do(t, protocol.OpMsg{Op: protocol.OpShopCreate, Name: "Iron Works", World: "overworld", X: 0, Y: 64, Z: 0})
	if !created.OK {
		t.Fatalf("SHOP_CREATE: %+v", created)
	}
	shopID, _ := created.Data["id"].(string)
	if shopID == "" {
		t.Fatalf("SHOP_CREATE returned no id")
	}

	dup := f.do(t, protocol.OpMsg{Op: protocol.OpShopCreate, Name: "iron WORKS", World: "overworld", X: 0, Y: 64, Z: 0})
	if dup.OK || dup.Code != protocol.ErrNameTaken {
		t.Fatalf("duplicate name: %+v", dup)
	}

	listing := f.do(t, protocol.OpMsg{
		Op: protocol.OpListingCreate, Shop: shopID,
		World: "overworld", X: 10, Y: 64, Z: 10,
		Direction: "SELL", Item: "iron_ingot", Price: 10,
	})
	if !listing.OK {
		t.Fatalf("LISTING_CREATE: %+v", listing)
	}
	listingID, _ := listing.Data["id"].(string)

	occupied := f.do(t, protocol.OpMsg{
		Op: protocol.OpListingCreate, Shop: shopID,
		World: "overworld", X: 10, Y: 64, Z: 10,
		Direction: "SELL", Item: "coal", Price: 1,
	})
	if occupied.OK || occupied.Code != protocol.ErrPointOccupied {
		t.Fatalf("occupied point: %+v", occupied)
	}

	near := f.do(t, protocol.OpMsg{Op: protocol.OpListingsNear, World: "overworld", X: 12, Y: 70, Z: 8})
	if !near.OK {
		t.Fatalf("LISTINGS_NEAR: %+v", near)
	}
	if got, _ := near.Data["listings"].([]any); len(got) != 1 {
		t.Fatalf("LISTINGS_NEAR found %d listings", len(near.Data["listings"].([]any)))
	}

	byPoint := f.do(t, protocol.OpMsg{Op: protocol.OpListingAt, World: "overworld", X: 10, Y: 64, Z: 10})
	if !byPoint.OK {
		t.Fatalf("LISTING_AT: %+v", byPoint)
	}
	if got, _ := byPoint.Data["id"].(string); got != listingID {
		t.Fatalf("LISTING_AT returned %q, want %q", got, listingID)
	}

	deleted := f.do(t, protocol.OpMsg{Op: protocol.OpShopDelete, Shop: shopID})
	if !deleted.OK {
		t.Fatalf("SHOP_DELETE: %+v", deleted)
	}
	gone := f.do(t, protocol.OpMsg{Op: protocol.OpListingGet, Listing: listingID})
	if gone.OK || gone.Code != protocol.ErrNotFound {
		t.Fatalf("cascade: %+v", gone)
	}
}

func TestRuntime_ShopGetBadID(t *testing.T) {
	f := newRuntimeFixture(t)

	got := f.do(t, protocol.OpMsg{Op: protocol.OpShopGet, Shop: "not-a-uuid"})
	if got.OK || got.Code != protocol.ErrBadRequest {
		t.Fatalf("SHOP_GET with bad id: %+v", got)
	}
}

func TestRuntime_BuyThroughOps(t *testing.T) {
	f := newRuntimeFixture(t)

	created := f.do(t, protocol.OpMsg{Op: protocol.OpShopCreate, Name: "Iron Works", World: "overworld", X: 0, Y: 64, Z: 0})
	shopID := created.Data["id"].(string)
	listing := f.do(t, protocol.OpMsg{
		Op: protocol.OpListingCreate, Shop: shopID,
		World: "overworld", X: 10, Y: 64, Z: 10,
		Direction: "SELL", Item: "iron_ingot", Price: 10,
	})
	listingID := listing.Data["id"].(string)

	f.world.PutContainer(market.Point{World: "overworld", X: 10, Y: 64, Z: 10}, "iron_ingot", 5)
	f.world.SetBalance(f.agent, 100)

	bought := f.do(t, protocol.OpMsg{Op: protocol.OpBuy, Listing: listingID, Quantity: 3})
	if !bought.OK {
		t.Fatalf("BUY: %+v", bought)
	}
	if got := bought.Data["outcome"].(string); got != "SUCCESS" {
		t.Fatalf("outcome = %q", got)
	}
	if got := bought.Data["total"].(float64); got != 30 {
		t.Fatalf("total = %v", got)
	}

	// 70 left in the wallet covers 7 at price 10, but only 2 remain in stock.
	short := f.do(t, protocol.OpMsg{Op: protocol.OpBuy, Listing: listingID, Quantity: 7})
	if short.OK || short.Code != protocol.ErrRejected {
		t.Fatalf("overdraw: %+v", short)
	}
	if got := short.Data["outcome"].(string); got != "INSUFFICIENT_STOCK" {
		t.Fatalf("overdraw outcome = %q", got)
	}
}

func TestRuntime_OwnershipEnforced(t *testing.T) {
	f := newRuntimeFixture(t)

	created := f.do(t, protocol.OpMsg{Op: protocol.OpShopCreate, Name: "Iron Works", World: "overworld", X: 0, Y: 64, Z: 0})
	shopID := created.Data["id"].(string)
	listing := f.do(t, protocol.OpMsg{
		Op: protocol.OpListingCreate, Shop: shopID,
		World: "overworld", X: 10, Y: 64, Z: 10,
		Direction: "SELL", Item: "iron_ingot", Price: 10,
	})
	listingID := listing.Data["id"].(string)

	// A different agent may buy but not reprice.
	stranger := uuid.New()
	strangerOut := make(chan []byte, 8)
	resp := make(chan market.JoinResponse, 1)
	f.rt.Join() <- market.JoinRequest{AgentID: stranger, Name: "bob", Out: strangerOut, Resp: resp}
	<-resp

	f.rt.Ops() <- market.OpEnvelope{
		Agent: stranger, AgentName: "bob",
		Op: protocol.OpMsg{
			Type: protocol.TypeOp, ProtocolVersion: protocol.Version,
			ID: "op-x", Op: protocol.OpSetPrice, Listing: listingID, Price: 1,
		},
		Out: strangerOut,
	}
	select {
	case raw := <-strangerOut:
		var res protocol.ResultMsg
		if err := json.Unmarshal(raw, &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if res.OK || res.Code != protocol.ErrNoPermission {
			t.Fatalf("stranger reprice: %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no result")
	}
}

func TestRuntime_ExternalTradeOps(t *testing.T) {
	f := newRuntimeFixture(t)

	created := f.do(t, protocol.OpMsg{Op: protocol.OpShopCreate, Name: "Iron Works", World: "overworld", X: 0, Y: 64, Z: 0})
	shopID := created.Data["id"].(string)
	listing := f.do(t, protocol.OpMsg{
		Op: protocol.OpListingCreate, Shop: shopID,
		World: "overworld", X: 10, Y: 64, Z: 10,
		Direction: "SELL", Item: "iron_ingot", Price: 10,
	})
	listingID := listing.Data["id"].(string)
	f.world.PutContainer(market.Point{World: "overworld", X: 10, Y: 64, Z: 10}, "iron_ingot", 10)

	// Reserve before enabling external trade is refused.
	refused := f.do(t, protocol.OpMsg{Op: protocol.OpReserve, Listing: listingID, Contract: "c1", Quantity: 4})
	if refused.OK {
		t.Fatalf("reserve without external trade: %+v", refused)
	}

	enabled := f.do(t, protocol.OpMsg{Op: protocol.OpSetExternal, Listing: listingID})
	if !enabled.OK {
		t.Fatalf("SET_EXTERNAL: %+v", enabled)
	}

	reserved := f.do(t, protocol.OpMsg{Op: protocol.OpReserve, Listing: listingID, Contract: "c1", Quantity: 4})
	if !reserved.OK {
		t.Fatalf("RESERVE: %+v", reserved)
	}
	if got := reserved.Data["available"].(float64); got != 6 {
		t.Fatalf("available = %v, want 6", got)
	}

	settled := f.do(t, protocol.OpMsg{Op: protocol.OpSettle, Listing: listingID, Contract: "c1", Amount: 38.5})
	if !settled.OK {
		t.Fatalf("SETTLE: %+v", settled)
	}
	if got := f.world.ContainerCount(market.Point{World: "overworld", X: 10, Y: 64, Z: 10}, "iron_ingot"); got != 6 {
		t.Fatalf("stock = %d after settle, want 6", got)
	}

	again := f.do(t, protocol.OpMsg{Op: protocol.OpSettle, Listing: listingID, Contract: "c1", Amount: 38.5})
	if again.OK || again.Code != protocol.ErrRejected {
		t.Fatalf("double settle: %+v", again)
	}

	ext := f.do(t, protocol.OpMsg{Op: protocol.OpListingsExternal, Region: "overworld"})
	if !ext.OK {
		t.Fatalf("LISTINGS_EXTERNAL: %+v", ext)
	}
	if got, _ := ext.Data["listings"].([]any); len(got) != 1 {
		t.Fatalf("LISTINGS_EXTERNAL found %d listings, want 1", len(got))
	}
}
