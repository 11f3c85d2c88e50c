package market

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type captureSink struct {
	mu       sync.Mutex
	sales    map[uuid.UUID][]SaleNote
	payouts  map[uuid.UUID][]PayoutNote
	lowStock []string
}

func newCaptureSink() *captureSink {
	return &captureSink{
		sales:   map[uuid.UUID][]SaleNote{},
		payouts: map[uuid.UUID][]PayoutNote{},
	}
}

func (c *captureSink) DeliverSales(owner uuid.UUID, sales []SaleNote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sales[owner] = append(c.sales[owner], sales...)
}

func (c *captureSink) DeliverPayouts(partner uuid.UUID, payouts []PayoutNote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payouts[partner] = append(c.payouts[partner], payouts...)
}

func (c *captureSink) DeliverLowStock(owner uuid.UUID, shopName, item string, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lowStock = append(c.lowStock, item)
}

func (c *captureSink) salesFor(owner uuid.UUID) []SaleNote {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SaleNote, len(c.sales[owner]))
	copy(out, c.sales[owner])
	return out
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func TestBatcher_FlushesAndStopsWhenDrained(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, Config{NotifyInterval: 20 * time.Millisecond})

	if b.Running() {
		t.Fatalf("loop must not run before the first note")
	}

	owner := uuid.New()
	b.AddSale(owner, SaleNote{ShopName: "s", Item: "coal", Quantity: 2, Total: 4})
	if !b.Running() {
		t.Fatalf("first note must start the loop")
	}

	waitUntil(t, func() bool { return len(sink.salesFor(owner)) == 1 }, "sale delivered")
	waitUntil(t, func() bool { return !b.Running() }, "loop stops once drained")

	// Empty -> non-empty again restarts the loop.
	b.AddSale(owner, SaleNote{ShopName: "s", Item: "coal", Quantity: 1, Total: 2})
	if !b.Running() {
		t.Fatalf("loop must restart on the next note")
	}
	waitUntil(t, func() bool { return len(sink.salesFor(owner)) == 2 }, "second sale delivered")
	b.Close()
}

func TestBatcher_CoalescesPerRecipient(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, Config{NotifyInterval: time.Hour})

	alice, bob := uuid.New(), uuid.New()
	b.AddSale(alice, SaleNote{Item: "coal", Total: 5})
	b.AddSale(alice, SaleNote{Item: "iron_ingot", Total: 12})
	b.AddSale(bob, SaleNote{Item: "coal", Total: 3})
	b.AddPayout(bob, "shared shop", 10, 0.25)

	b.Flush()

	if got := len(sink.salesFor(alice)); got != 2 {
		t.Fatalf("alice got %d sale notes, want 2", got)
	}
	if got := len(sink.salesFor(bob)); got != 1 {
		t.Fatalf("bob got %d sale notes, want 1", got)
	}
	sink.mu.Lock()
	payouts := len(sink.payouts[bob])
	sink.mu.Unlock()
	if payouts != 1 {
		t.Fatalf("bob got %d payout notes, want 1", payouts)
	}
	b.Close()
}

func TestBatcher_MinValueFilter(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, Config{NotifyInterval: time.Hour, MinNotifyValue: 10})

	owner := uuid.New()
	b.AddSale(owner, SaleNote{Item: "coal", Total: 9.99})
	b.AddSale(owner, SaleNote{Item: "iron_ingot", Total: 10})
	b.Flush()

	got := sink.salesFor(owner)
	if len(got) != 1 || got[0].Item != "iron_ingot" {
		t.Fatalf("want only the >= threshold note, got %v", got)
	}
	b.Close()
}

func TestBatcher_LowStockBypassesBatching(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, Config{NotifyInterval: time.Hour})

	b.AddLowStock(uuid.New(), "s", "coal", 3)

	sink.mu.Lock()
	n := len(sink.lowStock)
	sink.mu.Unlock()
	if n != 1 {
		t.Fatalf("low stock must deliver immediately, got %d", n)
	}
	if b.Running() {
		t.Fatalf("low stock must not start the flush loop")
	}
	b.Close()
}

func TestBatcher_CloseFlushesAndRefusesNewNotes(t *testing.T) {
	sink := newCaptureSink()
	b := NewBatcher(sink, Config{NotifyInterval: time.Hour})

	owner := uuid.New()
	b.AddSale(owner, SaleNote{Item: "coal", Total: 5})
	b.Close()

	if got := len(sink.salesFor(owner)); got != 1 {
		t.Fatalf("close must flush pending notes, got %d", got)
	}
	b.AddSale(owner, SaleNote{Item: "coal", Total: 5})
	b.Flush()
	if got := len(sink.salesFor(owner)); got != 1 {
		t.Fatalf("notes after close must be refused, got %d", got)
	}
}
