package market

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PayoutNote records a partnership share paid out at collection time.
type PayoutNote struct {
	ShopName string
	Amount   float64
	Share    float64
}

// Sink receives coalesced notification batches. Implementations deliver them
// to wherever the recipient is connected; an offline recipient's batch is
// simply dropped by the sink.
type Sink interface {
	DeliverSales(owner uuid.UUID, sales []SaleNote)
	DeliverPayouts(partner uuid.UUID, payouts []PayoutNote)
	DeliverLowStock(owner uuid.UUID, shopName, item string, stock int)
}

// Batcher coalesces sale and payout notes per recipient and flushes them on
// an interval. The flush timer is edge-triggered: it starts when the queue
// goes empty -> non-empty and the loop exits once a flush finds the queue
// drained, so an idle market runs no background work. Low-stock notes skip
// batching entirely.
type Batcher struct {
	sink     Sink
	interval time.Duration
	minValue float64

	mu      sync.Mutex
	sales   map[uuid.UUID][]SaleNote
	payouts map[uuid.UUID][]PayoutNote
	running bool
	closed  bool
}

func NewBatcher(sink Sink, cfg Config) *Batcher {
	cfg.applyDefaults()
	return &Batcher{
		sink:     sink,
		interval: cfg.NotifyInterval,
		minValue: cfg.MinNotifyValue,
		sales:    map[uuid.UUID][]SaleNote{},
		payouts:  map[uuid.UUID][]PayoutNote{},
	}
}

func (b *Batcher) AddSale(owner uuid.UUID, n SaleNote) {
	if n.Total < b.minValue {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.sales[owner] = append(b.sales[owner], n)
	b.startLocked()
}

func (b *Batcher) AddPayout(partner uuid.UUID, shopName string, amount, share float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.payouts[partner] = append(b.payouts[partner], PayoutNote{ShopName: shopName, Amount: amount, Share: share})
	b.startLocked()
}

// AddLowStock is delivered immediately, not batched.
func (b *Batcher) AddLowStock(owner uuid.UUID, shopName, item string, stock int) {
	b.sink.DeliverLowStock(owner, shopName, item, stock)
}

// Running reports whether the flush loop is live. Test hook.
func (b *Batcher) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Batcher) startLocked() {
	if b.running {
		return
	}
	b.running = true
	go b.loop()
}

func (b *Batcher) loop() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for range ticker.C {
		if b.flushOrStop() {
			return
		}
	}
}

// flushOrStop delivers everything pending, or marks the loop stopped and
// returns true when there is nothing left. The emptiness check and the
// running flag flip happen under one lock so an Add racing with the stop
// starts a fresh loop rather than losing its note.
func (b *Batcher) flushOrStop() bool {
	b.mu.Lock()
	if b.closed || (len(b.sales) == 0 && len(b.payouts) == 0) {
		b.running = false
		b.mu.Unlock()
		return true
	}
	sales, payouts := b.swapLocked()
	b.mu.Unlock()
	b.deliver(sales, payouts)
	return false
}

func (b *Batcher) swapLocked() (map[uuid.UUID][]SaleNote, map[uuid.UUID][]PayoutNote) {
	sales := b.sales
	payouts := b.payouts
	b.sales = map[uuid.UUID][]SaleNote{}
	b.payouts = map[uuid.UUID][]PayoutNote{}
	return sales, payouts
}

func (b *Batcher) deliver(sales map[uuid.UUID][]SaleNote, payouts map[uuid.UUID][]PayoutNote) {
	for owner, batch := range sales {
		b.sink.DeliverSales(owner, batch)
	}
	for partner, batch := range payouts {
		b.sink.DeliverPayouts(partner, batch)
	}
}

// Flush delivers everything pending right now without touching the loop's
// lifecycle. Used on shutdown and by tests.
func (b *Batcher) Flush() {
	b.mu.Lock()
	sales, payouts := b.swapLocked()
	b.mu.Unlock()
	b.deliver(sales, payouts)
}

// Close flushes once and refuses further notes. The loop, if running, exits
// on its next tick.
func (b *Batcher) Close() {
	b.Flush()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
