package market

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"bazaarcraft/internal/protocol"
)

// Store receives entity mutations for persistence. Implementations must not
// block; the sqlite store queues onto an internal writer.
type Store interface {
	SaveShop(s *Shop)
	DeleteShop(id uuid.UUID)
	SaveListing(l *Listing)
	DeleteListing(id uuid.UUID)
}

// JoinRequest registers a session with the runtime loop.
type JoinRequest struct {
	AgentID uuid.UUID
	Name    string
	Out     chan []byte
	Resp    chan JoinResponse
}

type JoinResponse struct {
	AgentID uuid.UUID
}

// OpEnvelope carries one decoded client op plus the session it came from.
type OpEnvelope struct {
	Agent     uuid.UUID
	AgentName string
	Op        protocol.OpMsg
	Out       chan []byte
}

type session struct {
	name string
	out  chan []byte
}

// RuntimeMetrics is the runtime's view of the metrics surface. Optional.
type RuntimeMetrics interface {
	SetSessions(n int)
	ObserveReservation(action string, ok bool)
	ObserveNotification(kind string)
}

// Runtime serializes every mutation of the market onto one goroutine, the
// way the host's main tick would. Transports feed it through channels; the
// registry's own read paths stay safe for concurrent readers elsewhere.
type Runtime struct {
	log *log.Logger
	cfg Config

	registry *Registry
	manager  *Manager
	engine   *Engine
	ledger   *Ledger
	batcher  *Batcher
	store    Store          // optional
	metrics  RuntimeMetrics // optional

	ops   chan OpEnvelope
	join  chan JoinRequest
	leave chan uuid.UUID
	stop  chan struct{}

	// Sessions are written by the loop and read by the batcher's flush
	// goroutine when delivering notifications.
	sessMu   sync.RWMutex
	sessions map[uuid.UUID]*session
}

func NewRuntime(logger *log.Logger, cfg Config, registry *Registry, manager *Manager, engine *Engine, ledger *Ledger) *Runtime {
	cfg.applyDefaults()
	rt := &Runtime{
		log:      logger,
		cfg:      cfg,
		registry: registry,
		manager:  manager,
		engine:   engine,
		ledger:   ledger,
		ops:      make(chan OpEnvelope, 256),
		join:     make(chan JoinRequest, 16),
		leave:    make(chan uuid.UUID, 16),
		stop:     make(chan struct{}),
		sessions: map[uuid.UUID]*session{},
	}
	rt.batcher = NewBatcher(rt, cfg)
	engine.SetNotifier(rt.batcher)
	engine.SetLowStockThreshold(cfg.LowStockThreshold)
	return rt
}

func (rt *Runtime) SetStore(s Store)            { rt.store = s }
func (rt *Runtime) SetMetrics(m RuntimeMetrics) { rt.metrics = m }

func (rt *Runtime) logf(format string, args ...any) {
	if rt.log != nil {
		rt.log.Printf(format, args...)
	}
}

func (rt *Runtime) Ops() chan<- OpEnvelope   { return rt.ops }
func (rt *Runtime) Join() chan<- JoinRequest { return rt.join }
func (rt *Runtime) Leave() chan<- uuid.UUID  { return rt.leave }
func (rt *Runtime) Batcher() *Batcher        { return rt.batcher }
func (rt *Runtime) Config() Config           { return rt.cfg }

func (rt *Runtime) Run(ctx context.Context) error {
	defer rt.batcher.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rt.stop:
			return nil
		case req := <-rt.join:
			rt.handleJoin(req)
		case id := <-rt.leave:
			rt.handleLeave(id)
		case env := <-rt.ops:
			rt.dispatch(env)
		}
	}
}

func (rt *Runtime) Stop() { close(rt.stop) }

func (rt *Runtime) handleJoin(req JoinRequest) {
	id := req.AgentID
	if id == uuid.Nil {
		id = uuid.New()
	}
	rt.sessMu.Lock()
	rt.sessions[id] = &session{name: req.Name, out: req.Out}
	n := len(rt.sessions)
	rt.sessMu.Unlock()
	rt.logf("session join agent=%s name=%s sessions=%d", id, req.Name, n)
	if rt.metrics != nil {
		rt.metrics.SetSessions(n)
	}
	req.Resp <- JoinResponse{AgentID: id}
}

func (rt *Runtime) handleLeave(id uuid.UUID) {
	rt.sessMu.Lock()
	delete(rt.sessions, id)
	n := len(rt.sessions)
	rt.sessMu.Unlock()
	if rt.metrics != nil {
		rt.metrics.SetSessions(n)
	}
}

func (rt *Runtime) send(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		// Slow consumer: drop rather than stall the market loop.
	}
}

// ===== notification sink (called from the batcher's flush goroutine) =====

func (rt *Runtime) sessionOut(id uuid.UUID) chan []byte {
	rt.sessMu.RLock()
	defer rt.sessMu.RUnlock()
	if s, ok := rt.sessions[id]; ok {
		return s.out
	}
	return nil
}

func (rt *Runtime) observeNotification(kind string) {
	if rt.metrics != nil {
		rt.metrics.ObserveNotification(kind)
	}
}

func (rt *Runtime) DeliverSales(owner uuid.UUID, sales []SaleNote) {
	rt.observeNotification("sales")
	out := rt.sessionOut(owner)
	if out == nil {
		return // offline: batch is dropped
	}
	events := make([]protocol.Event, 0, len(sales))
	for _, n := range sales {
		events = append(events, protocol.Event{
			"type": "SALE", "shop": n.ShopName, "trader": n.TraderName,
			"item": n.Item, "quantity": n.Quantity, "total": n.Total,
		})
	}
	rt.send(out, protocol.EventMsg{Type: protocol.TypeEvent, ProtocolVersion: protocol.Version, Events: events})
}

func (rt *Runtime) DeliverPayouts(partner uuid.UUID, payouts []PayoutNote) {
	rt.observeNotification("payouts")
	out := rt.sessionOut(partner)
	if out == nil {
		return
	}
	events := make([]protocol.Event, 0, len(payouts))
	for _, n := range payouts {
		events = append(events, protocol.Event{
			"type": "PAYOUT", "shop": n.ShopName, "amount": n.Amount, "share": n.Share,
		})
	}
	rt.send(out, protocol.EventMsg{Type: protocol.TypeEvent, ProtocolVersion: protocol.Version, Events: events})
}

func (rt *Runtime) DeliverLowStock(owner uuid.UUID, shopName, item string, stock int) {
	rt.observeNotification("low_stock")
	out := rt.sessionOut(owner)
	if out == nil {
		return
	}
	rt.send(out, protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Events: []protocol.Event{{
			"type": "LOW_STOCK", "shop": shopName, "item": item, "stock": stock,
		}},
	})
}
