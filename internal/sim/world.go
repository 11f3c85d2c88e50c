// Package sim is an in-memory stand-in for the host game server: physical
// containers at points, agent inventories, and money balances. The market
// core only ever sees it through its collaborator interfaces, so anything
// backing real chests and wallets slots in the same way.
package sim

import (
	"sync"

	"github.com/google/uuid"

	"bazaarcraft/internal/market"
)

type World struct {
	mu sync.Mutex

	containers map[market.Point]map[string]int
	agents     map[uuid.UUID]map[string]int
	balances   map[uuid.UUID]float64

	// ContainerCap bounds total units per container; 0 = unbounded.
	ContainerCap int
	// AgentCap bounds units per item in an agent's inventory; 0 = unbounded.
	AgentCap int
}

func NewWorld() *World {
	return &World{
		containers: map[market.Point]map[string]int{},
		agents:     map[uuid.UUID]map[string]int{},
		balances:   map[uuid.UUID]float64{},
	}
}

// ===== fixtures =====

func (w *World) SetBalance(agent uuid.UUID, amount float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[agent] = amount
}

func (w *World) Balance(agent uuid.UUID) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[agent]
}

func (w *World) PutContainer(p market.Point, item string, qty int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.containers[p]
	if c == nil {
		c = map[string]int{}
		w.containers[p] = c
	}
	c[item] = qty
}

func (w *World) ContainerCount(p market.Point, item string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.containers[p][item]
}

func (w *World) PutAgentItems(agent uuid.UUID, item string, qty int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	inv := w.agents[agent]
	if inv == nil {
		inv = map[string]int{}
		w.agents[agent] = inv
	}
	inv[item] = qty
}

func (w *World) AgentCount(agent uuid.UUID, item string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agents[agent][item]
}

// ===== market.StockSource =====

func (w *World) PhysicalStock(l *market.Listing) int {
	if l.Item == "" {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.containers[l.Pos][l.Item]
}

// ===== market.InventoryOps =====

func (w *World) RemoveFromContainer(l *market.Listing, qty int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.containers[l.Pos]
	if c == nil || c[l.Item] < qty {
		return false
	}
	c[l.Item] -= qty
	if c[l.Item] == 0 {
		delete(c, l.Item)
	}
	return true
}

func (w *World) AddToContainer(l *market.Listing, qty int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.containers[l.Pos]
	if c == nil {
		c = map[string]int{}
		w.containers[l.Pos] = c
	}
	if w.ContainerCap > 0 && totalUnits(c)+qty > w.ContainerCap {
		return false
	}
	c[l.Item] += qty
	return true
}

func (w *World) ContainerHasSpace(l *market.Listing, qty int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ContainerCap <= 0 {
		return true
	}
	return totalUnits(w.containers[l.Pos])+qty <= w.ContainerCap
}

func (w *World) HasSpace(agent uuid.UUID, item string, qty int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.AgentCap <= 0 {
		return true
	}
	return w.agents[agent][item]+qty <= w.AgentCap
}

func (w *World) HasItems(agent uuid.UUID, item string, qty int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agents[agent][item] >= qty
}

func (w *World) GiveToAgent(agent uuid.UUID, item string, qty int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.AgentCap > 0 && w.agents[agent][item]+qty > w.AgentCap {
		return false
	}
	inv := w.agents[agent]
	if inv == nil {
		inv = map[string]int{}
		w.agents[agent] = inv
	}
	inv[item] += qty
	return true
}

func (w *World) TakeFromAgent(agent uuid.UUID, item string, qty int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	inv := w.agents[agent]
	if inv == nil || inv[item] < qty {
		return false
	}
	inv[item] -= qty
	if inv[item] == 0 {
		delete(inv, item)
	}
	return true
}

// ===== market.Economy =====

func (w *World) Has(agent uuid.UUID, amount float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[agent] >= amount
}

func (w *World) Withdraw(agent uuid.UUID, amount float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[agent] -= amount
}

func (w *World) Deposit(agent uuid.UUID, amount float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[agent] += amount
}

func totalUnits(c map[string]int) int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
