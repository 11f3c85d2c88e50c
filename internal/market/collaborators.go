package market

import "github.com/google/uuid"

// The host environment owns every physical container and agent inventory.
// The core only sees these narrow synchronous interfaces; all of them may
// fail but none of them block.

// StockSource reports the physical quantity of a listing's item present in
// its container. Reservations are not its concern.
type StockSource interface {
	PhysicalStock(l *Listing) int
}

// InventoryOps moves items between containers and agent inventories.
// The bool returns report whether the full quantity moved; a false return
// means nothing moved.
type InventoryOps interface {
	RemoveFromContainer(l *Listing, qty int) bool
	AddToContainer(l *Listing, qty int) bool
	ContainerHasSpace(l *Listing, qty int) bool

	HasSpace(agent uuid.UUID, item string, qty int) bool
	HasItems(agent uuid.UUID, item string, qty int) bool
	GiveToAgent(agent uuid.UUID, item string, qty int) bool
	TakeFromAgent(agent uuid.UUID, item string, qty int) bool
}

// Economy is the host's money ledger.
type Economy interface {
	Has(agent uuid.UUID, amount float64) bool
	Withdraw(agent uuid.UUID, amount float64)
	Deposit(agent uuid.UUID, amount float64)
}

// Territory provides location-based tax rates and display names. The
// collaborator is optional: a nil Territory means every rate is exactly 0
// and every location is wilderness.
type Territory interface {
	TransactionTaxRate(pos Point, agent uuid.UUID) float64
	ShopTaxRate(pos Point) float64
	PayTax(pos Point, amount float64)
	Name(pos Point) string
}
