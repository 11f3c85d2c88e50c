package market

import "github.com/google/uuid"

// SaleNote is the record handed to the notification batcher after a
// completed exchange.
type SaleNote struct {
	ShopName   string
	TraderName string
	Item       string
	Quantity   int
	Total      float64
}

// Notifier is the engine's view of the notification batcher. Optional.
type Notifier interface {
	AddSale(owner uuid.UUID, n SaleNote)
	AddPayout(partner uuid.UUID, shopName string, amount, share float64)
	AddLowStock(owner uuid.UUID, shopName, item string, stock int)
}

// TradeRecorder receives one record per settled exchange. Optional.
type TradeRecorder interface {
	RecordTrade(rec TradeRecord)
}

// TradeRecord mirrors the audit line written by the trade log.
type TradeRecord struct {
	Kind      string  `json:"kind"` // BUY, SELL, COLLECT
	ListingID string  `json:"listing_id"`
	ShopID    string  `json:"shop_id"`
	Agent     string  `json:"agent"`
	Item      string  `json:"item,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	Total     float64 `json:"total"`
	Tax       float64 `json:"tax,omitempty"`
	Territory string  `json:"territory,omitempty"`
}

// EngineMetrics is the engine's view of the metrics surface. Optional.
type EngineMetrics interface {
	ObserveTransaction(dir Direction, outcome Outcome)
}

// Engine executes buy/sell exchanges and earnings collection against a
// listing. Every branch validates first and mutates last: a failed exchange
// leaves balances, stock, and reservations untouched. Not internally
// re-entrant; call only from the serialized market context.
type Engine struct {
	registry  *Registry
	stock     StockSource
	inv       InventoryOps
	economy   Economy
	territory Territory // nil = all rates 0
	ledger    *Ledger

	notify  Notifier      // nil = no notifications
	audit   TradeRecorder // nil = no audit log
	metrics EngineMetrics // nil = no metrics

	lowStockThreshold int
}

func NewEngine(registry *Registry, stock StockSource, inv InventoryOps, economy Economy, ledger *Ledger) *Engine {
	return &Engine{
		registry: registry,
		stock:    stock,
		inv:      inv,
		economy:  economy,
		ledger:   ledger,
	}
}

func (e *Engine) SetTerritory(t Territory)         { e.territory = t }
func (e *Engine) SetNotifier(n Notifier)           { e.notify = n }
func (e *Engine) SetTradeRecorder(r TradeRecorder) { e.audit = r }
func (e *Engine) SetMetrics(m EngineMetrics)       { e.metrics = m }
func (e *Engine) SetLowStockThreshold(n int)       { e.lowStockThreshold = n }

func (e *Engine) transactionTaxRate(pos Point, agent uuid.UUID) float64 {
	if e.territory == nil {
		return 0
	}
	return e.territory.TransactionTaxRate(pos, agent)
}

func (e *Engine) territoryName(pos Point) string {
	if e.territory == nil {
		return ""
	}
	return e.territory.Name(pos)
}

func (e *Engine) payTax(pos Point, amount float64) {
	if amount > 0 && e.territory != nil {
		e.territory.PayTax(pos, amount)
	}
}

func (e *Engine) done(dir Direction, r Receipt) Receipt {
	if e.metrics != nil {
		e.metrics.ObserveTransaction(dir, r.Outcome)
	}
	return r
}

// ProcessBuy executes an agent purchasing from a SELL listing.
func (e *Engine) ProcessBuy(buyer uuid.UUID, buyerName string, l *Listing, qty int) Receipt {
	if l.Direction != DirSell {
		return e.done(DirSell, fail(WrongDirection))
	}
	if l.Item == "" {
		return e.done(DirSell, fail(NoItemConfigured))
	}
	if qty <= 0 {
		return e.done(DirSell, fail(InsufficientStock))
	}

	total := l.Price * float64(qty)
	rate := e.transactionTaxRate(l.Pos, buyer)
	tax := total * rate
	finalPrice := total + tax
	territory := ""
	if tax > 0 {
		territory = e.territoryName(l.Pos)
	}

	if !e.economy.Has(buyer, finalPrice) {
		return e.done(DirSell, fail(InsufficientFunds))
	}
	// Reservation-aware: physical stock alone ignores other parties' holds.
	if e.ledger.Available(l) < qty {
		return e.done(DirSell, fail(InsufficientStock))
	}
	if !e.inv.HasSpace(buyer, l.Item, qty) {
		return e.done(DirSell, fail(NoSpace))
	}

	// Physical removal is attempted before any ledger mutation, so a failure
	// here is side-effect-free.
	if !e.inv.RemoveFromContainer(l, qty) {
		return e.done(DirSell, fail(SettlementFailed))
	}

	e.economy.Withdraw(buyer, finalPrice)
	l.Earnings += total
	e.payTax(l.Pos, tax)
	e.inv.GiveToAgent(buyer, l.Item, qty)

	e.emitSale(l, buyerName, qty, total)
	e.checkLowStock(l)
	e.record(TradeRecord{
		Kind: "BUY", ListingID: l.ID.String(), ShopID: l.ShopID.String(),
		Agent: buyer.String(), Item: l.Item, Quantity: qty,
		Total: total, Tax: tax, Territory: territory,
	})

	return e.done(DirSell, Receipt{Outcome: Success, Quantity: qty, Total: total, Tax: tax, Territory: territory})
}

// ProcessSell executes an agent selling to a BUY listing. The quantity is
// clamped to the listing's remaining buy capacity before any other check;
// only a remaining capacity of exactly 0 rejects outright.
func (e *Engine) ProcessSell(seller uuid.UUID, sellerName string, l *Listing, qty int) Receipt {
	if l.Direction != DirBuy {
		return e.done(DirBuy, fail(WrongDirection))
	}
	if l.Item == "" {
		return e.done(DirBuy, fail(NoItemConfigured))
	}
	if qty <= 0 {
		return e.done(DirBuy, fail(InsufficientItems))
	}

	if l.BuyLimit > 0 {
		remaining := l.RemainingBuyCapacity(e.stock.PhysicalStock(l))
		if remaining == 0 {
			return e.done(DirBuy, fail(CapacityFull))
		}
		if qty > remaining {
			qty = remaining
		}
	}

	total := l.Price * float64(qty)
	rate := e.transactionTaxRate(l.Pos, seller)
	tax := total * rate
	sellerGets := total - tax
	territory := ""
	if tax > 0 {
		territory = e.territoryName(l.Pos)
	}

	if !e.economy.Has(l.Owner, total) {
		return e.done(DirBuy, fail(ShopInsufficientFunds))
	}
	if !e.inv.HasItems(seller, l.Item, qty) {
		return e.done(DirBuy, fail(InsufficientItems))
	}
	if !e.inv.ContainerHasSpace(l, qty) {
		return e.done(DirBuy, fail(CapacityFull))
	}

	if !e.inv.TakeFromAgent(seller, l.Item, qty) {
		return e.done(DirBuy, fail(SettlementFailed))
	}
	if !e.inv.AddToContainer(l, qty) {
		// Undo the take so a failed settlement stays side-effect-free.
		e.inv.GiveToAgent(seller, l.Item, qty)
		return e.done(DirBuy, fail(SettlementFailed))
	}

	e.economy.Withdraw(l.Owner, total)
	e.economy.Deposit(seller, sellerGets)
	e.payTax(l.Pos, tax)

	e.emitSale(l, sellerName, qty, total)
	e.record(TradeRecord{
		Kind: "SELL", ListingID: l.ID.String(), ShopID: l.ShopID.String(),
		Agent: seller.String(), Item: l.Item, Quantity: qty,
		Total: total, Tax: tax, Territory: territory,
	})

	return e.done(DirBuy, Receipt{Outcome: Success, Quantity: qty, Total: total, Tax: tax, Territory: territory})
}

// CollectEarnings pays out a listing's accumulated earnings, applying the
// territory shop tax and the partnership split when one is attached.
func (e *Engine) CollectEarnings(l *Listing) EarningsReceipt {
	gross := l.Earnings
	if gross <= 0 {
		return EarningsReceipt{}
	}

	tax := 0.0
	territory := ""
	if e.territory != nil {
		tax = gross * e.territory.ShopTaxRate(l.Pos)
		if tax > 0 {
			territory = e.territoryName(l.Pos)
		}
	}
	net := gross - tax

	e.payTax(l.Pos, tax)
	l.Earnings = 0

	split := map[uuid.UUID]float64{l.Owner: net}
	if l.Partnership != nil {
		split = l.Partnership.Distribute(net)
	}
	shopName := e.shopName(l)
	for agent, amount := range split {
		e.economy.Deposit(agent, amount)
		if e.notify != nil && l.Partnership != nil && agent != l.Partnership.PrimaryOwner {
			e.notify.AddPayout(agent, shopName, amount, l.Partnership.ShareOf(agent))
		}
	}

	e.record(TradeRecord{
		Kind: "COLLECT", ListingID: l.ID.String(), ShopID: l.ShopID.String(),
		Agent: l.Owner.String(), Total: gross, Tax: tax, Territory: territory,
	})

	return EarningsReceipt{Gross: gross, Tax: tax, Net: net, Territory: territory, Split: split}
}

func (e *Engine) shopName(l *Listing) string {
	if s, ok := e.registry.Shop(l.ShopID); ok {
		return s.Name
	}
	return "shop"
}

func (e *Engine) emitSale(l *Listing, traderName string, qty int, total float64) {
	if e.notify == nil {
		return
	}
	e.notify.AddSale(l.Owner, SaleNote{
		ShopName:   e.shopName(l),
		TraderName: traderName,
		Item:       l.Item,
		Quantity:   qty,
		Total:      total,
	})
}

func (e *Engine) checkLowStock(l *Listing) {
	if e.notify == nil || e.lowStockThreshold <= 0 {
		return
	}
	stock := e.stock.PhysicalStock(l)
	if stock <= e.lowStockThreshold {
		e.notify.AddLowStock(l.Owner, e.shopName(l), l.Item, stock)
	}
}

func (e *Engine) record(rec TradeRecord) {
	if e.audit != nil {
		e.audit.RecordTrade(rec)
	}
}
