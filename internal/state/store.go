// Package state holds the event-derived trading ledger: orders,
// positions, executions, pending commands and the global control
// flags. It is the single source of truth for every display surface
// and is only ever written by the event processor — command echoes
// never touch it.
package state

import (
	"sync"
	"time"

	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/wire"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderSubmitted OrderStatus = "submitted"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPartial   OrderStatus = "partial"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
)

// Terminal reports whether no further lifecycle event can move the
// order, other than an unconditional cancel stamp.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

type Order struct {
	ClientOrderID  string
	Symbol         string
	Side           string
	Quantity       int
	FilledQuantity int
	OrderType      string
	LimitPrice     float64
	StopPrice      float64
	Status         OrderStatus
	UpdatedAt      time.Time
	CommandID      string
}

type Position struct {
	Symbol           string
	Quantity         int
	AvgPrice         float64
	CurrentPrice     float64
	MarketValue      float64
	UnrealizedPnL    float64
	UnrealizedPnLPct float64
	LastUpdated      time.Time
}

type Execution struct {
	ExecID        string
	ClientOrderID string
	Symbol        string
	Side          string
	Quantity      int
	Price         float64
	Timestamp     time.Time
}

type PendingCommand struct {
	CommandID string
	Type      string
	Symbol    string
	CreatedAt time.Time
}

// Profile levels, one of standard | permissive | strict.
type Profile struct {
	GateLevel  string
	RiskLevel  string
	GuardLevel string
}

const maxExecutions = 1000

// Store is safe for concurrent reads; writes arrive serially from the
// event pump.
type Store struct {
	mu sync.RWMutex

	orders     map[string]*Order
	positions  map[string]Position
	executions []Execution // newest first, capped at maxExecutions
	execSeen   map[string]bool
	pending    map[string]PendingCommand

	tradingMode string // paper | live
	liveArmed   bool
	killSwitch  bool
	profile     Profile
}

func NewStore(tradingMode string) *Store {
	s := &Store{tradingMode: tradingMode}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.orders = make(map[string]*Order)
	s.positions = make(map[string]Position)
	s.executions = nil
	s.execSeen = make(map[string]bool)
	s.pending = make(map[string]PendingCommand)
}

// Reset clears all event-derived state. Called before snapshot
// rehydration after a reconnect gap, so stale and fresh records never
// mix. Control flags and trading mode survive; the snapshot rewrites
// them anyway.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	observ.IncCounter("store_resets_total", nil)
}

// Apply folds one event into the ledger. Unrecognized event types are
// ignored; the chain aggregator may still handle them.
func (s *Store) Apply(e wire.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case wire.EventOrderSubmitted:
		s.applyOrderSubmitted(e)
	case wire.EventOrderConfirmed:
		s.applyOrderConfirmed(e)
	case wire.EventOrderFill:
		s.applyOrderFill(e)
	case wire.EventOrderCancelled:
		s.applyOrderCancelled(e)
	case wire.EventOrderRejected:
		s.applyOrderRejected(e)
	case wire.EventPositionUpdate:
		s.applyPositionUpdate(e)
	case wire.EventSystemStatus:
		s.applySystemStatus(e)
	case wire.EventProfileUpdate:
		s.applyProfileUpdate(e)
	}
}

func (s *Store) applyOrderSubmitted(e wire.Event) {
	p, err := wire.DecodeOrder(e)
	if err != nil {
		dropped(e, err)
		return
	}
	o, ok := s.orders[p.ClientOrderID]
	if !ok {
		o = &Order{
			ClientOrderID: p.ClientOrderID,
			Symbol:        orFallback(p.Symbol, e.Symbol),
			Side:          p.Side,
			Quantity:      p.Quantity,
			OrderType:     p.OrderType,
			LimitPrice:    p.LimitPrice,
			StopPrice:     p.StopPrice,
			Status:        OrderSubmitted,
			CommandID:     p.CommandID,
		}
		s.orders[p.ClientOrderID] = o
	}
	o.UpdatedAt = e.Timestamp
	s.resolvePendingLocked(wire.CommandIDOf(e))
}

func (s *Store) applyOrderConfirmed(e wire.Event) {
	p, err := wire.DecodeOrder(e)
	if err != nil {
		dropped(e, err)
		return
	}
	o, ok := s.orders[p.ClientOrderID]
	if !ok {
		observ.Warn("order_confirm_unknown", map[string]any{"client_order_id": p.ClientOrderID})
		return
	}
	if o.Status == OrderSubmitted {
		o.Status = OrderConfirmed
	}
	o.UpdatedAt = e.Timestamp
	s.resolvePendingLocked(wire.CommandIDOf(e))
}

func (s *Store) applyOrderFill(e wire.Event) {
	p, err := wire.DecodeOrder(e)
	if err != nil {
		dropped(e, err)
		return
	}
	o, ok := s.orders[p.ClientOrderID]
	if !ok {
		observ.Warn("order_fill_unknown", map[string]any{"client_order_id": p.ClientOrderID})
		return
	}

	execID := p.ExecID
	if execID == "" {
		execID = e.ID
	}
	if s.execSeen[execID] {
		// Replayed fill: the whole event is a no-op.
		observ.IncCounter("executions_deduped_total", nil)
		return
	}
	s.execSeen[execID] = true

	fill := p.FilledQuantity
	if fill <= 0 {
		// No incremental amount on the event means a complete fill.
		fill = o.Quantity - o.FilledQuantity
	}
	o.FilledQuantity += fill
	if o.FilledQuantity >= o.Quantity {
		o.FilledQuantity = o.Quantity
		o.Status = OrderFilled
	} else {
		o.Status = OrderPartial
	}
	o.UpdatedAt = e.Timestamp

	s.appendExecutionLocked(Execution{
		ExecID:        execID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Quantity:      fill,
		Price:         p.Price,
		Timestamp:     e.Timestamp,
	})
	s.resolvePendingLocked(wire.CommandIDOf(e))
}

func (s *Store) applyOrderCancelled(e wire.Event) {
	p, err := wire.DecodeOrder(e)
	if err != nil {
		dropped(e, err)
		return
	}
	o, ok := s.orders[p.ClientOrderID]
	if !ok {
		observ.Warn("order_cancel_unknown", map[string]any{"client_order_id": p.ClientOrderID})
		return
	}
	// Cancels apply regardless of prior state.
	o.Status = OrderCancelled
	o.UpdatedAt = e.Timestamp
	s.resolvePendingLocked(wire.CommandIDOf(e))
}

func (s *Store) applyOrderRejected(e wire.Event) {
	p, err := wire.DecodeOrder(e)
	if err != nil {
		dropped(e, err)
		return
	}
	o, ok := s.orders[p.ClientOrderID]
	if !ok {
		// The engine can reject before we ever saw the submission;
		// synthesize the record from whatever the event carries.
		o = &Order{
			ClientOrderID: p.ClientOrderID,
			Symbol:        orFallback(p.Symbol, e.Symbol),
			Side:          p.Side,
			Quantity:      p.Quantity,
			OrderType:     p.OrderType,
			LimitPrice:    p.LimitPrice,
			StopPrice:     p.StopPrice,
			CommandID:     p.CommandID,
		}
		s.orders[p.ClientOrderID] = o
	}
	o.Status = OrderRejected
	o.UpdatedAt = e.Timestamp
	s.resolvePendingLocked(wire.CommandIDOf(e))
}

func (s *Store) applyPositionUpdate(e wire.Event) {
	p, err := wire.DecodePosition(e)
	if err != nil {
		dropped(e, err)
		return
	}
	pos := Position{
		Symbol:           p.Symbol,
		Quantity:         p.Quantity,
		AvgPrice:         p.AvgPrice,
		CurrentPrice:     p.CurrentPrice,
		MarketValue:      p.MarketValue,
		UnrealizedPnL:    p.UnrealizedPnL,
		UnrealizedPnLPct: p.UnrealizedPnLPct,
		LastUpdated:      e.Timestamp,
	}
	if pos.CurrentPrice == 0 {
		pos.CurrentPrice = pos.AvgPrice
	}
	// Wholesale replacement, last writer wins. Absent fields are
	// defaulted above, never carried over from the previous record.
	s.positions[p.Symbol] = pos
	s.resolvePendingLocked(wire.CommandIDOf(e))
}

func (s *Store) applySystemStatus(e wire.Event) {
	if len(e.Payload) == 0 {
		return
	}
	if v, ok := wire.NestedBool(e.Payload, "kill_switch_active"); ok {
		if v != s.killSwitch {
			observ.Log("kill_switch_changed", map[string]any{"active": v})
			observ.SetGauge("kill_switch_active", boolGauge(v), nil)
		}
		s.killSwitch = v
	}
	if v, ok := wire.NestedBool(e.Payload, "live_armed"); ok {
		if v != s.liveArmed {
			observ.Log("live_armed_changed", map[string]any{"armed": v})
			observ.SetGauge("live_armed", boolGauge(v), nil)
		}
		s.liveArmed = v
	}
}

func (s *Store) applyProfileUpdate(e wire.Event) {
	p, err := wire.DecodeProfile(e)
	if err != nil {
		dropped(e, err)
		return
	}
	// Partial overwrite: only fields present on the event move.
	if p.GateLevel != nil {
		s.profile.GateLevel = *p.GateLevel
	}
	if p.RiskLevel != nil {
		s.profile.RiskLevel = *p.RiskLevel
	}
	if p.GuardLevel != nil {
		s.profile.GuardLevel = *p.GuardLevel
	}
}

func (s *Store) appendExecutionLocked(x Execution) {
	s.executions = append([]Execution{x}, s.executions...)
	if len(s.executions) > maxExecutions {
		evicted := s.executions[maxExecutions:]
		s.executions = s.executions[:maxExecutions]
		for _, old := range evicted {
			delete(s.execSeen, old.ExecID)
		}
	}
	observ.IncCounter("executions_recorded_total", nil)
}

func orFallback(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func dropped(e wire.Event, err error) {
	observ.IncCounter("store_events_dropped_total", map[string]string{"type": e.Type})
	observ.Warn("store_event_dropped", map[string]any{
		"event_id": e.ID,
		"type":     e.Type,
		"error":    err.Error(),
	})
}
