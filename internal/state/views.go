package state

import "sort"

// Flags bundles the global controls the confirmation gate reads.
type Flags struct {
	TradingMode string
	LiveArmed   bool
	KillSwitch  bool
}

func (s *Store) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Flags{
		TradingMode: s.tradingMode,
		LiveArmed:   s.liveArmed,
		KillSwitch:  s.killSwitch,
	}
}

func (s *Store) SetTradingMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradingMode = mode
}

func (s *Store) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Order returns a copy of one order.
func (s *Store) Order(clientOrderID string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[clientOrderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders returns copies of all orders, most recently updated first.
func (s *Store) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ClientOrderID < out[j].ClientOrderID
	})
	return out
}

// OpenOrders returns orders not yet in a terminal state.
func (s *Store) OpenOrders() []Order {
	all := s.Orders()
	out := all[:0]
	for _, o := range all {
		if !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	return out
}

// Position returns the position for symbol, if any.
func (s *Store) Position(symbol string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// Positions returns all positions sorted by symbol.
func (s *Store) Positions() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Executions returns up to limit executions, newest first. limit <= 0
// means all retained records.
func (s *Store) Executions(limit int) []Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.executions)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Execution, n)
	copy(out, s.executions[:n])
	return out
}
