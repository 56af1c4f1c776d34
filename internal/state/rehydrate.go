package state

import (
	"time"

	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/wire"
)

// Rehydrate loads a snapshot into an empty store. Callers Reset first;
// mixing snapshot records with stale event-derived ones is exactly the
// bug the reset exists to prevent.
func (s *Store) Rehydrate(snap wire.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, so := range snap.Orders {
		o := &Order{
			ClientOrderID:  so.ClientOrderID,
			Symbol:         so.Symbol,
			Side:           so.Side,
			Quantity:       so.Quantity,
			FilledQuantity: so.FilledQuantity,
			OrderType:      so.OrderType,
			LimitPrice:     so.LimitPrice,
			StopPrice:      so.StopPrice,
			Status:         OrderStatus(so.Status),
			UpdatedAt:      parseTime(so.UpdatedAt),
		}
		s.orders[o.ClientOrderID] = o
	}

	for _, sp := range snap.Positions {
		pos := Position{
			Symbol:           sp.Symbol,
			Quantity:         sp.Quantity,
			AvgPrice:         sp.AvgPrice,
			CurrentPrice:     sp.CurrentPrice,
			MarketValue:      sp.MarketValue,
			UnrealizedPnL:    sp.UnrealizedPnL,
			UnrealizedPnLPct: sp.UnrealizedPnLPct,
			LastUpdated:      time.Now().UTC(),
		}
		if pos.CurrentPrice == 0 {
			pos.CurrentPrice = pos.AvgPrice
		}
		s.positions[pos.Symbol] = pos
	}

	// Snapshot executions arrive newest first already.
	for _, sx := range snap.Executions {
		if len(s.executions) >= maxExecutions {
			break
		}
		if s.execSeen[sx.ExecID] {
			continue
		}
		s.execSeen[sx.ExecID] = true
		s.executions = append(s.executions, Execution{
			ExecID:        sx.ExecID,
			ClientOrderID: sx.ClientOrderID,
			Symbol:        sx.Symbol,
			Side:          sx.Side,
			Quantity:      sx.Quantity,
			Price:         sx.Price,
			Timestamp:     parseTime(sx.Timestamp),
		})
	}

	if snap.TradingMode != "" {
		s.tradingMode = snap.TradingMode
	}
	s.liveArmed = snap.LiveArmed
	s.killSwitch = snap.KillSwitch
	if snap.Profile.GateLevel != nil {
		s.profile.GateLevel = *snap.Profile.GateLevel
	}
	if snap.Profile.RiskLevel != nil {
		s.profile.RiskLevel = *snap.Profile.RiskLevel
	}
	if snap.Profile.GuardLevel != nil {
		s.profile.GuardLevel = *snap.Profile.GuardLevel
	}

	observ.Log("store_rehydrated", map[string]any{
		"orders":     len(s.orders),
		"positions":  len(s.positions),
		"executions": len(s.executions),
		"mode":       s.tradingMode,
	})
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
