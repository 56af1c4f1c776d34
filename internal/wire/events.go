package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the wire shape of one record on the engine stream. The
// payload stays raw until a typed decode below picks it apart; nothing
// downstream of this package touches payload keys directly.
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	Symbol        string          `json:"symbol,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	TradeID       string          `json:"trade_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// Event types emitted by the engine. Pipeline-stage events carry a
// symbol; system/profile events may not.
const (
	EventRegimeUpdate    = "regime_update"
	EventSignalCandidate = "signal_candidate"
	EventSignalScored    = "signal_scored"
	EventGateApproved    = "gate_approved"
	EventGateRejected    = "gate_rejected"
	EventRiskApproved    = "risk_approved"
	EventRiskVetoed      = "risk_vetoed"
	EventGuardApproved   = "guard_approved"
	EventGuardBlocked    = "guard_blocked"
	EventOrderSubmitted  = "order_submitted"
	EventOrderConfirmed  = "order_confirmed"
	EventOrderFill       = "order_fill"
	EventOrderCancelled  = "order_cancelled"
	EventOrderRejected   = "order_rejected"
	EventPositionUpdate  = "position_update"
	EventSystemStatus    = "system_status"
	EventProfileUpdate   = "profile_update"
)

// Signal directions.
const (
	DirectionLong  = "long"
	DirectionShort = "short"
	DirectionNone  = "none"
)

type RegimePayload struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type SignalPayload struct {
	Direction   string  `json:"direction"`
	Strategy    string  `json:"strategy"`
	EntryPrice  float64 `json:"entry_price,omitempty"`
	StopPrice   float64 `json:"stop_price,omitempty"`
	TargetPrice float64 `json:"target_price,omitempty"`
}

type ScorePayload struct {
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Model      string  `json:"model"`
}

type GatePayload struct {
	Reasons []string `json:"reasons,omitempty"`
}

type RiskPayload struct {
	Reasons      []string `json:"reasons,omitempty"`
	PositionSize float64  `json:"position_size,omitempty"`
}

type GuardPayload struct {
	Reasons []string `json:"reasons,omitempty"`
}

// OrderPayload covers the whole order lifecycle. Fills carry Price,
// ExecID and an incremental FilledQuantity; rejections may carry
// enough of the order shape to synthesize a record for an order the
// client never saw submitted.
type OrderPayload struct {
	ClientOrderID  string  `json:"client_order_id"`
	Symbol         string  `json:"symbol,omitempty"`
	Side           string  `json:"side,omitempty"`
	Quantity       int     `json:"quantity,omitempty"`
	FilledQuantity int     `json:"filled_quantity,omitempty"`
	OrderType      string  `json:"order_type,omitempty"`
	LimitPrice     float64 `json:"limit_price,omitempty"`
	StopPrice      float64 `json:"stop_price,omitempty"`
	Price          float64 `json:"price,omitempty"`
	ExecID         string  `json:"exec_id,omitempty"`
	CommandID      string  `json:"command_id,omitempty"`
	Reason         string  `json:"reason,omitempty"`
}

type PositionPayload struct {
	Symbol           string  `json:"symbol"`
	Quantity         int     `json:"quantity"`
	AvgPrice         float64 `json:"avg_price"`
	CurrentPrice     float64 `json:"current_price,omitempty"`
	MarketValue      float64 `json:"market_value,omitempty"`
	UnrealizedPnL    float64 `json:"unrealized_pnl,omitempty"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct,omitempty"`
}

// ProfilePayload is a partial overwrite: absent fields leave the
// current level untouched, hence pointers.
type ProfilePayload struct {
	GateLevel  *string `json:"gate_level,omitempty"`
	RiskLevel  *string `json:"risk_level,omitempty"`
	GuardLevel *string `json:"guard_level,omitempty"`
}

func decodePayload(e Event, out any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s (%s): empty payload", e.ID, e.Type)
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("event %s (%s): decode payload: %w", e.ID, e.Type, err)
	}
	return nil
}

func DecodeRegime(e Event) (RegimePayload, error) {
	var raw struct {
		Label      string   `json:"label"`
		Confidence *float64 `json:"confidence"`
	}
	if err := decodePayload(e, &raw); err != nil {
		return RegimePayload{}, err
	}
	p := RegimePayload{Label: raw.Label, Confidence: 1.0}
	if raw.Confidence != nil {
		p.Confidence = *raw.Confidence
	}
	return p, nil
}

func DecodeSignal(e Event) (SignalPayload, error) {
	var p SignalPayload
	if err := decodePayload(e, &p); err != nil {
		return p, err
	}
	switch p.Direction {
	case DirectionLong, DirectionShort, DirectionNone:
	case "":
		p.Direction = DirectionNone
	default:
		return p, fmt.Errorf("event %s: unknown direction %q", e.ID, p.Direction)
	}
	return p, nil
}

func DecodeScore(e Event) (ScorePayload, error) {
	var p ScorePayload
	err := decodePayload(e, &p)
	return p, err
}

func DecodeGate(e Event) (GatePayload, error) {
	var p GatePayload
	err := decodePayload(e, &p)
	return p, err
}

func DecodeRisk(e Event) (RiskPayload, error) {
	var p RiskPayload
	err := decodePayload(e, &p)
	return p, err
}

func DecodeGuard(e Event) (GuardPayload, error) {
	var p GuardPayload
	err := decodePayload(e, &p)
	return p, err
}

func DecodeOrder(e Event) (OrderPayload, error) {
	var p OrderPayload
	if err := decodePayload(e, &p); err != nil {
		return p, err
	}
	if p.ClientOrderID == "" {
		return p, fmt.Errorf("event %s (%s): missing client_order_id", e.ID, e.Type)
	}
	return p, nil
}

func DecodePosition(e Event) (PositionPayload, error) {
	var p PositionPayload
	if err := decodePayload(e, &p); err != nil {
		return p, err
	}
	if p.Symbol == "" {
		p.Symbol = e.Symbol
	}
	if p.Symbol == "" {
		return p, fmt.Errorf("event %s: position update without symbol", e.ID)
	}
	return p, nil
}

func DecodeProfile(e Event) (ProfilePayload, error) {
	var p ProfilePayload
	err := decodePayload(e, &p)
	return p, err
}

// NestedBool digs through arbitrarily nested payload objects for a
// boolean field. System status events nest the kill-switch and armed
// flags at varying depths depending on which engine subsystem emitted
// them.
func NestedBool(raw json.RawMessage, key string) (value, found bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return false, false
	}
	return nestedBool(m, key)
}

func nestedBool(m map[string]any, key string) (bool, bool) {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b, true
		}
	}
	for _, v := range m {
		if sub, ok := v.(map[string]any); ok {
			if b, found := nestedBool(sub, key); found {
				return b, true
			}
		}
	}
	return false, false
}

// CommandIDOf pulls the correlating command id off an event, checking
// the envelope first and the payload second.
func CommandIDOf(e Event) string {
	if e.CorrelationID != "" {
		return e.CorrelationID
	}
	if len(e.Payload) == 0 {
		return ""
	}
	var p struct {
		CommandID string `json:"command_id"`
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ""
	}
	return p.CommandID
}
