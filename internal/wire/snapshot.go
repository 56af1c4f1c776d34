package wire

// Snapshot is the flat rehydration object the engine serves at
// startup and after a reconnect gap. It is never used for steady-state
// updates; those come off the event stream.
type Snapshot struct {
	Orders      []SnapshotOrder   `json:"orders"`
	Positions   []PositionPayload `json:"positions"`
	Executions  []SnapshotExec    `json:"executions"`
	TradingMode string            `json:"trading_mode"`
	LiveArmed   bool              `json:"live_armed"`
	KillSwitch  bool              `json:"kill_switch_active"`
	Profile     ProfilePayload    `json:"profile"`
	GatePolicy  *GatePolicy       `json:"gate_policy,omitempty"`
}

type SnapshotOrder struct {
	ClientOrderID  string  `json:"client_order_id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Quantity       int     `json:"quantity"`
	FilledQuantity int     `json:"filled_quantity"`
	OrderType      string  `json:"order_type"`
	LimitPrice     float64 `json:"limit_price,omitempty"`
	StopPrice      float64 `json:"stop_price,omitempty"`
	Status         string  `json:"status"`
	UpdatedAt      string  `json:"updated_at"`
}

type SnapshotExec struct {
	ExecID        string  `json:"exec_id"`
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	Timestamp     string  `json:"timestamp"`
}

// GatePolicy is the engine's advertised staleness policy. When present
// in a snapshot it overrides the locally configured constants, keeping
// the desk's READY verdict aligned with what the engine will actually
// accept.
type GatePolicy struct {
	SignalTTLMs   int `json:"signal_ttl_ms"`
	ArmedUnderMs  int `json:"armed_under_ms"`
	GreenAboveMs  int `json:"green_above_ms"`
	YellowAboveMs int `json:"yellow_above_ms"`
}
