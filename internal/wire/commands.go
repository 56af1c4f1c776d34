package wire

import "time"

// Command is the wire shape of one outbound request to the engine.
type Command struct {
	ID        string         `json:"command_id"`
	Type      string         `json:"command_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Command types the desk sends.
const (
	CommandConfirmSignal = "confirm_signal"
	CommandCancelOrder   = "cancel_order"
	CommandFlattenAll    = "flatten_all"
	CommandArmLive       = "arm_live"
	CommandDisarmLive    = "disarm_live"
	CommandKillSwitch    = "kill_switch"
	CommandSetProfile    = "set_profile"
)

// CommandResult is the engine's synchronous acknowledgement. Accepted
// here means "queued for processing", not executed; the event stream
// carries the real outcome.
type CommandResult struct {
	Accepted  bool   `json:"accepted"`
	CommandID string `json:"command_id"`
	Message   string `json:"message,omitempty"`
}
