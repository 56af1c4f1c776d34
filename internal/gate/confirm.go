package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tknair/confirmdesk/internal/chain"
	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/state"
	"github.com/tknair/confirmdesk/internal/wire"
)

// ErrConfirmPending means a confirmation for this symbol is already in
// flight; the control stays disabled until the correlated event lands
// or the pending entry is swept.
var ErrConfirmPending = errors.New("gate: confirmation already pending for symbol")

// BlockedError carries the gate reasons when a confirm attempt fails
// the synchronous re-evaluation.
type BlockedError struct {
	Reasons []Reason
}

func (e *BlockedError) Error() string {
	if len(e.Reasons) == 0 {
		return "gate: blocked"
	}
	return fmt.Sprintf("gate: blocked: %s", e.Reasons[0].Code)
}

// Sender is the slice of the command channel the confirmer needs.
type Sender interface {
	Send(ctx context.Context, cmdType string, payload map[string]any) (wire.CommandResult, error)
}

// Confirmer drives the human confirmation flow: re-evaluate the gate
// synchronously, guard against double submission, then emit the
// confirmation command. The result is provisional — real success is
// the correlated event, and until it arrives the pending entry keeps
// the control disabled.
type Confirmer struct {
	eval   *Evaluator
	store  *state.Store
	sender Sender
}

func NewConfirmer(eval *Evaluator, store *state.Store, sender Sender) *Confirmer {
	return &Confirmer{eval: eval, store: store, sender: sender}
}

// Confirm submits the operator's confirmation of the current signal on
// the given chain slot.
func (c *Confirmer) Confirm(ctx context.Context, now time.Time, symbol string, slotID int, ch *chain.Chain) (wire.CommandResult, error) {
	res := c.eval.Evaluate(now, symbol, ch, c.store.Flags())
	if res.Verdict != Ready {
		observ.IncCounter("confirms_blocked_total", map[string]string{"first_reason": firstCode(res.Reasons)})
		return wire.CommandResult{}, &BlockedError{Reasons: res.Reasons}
	}

	if c.store.HasPending(symbol, wire.CommandConfirmSignal) {
		return wire.CommandResult{}, ErrConfirmPending
	}

	payload := map[string]any{
		"symbol":           symbol,
		"chain_slot":       slotID,
		"signal_timestamp": ch.Signal.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"entry_price":      ch.Signal.EntryPrice,
	}
	result, err := c.sender.Send(ctx, wire.CommandConfirmSignal, payload)
	if err != nil {
		return wire.CommandResult{}, err
	}

	observ.IncCounter("confirms_submitted_total", map[string]string{
		"accepted": fmt.Sprintf("%t", result.Accepted),
	})
	return result, nil
}

func firstCode(rs []Reason) string {
	if len(rs) == 0 {
		return "none"
	}
	return rs[0].Code
}
