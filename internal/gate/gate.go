// Package gate computes the READY/BLOCKED verdict for the human
// confirmation workflow. Evaluate is a pure function of wall-clock
// time, the symbol's decision chain and the global control flags; the
// UI re-runs it on a 100ms tick because signal age is its only
// time-varying input.
package gate

import (
	"sync"
	"time"

	"github.com/tknair/confirmdesk/internal/chain"
	"github.com/tknair/confirmdesk/internal/state"
	"github.com/tknair/confirmdesk/internal/wire"
)

// Block reason codes, in evaluation order.
const (
	CodeNoSymbol     = "NO_SYMBOL"
	CodeNoSignal     = "NO_SIGNAL"
	CodeSignalStale  = "SIGNAL_STALE"
	CodeGateRejected = "GATE_REJECTED"
	CodeRiskVetoed   = "RISK_VETOED"
	CodeGuardBlocked = "GUARD_BLOCKED"
	CodeLiveNotArmed = "LIVE_NOT_ARMED"
	CodeKillSwitch   = "KILL_SWITCH"
)

const ModeLive = "live"

type Verdict string

const (
	Ready   Verdict = "READY"
	Blocked Verdict = "BLOCKED"
)

type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Tier is the countdown display color.
type Tier string

const (
	TierGreen   Tier = "green"
	TierYellow  Tier = "yellow"
	TierRed     Tier = "red"
	TierExpired Tier = "expired"
)

// AgeClass is the display classification of signal freshness.
type AgeClass string

const (
	AgeNone     AgeClass = "NONE"
	AgeArmed    AgeClass = "ARMED"
	AgeExpiring AgeClass = "EXPIRING"
	AgeStale    AgeClass = "STALE"
)

// Policy holds the staleness thresholds. They must match the policy
// the engine enforces on its side; a mismatch shows READY for signals
// the engine would reject as stale. When the engine advertises its
// policy in the snapshot, adopt it over these values.
type Policy struct {
	SignalTTL   time.Duration
	ArmedUnder  time.Duration
	GreenAbove  time.Duration
	YellowAbove time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		SignalTTL:   1200 * time.Millisecond,
		ArmedUnder:  800 * time.Millisecond,
		GreenAbove:  800 * time.Millisecond,
		YellowAbove: 400 * time.Millisecond,
	}
}

// PolicyFromWire builds a policy from the engine's advertised values,
// falling back per-field to the local defaults.
func PolicyFromWire(gp *wire.GatePolicy, fallback Policy) Policy {
	if gp == nil {
		return fallback
	}
	p := fallback
	if gp.SignalTTLMs > 0 {
		p.SignalTTL = time.Duration(gp.SignalTTLMs) * time.Millisecond
	}
	if gp.ArmedUnderMs > 0 {
		p.ArmedUnder = time.Duration(gp.ArmedUnderMs) * time.Millisecond
	}
	if gp.GreenAboveMs > 0 {
		p.GreenAbove = time.Duration(gp.GreenAboveMs) * time.Millisecond
	}
	if gp.YellowAboveMs > 0 {
		p.YellowAbove = time.Duration(gp.YellowAboveMs) * time.Millisecond
	}
	return p
}

// Result is one gate evaluation. Countdown and Tier drive the
// confirmation button rendering; AgeClass drives the signal badge.
type Result struct {
	Verdict   Verdict
	Reasons   []Reason
	SignalAge time.Duration // -1 when no signal
	Countdown time.Duration
	Tier      Tier
	AgeClass  AgeClass
}

// Evaluate computes the verdict for symbol at the given instant. The
// reasons list follows evaluation order and collects every applicable
// reason rather than stopping at the first.
func Evaluate(now time.Time, symbol string, ch *chain.Chain, flags state.Flags, p Policy) Result {
	var reasons []Reason

	var signal *chain.SignalStage
	if ch != nil {
		signal = ch.Signal
	}

	if symbol == "" {
		reasons = append(reasons, Reason{CodeNoSymbol, "no symbol selected"})
	} else if signal == nil {
		reasons = append(reasons, Reason{CodeNoSignal, "no signal for " + symbol})
	}

	age := time.Duration(-1)
	if signal != nil {
		age = now.Sub(signal.UpdatedAt)
		if age >= p.SignalTTL {
			reasons = append(reasons, Reason{CodeSignalStale, "signal is stale"})
		}
	}

	if ch != nil {
		if ch.Gate != nil && ch.Gate.Decision == chain.GateRejected {
			reasons = append(reasons, Reason{CodeGateRejected, "gate rejected: " + joinReasons(ch.Gate.Reasons)})
		}
		if ch.Risk != nil && ch.Risk.Decision == chain.RiskVetoed {
			reasons = append(reasons, Reason{CodeRiskVetoed, "risk vetoed: " + joinReasons(ch.Risk.Reasons)})
		}
		if ch.Guard != nil && ch.Guard.Decision == chain.GuardBlocked {
			reasons = append(reasons, Reason{CodeGuardBlocked, "execution guard blocked: " + joinReasons(ch.Guard.Reasons)})
		}
	}

	if flags.TradingMode == ModeLive && !flags.LiveArmed {
		reasons = append(reasons, Reason{CodeLiveNotArmed, "live mode is not armed"})
	}
	if flags.KillSwitch {
		reasons = append(reasons, Reason{CodeKillSwitch, "kill switch is active"})
	}

	res := Result{
		Verdict:   Ready,
		Reasons:   reasons,
		SignalAge: age,
		AgeClass:  classify(age, p),
	}
	if len(reasons) > 0 {
		res.Verdict = Blocked
	}
	if signal != nil {
		res.Countdown = p.SignalTTL - age
		if res.Countdown < 0 {
			res.Countdown = 0
		}
	}
	res.Tier = tier(signal != nil, res.Countdown, p)
	return res
}

func classify(age time.Duration, p Policy) AgeClass {
	switch {
	case age < 0:
		return AgeNone
	case age < p.ArmedUnder:
		return AgeArmed
	case age < p.SignalTTL:
		return AgeExpiring
	default:
		return AgeStale
	}
}

func tier(hasSignal bool, countdown time.Duration, p Policy) Tier {
	switch {
	case !hasSignal || countdown <= 0:
		return TierExpired
	case countdown > p.GreenAbove:
		return TierGreen
	case countdown > p.YellowAbove:
		return TierYellow
	default:
		return TierRed
	}
}

func joinReasons(rs []string) string {
	if len(rs) == 0 {
		return "unspecified"
	}
	out := rs[0]
	for _, r := range rs[1:] {
		out += ", " + r
	}
	return out
}

// Evaluator wraps Evaluate with a swappable policy so the app can
// adopt the engine-advertised thresholds after the snapshot fetch.
type Evaluator struct {
	mu     sync.RWMutex
	policy Policy
}

func NewEvaluator(p Policy) *Evaluator {
	return &Evaluator{policy: p}
}

func (e *Evaluator) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

func (e *Evaluator) SetPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

func (e *Evaluator) Evaluate(now time.Time, symbol string, ch *chain.Chain, flags state.Flags) Result {
	return Evaluate(now, symbol, ch, flags, e.Policy())
}
