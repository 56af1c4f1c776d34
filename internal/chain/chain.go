// Package chain folds pipeline-stage events into per-symbol decision
// chain snapshots. A chain is not a state machine: each stage is an
// independently overwritten field with its own freshness, and judging
// staleness across stages is the confirmation gate's job.
package chain

import "time"

// Stage decisions as carried on the wire.
const (
	GateApproved = "approved"
	GateRejected = "rejected"
	RiskApproved = "approved"
	RiskVetoed   = "vetoed"
	GuardAllowed = "allow"
	GuardBlocked = "block"
)

type RegimeStage struct {
	Label      string
	Confidence float64
	UpdatedAt  time.Time
}

type SignalStage struct {
	Direction   string
	Strategy    string
	EntryPrice  float64
	StopPrice   float64
	TargetPrice float64
	UpdatedAt   time.Time
}

type ScoreStage struct {
	Confidence float64
	Rationale  string
	Model      string
	UpdatedAt  time.Time
}

type GateStage struct {
	Decision  string
	Reasons   []string
	UpdatedAt time.Time
}

type RiskStage struct {
	Decision     string
	Reasons      []string
	PositionSize float64
	UpdatedAt    time.Time
}

type GuardStage struct {
	Decision  string
	Reasons   []string
	UpdatedAt time.Time
}

type OrderStage struct {
	Status         string
	ClientOrderID  string
	FilledQuantity int
	UpdatedAt      time.Time
}

// Chain is the per-symbol snapshot of the engine's pipeline. Nil
// stages have never been seen for this symbol. A chain is created on
// first sight of its symbol and only ever enriched, never deleted.
type Chain struct {
	Symbol string
	Regime *RegimeStage
	Signal *SignalStage
	Score  *ScoreStage
	Gate   *GateStage
	Risk   *RiskStage
	Guard  *GuardStage
	Order  *OrderStage
}

// Clone returns a deep copy safe to hand to display surfaces.
func (c *Chain) Clone() Chain {
	out := Chain{Symbol: c.Symbol}
	if c.Regime != nil {
		v := *c.Regime
		out.Regime = &v
	}
	if c.Signal != nil {
		v := *c.Signal
		out.Signal = &v
	}
	if c.Score != nil {
		v := *c.Score
		out.Score = &v
	}
	if c.Gate != nil {
		v := *c.Gate
		v.Reasons = append([]string(nil), c.Gate.Reasons...)
		out.Gate = &v
	}
	if c.Risk != nil {
		v := *c.Risk
		v.Reasons = append([]string(nil), c.Risk.Reasons...)
		out.Risk = &v
	}
	if c.Guard != nil {
		v := *c.Guard
		v.Reasons = append([]string(nil), c.Guard.Reasons...)
		out.Guard = &v
	}
	if c.Order != nil {
		v := *c.Order
		out.Order = &v
	}
	return out
}
