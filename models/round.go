package models

import (
	"fmt"
	"time"
)

// RoundStage is the lifecycle stage of a betting round
type RoundStage string

const (
	RoundStageOpen     RoundStage = "open"
	RoundStageStopped  RoundStage = "stopped"
	RoundStageResolved RoundStage = "resolved"
)

// OutcomeKind distinguishes a winning side from the refund outcomes
type OutcomeKind string

const (
	OutcomeKindSide      OutcomeKind = "side"
	OutcomeKindDraw      OutcomeKind = "draw"
	OutcomeKindCancelled OutcomeKind = "cancelled"
)

// Outcome is the final result of a round. Side is only meaningful for OutcomeKindSide.
type Outcome struct {
	Kind OutcomeKind
	Side int
}

// SideWins returns the outcome where the side at index wins
func SideWins(index int) Outcome {
	return Outcome{Kind: OutcomeKindSide, Side: index}
}

// Draw returns the draw outcome
func Draw() Outcome {
	return Outcome{Kind: OutcomeKindDraw}
}

// Cancelled returns the cancelled outcome
func Cancelled() Outcome {
	return Outcome{Kind: OutcomeKindCancelled}
}

// IsRefund reports whether every wager is returned under this outcome
func (o Outcome) IsRefund() bool {
	return o.Kind == OutcomeKindDraw || o.Kind == OutcomeKindCancelled
}

// Validate checks the outcome against the number of sides in a round
func (o Outcome) Validate(sides int) error {
	switch o.Kind {
	case OutcomeKindDraw, OutcomeKindCancelled:
		return nil
	case OutcomeKindSide:
		if o.Side < 0 || o.Side >= sides {
			return fmt.Errorf("winning side %d out of range (round has %d sides)", o.Side, sides)
		}
		return nil
	default:
		return fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
}

func (o Outcome) String() string {
	if o.Kind == OutcomeKindSide {
		return fmt.Sprintf("side:%d", o.Side)
	}
	return string(o.Kind)
}

// Round is a betting round. MessageID is the status message snowflake and
// doubles as the primary key.
type Round struct {
	MessageID        int64      `db:"message_id"`
	ChannelID        int64      `db:"channel_id"`
	GuildID          int64      `db:"guild_id"`
	CreatorDiscordID int64      `db:"creator_discord_id"`
	Sides            []string   `db:"sides"`
	Denylist         []int64    `db:"denylist"`
	Stage            RoundStage `db:"stage"`
	Outcome          *Outcome   `db:"-"`
	CreatedAt        time.Time  `db:"created_at"`
	StoppedAt        *time.Time `db:"stopped_at"`
	ResolvedAt       *time.Time `db:"resolved_at"`
}

// IsResolved returns true once the round has an outcome
func (r *Round) IsResolved() bool {
	return r.Stage == RoundStageResolved
}

// RoundWager is one participant's committed stake in a round.
// PooledAmount is the stake after the placement fee; it is what
// odds are computed from and what a refund returns.
type RoundWager struct {
	ID           int64     `db:"id"`
	RoundID      int64     `db:"round_id"`
	DiscordID    int64     `db:"discord_id"`
	SideIndex    int       `db:"side_index"`
	Amount       int64     `db:"amount"`
	PooledAmount int64     `db:"pooled_amount"`
	Payout       *int64    `db:"payout"`
	CreatedAt    time.Time `db:"created_at"`
}

// SideOdds is the live view of one side
type SideOdds struct {
	Index      int
	Name       string
	Pool       int64
	WagerCount int
	Multiplier float64
	Fallback   bool
}

// RoundOdds is the per-side odds view plus summary totals
type RoundOdds struct {
	Sides      []SideOdds
	TotalPool  int64
	WagerCount int
}

// WagerPayout records what settlement did with one wager
type WagerPayout struct {
	WagerID      int64
	DiscordID    int64
	SideIndex    int
	Amount       int64
	PooledAmount int64
	Payout       int64
	Won          bool
	Refunded     bool
	NewBalance   int64
}

// Settlement is the result of resolving a round against the ledger
type Settlement struct {
	RoundID int64
	Outcome Outcome
	Odds    *RoundOdds
	Payouts []*WagerPayout
}
