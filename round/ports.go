package round

import (
	"context"

	"betrounds/models"
	"betrounds/service"
)

// Store is the ledger the coordinator runs rounds against.
// service.RoundService satisfies it.
type Store interface {
	CreateRound(ctx context.Context, round *models.Round) error
	HasWagered(ctx context.Context, roundID, discordID int64) (bool, error)
	PlaceWager(ctx context.Context, req service.WagerRequest) (*models.RoundWager, error)
	RoundOdds(ctx context.Context, roundID int64) (*models.RoundOdds, error)
	MarkStopped(ctx context.Context, roundID int64) error
	Settle(ctx context.Context, roundID int64, outcome models.Outcome) (*models.Settlement, error)
}

// Engagement is one participant pressing a side button on the round's
// status message.
type Engagement interface {
	ParticipantID() int64
	Username() string
	// GroupIDs are the participant's group memberships, checked against the denylist
	GroupIDs() []int64
	SideIndex() int

	// PromptAmount asks the participant for a stake and blocks until they
	// answer or ctx is done.
	PromptAmount(ctx context.Context) (AmountReply, error)

	// Reply answers the engagement privately. Only valid before PromptAmount.
	Reply(ctx context.Context, text string) error
}

// AmountReply is the participant's answer to an amount prompt
type AmountReply interface {
	Value() string
	Reply(ctx context.Context, text string) error
}

// StatusSurface is the round's public status message
type StatusSurface interface {
	// Publish posts the message. Its ID becomes the round's identity.
	Publish(ctx context.Context, snap Snapshot) (messageID, channelID int64, err error)
	Update(ctx context.Context, snap Snapshot) error
	// Retract removes a published message whose round failed to open
	Retract(ctx context.Context) error
}

// Notifier tells a participant privately how their wager settled
type Notifier interface {
	Notify(ctx context.Context, snap Snapshot, payout *models.WagerPayout) error
}

// Snapshot is a point-in-time view of a round for rendering
type Snapshot struct {
	RoundID          int64
	ChannelID        int64
	GuildID          int64
	Sides            []string
	Stage            models.RoundStage
	Outcome          *models.Outcome
	Odds             *models.RoundOdds
	AcceptingEntries bool
	Settlement       *models.Settlement
}
