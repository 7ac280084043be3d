package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"betrounds/database"
	"betrounds/models"
	"betrounds/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// RoundRepository implements the RoundRepository interface
type RoundRepository struct {
	q queryable
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *database.DB) *RoundRepository {
	return &RoundRepository{q: db.Pool}
}

func newRoundRepositoryWithTx(tx queryable) *RoundRepository {
	return &RoundRepository{q: tx}
}

const roundColumns = `message_id, channel_id, guild_id, creator_discord_id, sides, denylist,
	stage, outcome_kind, winning_side, created_at, stopped_at, resolved_at`

// Create inserts a new round
func (r *RoundRepository) Create(ctx context.Context, round *models.Round) error {
	denylist := round.Denylist
	if denylist == nil {
		denylist = []int64{}
	}

	query := `
		INSERT INTO rounds (message_id, channel_id, guild_id, creator_discord_id, sides, denylist, stage)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		round.MessageID,
		round.ChannelID,
		round.GuildID,
		round.CreatorDiscordID,
		round.Sides,
		denylist,
		round.Stage,
	).Scan(&round.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create round %d: %w", round.MessageID, err)
	}
	return nil
}

// GetByID retrieves a round by its status message ID
func (r *RoundRepository) GetByID(ctx context.Context, messageID int64) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE message_id = $1`

	round, err := scanRound(r.q.QueryRow(ctx, query, messageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d: %w", messageID, err)
	}
	return round, nil
}

// GetUnresolved returns every round that is still open or stopped
func (r *RoundRepository) GetUnresolved(ctx context.Context) ([]*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE stage <> 'resolved' ORDER BY created_at`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get unresolved rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}
	return rounds, nil
}

// MarkStopped moves an open round to stopped and reports whether it did
func (r *RoundRepository) MarkStopped(ctx context.Context, messageID int64, at time.Time) (bool, error) {
	query := `
		UPDATE rounds
		SET stage = 'stopped', stopped_at = $2
		WHERE message_id = $1 AND stage = 'open'
	`

	result, err := r.q.Exec(ctx, query, messageID, at)
	if err != nil {
		return false, fmt.Errorf("failed to stop round %d: %w", messageID, err)
	}
	return result.RowsAffected() == 1, nil
}

// MarkResolved stores the outcome. The update only matches unresolved rounds,
// so a second resolution fails with ErrRoundResolved.
func (r *RoundRepository) MarkResolved(ctx context.Context, messageID int64, outcome models.Outcome, at time.Time) error {
	var winningSide *int
	if outcome.Kind == models.OutcomeKindSide {
		side := outcome.Side
		winningSide = &side
	}

	query := `
		UPDATE rounds
		SET stage = 'resolved', outcome_kind = $2, winning_side = $3, resolved_at = $4,
		    stopped_at = COALESCE(stopped_at, $4)
		WHERE message_id = $1 AND stage <> 'resolved'
	`

	result, err := r.q.Exec(ctx, query, messageID, string(outcome.Kind), winningSide, at)
	if err != nil {
		return fmt.Errorf("failed to resolve round %d: %w", messageID, err)
	}
	if result.RowsAffected() == 0 {
		existing, err := r.GetByID(ctx, messageID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("round %d: %w", messageID, service.ErrRoundNotFound)
		}
		return fmt.Errorf("round %d: %w", messageID, service.ErrRoundResolved)
	}
	return nil
}

// CreateWager inserts a wager. The one-per-participant constraint is mapped
// to ErrAlreadyWagered.
func (r *RoundRepository) CreateWager(ctx context.Context, wager *models.RoundWager) error {
	query := `
		INSERT INTO round_wagers (round_id, discord_id, side_index, amount, pooled_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		wager.RoundID,
		wager.DiscordID,
		wager.SideIndex,
		wager.Amount,
		wager.PooledAmount,
	).Scan(&wager.ID, &wager.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("user %d in round %d: %w", wager.DiscordID, wager.RoundID, service.ErrAlreadyWagered)
		}
		return fmt.Errorf("failed to create wager: %w", err)
	}
	return nil
}

// GetWager returns the participant's wager in the round, nil if none
func (r *RoundRepository) GetWager(ctx context.Context, roundID, discordID int64) (*models.RoundWager, error) {
	query := `
		SELECT id, round_id, discord_id, side_index, amount, pooled_amount, payout, created_at
		FROM round_wagers
		WHERE round_id = $1 AND discord_id = $2
	`

	wager, err := scanWager(r.q.QueryRow(ctx, query, roundID, discordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	return wager, nil
}

// GetWagers returns all wagers of a round in placement order
func (r *RoundRepository) GetWagers(ctx context.Context, roundID int64) ([]*models.RoundWager, error) {
	query := `
		SELECT id, round_id, discord_id, side_index, amount, pooled_amount, payout, created_at
		FROM round_wagers
		WHERE round_id = $1
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers for round %d: %w", roundID, err)
	}
	defer rows.Close()

	wagers := make([]*models.RoundWager, 0)
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, wager)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wagers: %w", err)
	}
	return wagers, nil
}

// SetWagerPayout records what settlement paid for a wager
func (r *RoundRepository) SetWagerPayout(ctx context.Context, wagerID int64, payout int64) error {
	result, err := r.q.Exec(ctx, `UPDATE round_wagers SET payout = $2 WHERE id = $1`, wagerID, payout)
	if err != nil {
		return fmt.Errorf("failed to set payout for wager %d: %w", wagerID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("wager %d not found", wagerID)
	}
	return nil
}

func scanRound(row pgx.Row) (*models.Round, error) {
	var round models.Round
	var outcomeKind *string
	var winningSide *int

	err := row.Scan(
		&round.MessageID,
		&round.ChannelID,
		&round.GuildID,
		&round.CreatorDiscordID,
		&round.Sides,
		&round.Denylist,
		&round.Stage,
		&outcomeKind,
		&winningSide,
		&round.CreatedAt,
		&round.StoppedAt,
		&round.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if outcomeKind != nil {
		outcome := models.Outcome{Kind: models.OutcomeKind(*outcomeKind)}
		if winningSide != nil {
			outcome.Side = *winningSide
		}
		round.Outcome = &outcome
	}
	return &round, nil
}

func scanWager(row pgx.Row) (*models.RoundWager, error) {
	var wager models.RoundWager
	err := row.Scan(
		&wager.ID,
		&wager.RoundID,
		&wager.DiscordID,
		&wager.SideIndex,
		&wager.Amount,
		&wager.PooledAmount,
		&wager.Payout,
		&wager.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &wager, nil
}
