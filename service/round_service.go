package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"betrounds/events"
	"betrounds/models"

	log "github.com/sirupsen/logrus"
)

// RoundConfig holds the ledger policy for rounds
type RoundConfig struct {
	StartingBalance    int64
	FeePercent         int64
	FallbackMultiplier float64
}

type roundService struct {
	uowFactory UnitOfWorkFactory
	config     RoundConfig
	now        func() time.Time
}

// NewRoundService creates a new round service
func NewRoundService(uowFactory UnitOfWorkFactory, cfg RoundConfig) RoundService {
	return &roundService{
		uowFactory: uowFactory,
		config:     cfg,
		now:        time.Now,
	}
}

// ValidateSides trims the side names and rejects rounds with fewer than two
// distinct non-empty sides.
func ValidateSides(sides []string) ([]string, error) {
	cleaned := make([]string, 0, len(sides))
	seen := make(map[string]bool, len(sides))
	for _, side := range sides {
		side = strings.TrimSpace(side)
		key := strings.ToLower(side)
		if side == "" || seen[key] {
			return nil, ErrInvalidRound
		}
		seen[key] = true
		cleaned = append(cleaned, side)
	}
	if len(cleaned) < 2 {
		return nil, ErrInvalidRound
	}
	return cleaned, nil
}

// CreateRound persists a freshly opened round
func (s *roundService) CreateRound(ctx context.Context, round *models.Round) error {
	sides, err := ValidateSides(round.Sides)
	if err != nil {
		return err
	}
	round.Sides = sides
	round.Stage = models.RoundStageOpen

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.RoundRepository().Create(ctx, round); err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}

	uow.EventBus().Publish(events.RoundStateChangeEvent{
		RoundID:   round.MessageID,
		ChannelID: round.ChannelID,
		NewStage:  models.RoundStageOpen,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// HasWagered reports whether the participant already has a wager in the round
func (s *roundService) HasWagered(ctx context.Context, roundID, discordID int64) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	existing, err := uow.RoundRepository().GetWager(ctx, roundID, discordID)
	if err != nil {
		return false, fmt.Errorf("failed to check existing wager: %w", err)
	}
	return existing != nil, nil
}

// PlaceWager debits the stake and records the wager in one transaction.
// Either both happen or neither does.
func (s *roundService) PlaceWager(ctx context.Context, req WagerRequest) (*models.RoundWager, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetByID(ctx, req.RoundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	if round == nil {
		return nil, ErrRoundNotFound
	}
	if round.IsResolved() {
		return nil, ErrRoundResolved
	}
	if req.SideIndex < 0 || req.SideIndex >= len(round.Sides) {
		return nil, ErrInvalidSide
	}

	user, err := ensureUser(ctx, uow, req.DiscordID, req.Username, s.config.StartingBalance)
	if err != nil {
		return nil, err
	}

	existing, err := uow.RoundRepository().GetWager(ctx, req.RoundID, req.DiscordID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing wager: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyWagered
	}

	newBalance, err := uow.UserRepository().DeductBalance(ctx, req.DiscordID, req.Amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to debit stake: %w", err)
	}

	wager := &models.RoundWager{
		RoundID:      req.RoundID,
		DiscordID:    req.DiscordID,
		SideIndex:    req.SideIndex,
		Amount:       req.Amount,
		PooledAmount: PooledAmount(req.Amount, s.config.FeePercent),
	}
	if err := uow.RoundRepository().CreateWager(ctx, wager); err != nil {
		if errors.Is(err, ErrAlreadyWagered) {
			return nil, ErrAlreadyWagered
		}
		return nil, fmt.Errorf("failed to record wager: %w", err)
	}

	relatedID, relatedType := roundRef(req.RoundID)
	history := &models.BalanceHistory{
		DiscordID:       req.DiscordID,
		BalanceBefore:   user.Balance,
		BalanceAfter:    newBalance,
		ChangeAmount:    -req.Amount,
		TransactionType: models.TransactionTypeRoundWager,
		TransactionMetadata: map[string]any{
			"side_index":    req.SideIndex,
			"side":          round.Sides[req.SideIndex],
			"pooled_amount": wager.PooledAmount,
		},
		RelatedID:   relatedID,
		RelatedType: relatedType,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.WagerPlacedEvent{
		RoundID:      req.RoundID,
		DiscordID:    req.DiscordID,
		SideIndex:    req.SideIndex,
		Amount:       req.Amount,
		PooledAmount: wager.PooledAmount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"roundID":   req.RoundID,
		"discordID": req.DiscordID,
		"side":      req.SideIndex,
		"amount":    req.Amount,
		"pooled":    wager.PooledAmount,
	}).Info("Wager placed")

	return wager, nil
}

// RoundOdds recomputes the odds from the round's stored wagers
func (s *roundService) RoundOdds(ctx context.Context, roundID int64) (*models.RoundOdds, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetByID(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	if round == nil {
		return nil, ErrRoundNotFound
	}

	wagers, err := uow.RoundRepository().GetWagers(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers: %w", err)
	}

	return ComputeOdds(round.Sides, wagers, s.config.FallbackMultiplier), nil
}

// MarkStopped persists the stop timestamp. Stopping twice is a no-op.
func (s *roundService) MarkStopped(ctx context.Context, roundID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stopped, err := uow.RoundRepository().MarkStopped(ctx, roundID, s.now())
	if err != nil {
		return fmt.Errorf("failed to mark round stopped: %w", err)
	}
	if !stopped {
		return nil
	}

	uow.EventBus().Publish(events.RoundStateChangeEvent{
		RoundID:  roundID,
		OldStage: models.RoundStageOpen,
		NewStage: models.RoundStageStopped,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Settle pays out every wager of the round under outcome and marks the round
// resolved, all in one transaction. Wagers are read from the store and share
// one odds snapshot. A round can only be settled once.
func (s *roundService) Settle(ctx context.Context, roundID int64, outcome models.Outcome) (*models.Settlement, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settlement, err := s.settle(ctx, uow, roundID, outcome)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"roundID": roundID,
		"outcome": outcome.String(),
		"wagers":  len(settlement.Payouts),
	}).Info("Round settled")

	return settlement, nil
}

func (s *roundService) settle(ctx context.Context, uow UnitOfWork, roundID int64, outcome models.Outcome) (*models.Settlement, error) {
	rounds := uow.RoundRepository()

	round, err := rounds.GetByID(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	if round == nil {
		return nil, ErrRoundNotFound
	}
	if round.IsResolved() {
		return nil, ErrRoundResolved
	}
	if err := outcome.Validate(len(round.Sides)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSide, err)
	}

	wagers, err := rounds.GetWagers(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers: %w", err)
	}
	odds := ComputeOdds(round.Sides, wagers, s.config.FallbackMultiplier)

	settlement := &models.Settlement{
		RoundID: roundID,
		Outcome: outcome,
		Odds:    odds,
		Payouts: make([]*models.WagerPayout, 0, len(wagers)),
	}

	var totalPaid int64
	for _, w := range wagers {
		result := &models.WagerPayout{
			WagerID:      w.ID,
			DiscordID:    w.DiscordID,
			SideIndex:    w.SideIndex,
			Amount:       w.Amount,
			PooledAmount: w.PooledAmount,
		}

		transactionType := models.TransactionTypeRoundPayout
		switch {
		case outcome.IsRefund():
			result.Payout = w.PooledAmount
			result.Refunded = true
			transactionType = models.TransactionTypeRoundRefund
		case w.SideIndex == outcome.Side:
			result.Payout = WinningPayout(w.PooledAmount, odds.Sides[w.SideIndex], odds.TotalPool)
			result.Won = true
		}

		if result.Payout > 0 {
			newBalance, err := uow.UserRepository().AddBalance(ctx, w.DiscordID, result.Payout)
			if err != nil {
				return nil, fmt.Errorf("failed to credit wager %d: %w", w.ID, err)
			}
			result.NewBalance = newBalance

			relatedID, relatedType := roundRef(roundID)
			history := &models.BalanceHistory{
				DiscordID:       w.DiscordID,
				BalanceBefore:   newBalance - result.Payout,
				BalanceAfter:    newBalance,
				ChangeAmount:    result.Payout,
				TransactionType: transactionType,
				TransactionMetadata: map[string]any{
					"outcome":    outcome.String(),
					"side_index": w.SideIndex,
					"stake":      w.Amount,
				},
				RelatedID:   relatedID,
				RelatedType: relatedType,
			}
			if err := RecordBalanceChange(ctx, uow, history); err != nil {
				return nil, err
			}
		} else {
			user, err := uow.UserRepository().GetByDiscordID(ctx, w.DiscordID)
			if err != nil {
				return nil, fmt.Errorf("failed to get user %d: %w", w.DiscordID, err)
			}
			if user != nil {
				result.NewBalance = user.Balance
			}
		}

		if err := rounds.SetWagerPayout(ctx, w.ID, result.Payout); err != nil {
			return nil, fmt.Errorf("failed to record payout for wager %d: %w", w.ID, err)
		}

		totalPaid += result.Payout
		settlement.Payouts = append(settlement.Payouts, result)
	}

	if err := rounds.MarkResolved(ctx, roundID, outcome, s.now()); err != nil {
		if errors.Is(err, ErrRoundResolved) {
			return nil, ErrRoundResolved
		}
		return nil, fmt.Errorf("failed to mark round resolved: %w", err)
	}

	uow.EventBus().Publish(events.RoundStateChangeEvent{
		RoundID:   roundID,
		ChannelID: round.ChannelID,
		OldStage:  round.Stage,
		NewStage:  models.RoundStageResolved,
	})
	uow.EventBus().Publish(events.RoundSettledEvent{
		RoundID:     roundID,
		Outcome:     outcome.Kind,
		WinningSide: outcome.Side,
		WagerCount:  len(wagers),
		TotalPool:   odds.TotalPool,
		TotalPaid:   totalPaid,
	})

	return settlement, nil
}

// AbandonUnresolved settles every round a previous process left open or
// stopped as Cancelled, refunding all wagers.
func (s *roundService) AbandonUnresolved(ctx context.Context) ([]*models.Settlement, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	rounds, err := uow.RoundRepository().GetUnresolved(ctx)
	uow.Rollback()
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved rounds: %w", err)
	}

	settlements := make([]*models.Settlement, 0, len(rounds))
	for _, round := range rounds {
		settlement, err := s.Settle(ctx, round.MessageID, models.Cancelled())
		if errors.Is(err, ErrRoundResolved) {
			continue
		}
		if err != nil {
			return settlements, fmt.Errorf("failed to cancel round %d: %w", round.MessageID, err)
		}
		log.WithField("roundID", round.MessageID).Warn("Cancelled round left unresolved by a previous run")
		settlements = append(settlements, settlement)
	}
	return settlements, nil
}
