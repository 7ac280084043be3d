package round

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"betrounds/service"

	log "github.com/sirupsen/logrus"
)

const roundEndedMessage = "The round ended before your bet was placed. You were not charged."

// handleEngagement drives one participant from button press to committed
// wager. It holds no lock while waiting on the participant.
func (s *Supervisor) handleEngagement(ctx context.Context, e Engagement) {
	logger := s.logger().WithField("discordID", e.ParticipantID())
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Wager handler panicked")
		}
	}()

	p := Participant{ID: e.ParticipantID(), Username: e.Username(), GroupIDs: e.GroupIDs()}

	if err := s.session.Admit(ctx, p); err != nil {
		if ctx.Err() != nil {
			s.reply(ctx, e.Reply, roundEndedMessage)
			return
		}
		logRejection(logger, err)
		s.reply(ctx, e.Reply, UserMessage(err))
		return
	}

	promptCtx, cancel := context.WithTimeout(ctx, s.promptTimeout)
	answer, err := e.PromptAmount(promptCtx)
	cancel()
	if err != nil {
		// Timed out, aborted or the transport failed. The participant may engage again.
		logger.WithError(err).Debug("Amount prompt ended without an answer")
		return
	}

	amount, err := ParseAmount(answer.Value())
	if err != nil {
		s.reply(ctx, answer.Reply, UserMessage(err))
		return
	}

	wager, err := s.session.PlaceWager(ctx, p, e.SideIndex(), amount)
	if err != nil {
		if ctx.Err() != nil {
			s.reply(ctx, answer.Reply, roundEndedMessage)
			return
		}
		logRejection(logger, err)
		s.reply(ctx, answer.Reply, UserMessage(err))
		return
	}

	side := s.session.round.Sides[wager.SideIndex]
	s.reply(ctx, answer.Reply, fmt.Sprintf("You bet %s on **%s**. The payout may still change as more bets come in.", FormatAmount(wager.Amount), side))
	s.refresh(ctx)
}

// reply sends a private response even when ctx has been cancelled
func (s *Supervisor) reply(ctx context.Context, send func(context.Context, string) error, text string) {
	replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()
	if err := send(replyCtx, text); err != nil {
		s.logger().WithError(err).Debug("Failed to reply to participant")
	}
}

func logRejection(logger *log.Entry, err error) {
	if isBusinessError(err) {
		logger.WithError(err).Debug("Wager rejected")
		return
	}
	logger.WithError(err).Error("Wager failed")
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		service.ErrInvalidAmount,
		service.ErrInvalidSide,
		service.ErrInsufficientFunds,
		service.ErrAlreadyWagered,
		service.ErrIneligible,
		service.ErrRoundResolved,
		service.ErrEntryClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ParseAmount reads a whole, positive stake. Thousands separators and
// surrounding spaces are accepted.
func ParseAmount(raw string) (int64, error) {
	cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(strings.TrimSpace(raw))
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || amount <= 0 {
		return 0, service.ErrInvalidAmount
	}
	return amount, nil
}

// UserMessage turns an error into the private text shown to the requester
func UserMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return "That isn't a valid amount. Enter a positive whole number."
	case errors.Is(err, service.ErrInsufficientFunds):
		return "You don't have enough coins to bet that much."
	case errors.Is(err, service.ErrAlreadyWagered):
		return "You've already placed a bet in this round."
	case errors.Is(err, service.ErrIneligible):
		return "You're not allowed to bet in this round."
	case errors.Is(err, service.ErrEntryClosed):
		return "This round is no longer accepting bets."
	case errors.Is(err, service.ErrRoundResolved):
		return "This round has already been decided."
	case errors.Is(err, service.ErrInvalidSide):
		return "That side isn't part of this round."
	case errors.Is(err, service.ErrInvalidRound):
		return "A round needs at least two distinct, non-empty sides."
	case errors.Is(err, service.ErrRoundActive):
		return "There's already a round running. End it before starting another."
	case errors.Is(err, service.ErrNoActiveRound):
		return "That message isn't an active round."
	default:
		return "Something went wrong. Please try again."
	}
}

// FormatAmount renders ledger units with thousands separators
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}
