package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"betrounds/models"
	"betrounds/service"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	settleMaxRetries = 5
	replyTimeout     = 5 * time.Second
)

// Supervisor drives one round from open to settlement. It owns the round's
// Session for its whole lifetime.
type Supervisor struct {
	session  *Session
	store    Store
	surface  StatusSurface
	notifier Notifier

	intake   *intake
	stopSig  *signal[struct{}]
	endSig   *signal[models.Outcome]
	autoStop time.Duration

	promptTimeout time.Duration
	newBackOff    func() backoff.BackOff

	refreshMu sync.Mutex
	lastOdds  *models.RoundOdds

	done       chan struct{}
	settlement *models.Settlement
	release    func()
}

type supervisorConfig struct {
	promptTimeout time.Duration
	autoStop      time.Duration
	newBackOff    func() backoff.BackOff
}

func newSupervisor(session *Session, store Store, surface StatusSurface, notifier Notifier, cfg supervisorConfig, release func()) *Supervisor {
	newBackOff := cfg.newBackOff
	if newBackOff == nil {
		newBackOff = defaultBackOff
	}
	return &Supervisor{
		session:       session,
		store:         store,
		surface:       surface,
		notifier:      notifier,
		intake:        newIntake(),
		stopSig:       newSignal[struct{}](),
		endSig:        newSignal[models.Outcome](),
		autoStop:      cfg.autoStop,
		promptTimeout: cfg.promptTimeout,
		newBackOff:    newBackOff,
		done:          make(chan struct{}),
		release:       release,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// ID is the round identity
func (s *Supervisor) ID() int64 {
	return s.session.ID()
}

// Session exposes the live round state
func (s *Supervisor) Session() *Session {
	return s.session
}

// Done is closed once the round has settled and been torn down
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Settlement is the committed result, nil until Done is closed or if
// settlement failed
func (s *Supervisor) Settlement() *models.Settlement {
	select {
	case <-s.done:
		return s.settlement
	default:
		return nil
	}
}

// Deliver hands an engagement to the round. It fails with ErrEntryClosed
// once the round stops accepting wagers.
func (s *Supervisor) Deliver(ctx context.Context, e Engagement) error {
	return s.intake.deliver(ctx, e)
}

// Stop closes the round to new wagers. Deliveries made after it returns
// fail with ErrEntryClosed.
func (s *Supervisor) Stop() error {
	if _, ended := s.endSig.Value(); ended {
		return service.ErrRoundResolved
	}
	if !s.stopSig.Fire(struct{}{}) {
		return service.ErrEntryClosed
	}
	s.intake.close()
	return nil
}

// End supplies the final outcome. Only the first End is accepted.
func (s *Supervisor) End(outcome models.Outcome) error {
	if err := outcome.Validate(len(s.session.round.Sides)); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidSide, err)
	}
	if !s.endSig.Fire(outcome) {
		return service.ErrRoundResolved
	}
	s.intake.close()
	return nil
}

func (s *Supervisor) logger() *log.Entry {
	return log.WithField("roundID", s.ID())
}

// run is the supervisor loop. It returns after settlement.
func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer s.release()

	abortCtx, abort := context.WithCancel(ctx)
	defer abort()
	tasks, taskCtx := errgroup.WithContext(abortCtx)

	var autoStop <-chan time.Time
	if s.autoStop > 0 {
		timer := time.NewTimer(s.autoStop)
		defer timer.Stop()
		autoStop = timer.C
	}

	s.refresh(ctx)

	ended := false
loop:
	for {
		select {
		case e := <-s.intake.events:
			// A send blocked in deliver can still win against Stop or End
			if !s.accepting() {
				tasks.Go(func() error {
					s.reply(taskCtx, e.Reply, UserMessage(service.ErrEntryClosed))
					return nil
				})
				continue
			}
			tasks.Go(func() error {
				s.handleEngagement(taskCtx, e)
				return nil
			})
		case <-s.stopSig.Done():
			break loop
		case <-autoStop:
			s.stopSig.Fire(struct{}{})
			s.intake.close()
			s.logger().Info("Auto-stop elapsed")
			break loop
		case <-s.endSig.Done():
			ended = true
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	s.intake.close()
	if _, ok := s.endSig.Value(); ok {
		ended = true
	}

	var outcome models.Outcome
	if ended {
		// End overrides everything still in flight
		abort()
		_ = tasks.Wait()
		outcome, _ = s.endSig.Value()
		s.logger().WithField("outcome", outcome.String()).Info("Round ended while open")
	} else {
		s.markStopped(ctx)
		_ = tasks.Wait()

		select {
		case <-s.endSig.Done():
			outcome, _ = s.endSig.Value()
		case <-ctx.Done():
			// Nobody can end the round anymore; refund everyone
			if !s.endSig.Fire(models.Cancelled()) {
				outcome, _ = s.endSig.Value()
			} else {
				outcome = models.Cancelled()
				s.logger().Warn("Round orphaned while stopped, cancelling")
			}
		}
	}

	s.settle(context.WithoutCancel(ctx), outcome)
}

func (s *Supervisor) markStopped(ctx context.Context) {
	s.session.Stop()
	if err := s.store.MarkStopped(context.WithoutCancel(ctx), s.ID()); err != nil {
		s.logger().WithError(err).Error("Failed to persist round stop")
	}
	s.refresh(context.WithoutCancel(ctx))
	s.logger().Info("Round stopped")
}

func (s *Supervisor) settle(ctx context.Context, outcome models.Outcome) {
	if err := s.session.Resolve(outcome); err != nil {
		s.logger().WithError(err).Error("Round resolved twice")
		return
	}

	attempt := 0
	var settlement *models.Settlement
	op := func() error {
		attempt++
		var err error
		settlement, err = s.store.Settle(ctx, s.ID(), outcome)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, service.ErrRoundResolved),
			errors.Is(err, service.ErrRoundNotFound),
			errors.Is(err, service.ErrInvalidSide):
			return backoff.Permanent(err)
		default:
			return err
		}
	}
	notify := func(err error, wait time.Duration) {
		s.logger().WithError(err).WithField("retryIn", wait).Warn("Settlement failed, retrying")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), settleMaxRetries), ctx), notify)
	if err != nil {
		if attempt > 1 && errors.Is(err, service.ErrRoundResolved) {
			s.logger().Warn("Settlement committed by an earlier attempt; skipping notifications")
		} else {
			s.logger().WithError(err).Error("Failed to settle round")
		}
		s.refresh(ctx)
		return
	}
	s.settlement = settlement

	snap := s.snapshot(settlement.Odds)
	snap.Settlement = settlement
	for _, payout := range settlement.Payouts {
		if s.notifier == nil {
			break
		}
		if err := s.notifier.Notify(ctx, snap, payout); err != nil {
			s.logger().WithError(err).WithField("discordID", payout.DiscordID).Warn("Failed to notify participant")
		}
	}

	s.refreshMu.Lock()
	s.lastOdds = settlement.Odds
	if err := s.surface.Update(ctx, snap); err != nil {
		s.logger().WithError(err).Warn("Failed to update status message")
	}
	s.refreshMu.Unlock()
}

// refresh re-reads the odds and redraws the status message. Calls are
// serialized so a stale view never overwrites a newer one.
func (s *Supervisor) refresh(ctx context.Context) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	odds, err := s.session.Odds(ctx)
	if err != nil {
		s.logger().WithError(err).Warn("Failed to recompute odds")
		odds = s.lastOdds
	} else {
		s.lastOdds = odds
	}

	if err := s.surface.Update(ctx, s.snapshot(odds)); err != nil {
		s.logger().WithError(err).Warn("Failed to update status message")
	}
}

func (s *Supervisor) snapshot(odds *models.RoundOdds) Snapshot {
	return Snapshot{
		RoundID:          s.ID(),
		ChannelID:        s.session.round.ChannelID,
		GuildID:          s.session.round.GuildID,
		Sides:            s.session.Sides(),
		Stage:            s.session.Stage(),
		Outcome:          s.session.Outcome(),
		Odds:             odds,
		AcceptingEntries: s.accepting(),
	}
}

func (s *Supervisor) accepting() bool {
	select {
	case <-s.intake.closed:
		return false
	default:
		return true
	}
}
