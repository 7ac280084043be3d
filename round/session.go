package round

import (
	"context"
	"fmt"
	"sync"

	"betrounds/models"
	"betrounds/service"
)

// Participant identifies who is trying to wager
type Participant struct {
	ID       int64
	Username string
	GroupIDs []int64
}

// Session is the in-memory state of one live round. The lock only guards
// in-memory checks and updates; it is never held across a store call.
type Session struct {
	store    Store
	round    models.Round
	denylist map[int64]struct{}

	mu      sync.RWMutex
	stage   models.RoundStage
	outcome *models.Outcome
	// placing holds participants with a store call in flight
	placing map[int64]struct{}
	placed  map[int64]struct{}
}

func newSession(store Store, round *models.Round) *Session {
	denylist := make(map[int64]struct{}, len(round.Denylist))
	for _, id := range round.Denylist {
		denylist[id] = struct{}{}
	}

	r := *round
	r.Sides = append([]string(nil), round.Sides...)
	r.Denylist = append([]int64(nil), round.Denylist...)

	return &Session{
		store:    store,
		round:    r,
		denylist: denylist,
		stage:    round.Stage,
		placing:  make(map[int64]struct{}),
		placed:   make(map[int64]struct{}),
	}
}

// ID is the round's identity, the status message ID
func (s *Session) ID() int64 {
	return s.round.MessageID
}

// Sides returns a copy of the side names
func (s *Session) Sides() []string {
	return append([]string(nil), s.round.Sides...)
}

// Stage returns the current lifecycle stage
func (s *Session) Stage() models.RoundStage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// Outcome returns the resolved outcome, nil before resolution
func (s *Session) Outcome() *models.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.outcome == nil {
		return nil
	}
	o := *s.outcome
	return &o
}

func (s *Session) ineligible(p Participant) bool {
	if _, ok := s.denylist[p.ID]; ok {
		return true
	}
	for _, g := range p.GroupIDs {
		if _, ok := s.denylist[g]; ok {
			return true
		}
	}
	return false
}

// Admit is the read-only check run before prompting for an amount
func (s *Session) Admit(ctx context.Context, p Participant) error {
	s.mu.RLock()
	stage := s.stage
	_, busy := s.placing[p.ID]
	_, done := s.placed[p.ID]
	s.mu.RUnlock()

	if stage == models.RoundStageResolved {
		return service.ErrRoundResolved
	}
	if s.ineligible(p) {
		return service.ErrIneligible
	}
	if busy || done {
		return service.ErrAlreadyWagered
	}

	wagered, err := s.store.HasWagered(ctx, s.round.MessageID, p.ID)
	if err != nil {
		return fmt.Errorf("failed to check prior wager: %w", err)
	}
	if wagered {
		return service.ErrAlreadyWagered
	}
	return nil
}

// PlaceWager commits a stake for p. At most one call per participant reaches
// the store at a time; the store's unique constraint backs this up across
// processes.
func (s *Session) PlaceWager(ctx context.Context, p Participant, sideIndex int, amount int64) (*models.RoundWager, error) {
	if amount <= 0 {
		return nil, service.ErrInvalidAmount
	}
	if sideIndex < 0 || sideIndex >= len(s.round.Sides) {
		return nil, service.ErrInvalidSide
	}
	if s.ineligible(p) {
		return nil, service.ErrIneligible
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.stage == models.RoundStageResolved {
		s.mu.Unlock()
		return nil, service.ErrRoundResolved
	}
	_, busy := s.placing[p.ID]
	_, done := s.placed[p.ID]
	if busy || done {
		s.mu.Unlock()
		return nil, service.ErrAlreadyWagered
	}
	s.placing[p.ID] = struct{}{}
	s.mu.Unlock()

	wager, err := s.store.PlaceWager(ctx, service.WagerRequest{
		RoundID:   s.round.MessageID,
		DiscordID: p.ID,
		Username:  p.Username,
		SideIndex: sideIndex,
		Amount:    amount,
	})

	s.mu.Lock()
	delete(s.placing, p.ID)
	if err == nil {
		s.placed[p.ID] = struct{}{}
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return wager, nil
}

// Odds recomputes the odds from the stored wagers. Valid in every stage.
func (s *Session) Odds(ctx context.Context) (*models.RoundOdds, error) {
	return s.store.RoundOdds(ctx, s.round.MessageID)
}

// Stop moves an open round to stopped and reports whether it did.
// Stopping twice, or stopping a resolved round, is a no-op.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != models.RoundStageOpen {
		return false
	}
	s.stage = models.RoundStageStopped
	return true
}

// Resolve records the outcome. A round resolves exactly once; later calls
// fail with ErrRoundResolved.
func (s *Session) Resolve(outcome models.Outcome) error {
	if err := outcome.Validate(len(s.round.Sides)); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidSide, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == models.RoundStageResolved {
		return service.ErrRoundResolved
	}
	s.stage = models.RoundStageResolved
	s.outcome = &outcome
	return nil
}
