package round

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"betrounds/models"
	"betrounds/service"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

const startingBalance = 1000

// fakeStore is an in-memory ledger with the same rules as the database one
type fakeStore struct {
	mu          sync.Mutex
	balances    map[int64]int64
	rounds      map[int64]*models.Round
	wagers      map[int64][]*models.RoundWager
	nextWagerID int64

	// placeGate, when set, holds every PlaceWager until closed or ctx is done
	placeGate  chan struct{}
	placeCalls int

	// admitGate, when set, holds every HasWagered until closed or ctx is done
	admitGate  chan struct{}
	admitCalls int

	settleErrs  []error
	settleCalls int
	createErr   error
	stopCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: make(map[int64]int64),
		rounds:   make(map[int64]*models.Round),
		wagers:   make(map[int64][]*models.RoundWager),
	}
}

func (f *fakeStore) balance(id int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[id]; ok {
		return b
	}
	return startingBalance
}

func (f *fakeStore) wagerCount(roundID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.wagers[roundID])
}

func (f *fakeStore) admits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitCalls
}

func (f *fakeStore) calls() (place, settle, stop int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.placeCalls, f.settleCalls, f.stopCalls
}

func (f *fakeStore) CreateRound(ctx context.Context, round *models.Round) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	r := *round
	r.Stage = models.RoundStageOpen
	round.Stage = models.RoundStageOpen
	f.rounds[round.MessageID] = &r
	return nil
}

func (f *fakeStore) HasWagered(ctx context.Context, roundID, discordID int64) (bool, error) {
	f.mu.Lock()
	f.admitCalls++
	gate := f.admitGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.wagers[roundID] {
		if w.DiscordID == discordID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) PlaceWager(ctx context.Context, req service.WagerRequest) (*models.RoundWager, error) {
	f.mu.Lock()
	f.placeCalls++
	gate := f.placeGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	round := f.rounds[req.RoundID]
	if round == nil {
		return nil, service.ErrRoundNotFound
	}
	if round.IsResolved() {
		return nil, service.ErrRoundResolved
	}
	for _, w := range f.wagers[req.RoundID] {
		if w.DiscordID == req.DiscordID {
			return nil, service.ErrAlreadyWagered
		}
	}
	balance, ok := f.balances[req.DiscordID]
	if !ok {
		balance = startingBalance
	}
	if balance < req.Amount {
		return nil, service.ErrInsufficientFunds
	}

	f.balances[req.DiscordID] = balance - req.Amount
	f.nextWagerID++
	wager := &models.RoundWager{
		ID:           f.nextWagerID,
		RoundID:      req.RoundID,
		DiscordID:    req.DiscordID,
		SideIndex:    req.SideIndex,
		Amount:       req.Amount,
		PooledAmount: req.Amount,
		CreatedAt:    time.Now(),
	}
	f.wagers[req.RoundID] = append(f.wagers[req.RoundID], wager)
	return wager, nil
}

func (f *fakeStore) RoundOdds(ctx context.Context, roundID int64) (*models.RoundOdds, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	round := f.rounds[roundID]
	if round == nil {
		return nil, service.ErrRoundNotFound
	}
	return service.ComputeOdds(round.Sides, f.wagers[roundID], service.DefaultFallbackMultiplier), nil
}

func (f *fakeStore) MarkStopped(ctx context.Context, roundID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if round := f.rounds[roundID]; round != nil && round.Stage == models.RoundStageOpen {
		round.Stage = models.RoundStageStopped
	}
	return nil
}

func (f *fakeStore) Settle(ctx context.Context, roundID int64, outcome models.Outcome) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settleCalls++
	if len(f.settleErrs) > 0 {
		err := f.settleErrs[0]
		f.settleErrs = f.settleErrs[1:]
		return nil, err
	}

	round := f.rounds[roundID]
	if round == nil {
		return nil, service.ErrRoundNotFound
	}
	if round.IsResolved() {
		return nil, service.ErrRoundResolved
	}

	odds := service.ComputeOdds(round.Sides, f.wagers[roundID], service.DefaultFallbackMultiplier)
	settlement := &models.Settlement{RoundID: roundID, Outcome: outcome, Odds: odds}
	for _, w := range f.wagers[roundID] {
		p := &models.WagerPayout{WagerID: w.ID, DiscordID: w.DiscordID, SideIndex: w.SideIndex, Amount: w.Amount, PooledAmount: w.PooledAmount}
		switch {
		case outcome.IsRefund():
			p.Payout = w.PooledAmount
			p.Refunded = true
		case outcome.Side == w.SideIndex:
			p.Payout = service.WinningPayout(w.PooledAmount, odds.Sides[w.SideIndex], odds.TotalPool)
			p.Won = true
		}
		f.balances[w.DiscordID] += p.Payout
		p.NewBalance = f.balances[w.DiscordID]
		settlement.Payouts = append(settlement.Payouts, p)
	}

	round.Stage = models.RoundStageResolved
	round.Outcome = &outcome
	return settlement, nil
}

type fakeAnswer struct {
	value   string
	replies chan string
}

func (a fakeAnswer) Value() string { return a.value }

func (a fakeAnswer) Reply(ctx context.Context, text string) error {
	a.replies <- text
	return nil
}

// fakeEngagement answers the amount prompt with answer, or blocks until
// the prompt is cancelled when block is set.
type fakeEngagement struct {
	id       int64
	groups   []int64
	side     int
	answer   string
	block    bool
	prompted chan struct{}
	replies  chan string
}

func newEngagement(id int64, side int, answer string) *fakeEngagement {
	return &fakeEngagement{
		id:       id,
		side:     side,
		answer:   answer,
		prompted: make(chan struct{}, 1),
		replies:  make(chan string, 4),
	}
}

func (e *fakeEngagement) ParticipantID() int64 { return e.id }
func (e *fakeEngagement) Username() string     { return "user" }
func (e *fakeEngagement) GroupIDs() []int64    { return e.groups }
func (e *fakeEngagement) SideIndex() int       { return e.side }

func (e *fakeEngagement) PromptAmount(ctx context.Context) (AmountReply, error) {
	e.prompted <- struct{}{}
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return fakeAnswer{value: e.answer, replies: e.replies}, nil
}

func (e *fakeEngagement) Reply(ctx context.Context, text string) error {
	e.replies <- text
	return nil
}

type fakeSurface struct {
	mu         sync.Mutex
	messageID  int64
	publishErr error
	published  int
	retracted  int
	updates    []Snapshot
}

func newFakeSurface(messageID int64) *fakeSurface {
	return &fakeSurface{messageID: messageID}
}

func (s *fakeSurface) Publish(ctx context.Context, snap Snapshot) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published++
	if s.publishErr != nil {
		return 0, 0, s.publishErr
	}
	return s.messageID, 55, nil
}

func (s *fakeSurface) Update(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, snap)
	return nil
}

func (s *fakeSurface) Retract(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retracted++
	return nil
}

func (s *fakeSurface) last() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return Snapshot{}
	}
	return s.updates[len(s.updates)-1]
}

type fakeNotifier struct {
	mu       sync.Mutex
	failFor  map[int64]bool
	notified []*models.WagerPayout
}

func (n *fakeNotifier) Notify(ctx context.Context, snap Snapshot, payout *models.WagerPayout) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[payout.DiscordID] {
		return errors.New("cannot send messages to this user")
	}
	n.notified = append(n.notified, payout)
	return nil
}

func (n *fakeNotifier) payouts() map[int64]*models.WagerPayout {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[int64]*models.WagerPayout, len(n.notified))
	for _, p := range n.notified {
		out[p.DiscordID] = p
	}
	return out
}

type harness struct {
	store    *fakeStore
	notifier *fakeNotifier
	coord    *Coordinator
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := newFakeStore()
	notifier := &fakeNotifier{}
	coord := NewCoordinator(ctx, store, notifier, cfg)
	coord.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	t.Cleanup(func() {
		cancel()
		coord.Wait()
	})
	return &harness{store: store, notifier: notifier, coord: coord, cancel: cancel}
}

func (h *harness) open(t *testing.T, req OpenRequest) (*Supervisor, *fakeSurface) {
	t.Helper()
	surface := newFakeSurface(1000)
	req.Surface = surface
	if req.Sides == nil {
		req.Sides = []string{"Red", "Blue"}
	}
	sup, err := h.coord.Open(context.Background(), req)
	require.NoError(t, err)
	return sup, surface
}

// place runs one engagement through the round and returns the private reply
func place(t *testing.T, sup *Supervisor, id int64, side int, amount string) string {
	t.Helper()
	e := newEngagement(id, side, amount)
	require.NoError(t, sup.Deliver(context.Background(), e))
	return awaitReply(t, e)
}

func awaitReply(t *testing.T, e *fakeEngagement) string {
	t.Helper()
	select {
	case r := <-e.replies:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from wager handler")
		return ""
	}
}

func awaitDone(t *testing.T, sup *Supervisor) {
	t.Helper()
	select {
	case <-sup.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("round did not settle")
	}
}
