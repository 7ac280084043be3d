package round

import (
	"context"
	"fmt"
	"sync"
	"time"

	"betrounds/models"
	"betrounds/service"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// Config holds the coordinator's timing policy
type Config struct {
	// PromptTimeout bounds how long a participant has to enter an amount
	PromptTimeout time.Duration
	// MaxAutoStop caps the auto-stop a round may request. Zero disables the cap.
	MaxAutoStop time.Duration
}

// OpenRequest describes a round to open
type OpenRequest struct {
	GuildID   int64
	CreatorID int64
	Sides     []string
	Denylist  []int64
	// AutoStop closes entry after this long. Zero means only an operator stops it.
	AutoStop time.Duration
	Surface  StatusSurface
}

// Coordinator keeps at most one live round per process
type Coordinator struct {
	ctx      context.Context
	store    Store
	notifier Notifier
	cfg      Config

	newBackOff func() backoff.BackOff

	mu       sync.Mutex
	reserved bool
	active   *Supervisor
	wg       sync.WaitGroup
}

// NewCoordinator creates a coordinator. Rounds run under ctx; cancelling it
// cancels every live round and refunds its wagers.
func NewCoordinator(ctx context.Context, store Store, notifier Notifier, cfg Config) *Coordinator {
	if cfg.PromptTimeout <= 0 {
		cfg.PromptTimeout = 60 * time.Second
	}
	return &Coordinator{
		ctx:      ctx,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Open publishes the status surface, persists the round and starts its
// supervisor. A second Open while a round is live fails with ErrRoundActive
// and touches nothing.
func (c *Coordinator) Open(ctx context.Context, req OpenRequest) (*Supervisor, error) {
	sides, err := service.ValidateSides(req.Sides)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.reserved {
		c.mu.Unlock()
		return nil, service.ErrRoundActive
	}
	c.reserved = true
	c.mu.Unlock()

	opened := false
	defer func() {
		if !opened {
			c.releaseSlot()
		}
	}()

	messageID, channelID, err := req.Surface.Publish(ctx, Snapshot{
		GuildID:          req.GuildID,
		Sides:            sides,
		Stage:            models.RoundStageOpen,
		AcceptingEntries: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish round: %w", err)
	}

	round := &models.Round{
		MessageID:        messageID,
		ChannelID:        channelID,
		GuildID:          req.GuildID,
		CreatorDiscordID: req.CreatorID,
		Sides:            sides,
		Denylist:         req.Denylist,
	}
	if err := c.store.CreateRound(ctx, round); err != nil {
		if rerr := req.Surface.Retract(context.WithoutCancel(ctx)); rerr != nil {
			log.WithError(rerr).WithField("messageID", messageID).Warn("Failed to retract status message")
		}
		return nil, fmt.Errorf("failed to persist round: %w", err)
	}

	autoStop := req.AutoStop
	if c.cfg.MaxAutoStop > 0 && autoStop > c.cfg.MaxAutoStop {
		autoStop = c.cfg.MaxAutoStop
	}

	sup := newSupervisor(newSession(c.store, round), c.store, req.Surface, c.notifier, supervisorConfig{
		promptTimeout: c.cfg.PromptTimeout,
		autoStop:      autoStop,
		newBackOff:    c.newBackOff,
	}, c.releaseSlot)

	c.mu.Lock()
	c.active = sup
	c.mu.Unlock()
	opened = true

	log.WithFields(log.Fields{
		"roundID":  round.MessageID,
		"sides":    sides,
		"denylist": len(req.Denylist),
		"autoStop": autoStop,
	}).Info("Round opened")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		sup.run(c.ctx)
	}()

	return sup, nil
}

func (c *Coordinator) releaseSlot() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
	c.reserved = false
}

// Active returns the live round, nil if none
func (c *Coordinator) Active() *Supervisor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Lookup returns the live round whose status message is roundID
func (c *Coordinator) Lookup(roundID int64) (*Supervisor, error) {
	sup := c.Active()
	if sup == nil || sup.ID() != roundID {
		return nil, service.ErrNoActiveRound
	}
	return sup, nil
}

// Wait blocks until every round started by this coordinator has settled
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
