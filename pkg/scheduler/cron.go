package scheduler

import (
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DeliverFunc receives a payload when its scheduled time arrives.
type DeliverFunc func(payload Payload)

// Cron is a Scheduler backed by a cron runner. Each Schedule call registers
// a one-shot entry that fires once at the requested minute and then removes
// itself. Payloads scheduled in the past are delivered immediately.
type Cron struct {
	cron    *rcron.Cron
	deliver DeliverFunc
	logger  zerolog.Logger

	mu      sync.Mutex
	stopped bool
}

// NewCron creates and starts a cron-backed scheduler delivering payloads to
// deliver.
func NewCron(deliver DeliverFunc, logger zerolog.Logger) (*Cron, error) {
	if deliver == nil {
		return nil, fmt.Errorf("cron scheduler requires a delivery function")
	}

	c := &Cron{
		cron:    rcron.New(rcron.WithSeconds()),
		deliver: deliver,
		logger:  logger,
	}
	c.cron.Start()
	return c, nil
}

// Schedule registers a one-shot delivery at the given time.
func (c *Cron) Schedule(ownerID string, at time.Time, payload Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return fmt.Errorf("scheduler is stopped")
	}

	if !at.After(time.Now()) {
		go c.deliver(payload)
		return nil
	}

	spec := fmt.Sprintf("%d %d %d %d %d *",
		at.Second(), at.Minute(), at.Hour(), at.Day(), int(at.Month()))

	// The closure can only learn its own entry ID after AddFunc returns;
	// hand it over through a buffered channel so the runner goroutine never
	// reads an unsynchronized variable.
	idCh := make(chan rcron.EntryID, 1)
	id, err := c.cron.AddFunc(spec, func() {
		c.cron.Remove(<-idCh)
		c.deliver(payload)
	})
	if err != nil {
		return fmt.Errorf("schedule followup: %w", err)
	}
	idCh <- id

	c.logger.Debug().
		Str("owner_id", ownerID).
		Time("at", at).
		Msg("followup scheduled")
	return nil
}

// Stop shuts the runner down. Pending entries are dropped.
func (c *Cron) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.cron.Stop()
}
