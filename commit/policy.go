package commit

import (
	"fmt"
	"time"
)

// Policy controls how the coordinator drives the engine clock around a
// submission and how long it waits for the result.
type Policy struct {
	// PreTicks are sent before submission so the engine has a fresh bank.
	PreTicks int
	// PostTicks are sent right after submission to let the engine process it.
	PostTicks int
	// MaxRetries bounds the number of status polls.
	MaxRetries int
	// PollInterval is slept between polls.
	PollInterval time.Duration
	// TickOnPoll sends one extra tick between polls.
	TickOnPoll bool
}

func DefaultPolicy() Policy {
	return Policy{
		PreTicks:     1,
		PostTicks:    3,
		MaxRetries:   60,
		PollInterval: 100 * time.Millisecond,
		TickOnPoll:   true,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.PreTicks < 0:
		return fmt.Errorf("pre_ticks must be >= 0, got %d", p.PreTicks)
	case p.PostTicks < 0:
		return fmt.Errorf("post_ticks must be >= 0, got %d", p.PostTicks)
	case p.MaxRetries < 1:
		return fmt.Errorf("max_retries must be >= 1, got %d", p.MaxRetries)
	case p.PollInterval < 0:
		return fmt.Errorf("poll_interval must be >= 0, got %s", p.PollInterval)
	}
	return nil
}
