package simulator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/wellness"
)

// ErrInvalidConfig marks a Config that cannot drive a simulator.
var ErrInvalidConfig = errors.New("invalid simulator config")

// DefaultReplyDelay is the simulated "thinking" time before a reply lands.
const DefaultReplyDelay = 1500 * time.Millisecond

// DefaultReplies is the canned catalog of the engagement screen.
var DefaultReplies = []string{
	"That's great to hear! Remember to take breaks and stay hydrated. 💧",
	"I understand. It's important to maintain work-life balance. Have you tried our wellness programs?",
	"Thank you for sharing. Would you like some tips on stress management? 🧘‍♀️",
	"I'm here to help! Let's work together to improve your workplace experience.",
}

// Config parameterises one chat simulator.
type Config struct {
	// ReplyDelay is how long a submission waits before its reply lands.
	ReplyDelay time.Duration
	// Greeting seeds the transcript; empty means the transcript starts empty.
	Greeting     string
	Replies      []string
	InitialScore int
	Bounds       wellness.Bounds
	// MaxDelta bounds the per-reply score step to [-MaxDelta, +MaxDelta].
	MaxDelta int
}

// DefaultConfig mirrors the behaviour of the product mockup.
func DefaultConfig() Config {
	return Config{
		ReplyDelay:   DefaultReplyDelay,
		Replies:      append([]string(nil), DefaultReplies...),
		InitialScore: 75,
		Bounds:       wellness.DefaultBounds,
		MaxDelta:     5,
	}
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	if c.ReplyDelay < 0 {
		return fmt.Errorf("%w: reply delay %s is negative", ErrInvalidConfig, c.ReplyDelay)
	}
	if c.MaxDelta < 0 {
		return fmt.Errorf("%w: max delta %d is negative", ErrInvalidConfig, c.MaxDelta)
	}
	if c.Bounds.Min > c.Bounds.Max {
		return fmt.Errorf("%w: score bounds [%d, %d] are inverted", ErrInvalidConfig, c.Bounds.Min, c.Bounds.Max)
	}
	// A step wider than the span only ever lands on a bound.
	if span := c.Bounds.Max - c.Bounds.Min; c.MaxDelta > span {
		return fmt.Errorf("%w: max delta %d exceeds score span %d", ErrInvalidConfig, c.MaxDelta, span)
	}
	if !c.Bounds.Contains(c.InitialScore) {
		return fmt.Errorf("%w: initial score %d outside [%d, %d]", ErrInvalidConfig, c.InitialScore, c.Bounds.Min, c.Bounds.Max)
	}
	if len(c.Replies) == 0 {
		return fmt.Errorf("%w: reply catalog is empty", ErrInvalidConfig)
	}
	for i, reply := range c.Replies {
		if strings.TrimSpace(reply) == "" {
			return fmt.Errorf("%w: reply %d is blank", ErrInvalidConfig, i)
		}
	}
	return nil
}
