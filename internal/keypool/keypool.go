// Package keypool rotates API credentials for rate-limited providers.
//
// A Rotator owns an ordered list of keys, a cursor into it, and a throttle clock
// that enforces a minimum interval between outbound requests. One Rotator exists
// per provider for the lifetime of the process; callers share it.
package keypool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited marks a provider response that asked the caller to slow down.
// Request functions passed to Do wrap it so the rotator can apply the longer cooldown.
var ErrRateLimited = errors.New("rate limited")

// ErrNoCredentials is returned when the pool holds no usable keys.
var ErrNoCredentials = errors.New("no credentials configured")

// ExhaustedError is returned when every attempt in a Do call failed.
type ExhaustedError struct {
	Provider string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: all %d attempts failed: %v", e.Provider, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

var placeholderPattern = regexp.MustCompile(`^YOUR_.*_HERE$`)

// IsPlaceholder reports whether key is unset or a template value like YOUR_API_KEY_HERE.
func IsPlaceholder(key string) bool {
	key = strings.TrimSpace(key)
	return key == "" || placeholderPattern.MatchString(key)
}

// Options tunes rotator timing.
type Options struct {
	// MinInterval is the minimum spacing between two requests across all keys.
	MinInterval time.Duration
	// RateLimitCooldown is waited after a rate-limited attempt before the next key is tried.
	RateLimitCooldown time.Duration
	// FailureCooldown is waited after any other failed attempt.
	FailureCooldown time.Duration
}

// DefaultOptions matches the free-tier limits of the chat providers.
var DefaultOptions = Options{
	MinInterval:       2 * time.Second,
	RateLimitCooldown: 3 * time.Second,
	FailureCooldown:   time.Second,
}

// Rotator hands out keys round-robin, throttled and with cooldowns on failure.
type Rotator struct {
	name    string
	keys    []string
	opts    Options
	limiter *rate.Limiter

	mu     sync.Mutex
	cursor int
}

// New creates a rotator over keys. Placeholder keys are dropped.
func New(name string, keys []string, opts Options) *Rotator {
	var usable []string
	for _, k := range keys {
		if !IsPlaceholder(k) {
			usable = append(usable, strings.TrimSpace(k))
		}
	}
	return &Rotator{
		name:    name,
		keys:    usable,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.MinInterval), 1),
	}
}

// Name returns the provider name used in logs and errors.
func (r *Rotator) Name() string { return r.name }

// Usable returns the number of configured, non-placeholder keys.
func (r *Rotator) Usable() int { return len(r.keys) }

// IsConfigured returns whether at least one usable key exists.
func (r *Rotator) IsConfigured() bool { return len(r.keys) > 0 }

// Do calls fn with successive keys until it succeeds or maxAttempts is reached.
// maxAttempts <= 0 means one attempt per usable key. Every attempt waits for the
// throttle clock first; failures advance the cursor and wait out a cooldown.
func (r *Rotator) Do(ctx context.Context, maxAttempts int, fn func(ctx context.Context, key string) error) error {
	if len(r.keys) == 0 {
		return ErrNoCredentials
	}
	if maxAttempts <= 0 {
		maxAttempts = len(r.keys)
	}

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: waiting for rate limiter: %w", r.name, err)
		}

		key, pos := r.current()
		err := fn(ctx, key)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		last = err

		cooldown := r.opts.FailureCooldown
		if errors.Is(err, ErrRateLimited) {
			cooldown = r.opts.RateLimitCooldown
			log.Printf("%s: key %d/%d rate limited, rotating", r.name, pos+1, len(r.keys))
		} else {
			log.Printf("%s: key %d/%d failed: %v", r.name, pos+1, len(r.keys), err)
		}
		r.advance(pos)

		if attempt < maxAttempts {
			if err := sleep(ctx, cooldown); err != nil {
				return err
			}
		}
	}

	return &ExhaustedError{Provider: r.name, Attempts: maxAttempts, Last: last}
}

// Status describes the rotator state for display.
type Status struct {
	Provider  string        `json:"provider"`
	Keys      int           `json:"keys"`
	Current   int           `json:"current"`
	Throttled bool          `json:"throttled"`
	Wait      time.Duration `json:"-"`
	WaitMS    int64         `json:"waitMs"`
}

// Status reports how long a request issued now would wait and which key is current.
// Current is 1-based and zero when no keys are configured.
func (r *Rotator) Status() Status {
	s := Status{Provider: r.name, Keys: len(r.keys)}
	if len(r.keys) > 0 {
		_, pos := r.current()
		s.Current = pos + 1
	}
	if tokens := r.limiter.Tokens(); tokens < 1 && r.opts.MinInterval > 0 {
		s.Throttled = true
		s.Wait = time.Duration((1 - tokens) * float64(r.opts.MinInterval))
		s.WaitMS = s.Wait.Milliseconds()
	}
	return s
}

func (r *Rotator) current() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[r.cursor], r.cursor
}

// advance moves the cursor past pos. A concurrent caller that already rotated away
// from pos is not rotated a second time.
func (r *Rotator) advance(pos int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == pos {
		r.cursor = (r.cursor + 1) % len(r.keys)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
