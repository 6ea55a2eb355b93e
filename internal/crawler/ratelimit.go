package crawler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"math/rand/v2"

	"golang.org/x/time/rate"

	"apatel341/fabricworker/services/cache"
)

// cooldownKey prefixes persisted per-host delays in the shared cache.
const cooldownKey = "cooldown:"

// HostLimiterOptions tune the per-host pacing behavior.
type HostLimiterOptions struct {
	BaseDelay  time.Duration // steady-state spacing floor
	StartDelay time.Duration // spacing for a host we have not measured yet
	MaxDelay   time.Duration // backoff ceiling
	Jitter     time.Duration // extra random wait added to each turn
	Cooldown   time.Duration // how long persisted delays outlive the process
}

// HostLimiter spaces requests per host. Spacing starts conservative,
// halves toward the base delay on success and doubles up to the cap
// when the host pushes back. With a cache service attached, the current
// spacing is persisted so a restart does not forget an active backoff.
type HostLimiter struct {
	opts  HostLimiterOptions
	cache cache.CacheService

	mu    sync.Mutex
	hosts map[string]*hostState
}

type hostState struct {
	mu      sync.Mutex
	delay   time.Duration
	limiter *rate.Limiter
}

// NewHostLimiter creates a limiter. cacheService may be nil, which
// disables persistence.
func NewHostLimiter(opts HostLimiterOptions, cacheService cache.CacheService) *HostLimiter {
	return &HostLimiter{
		opts:  opts,
		cache: cacheService,
		hosts: make(map[string]*hostState),
	}
}

// AwaitTurn blocks until the host's next slot, or until ctx is done.
func (l *HostLimiter) AwaitTurn(ctx context.Context, host string) error {
	state := l.state(host)
	if err := state.limiter.Wait(ctx); err != nil {
		return err
	}
	if l.opts.Jitter > 0 {
		select {
		case <-time.After(rand.N(l.opts.Jitter)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// NoteSuccess relaxes the host's spacing toward the base delay.
func (l *HostLimiter) NoteSuccess(host string) {
	state := l.state(host)
	state.mu.Lock()
	defer state.mu.Unlock()
	next := state.delay / 2
	if next < l.opts.BaseDelay {
		next = l.opts.BaseDelay
	}
	l.setDelay(host, state, next)
}

// NoteBackpressure doubles the host's spacing up to the cap.
func (l *HostLimiter) NoteBackpressure(host string) {
	state := l.state(host)
	state.mu.Lock()
	defer state.mu.Unlock()
	next := state.delay * 2
	if next > l.opts.MaxDelay {
		next = l.opts.MaxDelay
	}
	l.setDelay(host, state, next)
}

// Delay reports the host's current spacing.
func (l *HostLimiter) Delay(host string) time.Duration {
	state := l.state(host)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.delay
}

// setDelay must be called with state.mu held.
func (l *HostLimiter) setDelay(host string, state *hostState, delay time.Duration) {
	if delay == state.delay {
		return
	}
	state.delay = delay
	state.limiter.SetLimit(rate.Every(delay))
	if l.cache != nil {
		value := []byte(strconv.FormatInt(delay.Milliseconds(), 10))
		_ = l.cache.Set(cooldownKey+host, value, l.opts.Cooldown)
	}
}

func (l *HostLimiter) state(host string) *hostState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if state, ok := l.hosts[host]; ok {
		return state
	}
	state := &hostState{delay: l.seedDelay(host)}
	state.limiter = rate.NewLimiter(rate.Every(state.delay), 1)
	l.hosts[host] = state
	return state
}

// seedDelay recovers a persisted delay for the host, falling back to
// the start delay for hosts we have not met before.
func (l *HostLimiter) seedDelay(host string) time.Duration {
	if l.cache == nil {
		return l.opts.StartDelay
	}
	value, err := l.cache.Get(cooldownKey + host)
	if err != nil {
		return l.opts.StartDelay
	}
	ms, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil || ms <= 0 {
		return l.opts.StartDelay
	}
	delay := time.Duration(ms) * time.Millisecond
	if delay < l.opts.BaseDelay {
		delay = l.opts.BaseDelay
	}
	if delay > l.opts.MaxDelay {
		delay = l.opts.MaxDelay
	}
	return delay
}
