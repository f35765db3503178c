package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// AggregateMode decides how an Aggregator combines its probers.
type AggregateMode int

const (
	// RequireAny succeeds when at least one prober succeeds.
	RequireAny AggregateMode = iota
	// RequireAll succeeds only when every prober succeeds.
	RequireAll
)

// AggregatorConfig configures the probe aggregator.
type AggregatorConfig struct {
	// Timeout bounds one round of probes.
	// Default: 10 seconds
	Timeout time.Duration

	// Mode selects how results combine.
	// Default: RequireAny
	Mode AggregateMode
}

// Aggregator probes several endpoints in parallel and combines the results
// into a single Prober, for example a primary and a fallback liveness URL.
type Aggregator struct {
	config  AggregatorConfig
	mu      sync.RWMutex
	probers map[string]Prober
	order   []string
}

// NewAggregator creates a new probe aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Aggregator{
		config:  cfg,
		probers: make(map[string]Prober),
	}
}

// Register adds or replaces a named prober.
func (a *Aggregator) Register(name string, p Prober) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.probers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.probers[name] = p
}

// Unregister removes a named prober.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.probers, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Names returns the registered prober names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.order))
	copy(names, a.order)
	return names
}

// ProbeAll runs every prober in parallel and returns each result by name.
func (a *Aggregator) ProbeAll(ctx context.Context) map[string]error {
	a.mu.RLock()
	probers := make(map[string]Prober, len(a.probers))
	for name, p := range a.probers {
		probers[name] = p
	}
	a.mu.RUnlock()

	results := make(map[string]error, len(probers))
	if len(probers) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, p := range probers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runProbe(ctx, p)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}()
	}
	wg.Wait()

	return results
}

// Probe implements Prober according to the configured mode.
func (a *Aggregator) Probe(ctx context.Context) error {
	results := a.ProbeAll(ctx)
	if len(results) == 0 {
		return ErrNoProbers
	}

	var errs []error
	for _, name := range a.Names() {
		err, ok := results[name]
		if !ok {
			continue
		}
		if err == nil && a.config.Mode == RequireAny {
			return nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func runProbe(ctx context.Context, p Prober) error {
	done := make(chan error, 1)
	go func() {
		done <- p.Probe(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() != nil {
			return ErrProbeTimeout
		}
		return err
	case <-ctx.Done():
		return ErrProbeTimeout
	}
}
