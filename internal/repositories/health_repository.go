package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	domain "github.com/hanko-field/cartclone/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// DependencyCheck is one readiness probe, e.g. Firestore or the Redis lock store.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyHealthOption customises NewDependencyHealthRepository.
type DependencyHealthOption func(*probeSet)

// WithDependencyTimeout sets the timeout for checks that do not carry one.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(p *probeSet) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithDependencyClock injects the clock used for latency and timestamps.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(p *probeSet) {
		if clock != nil {
			p.now = clock
		}
	}
}

type probeSet struct {
	checks  []DependencyCheck
	timeout time.Duration
	now     func() time.Time
	flight  singleflight.Group
}

// NewDependencyHealthRepository returns a HealthRepository that runs every
// check in parallel. Overlapping Collect calls share one round of probes.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks")
	}
	seen := make(map[string]struct{}, len(checks))
	for _, check := range checks {
		name := strings.TrimSpace(check.Name)
		switch {
		case name == "":
			return nil, errors.New("health: dependency check without name")
		case check.Check == nil:
			return nil, fmt.Errorf("health: dependency %q has no check func", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("health: dependency %q registered twice", name)
		}
		seen[name] = struct{}{}
	}

	p := &probeSet{
		checks:  append([]DependencyCheck(nil), checks...),
		timeout: defaultProbeTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *probeSet) Collect(ctx context.Context) (domain.HealthReport, error) {
	if ctx == nil {
		return domain.HealthReport{}, errors.New("health: context is required")
	}
	v, err, _ := p.flight.Do("collect", func() (any, error) {
		// Detached so one caller hanging up does not fail the shared round.
		return p.collect(context.WithoutCancel(ctx)), nil
	})
	if err != nil {
		return domain.HealthReport{}, err
	}
	return v.(domain.HealthReport), nil
}

func (p *probeSet) collect(ctx context.Context) domain.HealthReport {
	report := domain.HealthReport{
		Status: domain.HealthStatusOK,
		Checks: make(map[string]domain.DependencyHealth, len(p.checks)),
	}
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, check := range p.checks {
		check := check
		g.Go(func() error {
			result := p.probe(ctx, check)
			mu.Lock()
			defer mu.Unlock()
			report.Checks[check.Name] = result
			report.Status = worse(report.Status, result.Status)
			return nil
		})
	}
	_ = g.Wait()
	report.GeneratedAt = p.now()
	return report
}

func (p *probeSet) probe(ctx context.Context, check DependencyCheck) domain.DependencyHealth {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := p.now()
	err := check.Check(probeCtx)
	if err == nil {
		// Some clients swallow their own deadline.
		err = probeCtx.Err()
	}
	end := p.now()

	result := domain.DependencyHealth{Status: domain.HealthStatusOK, Detail: "ok", Latency: end.Sub(start), CheckedAt: end}
	if err == nil {
		return result
	}
	result.Error = err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result.Status, result.Detail = domain.HealthStatusError, "timeout"
	case errors.Is(err, context.Canceled):
		result.Status, result.Detail = domain.HealthStatusError, "cancelled"
	default:
		result.Status, result.Detail = domain.HealthStatusDegraded, err.Error()
	}
	return result
}

func worse(a, b string) string {
	rank := func(s string) int {
		switch s {
		case domain.HealthStatusError:
			return 2
		case domain.HealthStatusDegraded:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
