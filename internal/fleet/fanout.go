package fleet

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// Outcome is the result of one per-host task.
type Outcome[T any] struct {
	Host  string
	Value T
	Err   error
}

// Outcomes holds one Outcome per host, in the order the hosts were given.
type Outcomes[T any] []Outcome[T]

// FanOut runs fn once per distinct host with at most limit tasks in flight
// and waits for all of them. A failing host never stops the others.
func FanOut[T any](ctx context.Context, hosts []string, limit int, fn func(ctx context.Context, host string) (T, error)) Outcomes[T] {
	hosts = dedupe(hosts)
	if len(hosts) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(hosts) {
		limit = len(hosts)
	}

	type indexed struct {
		i int
		o Outcome[T]
	}

	p := pool.New().WithMaxGoroutines(limit)
	resultsChan := make(chan indexed, len(hosts))

	for i, host := range hosts {
		p.Go(func() {
			o := Outcome[T]{Host: host}
			if err := ctx.Err(); err != nil {
				o.Err = err
			} else {
				o.Value, o.Err = fn(ctx, host)
			}
			resultsChan <- indexed{i: i, o: o}
		})
	}

	p.Wait()
	close(resultsChan)

	out := make(Outcomes[T], len(hosts))
	for r := range resultsChan {
		out[r.i] = r.o
	}
	return out
}

func dedupe(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

// Succeeded returns the outcomes without error.
func (oc Outcomes[T]) Succeeded() Outcomes[T] {
	var out Outcomes[T]
	for _, o := range oc {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the outcomes with an error.
func (oc Outcomes[T]) Failed() Outcomes[T] {
	var out Outcomes[T]
	for _, o := range oc {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Hosts returns the hosts in order.
func (oc Outcomes[T]) Hosts() []string {
	hosts := make([]string, len(oc))
	for i, o := range oc {
		hosts[i] = o.Host
	}
	return hosts
}

// Get returns the outcome for host.
func (oc Outcomes[T]) Get(host string) (Outcome[T], bool) {
	for _, o := range oc {
		if o.Host == host {
			return o, true
		}
	}
	return Outcome[T]{}, false
}

// Err joins the per-host errors, prefixed with their host, or returns nil.
func (oc Outcomes[T]) Err() error {
	var errs []error
	for _, o := range oc.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", o.Host, o.Err))
	}
	return errors.Join(errs...)
}
