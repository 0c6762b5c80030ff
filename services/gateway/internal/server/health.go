package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultProbeTimeout = 10 * time.Second

// componentState classifies one downstream component's health probe.
type componentState string

const (
	stateHealthy     componentState = "healthy"
	stateUnhealthy   componentState = "unhealthy"
	stateUnavailable componentState = "unavailable"
)

// healthProbe checks one downstream component. The function must respect
// ctx so a hung component cannot hold the whole report hostage.
type healthProbe struct {
	name  string
	check func(ctx context.Context) error
}

// handleHealth fans out to every registered probe concurrently, each
// bounded by its own timeout. The aggregate answers 503 only when every
// component is unavailable; any reachable component keeps the endpoint
// at 200 so a partial outage still reports detail.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	var mu sync.Mutex
	states := make(map[string]componentState, len(s.probes))

	g, ctx := errgroup.WithContext(r.Context())
	for _, probe := range s.probes {
		probe := probe
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
			defer cancel()
			state := runProbe(probeCtx, probe)
			mu.Lock()
			states[probe.name] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	allUnavailable := len(states) > 0
	for _, state := range states {
		if state != stateUnavailable {
			allUnavailable = false
			break
		}
	}

	status := http.StatusOK
	if allUnavailable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":     overallLabel(allUnavailable),
		"components": states,
	})
}

// runProbe executes the check in a goroutine so a probe that ignores
// its context still cannot block past the timeout.
func runProbe(ctx context.Context, probe healthProbe) componentState {
	done := make(chan error, 1)
	go func() {
		done <- probe.check(ctx)
	}()
	select {
	case err := <-done:
		if err == nil {
			return stateHealthy
		}
		if ctx.Err() != nil {
			return stateUnavailable
		}
		return classifyProbeError(err)
	case <-ctx.Done():
		return stateUnavailable
	}
}

func overallLabel(allUnavailable bool) string {
	if allUnavailable {
		return "unavailable"
	}
	return "ok"
}
