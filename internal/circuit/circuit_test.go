// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package circuit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/research-orchestrator/internal/backend"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

func testRegistry(t *testing.T, cooldown time.Duration) *Registry {
	t.Helper()
	return NewRegistry(types.CircuitConfig{
		FailureThreshold: 3,
		FailureRatio:     0.99,
		MinRequests:      1000, // Keep the ratio path out of these tests.
		Cooldown:         cooldown,
		WindowInterval:   time.Minute,
	}, nil)
}

func failingCall() ([]types.ResultItem, error) {
	return nil, backend.NewError("dep", types.FailureUnavailable, errors.New("HTTP 503"))
}

func okCall() ([]types.ResultItem, error) {
	return []types.ResultItem{{ID: "x"}}, nil
}

// --- Tripping ---

func TestExecuteTripsAfterConsecutiveFailures(t *testing.T) {
	r := testRegistry(t, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := r.Execute("dep", failingCall); err == nil {
			t.Fatal("expected failure")
		}
	}
	if got := r.State("dep"); got != StateOpen {
		t.Fatalf("state after 3 failures = %q, want open", got)
	}

	// While open the underlying call must not run.
	called := false
	_, err := r.Execute("dep", func() ([]types.ResultItem, error) {
		called = true
		return okCall()
	})
	if err == nil {
		t.Fatal("expected circuit_open error")
	}
	if called {
		t.Error("call ran while circuit open")
	}
	if backend.KindOf(err) != types.FailureCircuitOpen {
		t.Errorf("kind = %q, want circuit_open", backend.KindOf(err))
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen in chain", err)
	}
}

func TestPermanentErrorsDoNotTrip(t *testing.T) {
	r := testRegistry(t, time.Minute)

	for i := 0; i < 10; i++ {
		_, err := r.Execute("dep", func() ([]types.ResultItem, error) {
			return nil, backend.NewError("dep", types.FailureValidation, errors.New("HTTP 422"))
		})
		if err == nil {
			t.Fatal("expected failure")
		}
	}
	if got := r.State("dep"); got != StateClosed {
		t.Errorf("state after permanent failures = %q, want closed", got)
	}
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	r := testRegistry(t, time.Minute)

	// Two failures, one success, two failures: never reaches three in a row.
	for _, call := range []func() ([]types.ResultItem, error){
		failingCall, failingCall, okCall, failingCall, failingCall,
	} {
		r.Execute("dep", call)
	}
	if got := r.State("dep"); got != StateClosed {
		t.Errorf("state = %q, want closed", got)
	}
}

// --- Recovery ---

func TestHalfOpenProbeSuccessCloses(t *testing.T) {
	r := testRegistry(t, 30*time.Millisecond)

	for i := 0; i < 3; i++ {
		r.Execute("dep", failingCall)
	}
	if got := r.State("dep"); got != StateOpen {
		t.Fatalf("state = %q, want open", got)
	}

	time.Sleep(50 * time.Millisecond)

	items, err := r.Execute("dep", okCall)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("items = %+v", items)
	}
	if got := r.State("dep"); got != StateClosed {
		t.Errorf("state after successful probe = %q, want closed", got)
	}
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	r := testRegistry(t, 30*time.Millisecond)

	for i := 0; i < 3; i++ {
		r.Execute("dep", failingCall)
	}
	time.Sleep(50 * time.Millisecond)

	if _, err := r.Execute("dep", failingCall); err == nil {
		t.Fatal("expected probe failure")
	}
	if got := r.State("dep"); got != StateOpen {
		t.Errorf("state after failed probe = %q, want open", got)
	}
}

// --- Introspection ---

func TestStateUnknownBeforeFirstCall(t *testing.T) {
	r := testRegistry(t, time.Minute)
	if got := r.State("never-called"); got != StateUnknown {
		t.Errorf("state = %q, want unknown", got)
	}
	if _, ok := r.Health("never-called"); ok {
		t.Error("Health should report absence for unseen dependency")
	}
}

func TestHealthSnapshot(t *testing.T) {
	r := testRegistry(t, time.Minute)

	r.Execute("dep", okCall)
	r.Execute("dep", failingCall)

	h, ok := r.Health("dep")
	if !ok {
		t.Fatal("expected health snapshot")
	}
	if h.Backend != "dep" {
		t.Errorf("Backend = %q", h.Backend)
	}
	if h.State != StateClosed {
		t.Errorf("State = %q, want closed", h.State)
	}
	if h.Requests != 2 {
		t.Errorf("Requests = %d, want 2", h.Requests)
	}
	if h.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", h.TotalFailures)
	}
	if h.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", h.ConsecutiveFailures)
	}
}

func TestNamesListsSeenDependencies(t *testing.T) {
	r := testRegistry(t, time.Minute)
	r.Execute("a", okCall)
	r.Execute("b", okCall)

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("Names() = %v, want 2 entries", names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("Names() = %v", names)
	}
}

// --- Transition listener ---

func TestTransitionListenerNotified(t *testing.T) {
	r := testRegistry(t, time.Minute)

	var mu sync.Mutex
	type transition struct {
		name     string
		from, to State
	}
	var got []transition
	r.SetTransitionListener(func(name string, from, to State) {
		mu.Lock()
		got = append(got, transition{name, from, to})
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		r.Execute("dep", failingCall)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("transitions = %+v, want 1", got)
	}
	if got[0].name != "dep" || got[0].from != StateClosed || got[0].to != StateOpen {
		t.Errorf("transition = %+v", got[0])
	}

	h, _ := r.Health("dep")
	if h.LastTransition.IsZero() {
		t.Error("LastTransition not recorded")
	}
}

// --- Isolation between dependencies ---

func TestBreakersAreIndependent(t *testing.T) {
	r := testRegistry(t, time.Minute)

	for i := 0; i < 3; i++ {
		r.Execute("bad", failingCall)
	}
	if got := r.State("bad"); got != StateOpen {
		t.Fatalf("bad state = %q, want open", got)
	}

	items, err := r.Execute("good", okCall)
	if err != nil {
		t.Fatalf("good dependency affected by bad one: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("items = %+v", items)
	}
	if got := r.State("good"); got != StateClosed {
		t.Errorf("good state = %q, want closed", got)
	}
}
