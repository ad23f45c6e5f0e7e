package container

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"containernerd-mcp-server/internal/mangle"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

type recordingSink struct {
	mu    sync.Mutex
	facts []mangle.Fact
}

func (s *recordingSink) AddFacts(_ context.Context, facts []mangle.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = append(s.facts, facts...)
	return nil
}

func (s *recordingSink) predicates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, f := range s.facts {
		out = append(out, f.Predicate)
	}
	return out
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) Log(eventType, containerID string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, eventType+":"+containerID)
}

type deleterFixture struct {
	host     *fakeHost
	registry *Registry
	notifier *recordingNotifier
	sink     *recordingSink
	events   *recordingEvents
	deleter  *Deleter
}

func newFixture(tabs ...Tab) *deleterFixture {
	f := &deleterFixture{
		host:     newFakeHost(tabs...),
		registry: NewRegistry(),
		notifier: &recordingNotifier{},
		sink:     &recordingSink{},
		events:   &recordingEvents{},
	}
	f.deleter = NewDeleter(f.host, f.registry, DeleterConfig{
		Notifier: f.notifier,
		Sink:     f.sink,
		Events:   f.events,
	})
	return f
}

func confirmed(attrs map[string]string) DeleteRequest {
	return DeleteRequest{Interaction: InteractionContext{Attributes: attrs}, Confirmed: true}
}

// Scenario: an empty identifier never reaches the host.
func TestDeleteEmptyIdentifierAborts(t *testing.T) {
	f := newFixture(sampleTabs()...)
	f.registry.Put(Record{ID: "ctx-work", Name: "Work"})

	o := f.deleter.Delete(context.Background(), confirmed(map[string]string{
		DefaultIDAttribute:   "",
		DefaultNameAttribute: "Work",
	}))

	if o.State != StateAborted || o.Reason != "invalid" {
		t.Fatalf("expected invalid abort, got state=%s reason=%s", o.State, o.Reason)
	}
	wantTrail := []State{StateIdle, StateResolving, StateValidating, StateAborted}
	if !reflect.DeepEqual(o.Trail, wantTrail) {
		t.Errorf("expected trail %v, got %v", wantTrail, o.Trail)
	}
	if len(f.host.removeCalls()) != 0 {
		t.Error("expected no removal request")
	}
	notices := f.notifier.all()
	if len(notices) != 1 || notices[0].Kind != NoticeInvalid {
		t.Errorf("expected one invalid notice, got %+v", notices)
	}
	if f.registry.Len() != 1 {
		t.Error("registry must be untouched")
	}
}

// Scenario: a proper subset is removed along with the registry entry.
func TestDeleteSafeSubset(t *testing.T) {
	tabs := []Tab{
		{ID: 1, ContainerID: "ctx-42"}, {ID: 2, ContainerID: "ctx-42"}, {ID: 3, ContainerID: "ctx-42"},
		{ID: 4, ContainerID: "ctx-1"}, {ID: 5, ContainerID: "ctx-1"},
		{ID: 6, ContainerID: "default-ctx"}, {ID: 7, ContainerID: "default-ctx"},
	}
	f := newFixture(tabs...)
	f.registry.Put(Record{ID: "ctx-42", Name: "Work"})
	f.registry.Put(Record{ID: "ctx-1", Name: "Personal"})

	o := f.deleter.Delete(context.Background(), confirmed(map[string]string{DefaultIDAttribute: "ctx-42"}))

	if o.State != StateDeleted {
		t.Fatalf("expected deleted, got %s (%v)", o.State, o.Err)
	}
	if o.Owned != 3 || o.Total != 7 {
		t.Errorf("expected owned=3 total=7, got owned=%d total=%d", o.Owned, o.Total)
	}
	calls := f.host.removeCalls()
	if len(calls) != 1 || !reflect.DeepEqual(calls[0], []int{1, 2, 3}) {
		t.Errorf("expected one removal of [1 2 3], got %v", calls)
	}
	if _, ok := f.registry.Get("ctx-42"); ok {
		t.Error("ctx-42 should be gone from the registry")
	}
	if _, ok := f.registry.Get("ctx-1"); !ok {
		t.Error("ctx-1 should remain")
	}
	if o.Name != "Work" {
		t.Errorf("expected registry name fallback, got %q", o.Name)
	}

	notices := f.notifier.all()
	if len(notices) != 1 || notices[0].Kind != NoticeDeleted || notices[0].Level != "info" {
		t.Errorf("expected one deleted notice, got %+v", notices)
	}
	wantFacts := []string{"container_delete_attempt", "container_deleted"}
	if got := f.sink.predicates(); !reflect.DeepEqual(got, wantFacts) {
		t.Errorf("expected facts %v, got %v", wantFacts, got)
	}
	if len(f.events.events) != 1 || f.events.events[0] != "container_delete:ctx-42" {
		t.Errorf("unexpected events: %v", f.events.events)
	}
}

// Scenario: a degraded host query that returns everything is refused.
func TestDeleteDegradedQueryIsSuspicious(t *testing.T) {
	tabs := []Tab{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	f := newFixture(tabs...)
	f.host.broken = true
	f.registry.Put(Record{ID: "ctx-99", Name: "Ghost"})

	o := f.deleter.Delete(context.Background(), confirmed(map[string]string{DefaultIDAttribute: "ctx-99"}))

	if o.State != StateAborted || o.Reason != "suspicious" {
		t.Fatalf("expected suspicious abort, got state=%s reason=%s", o.State, o.Reason)
	}
	if !errors.Is(o.Err, ErrSuspiciousOwnership) {
		t.Errorf("expected ErrSuspiciousOwnership, got %v", o.Err)
	}
	if len(f.host.removeCalls()) != 0 {
		t.Error("no tab may be removed")
	}
	if got := len(f.host.remaining()); got != 5 {
		t.Errorf("expected 5 tabs to remain, got %d", got)
	}
	if _, ok := f.registry.Get("ctx-99"); !ok {
		t.Error("registry entry must remain")
	}
	notices := f.notifier.all()
	if len(notices) != 1 || notices[0].Kind != NoticeSuspicious {
		t.Errorf("expected a suspicious notice, got %+v", notices)
	}
	if got := f.sink.predicates(); !reflect.DeepEqual(got, []string{"container_delete_attempt", "container_delete_aborted"}) {
		t.Errorf("unexpected facts: %v", got)
	}
}

// A degraded answer slips under the population check when a tab opens
// between the owned query and the count. The foreign-owner rule still refuses it.
func TestDeleteDegradedQueryWithTabOpenedMidway(t *testing.T) {
	tests := []struct {
		name  string
		owner ID
	}{
		{name: "default context tabs", owner: "default-ctx"},
		{name: "unattributed tabs", owner: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(
				Tab{ID: 1, ContainerID: tt.owner},
				Tab{ID: 2, ContainerID: tt.owner},
				Tab{ID: 3, ContainerID: tt.owner},
			)
			f.host.broken = true
			f.host.opens = []Tab{{ID: 4, ContainerID: tt.owner}}
			f.registry.Put(Record{ID: "ctx-99", Name: "Ghost"})

			o := f.deleter.Delete(context.Background(), confirmed(map[string]string{DefaultIDAttribute: "ctx-99"}))

			if o.State != StateAborted || o.Reason != "suspicious" {
				t.Fatalf("expected suspicious abort, got state=%s reason=%s", o.State, o.Reason)
			}
			if o.Owned != 3 || o.Total != 4 {
				t.Errorf("expected owned=3 total=4, got owned=%d total=%d", o.Owned, o.Total)
			}
			if len(f.host.removeCalls()) != 0 {
				t.Error("no tab may be removed")
			}
		})
	}
}

// Scenario: the identifier is recovered from a section three levels up.
func TestDeleteResolvesThroughAncestor(t *testing.T) {
	f := newFixture(sampleTabs()...)
	sec := section("ctx-work", "Work", nil)
	origin := child(nil, child(nil, child(nil, sec)))

	o := f.deleter.Delete(context.Background(), DeleteRequest{
		Interaction: InteractionContext{Origin: origin},
		Confirmed:   true,
	})

	if o.State != StateDeleted {
		t.Fatalf("expected deleted, got %s (%v)", o.State, o.Err)
	}
	if o.ContainerID != "ctx-work" || o.Source != "ancestor" {
		t.Errorf("expected ctx-work via ancestor, got %q via %q", o.ContainerID, o.Source)
	}
	if !reflect.DeepEqual(o.Removed, []int{1, 2}) {
		t.Errorf("expected removed [1 2], got %v", o.Removed)
	}
}

func TestDeleteCancelled(t *testing.T) {
	f := newFixture(sampleTabs()...)

	o := f.deleter.Delete(context.Background(), DeleteRequest{
		Interaction: InteractionContext{Attributes: map[string]string{DefaultIDAttribute: "ctx-work"}},
	})

	if o.State != StateIdle {
		t.Errorf("expected idle, got %s", o.State)
	}
	if !errors.Is(o.Err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", o.Err)
	}
	if len(f.notifier.all()) != 0 {
		t.Error("cancel must not notify")
	}
	if len(f.host.removeCalls()) != 0 {
		t.Error("cancel must not touch the host")
	}
}

func TestDeleteUnresolved(t *testing.T) {
	f := newFixture(sampleTabs()...)

	o := f.deleter.Delete(context.Background(), DeleteRequest{Confirmed: true})

	if o.State != StateAborted || o.Reason != "unresolved" {
		t.Fatalf("expected unresolved abort, got state=%s reason=%s", o.State, o.Reason)
	}
	wantTrail := []State{StateIdle, StateResolving, StateAborted}
	if !reflect.DeepEqual(o.Trail, wantTrail) {
		t.Errorf("expected trail %v, got %v", wantTrail, o.Trail)
	}
	if n := f.notifier.all(); len(n) != 1 || n[0].Kind != NoticeUnresolved {
		t.Errorf("expected unresolved notice, got %+v", n)
	}
}

func TestDeleteQueryFailure(t *testing.T) {
	f := newFixture()
	f.host.queryErr = errors.New("connection reset")

	o := f.deleter.Delete(context.Background(), confirmed(map[string]string{DefaultIDAttribute: "ctx-work"}))

	if o.State != StateAborted || o.Reason != "error" {
		t.Errorf("expected generic abort, got state=%s reason=%s", o.State, o.Reason)
	}
	if o.Trail[len(o.Trail)-2] != StateQuerying {
		t.Errorf("expected abort from querying, got trail %v", o.Trail)
	}
}

func TestDeleteRemovalFailure(t *testing.T) {
	f := newFixture(sampleTabs()...)
	f.host.removeErr = errors.New("browser crashed")
	f.registry.Put(Record{ID: "ctx-work", Name: "Work"})

	o := f.deleter.Delete(context.Background(), confirmed(map[string]string{DefaultIDAttribute: "ctx-work"}))

	if o.State != StateAborted || o.Reason != "removal_failed" {
		t.Fatalf("expected removal_failed abort, got state=%s reason=%s", o.State, o.Reason)
	}
	if _, ok := f.registry.Get("ctx-work"); !ok {
		t.Error("registry entry must remain after a failed removal")
	}
	if !reflect.DeepEqual(o.Failed, []int{1, 2}) {
		t.Errorf("expected failed [1 2], got %v", o.Failed)
	}
}

func TestDeletePartialRemovalWarns(t *testing.T) {
	f := newFixture(sampleTabs()...)
	f.host.failIDs = map[int]bool{2: true}

	o := f.deleter.Delete(context.Background(), confirmed(map[string]string{DefaultIDAttribute: "ctx-work"}))

	if o.State != StateDeleted {
		t.Fatalf("expected deleted, got %s (%v)", o.State, o.Err)
	}
	if !reflect.DeepEqual(o.Removed, []int{1}) || !reflect.DeepEqual(o.Failed, []int{2}) {
		t.Errorf("unexpected removed=%v failed=%v", o.Removed, o.Failed)
	}
	if n := f.notifier.all(); len(n) != 1 || n[0].Level != "warning" {
		t.Errorf("expected a warning notice, got %+v", n)
	}
}

// A second attempt while the first is still removing tabs must not issue
// another removal request.
func TestDeleteConcurrentAttemptIsRejected(t *testing.T) {
	f := newFixture(sampleTabs()...)
	f.host.block = make(chan struct{})
	f.host.entered = make(chan struct{})
	req := confirmed(map[string]string{DefaultIDAttribute: "ctx-work"})

	first := make(chan Outcome, 1)
	go func() { first <- f.deleter.Delete(context.Background(), req) }()

	select {
	case <-f.host.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first attempt never reached the host")
	}
	if !f.deleter.InFlight("ctx-work") {
		t.Error("expected ctx-work to be in flight")
	}

	second := f.deleter.Delete(context.Background(), req)
	if second.State != StateAborted || second.Reason != "in_flight" {
		t.Errorf("expected in_flight abort, got state=%s reason=%s", second.State, second.Reason)
	}
	var inFlight *InFlightError
	if !errors.As(second.Err, &inFlight) {
		t.Fatalf("expected *InFlightError, got %T", second.Err)
	}

	close(f.host.block)
	o := <-first
	if o.State != StateDeleted {
		t.Errorf("expected first attempt to finish, got %s (%v)", o.State, o.Err)
	}
	if inFlight.AttemptID != o.AttemptID {
		t.Errorf("expected holder %s, got %s", o.AttemptID, inFlight.AttemptID)
	}
	if calls := f.host.removeCalls(); len(calls) != 1 {
		t.Errorf("expected exactly one removal request, got %d", len(calls))
	}
	if f.deleter.InFlight("ctx-work") {
		t.Error("guard should be released")
	}
}

func TestDeleteAttemptsAreIndependent(t *testing.T) {
	f := newFixture(sampleTabs()...)
	req := confirmed(map[string]string{DefaultIDAttribute: "ctx-work"})

	first := f.deleter.Delete(context.Background(), req)
	second := f.deleter.Delete(context.Background(), req)

	if first.AttemptID == second.AttemptID {
		t.Error("attempt ids must be unique")
	}
	if first.State != StateDeleted {
		t.Fatalf("expected first attempt to delete, got %s", first.State)
	}
	// The tabs are gone, so the second attempt sees an empty owned set.
	if second.State != StateDeleted || len(second.Removed) != 0 {
		t.Errorf("expected an empty second deletion, got %s removed=%v", second.State, second.Removed)
	}
}
