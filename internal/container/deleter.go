package container

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"containernerd-mcp-server/internal/mangle"

	"github.com/google/uuid"
)

// State is a step of a single deletion attempt.
type State string

const (
	StateIdle       State = "idle"
	StateResolving  State = "resolving"
	StateValidating State = "validating"
	StateQuerying   State = "querying"
	StateChecking   State = "checking"
	StateExecuting  State = "executing"
	StateDeleted    State = "deleted"
	StateAborted    State = "aborted"
)

// DeleteRequest is one user gesture asking to delete a container.
// Confirmed is false when the user dismissed the confirmation dialog.
type DeleteRequest struct {
	Interaction InteractionContext
	Confirmed   bool
}

// Outcome is the terminal report of a deletion attempt.
type Outcome struct {
	AttemptID   string        `json:"attempt_id"`
	State       State         `json:"state"`
	Trail       []State       `json:"trail"`
	ContainerID ID            `json:"container_id,omitempty"`
	Name        string        `json:"name,omitempty"`
	Source      string        `json:"source,omitempty"`
	Owned       int           `json:"owned"`
	Total       int           `json:"total"`
	Removed     []int         `json:"removed,omitempty"`
	Failed      []int         `json:"failed,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Notice      *Notice       `json:"notice,omitempty"`
	Err         error         `json:"-"`
}

func (o *Outcome) advance(s State) {
	o.State = s
	o.Trail = append(o.Trail, s)
}

// EngineSink receives diagnostic facts about each attempt.
type EngineSink interface {
	AddFacts(ctx context.Context, facts []mangle.Fact) error
}

// EventLog is the audit trail written for each attempt.
type EventLog interface {
	Log(eventType, containerID string, data interface{})
}

// DeleterConfig wires the optional collaborators of a Deleter.
type DeleterConfig struct {
	Resolver *Resolver
	Notifier Notifier
	Sink     EngineSink
	Events   EventLog
}

// Deleter runs the deletion pipeline:
// resolve -> validate -> query -> check -> execute.
type Deleter struct {
	host     TabHost
	registry *Registry
	resolver *Resolver
	executor *Executor
	notifier Notifier
	sink     EngineSink
	events   EventLog

	mu       sync.Mutex
	inFlight map[ID]string
}

func NewDeleter(host TabHost, registry *Registry, cfg DeleterConfig) *Deleter {
	if cfg.Resolver == nil {
		cfg.Resolver = NewResolver(ResolverOptions{})
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}
	return &Deleter{
		host:     host,
		registry: registry,
		resolver: cfg.Resolver,
		executor: NewExecutor(host, registry),
		notifier: cfg.Notifier,
		sink:     cfg.Sink,
		events:   cfg.Events,
		inFlight: make(map[ID]string),
	}
}

// InFlight reports whether a deletion of id is currently running.
func (d *Deleter) InFlight(id ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inFlight[id]
	return ok
}

// Delete runs one attempt to completion. Gate failures end in StateAborted
// with a reason; they are reported, never retried.
func (d *Deleter) Delete(ctx context.Context, req DeleteRequest) Outcome {
	o := Outcome{AttemptID: uuid.NewString(), StartedAt: time.Now()}
	o.advance(StateIdle)

	if !req.Confirmed {
		o.Err = ErrCancelled
		return d.finish(ctx, o)
	}

	o.advance(StateResolving)
	target, err := d.resolver.Resolve(req.Interaction)
	if err != nil {
		return d.abort(ctx, o, err)
	}
	o.Name = target.Name
	o.Source = target.Source

	o.advance(StateValidating)
	id, err := ValidateID(target.Candidate)
	if err != nil {
		return d.abort(ctx, o, err)
	}
	o.ContainerID = id
	if o.Name == "" {
		if rec, ok := d.registry.Get(id); ok {
			o.Name = rec.Name
		}
	}

	if holder, ok := d.acquire(id, o.AttemptID); !ok {
		return d.abort(ctx, o, &InFlightError{ContainerID: id, AttemptID: holder})
	}
	defer d.release(id)
	return d.run(ctx, o)
}

// acquire marks id as in flight. It fails, returning the holding attempt,
// when another attempt for the same container has not finished yet.
func (d *Deleter) acquire(id ID, attemptID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if holder, busy := d.inFlight[id]; busy {
		return holder, false
	}
	d.inFlight[id] = attemptID
	return "", true
}

func (d *Deleter) release(id ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, id)
}

func (d *Deleter) run(ctx context.Context, o Outcome) Outcome {
	id := o.ContainerID

	o.advance(StateQuerying)
	owned, err := QueryOwnedTabs(ctx, d.host, id)
	if err != nil {
		return d.abort(ctx, o, err)
	}
	o.Owned = len(owned)

	o.advance(StateChecking)
	total, err := CountAllTabs(ctx, d.host)
	if err != nil {
		return d.abort(ctx, o, err)
	}
	o.Total = total
	verdict := Check(owned, id, total)
	if err := verdict.Err(id); err != nil {
		return d.abort(ctx, o, err)
	}

	o.advance(StateExecuting)
	removal, err := d.executor.Execute(ctx, owned, id, o.Name)
	if err != nil {
		o.Failed = removal.Failed
		return d.abort(ctx, o, err)
	}
	o.Removed = removal.Removed
	o.Failed = removal.Failed
	o.advance(StateDeleted)
	return d.finish(ctx, o)
}

func (d *Deleter) abort(ctx context.Context, o Outcome, err error) Outcome {
	o.Err = err
	o.advance(StateAborted)
	return d.finish(ctx, o)
}

func (d *Deleter) finish(ctx context.Context, o Outcome) Outcome {
	o.Duration = time.Since(o.StartedAt)
	if o.Err != nil {
		o.Reason = Reason(o.Err)
		o.Error = o.Err.Error()
	}

	if o.State == StateAborted {
		log.Printf("[container:%s] deletion %s aborted (%s): %v", o.ContainerID, o.AttemptID, o.Reason, o.Err)
	} else if o.State == StateDeleted {
		log.Printf("[container:%s] deleted %q, closed %d tabs in %s", o.ContainerID, o.Name, len(o.Removed), o.Duration)
	}

	if n, ok := noticeFor(o); ok {
		o.Notice = &n
		d.notifier.Notify(ctx, n)
	}
	if d.sink != nil {
		if err := d.sink.AddFacts(ctx, outcomeFacts(o)); err != nil {
			log.Printf("[container:%s] deletion fact error: %v", o.ContainerID, err)
		}
	}
	if d.events != nil {
		d.events.Log("container_delete", string(o.ContainerID), o)
	}
	recordOutcome(o)
	return o
}

func noticeFor(o Outcome) (Notice, bool) {
	n := Notice{ContainerID: o.ContainerID, Name: o.Name, Level: "error", Kind: o.Reason}
	label := o.Name
	if label == "" {
		label = string(o.ContainerID)
	}

	switch {
	case o.State == StateDeleted:
		n.Level = "info"
		n.Kind = NoticeDeleted
		n.Message = fmt.Sprintf("Deleted container %q and closed %d tabs.", label, len(o.Removed))
		if len(o.Failed) > 0 {
			n.Level = "warning"
			n.Message = fmt.Sprintf("Deleted container %q; closed %d tabs, %d could not be closed.", label, len(o.Removed), len(o.Failed))
		}
	case o.Reason == "cancelled":
		return Notice{}, false
	case o.Reason == NoticeUnresolved:
		n.Message = "Could not tell which container to delete; nothing was removed."
	case o.Reason == NoticeInvalid:
		n.Message = fmt.Sprintf("Container identifier is not usable (%v); nothing was removed.", o.Err)
	case o.Reason == NoticeSuspicious:
		n.Message = fmt.Sprintf("Refusing to delete %q: the tab query for it returned %d of %d open tabs, which looks like every tab. Nothing was removed.", label, o.Owned, o.Total)
	case o.Reason == NoticeInFlight:
		n.Level = "warning"
		n.Message = fmt.Sprintf("Container %q is already being deleted.", label)
	case o.Reason == NoticeRemovalFailed:
		n.Message = fmt.Sprintf("Could not close the tabs of %q: %v", label, o.Err)
	default:
		n.Message = fmt.Sprintf("Deleting %q failed: %v", label, o.Err)
	}
	return n, true
}

func outcomeFacts(o Outcome) []mangle.Fact {
	now := time.Now()
	ts := now.UnixMilli()
	facts := []mangle.Fact{{
		Predicate: "container_delete_attempt",
		Args:      []interface{}{o.AttemptID, string(o.ContainerID), string(o.State), ts},
		Timestamp: now,
	}}
	switch o.State {
	case StateDeleted:
		facts = append(facts, mangle.Fact{
			Predicate: "container_deleted",
			Args:      []interface{}{string(o.ContainerID), o.Name, len(o.Removed), ts},
			Timestamp: now,
		})
	case StateAborted:
		facts = append(facts, mangle.Fact{
			Predicate: "container_delete_aborted",
			Args:      []interface{}{string(o.ContainerID), o.Reason, ts},
			Timestamp: now,
		})
	}
	return facts
}
