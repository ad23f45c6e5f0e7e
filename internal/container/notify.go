package container

import (
	"context"
	"log"
)

// Notice kinds, one per pipeline outcome.
const (
	NoticeDeleted       = "deleted"
	NoticeCancelled     = "cancelled"
	NoticeUnresolved    = "unresolved"
	NoticeInvalid       = "invalid"
	NoticeSuspicious    = "suspicious"
	NoticeRemovalFailed = "removal_failed"
	NoticeInFlight      = "in_flight"
)

// Notice is a user-visible report of a deletion attempt.
type Notice struct {
	Level       string `json:"level"` // info | warning | error
	Kind        string `json:"kind"`
	ContainerID ID     `json:"container_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Message     string `json:"message"`
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// LogNotifier writes notices through the standard logger.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notice) {
	log.Printf("[notice:%s] %s: %s", n.Level, n.Kind, n.Message)
}

// MultiNotifier fans a notice out to every notifier.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notice) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(ctx, n)
		}
	}
}
