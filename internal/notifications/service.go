package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"corrflow/internal/config"
	"corrflow/internal/store"
)

// Event identifies the kind of notification being published.
type Event string

const (
	// EventApprovalNeeded tells a user a stage is waiting on them.
	EventApprovalNeeded Event = "approval_needed"
	// EventCopy delivers a carbon copy of a finally approved correspondence.
	EventCopy Event = "new_correspondence"
	// EventApproved tells the sender the chain finished with approval.
	EventApproved Event = "correspondence_approved"
	// EventRejected tells the sender a stage rejected the correspondence.
	EventRejected Event = "correspondence_rejected"
	// EventTest exercises the configured transports.
	EventTest Event = "test"
)

// Payload carries event-specific values.
//
// Recognized keys: "recipient" (int64 user id), "correspondenceID" (int64),
// "number", "subject", "actor", "decision".
type Payload map[string]any

// Recipient returns the user id the event is addressed to.
func (p Payload) Recipient() int64 {
	return p.int64("recipient")
}

// CorrespondenceID returns the related correspondence id.
func (p Payload) CorrespondenceID() int64 {
	return p.int64("correspondenceID")
}

func (p Payload) int64(key string) int64 {
	switch v := p[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Service publishes events to people.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds the notification service configured by cfg. The inbox
// transport is enabled when cfg.Notifications.Inbox is set and st is not nil;
// ntfy when a topic is configured. hub may be nil.
func NewService(cfg *config.Config, st *store.Store, hub *Hub, logger *slog.Logger) Service {
	if cfg == nil {
		return noopService{}
	}
	var transports []Service
	if cfg.Notifications.Inbox && st != nil {
		transports = append(transports, NewInbox(st, hub))
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		transports = append(transports, NewNtfy(topic, &http.Client{Timeout: timeout}))
	}
	if len(transports) == 0 {
		return noopService{}
	}
	var svc Service = Multi(transports...)
	if len(transports) == 1 {
		svc = transports[0]
	}
	return &filtered{
		next: svc,
		enabled: map[Event]bool{
			EventApprovalNeeded: cfg.Notifications.Approvals,
			EventCopy:           cfg.Notifications.Copies,
			EventApproved:       cfg.Notifications.Outcomes,
			EventRejected:       cfg.Notifications.Outcomes,
			EventTest:           true,
		},
	}
}

type filtered struct {
	next    Service
	enabled map[Event]bool
}

func (f *filtered) Publish(ctx context.Context, event Event, payload Payload) error {
	if !f.enabled[event] {
		return nil
	}
	return f.next.Publish(ctx, event, payload)
}

type multi []Service

// Multi fans an event out to every transport. All transports are attempted;
// their errors are joined.
func Multi(services ...Service) Service {
	return multi(services)
}

func (m multi) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if svc == nil {
			continue
		}
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Noop returns a Service that discards every event.
func Noop() Service {
	return noopService{}
}
