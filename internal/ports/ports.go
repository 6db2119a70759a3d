package ports

import (
	"context"

	"prospector/internal/domain"
)

// Collaborator ports. Discovery, auditing, rendering, and delivery are owned
// by external systems; the pipeline only drives them.

// Crawler continues geographic discovery for one area, creating prospect
// records as it goes. It returns how many prospects it found in this batch
// and whether the area is exhausted.
type Crawler interface {
	Continue(ctx context.Context, area domain.Area, batch int) (found int, done bool, err error)
}

// Auditor fetches and analyzes a prospect's website, producing one immutable
// audit record. The caller persists it.
type Auditor interface {
	Audit(ctx context.Context, p domain.Prospect) (domain.Audit, error)
}

// Renderer produces the subject and body for one sequence step.
type Renderer interface {
	Render(ctx context.Context, p domain.Prospect, step int) (subject, body string, err error)
}

// OutboundEmail is the payload handed to the mail transport, tracking
// already injected.
type OutboundEmail struct {
	To      string
	Subject string
	HTML    string
}

// Transport delivers one email. A returned error marks the message failed;
// bounces arrive asynchronously via the callback surface.
type Transport interface {
	Send(ctx context.Context, email OutboundEmail) error
}

// Notifier pushes pipeline events at the operator dashboard. Implementations
// must be non-blocking best effort.
type Notifier interface {
	Notify(ctx context.Context, event string, fields map[string]any)
}
