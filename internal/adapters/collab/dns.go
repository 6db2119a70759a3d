package collab

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"prospector/internal/ports"
)

// Resolver answers MX queries through the system resolver.
type Resolver struct{}

func (Resolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	records, err := net.DefaultResolver.LookupMX(ctx, domain)
	if err != nil {
		return nil, err
	}
	hosts := make([]string, 0, len(records))
	for _, r := range records {
		hosts = append(hosts, strings.TrimSuffix(r.Host, "."))
	}
	return hosts, nil
}

// SMTPProber checks deliverability by asking the receiving server whether it
// would accept RCPT for the address, then repeats the question with a random
// mailbox to detect catch-all configurations.
type SMTPProber struct {
	// HeloDomain identifies us to the remote server.
	HeloDomain string
	// From is the envelope sender used for the probe.
	From    string
	Timeout time.Duration
}

func NewSMTPProber(heloDomain, from string) *SMTPProber {
	return &SMTPProber{HeloDomain: heloDomain, From: from, Timeout: 10 * time.Second}
}

func (p *SMTPProber) Probe(ctx context.Context, email string) (ports.ProbeResult, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ports.ProbeResult{}, fmt.Errorf("malformed address %q", email)
	}
	domain := email[at+1:]

	hosts, err := (Resolver{}).LookupMX(ctx, domain)
	if err != nil || len(hosts) == 0 {
		return ports.ProbeResult{}, fmt.Errorf("no mail exchanger for %s", domain)
	}

	accepted, err := p.rcptAccepted(ctx, hosts[0], email)
	if err != nil {
		return ports.ProbeResult{}, err
	}
	if !accepted {
		return ports.ProbeResult{}, nil
	}
	// A server that also accepts a mailbox that cannot exist proves nothing
	// about the real one.
	random := uuid.NewString()[:12] + "@" + domain
	catchAll, _ := p.rcptAccepted(ctx, hosts[0], random)
	return ports.ProbeResult{Deliverable: true, CatchAll: catchAll}, nil
}

func (p *SMTPProber) rcptAccepted(ctx context.Context, host, email string) (bool, error) {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", host+":25")
	if err != nil {
		return false, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(p.Timeout))

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return false, err
	}
	defer c.Close()
	if err := c.Hello(p.HeloDomain); err != nil {
		return false, err
	}
	if err := c.Mail(p.From); err != nil {
		return false, err
	}
	if err := c.Rcpt(email); err != nil {
		return false, nil // rejection is an answer, not an error
	}
	_ = c.Quit()
	return true, nil
}
