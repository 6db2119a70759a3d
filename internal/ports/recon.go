package ports

import "context"

// External clients used by the recon waterfall.

// Fetcher retrieves one page body. Implementations set their own timeout and
// user agent.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body string, err error)
}

// Registrant is a WHOIS registrant record, already field-split.
type Registrant struct {
	Name  string
	Org   string
	Email string
}

// WhoisClient looks up the registrant for a registrable domain.
type WhoisClient interface {
	Registrant(ctx context.Context, domain string) (Registrant, error)
}

// DNSResolver answers mail-exchanger queries.
type DNSResolver interface {
	LookupMX(ctx context.Context, domain string) (hosts []string, err error)
}

// ProbeResult is the outcome of a live deliverability probe.
type ProbeResult struct {
	// Deliverable means the server accepted RCPT for this exact address.
	Deliverable bool
	// CatchAll means the server also accepted a random address, so the
	// accept proves nothing about this mailbox specifically.
	CatchAll bool
}

// Prober performs a live SMTP-level deliverability check.
type Prober interface {
	Probe(ctx context.Context, email string) (ProbeResult, error)
}

// EnrichmentRecord is what the paid enrichment vendor returns.
type EnrichmentRecord struct {
	OwnerName string
	Email     string
	Title     string
}

// EnrichmentClient is the paid contact-lookup vendor. Calls count against a
// daily budget; callers must check the budget first.
type EnrichmentClient interface {
	Lookup(ctx context.Context, domain, businessName string) (EnrichmentRecord, bool, error)
}
