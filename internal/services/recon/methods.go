package recon

import (
	"context"
	"fmt"
	"strings"

	"prospector/internal/domain"
	"prospector/internal/ports"
)

// privacyProxies are registrant substrings indicating a WHOIS privacy
// service rather than a real person.
var privacyProxies = []string{
	"privacy", "redacted", "proxy", "whoisguard", "domains by proxy",
	"domainsbyproxy", "contact privacy", "withheld", "identity protect",
}

// registrantMethod resolves the WHOIS registrant for the prospect's domain.
type registrantMethod struct {
	whois ports.WhoisClient
}

func (m *registrantMethod) Name() string { return "whois" }

func (m *registrantMethod) Attempt(ctx context.Context, p *domain.Prospect) (*Candidate, error) {
	if m.whois == nil {
		return nil, nil
	}
	reg := registrableDomain(p)
	if reg == "" {
		return nil, nil
	}
	r, err := m.whois.Registrant(ctx, reg)
	if err != nil {
		return nil, err
	}
	if isPrivacyProxy(r.Name) || isPrivacyProxy(r.Org) || isPrivacyProxy(r.Email) {
		return nil, nil
	}
	cand := &Candidate{Source: "whois", OwnerName: strings.TrimSpace(r.Name)}
	if r.Email != "" {
		cand.Email = strings.ToLower(strings.TrimSpace(r.Email))
	}
	if cand.Email == "" && cand.OwnerName == "" {
		return nil, nil
	}
	return cand, nil
}

func isPrivacyProxy(s string) bool {
	ls := strings.ToLower(s)
	for _, p := range privacyProxies {
		if strings.Contains(ls, p) {
			return true
		}
	}
	return false
}

// enrichmentMethod calls the paid vendor, gated behind the daily budget and
// a minimum lead value, and never for national-chain domains where the
// lookup would land on a corporate office. The vendor also answers
// business-name lookups, so prospects without a website still get a shot.
type enrichmentMethod struct {
	client      ports.EnrichmentClient
	budget      *Budget
	minPriority int
}

func (m *enrichmentMethod) Name() string { return "enrichment" }

func (m *enrichmentMethod) Attempt(ctx context.Context, p *domain.Prospect) (*Candidate, error) {
	if m.client == nil {
		return nil, nil
	}
	reg := registrableDomain(p)
	if reg == "" && p.BusinessName == "" {
		return nil, nil
	}
	if p.Priority < m.minPriority {
		return nil, nil
	}
	if reg != "" && IsChainDomain(reg) {
		return nil, nil
	}
	if m.budget != nil && !m.budget.TryAcquire() {
		return nil, nil
	}
	rec, found, err := m.client.Lookup(ctx, reg, p.BusinessName)
	if err != nil || !found {
		return nil, err
	}
	return &Candidate{
		Source:    "enrichment",
		Email:     strings.ToLower(strings.TrimSpace(rec.Email)),
		OwnerName: strings.TrimSpace(rec.OwnerName),
	}, nil
}

// patternMethod generates deterministic address patterns from a known owner
// name and probes each for deliverability. Catch-all accepts are ignored
// because they prove nothing about a generated address.
type patternMethod struct {
	prober ports.Prober
}

func (m *patternMethod) Name() string { return "pattern" }

func (m *patternMethod) Attempt(ctx context.Context, p *domain.Prospect) (*Candidate, error) {
	if m.prober == nil || p.OwnerName == nil {
		return nil, nil
	}
	reg := registrableDomain(p)
	if reg == "" {
		return nil, nil
	}
	first, last, ok := splitName(*p.OwnerName)
	if !ok {
		return nil, nil
	}
	for _, addr := range AddressPatterns(first, last, reg) {
		res, err := m.prober.Probe(ctx, addr)
		if err != nil {
			continue
		}
		if res.Deliverable && !res.CatchAll {
			return &Candidate{Source: "pattern", Email: addr, OwnerName: *p.OwnerName}, nil
		}
	}
	return nil, nil
}

// AddressPatterns returns the candidate addresses for a first/last name at a
// domain, in decreasing order of observed small-business likelihood.
func AddressPatterns(first, last, domain string) []string {
	first = strings.ToLower(first)
	last = strings.ToLower(last)
	return []string{
		fmt.Sprintf("%s@%s", first, domain),
		fmt.Sprintf("%s.%s@%s", first, last, domain),
		fmt.Sprintf("%c%s@%s", first[0], last, domain),
		fmt.Sprintf("%s%s@%s", first, last, domain),
		fmt.Sprintf("%s@%s", last, domain),
		fmt.Sprintf("%s.%c@%s", first, last[0], domain),
	}
}

func splitName(name string) (first, last string, ok bool) {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) < 2 {
		return "", "", false
	}
	first = strings.ToLower(parts[0])
	last = strings.ToLower(parts[len(parts)-1])
	if first == "" || last == "" {
		return "", "", false
	}
	return first, last, true
}

// fallbackMethod returns a generic role address so a prospect never exits
// recon empty-handed. It prefers whichever role address the server accepts.
type fallbackMethod struct {
	prober ports.Prober
}

var roleFallbacks = []string{"info", "contact", "hello", "office"}

func (m *fallbackMethod) Name() string { return "fallback" }

func (m *fallbackMethod) Attempt(ctx context.Context, p *domain.Prospect) (*Candidate, error) {
	reg := registrableDomain(p)
	if reg == "" {
		return nil, nil
	}
	if m.prober != nil {
		for _, role := range roleFallbacks {
			addr := role + "@" + reg
			res, err := m.prober.Probe(ctx, addr)
			if err == nil && res.Deliverable {
				return &Candidate{Source: "fallback", Email: addr}, nil
			}
		}
	}
	return &Candidate{Source: "fallback", Email: "info@" + reg}, nil
}
