package recon

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"prospector/internal/domain"
	"prospector/internal/ports"
)

// Candidate is one possible contact produced by a waterfall method.
type Candidate struct {
	Email     string
	OwnerName string
	Source    string
}

// Method is one contact-discovery strategy. Attempt returns nil when the
// method has nothing to offer for this prospect; errors are treated as a
// miss, not a waterfall failure.
type Method interface {
	Name() string
	Attempt(ctx context.Context, p *domain.Prospect) (*Candidate, error)
}

// Result is the resolved contact for a prospect.
type Result struct {
	OwnerName  *string
	Email      string
	Source     string
	Confidence int
	Verified   bool
}

// Service runs the discovery waterfall and persists the outcome.
type Service struct {
	prospects ports.ProspectRepository
	methods   []Method
	fallback  Method
	verifier  *Verifier
	threshold int
	log       *zap.Logger
}

// Config carries the external clients the waterfall methods depend on.
type Config struct {
	Fetcher    ports.Fetcher
	Whois      ports.WhoisClient
	Enrichment ports.EnrichmentClient
	Prober     ports.Prober
	Resolver   ports.DNSResolver
	Budget     *Budget
	// MinEnrichPriority gates the paid vendor to prospects worth the spend.
	MinEnrichPriority int
	// Threshold is the minimum verified confidence to accept a candidate.
	Threshold int
}

func New(prospects ports.ProspectRepository, cfg Config, log *zap.Logger) *Service {
	if cfg.Threshold == 0 {
		cfg.Threshold = 60
	}
	if cfg.MinEnrichPriority == 0 {
		cfg.MinEnrichPriority = 35
	}
	return &Service{
		prospects: prospects,
		methods: []Method{
			&scrapeMethod{fetcher: cfg.Fetcher},
			&registrantMethod{whois: cfg.Whois},
			&enrichmentMethod{client: cfg.Enrichment, budget: cfg.Budget, minPriority: cfg.MinEnrichPriority},
			&patternMethod{prober: cfg.Prober},
		},
		fallback:  &fallbackMethod{prober: cfg.Prober},
		verifier:  NewVerifier(cfg.Resolver, cfg.Prober),
		threshold: cfg.Threshold,
		log:       log,
	}
}

// Enrich resolves contact info for the prospect and advances it to enriched.
// It never leaves the prospect stranded: on total waterfall failure the
// generic fallback address is stored unverified so downstream batching can
// still pick the prospect up, and a prospect with no possible address at
// all (no domain, nothing from the vendor) is retired as dead rather than
// parked in a state nothing revisits.
func (s *Service) Enrich(ctx context.Context, p domain.Prospect) error {
	if p.Status != domain.StatusEnriching {
		if err := s.prospects.SetStatus(ctx, p.ID, domain.StatusEnriching); err != nil {
			return fmt.Errorf("enter enriching: %w", err)
		}
		p.Status = domain.StatusEnriching
	}

	res := s.Resolve(ctx, &p)

	// No address at all means no method applied (no domain for the fallback
	// to lean on either). Enriched-without-email is unreachable by every
	// downstream batch query, so exit the pipeline explicitly instead.
	if res.Email == "" {
		if err := s.prospects.SetStatus(ctx, p.ID, domain.StatusDead); err != nil {
			return fmt.Errorf("retire uncontactable prospect: %w", err)
		}
		s.log.Info("recon exhausted, no address possible", zap.String("prospect", p.ID))
		return nil
	}

	if err := s.prospects.SetContact(ctx, p.ID, res.OwnerName, res.Email, res.Source, res.Verified, res.Confidence); err != nil {
		return fmt.Errorf("set contact: %w", err)
	}
	if err := s.prospects.SetStatus(ctx, p.ID, domain.StatusEnriched); err != nil {
		return fmt.Errorf("enter enriched: %w", err)
	}
	s.log.Info("recon resolved",
		zap.String("prospect", p.ID),
		zap.String("source", res.Source),
		zap.Int("confidence", res.Confidence),
		zap.Bool("verified", res.Verified))
	return nil
}

// Resolve walks the method chain and returns the first candidate clearing
// the confidence threshold, falling back to a generic role address.
// Owner names learned from rejected candidates are kept as hints for the
// pattern generator further down the chain.
func (s *Service) Resolve(ctx context.Context, p *domain.Prospect) Result {
	for _, m := range s.methods {
		cand, err := m.Attempt(ctx, p)
		if err != nil {
			s.log.Warn("recon method error", zap.String("method", m.Name()), zap.String("prospect", p.ID), zap.Error(err))
			continue
		}
		if cand == nil {
			continue
		}
		if cand.OwnerName != "" && p.OwnerName == nil {
			name := cand.OwnerName
			p.OwnerName = &name
		}
		if cand.Email == "" {
			continue
		}
		conf := s.verifier.Verify(ctx, cand.Email)
		if conf >= s.threshold {
			return Result{
				OwnerName:  p.OwnerName,
				Email:      strings.ToLower(cand.Email),
				Source:     cand.Source,
				Confidence: conf,
				Verified:   true,
			}
		}
		s.log.Debug("candidate below threshold",
			zap.String("method", m.Name()),
			zap.String("email", cand.Email),
			zap.Int("confidence", conf))
	}

	cand, err := s.fallback.Attempt(ctx, p)
	if err != nil || cand == nil || cand.Email == "" {
		return Result{Source: "fallback"}
	}
	conf := s.verifier.Verify(ctx, cand.Email)
	return Result{
		OwnerName:  p.OwnerName,
		Email:      strings.ToLower(cand.Email),
		Source:     cand.Source,
		Confidence: conf,
		Verified:   conf >= s.threshold,
	}
}

// registrableDomain extracts the eTLD+1 from a prospect's website URL.
func registrableDomain(p *domain.Prospect) string {
	if p.WebsiteURL == nil || *p.WebsiteURL == "" {
		return ""
	}
	u, err := url.Parse(*p.WebsiteURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		host = strings.TrimSuffix(*p.WebsiteURL, "/")
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(registrable)
}
