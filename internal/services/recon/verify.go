package recon

import (
	"context"
	"regexp"
	"strings"

	"prospector/internal/ports"
)

// Verifier scores a candidate address 0..100 through a fixed pipeline:
// syntax, disposable-domain rejection, MX existence, live deliverability
// probe, role-address penalty.
type Verifier struct {
	resolver ports.DNSResolver
	prober   ports.Prober
}

func NewVerifier(resolver ports.DNSResolver, prober ports.Prober) *Verifier {
	return &Verifier{resolver: resolver, prober: prober}
}

var addressSyntax = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var disposableDomains = map[string]bool{
	"mailinator.com":     true,
	"guerrillamail.com":  true,
	"10minutemail.com":   true,
	"tempmail.com":       true,
	"temp-mail.org":      true,
	"yopmail.com":        true,
	"throwawaymail.com":  true,
	"getnada.com":        true,
	"sharklasers.com":    true,
	"trashmail.com":      true,
	"maildrop.cc":        true,
	"dispostable.com":    true,
	"fakeinbox.com":      true,
	"mintemail.com":      true,
	"mytemp.email":       true,
	"burnermail.io":      true,
	"spamgourmet.com":    true,
	"mailnesia.com":      true,
	"tempinbox.com":      true,
	"emailondeck.com":    true,
}

var rolePrefixes = map[string]bool{
	"info": true, "contact": true, "admin": true, "office": true,
	"hello": true, "support": true, "sales": true, "team": true,
	"mail": true, "enquiries": true, "inquiries": true, "billing": true,
}

const (
	confSyntaxOnly = 20
	confMXBonus    = 20
	confHardAccept = 50
	confCatchAll   = 25
	rolePenalty    = 15
)

// Verify runs the pipeline. Hard syntax/disposable/MX failures return 0; a
// probe that could not run leaves the address at the MX-only level.
func (v *Verifier) Verify(ctx context.Context, email string) int {
	email = strings.ToLower(strings.TrimSpace(email))
	if !addressSyntax.MatchString(email) {
		return 0
	}
	at := strings.LastIndexByte(email, '@')
	local, domain := email[:at], email[at+1:]
	if disposableDomains[domain] {
		return 0
	}

	conf := confSyntaxOnly

	if v.resolver != nil {
		hosts, err := v.resolver.LookupMX(ctx, domain)
		if err != nil || len(hosts) == 0 {
			return 0
		}
		conf += confMXBonus
	}

	if v.prober != nil {
		res, err := v.prober.Probe(ctx, email)
		if err == nil {
			switch {
			case res.Deliverable && !res.CatchAll:
				conf += confHardAccept
			case res.Deliverable && res.CatchAll:
				conf += confCatchAll
			default:
				// Explicit reject.
				conf -= 20
			}
		}
	}

	if rolePrefixes[local] {
		conf -= rolePenalty
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 100 {
		conf = 100
	}
	return conf
}

// IsRoleAddress reports whether the local part is a generic role prefix.
func IsRoleAddress(email string) bool {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return false
	}
	return rolePrefixes[strings.ToLower(email[:at])]
}
