package scoring

import (
	"fmt"
	"time"

	"prospector/internal/domain"
)

// Compute derives the purchase-likelihood breakdown for a prospect from its
// persisted fields and the latest audit record. Pure: identical inputs give
// identical output, and the caller decides whether to persist it.
//
// audit may be nil when the prospect has never been audited (no-website
// prospects in particular).
func Compute(p domain.Prospect, audit *domain.Audit, now time.Time) domain.ScoreBreakdown {
	b := domain.ScoreBreakdown{Signals: []string{}}
	b.Need = needScore(p, audit, &b.Signals)
	b.Ability = abilityScore(p, now, &b.Signals)
	b.Timing = timingScore(p, audit, now, &b.Signals)
	b.Total = b.Need + b.Ability + b.Timing
	b.Tier = Tier(b.Total)
	return b
}

// Tier buckets a composite score.
func Tier(total int) string {
	switch {
	case total >= 80:
		return "hot"
	case total >= 60:
		return "warm"
	case total >= 40:
		return "cool"
	default:
		return "cold"
	}
}

const (
	needMax    = 40
	abilityMax = 30
	timingMax  = 30
)

// needScore measures how badly the business needs a new site, 0..40.
// No website at all is the strongest possible signal and awards the full 40
// without consulting the tier table.
func needScore(p domain.Prospect, audit *domain.Audit, signals *[]string) int {
	if !p.HasWebsite {
		add(signals, "no website", needMax)
		return needMax
	}

	pts := 0
	if audit != nil {
		switch {
		case audit.Overall <= 24:
			pts += emit(signals, "site scored critical", 32)
		case audit.Overall <= 44:
			pts += emit(signals, "site scored poor", 24)
		case audit.Overall <= 59:
			pts += emit(signals, "site scored mediocre", 16)
		case audit.Overall <= 74:
			pts += emit(signals, "site scored fair", 8)
		}
		if audit.Mobile < 40 {
			pts += emit(signals, "bad mobile experience", 3)
		}
		if !audit.SSLValid {
			pts += emit(signals, "no ssl", 4)
		}
		if audit.DatedDesign {
			pts += emit(signals, "dated design", 2)
		}
		if !audit.HasContact {
			pts += emit(signals, "no contact form", 2)
		}
		if !audit.HasCTA {
			pts += emit(signals, "no call to action", 2)
		}
	}
	return clamp(pts, needMax)
}

// abilityScore measures capacity to pay, 0..30, from revenue proxies and
// growth signals.
func abilityScore(p domain.Prospect, now time.Time, signals *[]string) int {
	pts := 0
	switch {
	case p.GrantAmount >= 50000:
		pts += emit(signals, "major grant or loan", 8)
	case p.GrantAmount >= 10000:
		pts += emit(signals, "grant or loan", 5)
	}
	switch {
	case p.ReviewCount >= 100:
		pts += emit(signals, "high review volume", 6)
	case p.ReviewCount >= 25:
		pts += emit(signals, "solid review volume", 4)
	case p.ReviewCount >= 5:
		pts += emit(signals, "some reviews", 2)
	}
	if p.ReviewRating >= 4.5 && p.ReviewCount >= 5 {
		pts += emit(signals, "excellent rating", 3)
	}
	if p.Hiring {
		pts += emit(signals, "actively hiring", 4)
	}
	if p.RunningAds {
		pts += emit(signals, "running paid ads", 4)
	}
	if p.Registered {
		pts += emit(signals, "registered entity", 3)
	}
	if p.ProEmailDomain {
		pts += emit(signals, "professional email domain", 3)
	}
	if p.FormedAt != nil {
		age := now.Sub(*p.FormedAt)
		switch {
		case age >= 5*365*24*time.Hour:
			pts += emit(signals, "established 5+ years", 3)
		case age >= 2*365*24*time.Hour:
			pts += emit(signals, "established 2+ years", 2)
		}
	}
	return clamp(pts, abilityMax)
}

// timingScore measures urgency triggers, 0..30.
func timingScore(p domain.Prospect, audit *domain.Audit, now time.Time, signals *[]string) int {
	pts := 0
	if p.UnderConstruction {
		pts += emit(signals, "under construction page", 8)
	}
	if p.FormedAt != nil && now.Sub(*p.FormedAt) < 365*24*time.Hour {
		pts += emit(signals, "recently formed", 6)
	}
	if p.RunningAds && audit != nil && audit.Overall < 50 {
		pts += emit(signals, "paying for ads on a poor site", 5)
	}
	if p.HiringWebRoles {
		pts += emit(signals, "hiring web or marketing roles", 6)
	}
	if p.CompetitorGap >= 20 {
		pts += emit(signals, "trailing competitor", 4)
	}
	if p.ReviewsMentionWeb {
		pts += emit(signals, "reviews complain about web presence", 5)
	}
	if p.NoSocialPresence {
		pts += emit(signals, "no social presence", 3)
	}
	if p.ReviewsDeclining {
		pts += emit(signals, "declining review velocity", 3)
	}
	return clamp(pts, timingMax)
}

func emit(signals *[]string, label string, pts int) int {
	add(signals, label, pts)
	return pts
}

func add(signals *[]string, label string, pts int) {
	*signals = append(*signals, fmt.Sprintf("%s: +%d", label, pts))
}

func clamp(v, max int) int {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}
