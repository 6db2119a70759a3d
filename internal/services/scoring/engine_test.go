package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospector/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestNoWebsiteAwardsFullNeed(t *testing.T) {
	p := domain.Prospect{HasWebsite: false}
	b := Compute(p, nil, testNow)
	require.Equal(t, 40, b.Need)
	assert.Contains(t, b.Signals, "no website: +40")
}

func TestNoWebsiteBypassesTierLookup(t *testing.T) {
	// Even with a (stale) audit on record, a prospect flagged as having no
	// website gets the flat 40 and none of the audit-derived signals.
	audit := &domain.Audit{Overall: 10, Mobile: 10}
	b := Compute(domain.Prospect{HasWebsite: false}, audit, testNow)
	require.Equal(t, 40, b.Need)
	assert.NotContains(t, b.Signals, "site scored critical: +32")
}

func TestCompositeIsSumOfParts(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		p := randomProspect(rng)
		var audit *domain.Audit
		if p.HasWebsite {
			audit = randomAudit(rng)
		}
		b := Compute(p, audit, testNow)
		require.Equal(t, b.Need+b.Ability+b.Timing, b.Total)
		assert.GreaterOrEqual(t, b.Need, 0)
		assert.LessOrEqual(t, b.Need, 40)
		assert.GreaterOrEqual(t, b.Ability, 0)
		assert.LessOrEqual(t, b.Ability, 30)
		assert.GreaterOrEqual(t, b.Timing, 0)
		assert.LessOrEqual(t, b.Timing, 30)
		assert.LessOrEqual(t, b.Total, 100)
	}
}

func TestDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	p := randomProspect(rng)
	audit := randomAudit(rng)
	first := Compute(p, audit, testNow)
	for i := 0; i < 10; i++ {
		again := Compute(p, audit, testNow)
		require.Equal(t, first, again)
	}
}

func TestTierThresholds(t *testing.T) {
	assert.Equal(t, "hot", Tier(80))
	assert.Equal(t, "warm", Tier(79))
	assert.Equal(t, "warm", Tier(60))
	assert.Equal(t, "cool", Tier(59))
	assert.Equal(t, "cool", Tier(40))
	assert.Equal(t, "cold", Tier(39))
	assert.Equal(t, "cold", Tier(0))
}

func TestAbilityCaps(t *testing.T) {
	formed := testNow.Add(-6 * 365 * 24 * time.Hour)
	p := domain.Prospect{
		HasWebsite:     true,
		GrantAmount:    100000,
		ReviewCount:    200,
		ReviewRating:   4.9,
		Hiring:         true,
		RunningAds:     true,
		Registered:     true,
		ProEmailDomain: true,
		FormedAt:       &formed,
	}
	b := Compute(p, nil, testNow)
	assert.Equal(t, 30, b.Ability)
}

func TestAdsOnPoorSiteNeedsBothConditions(t *testing.T) {
	p := domain.Prospect{HasWebsite: true, RunningAds: true}
	good := &domain.Audit{Overall: 85, SSLValid: true, Mobile: 90, HasContact: true, HasCTA: true}
	b := Compute(p, good, testNow)
	assert.NotContains(t, b.Signals, "paying for ads on a poor site: +5")

	poor := &domain.Audit{Overall: 30, SSLValid: true, Mobile: 90, HasContact: true, HasCTA: true}
	b = Compute(p, poor, testNow)
	assert.Contains(t, b.Signals, "paying for ads on a poor site: +5")
}

func TestEverySignalCarriesPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		p := randomProspect(rng)
		b := Compute(p, randomAudit(rng), testNow)
		for _, s := range b.Signals {
			assert.Regexp(t, `^.+: \+\d+$`, s)
		}
	}
}

func randomProspect(rng *rand.Rand) domain.Prospect {
	p := domain.Prospect{
		HasWebsite:        rng.Intn(4) != 0,
		GrantAmount:       rng.Intn(120000),
		ReviewCount:       rng.Intn(250),
		ReviewRating:      rng.Float64() * 5,
		ReviewsDeclining:  rng.Intn(2) == 0,
		ReviewsMentionWeb: rng.Intn(2) == 0,
		Hiring:            rng.Intn(2) == 0,
		HiringWebRoles:    rng.Intn(2) == 0,
		RunningAds:        rng.Intn(2) == 0,
		Registered:        rng.Intn(2) == 0,
		ProEmailDomain:    rng.Intn(2) == 0,
		UnderConstruction: rng.Intn(4) == 0,
		NoSocialPresence:  rng.Intn(2) == 0,
		CompetitorGap:     rng.Intn(40),
	}
	if rng.Intn(2) == 0 {
		formed := testNow.Add(-time.Duration(rng.Intn(8*365*24)) * time.Hour)
		p.FormedAt = &formed
	}
	return p
}

func randomAudit(rng *rand.Rand) *domain.Audit {
	return &domain.Audit{
		Overall:     rng.Intn(101),
		Mobile:      rng.Intn(101),
		SSLValid:    rng.Intn(2) == 0,
		DatedDesign: rng.Intn(2) == 0,
		HasContact:  rng.Intn(2) == 0,
		HasCTA:      rng.Intn(2) == 0,
	}
}
