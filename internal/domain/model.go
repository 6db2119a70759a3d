package domain

import "time"

// Core domain models. The persisted field sets and status enumerations here
// form the wire contract consumed by the admin tooling; keep changes additive.

// Prospect is a discovered business tracked through the outreach lifecycle.
type Prospect struct {
	ID           string
	BusinessName string
	BusinessType string
	City         string
	AreaRef      *string

	WebsiteURL *string
	HasWebsite bool

	// Audit sub-scores, written by the audit collaborator. Nil until audited.
	SpeedScore         *int
	MobileScore        *int
	SEOScore           *int
	SecurityScore      *int
	AccessibilityScore *int
	OverallScore       *int

	// Contact fields, written by recon.
	OwnerName       *string
	Email           *string
	EmailSource     string // scrape|whois|enrichment|pattern|fallback
	EmailVerified   bool
	EmailConfidence int

	// Enrichment attributes feeding the scoring engine.
	GrantAmount       int // confirmed grant/loan size, dollars
	ReviewCount       int
	ReviewRating      float64
	ReviewsDeclining  bool
	ReviewsMentionWeb bool
	Hiring            bool
	HiringWebRoles    bool
	RunningAds        bool
	Registered        bool
	ProEmailDomain    bool
	UnderConstruction bool
	NoSocialPresence  bool
	CompetitorGap     int // points behind the nearest named competitor
	FormedAt          *time.Time

	// Engagement counters.
	EmailsSent int
	Opens      int
	Clicks     int

	// Composite score, denormalized from the last scoring pass.
	Score   int
	Need    int
	Ability int
	Timing  int
	Tier    string
	Signals []string

	// Priority is the estimated lead value used by budget and bounce rules.
	Priority int

	Status    ProspectStatus
	ClaimedBy *string
	ClaimedAt *time.Time

	ReplySentiment *string
	RepliedAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one outreach email belonging to exactly one prospect.
type Message struct {
	ID            string
	ProspectID    string
	Step          int // 1..5
	Subject       string
	Body          string
	TrackingToken string
	Status        MessageStatus
	ScheduledAt   time.Time
	SentAt        *time.Time
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the message can no longer change state.
func (m Message) Terminal() bool { return m.Status.Terminal() }

// Audit is one immutable audit record; the latest by CreatedAt is
// authoritative for scoring.
type Audit struct {
	ID          string
	ProspectID  string
	Speed       int
	Mobile      int
	SEO         int
	Security    int
	Access      int
	Overall     int
	SSLValid    bool
	DatedDesign bool
	HasContact  bool
	HasCTA      bool
	CreatedAt   time.Time
}

// Area is one geographic crawl unit grouping prospects. The crawler resumes
// from LastOffset until it marks the area complete.
type Area struct {
	ID           string
	City         string
	BusinessType string
	LastOffset   int
	Complete     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScoreBreakdown is the ephemeral output of one scoring pass.
type ScoreBreakdown struct {
	Need    int
	Ability int
	Timing  int
	Total   int
	Tier    string
	Signals []string
}
