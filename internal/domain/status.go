package domain

import "fmt"

// ProspectStatus is the closed lifecycle enumeration for prospects.
type ProspectStatus string

const (
	StatusDiscovered ProspectStatus = "discovered"
	StatusAudited    ProspectStatus = "audited"
	StatusEnriching  ProspectStatus = "enriching"
	StatusEnriched   ProspectStatus = "enriched"
	StatusQueued     ProspectStatus = "queued"
	StatusContacted  ProspectStatus = "contacted"
	StatusFollowUp1  ProspectStatus = "follow_up_1"
	StatusFollowUp2  ProspectStatus = "follow_up_2"
	StatusFollowUp3  ProspectStatus = "follow_up_3"
	StatusReplied    ProspectStatus = "replied"
	StatusBooked     ProspectStatus = "booked"
	StatusDead       ProspectStatus = "dead"
	StatusOptedOut   ProspectStatus = "opted_out"
)

// prospectTransitions is the allowed forward edge set. Dead and opted_out are
// additionally reachable from every non-terminal state, and the only reversal
// is the operator-driven resubscribe (opted_out -> audited).
var prospectTransitions = map[ProspectStatus][]ProspectStatus{
	StatusDiscovered: {StatusAudited, StatusEnriching},
	StatusAudited:    {StatusEnriching, StatusEnriched},
	StatusEnriching:  {StatusEnriched},
	StatusEnriched:   {StatusQueued},
	StatusQueued:     {StatusContacted, StatusEnriched}, // enriched: recovery of an orphaned queue entry
	StatusContacted:  {StatusFollowUp1, StatusReplied},
	StatusFollowUp1:  {StatusFollowUp2, StatusReplied},
	StatusFollowUp2:  {StatusFollowUp3, StatusReplied},
	StatusFollowUp3:  {StatusReplied},
	StatusReplied:    {StatusBooked},
	StatusOptedOut:   {StatusAudited}, // resubscribe
}

// Terminal reports whether no further automatic transition is allowed.
func (s ProspectStatus) Terminal() bool {
	switch s {
	case StatusBooked, StatusDead, StatusOptedOut:
		return true
	}
	return false
}

// Contactable reports whether the prospect is still in the pre-outreach part
// of the lifecycle and may be enqueued for step 1.
func (s ProspectStatus) Contactable() bool {
	switch s {
	case StatusDiscovered, StatusAudited, StatusEnriching, StatusEnriched:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal prospect transition.
func (s ProspectStatus) CanTransition(to ProspectStatus) bool {
	if s == to {
		return false
	}
	if to == StatusDead || to == StatusOptedOut {
		return !s.Terminal()
	}
	// Bounce recovery for high-value prospects re-enters at audited.
	if to == StatusAudited && !s.Terminal() && !s.Contactable() {
		return true
	}
	for _, next := range prospectTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidProspectStatus reports whether s is a member of the enumeration.
func ValidProspectStatus(s ProspectStatus) bool {
	switch s {
	case StatusDiscovered, StatusAudited, StatusEnriching, StatusEnriched,
		StatusQueued, StatusContacted, StatusFollowUp1, StatusFollowUp2,
		StatusFollowUp3, StatusReplied, StatusBooked, StatusDead, StatusOptedOut:
		return true
	}
	return false
}

// FollowUpStatus maps a completed step number to the prospect status it
// leaves the prospect in once that step's message has been sent.
func FollowUpStatus(step int) ProspectStatus {
	switch step {
	case 1:
		return StatusContacted
	case 2:
		return StatusFollowUp1
	case 3:
		return StatusFollowUp2
	default:
		return StatusFollowUp3
	}
}

// MessageStatus is the closed lifecycle enumeration for outreach messages.
type MessageStatus string

const (
	MsgDraft           MessageStatus = "draft"
	MsgPendingApproval MessageStatus = "pending_approval"
	MsgApproved        MessageStatus = "approved"
	MsgSending         MessageStatus = "sending"
	MsgSent            MessageStatus = "sent"
	MsgOpened          MessageStatus = "opened"
	MsgClicked         MessageStatus = "clicked"
	MsgReplied         MessageStatus = "replied"
	MsgBounced         MessageStatus = "bounced"
	MsgFailed          MessageStatus = "failed"
	MsgCancelled       MessageStatus = "cancelled"
)

var messageTransitions = map[MessageStatus][]MessageStatus{
	MsgDraft:           {MsgPendingApproval, MsgCancelled},
	MsgPendingApproval: {MsgApproved, MsgCancelled},
	MsgApproved:        {MsgSending, MsgCancelled},
	MsgSending:         {MsgSent, MsgFailed, MsgPendingApproval}, // pending_approval: recovery of a stuck send
	MsgSent:            {MsgOpened, MsgClicked, MsgReplied, MsgBounced},
	MsgOpened:          {MsgClicked, MsgReplied, MsgBounced},
	MsgClicked:         {MsgReplied, MsgBounced},
	MsgFailed:          {MsgPendingApproval}, // manual review / regenerate path
}

// Terminal reports whether the message status admits no further transition.
func (s MessageStatus) Terminal() bool {
	switch s {
	case MsgReplied, MsgBounced, MsgCancelled:
		return true
	}
	return false
}

// Settled reports whether the message finished its send attempt one way or
// the other; step N+1 may only be drafted once step N is settled.
func (s MessageStatus) Settled() bool {
	switch s {
	case MsgSent, MsgOpened, MsgClicked, MsgReplied, MsgBounced, MsgFailed, MsgCancelled:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal message transition.
func (s MessageStatus) CanTransition(to MessageStatus) bool {
	for _, next := range messageTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrBadTransition is returned by repositories when a write would violate the
// transition table.
type ErrBadTransition struct {
	Kind string
	From string
	To   string
}

func (e *ErrBadTransition) Error() string {
	return fmt.Sprintf("illegal %s transition %s -> %s", e.Kind, e.From, e.To)
}
