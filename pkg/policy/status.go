package policy

// Status is the lifecycle state of a policy.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusArchived Status = "archived"
	StatusExpired  Status = "expired"
)

// Statuses lists every status.
var Statuses = []Status{StatusDraft, StatusInReview, StatusApproved, StatusArchived, StatusExpired}

var transitions = map[Status][]Status{
	StatusDraft:    {StatusInReview, StatusArchived},
	StatusInReview: {StatusApproved, StatusDraft, StatusArchived},
	StatusApproved: {StatusExpired, StatusDraft, StatusArchived},
	StatusExpired:  {StatusDraft, StatusArchived},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransition reports whether a policy in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}
