package moderation

import "regexp"

// Notice replaces the content of a rejected message. Messages carrying
// exactly this text are never persisted and never touch the unread ledger.
const Notice = "Formal tone only, contact exchange is not permitted."

// Gate decides whether a message may pass as-is. Implementations must be
// cheap and synchronous; the socket read loop calls this inline.
type Gate interface {
	Approve(text string) bool
}

// ContactFilter rejects attempts to move the conversation off-platform:
// phone numbers, email addresses, and messenger handles.
type ContactFilter struct {
	patterns []*regexp.Regexp
}

func NewContactFilter() *ContactFilter {
	return &ContactFilter{
		patterns: []*regexp.Regexp{
			// phone numbers: 8+ digits with optional separators
			regexp.MustCompile(`(\+?\d[\d\s\-\(\)]{7,}\d)`),
			// email addresses
			regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
			// messenger references
			regexp.MustCompile(`(?i)\b(whatsapp|telegram|signal)\b`),
		},
	}
}

func (f *ContactFilter) Approve(text string) bool {
	for _, p := range f.patterns {
		if p.MatchString(text) {
			return false
		}
	}
	return true
}
