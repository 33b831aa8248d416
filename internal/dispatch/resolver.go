package dispatch

import (
	"fmt"
	"strings"

	"github.com/vallegrande/notification-engine/internal/domain"
)

// Candidate is one deliverable channel together with the address it sends to.
type Candidate struct {
	Channel domain.Channel
	Address string
}

// ResolveRequest carries the per-notification inputs of candidate resolution.
type ResolveRequest struct {
	UserID    string
	Category  domain.NotificationType
	Hint      domain.Channel
	Recipient string
}

// ResolveCandidates orders the channels a notification may use, highest priority first.
//
// A channel survives when its global toggle is on, its contact datum is populated, and the
// category mapping (if the user has one) lists it. A surviving hinted channel moves to the
// front; the request recipient fills its contact datum when the preference has none.
func ResolveCandidates(pref domain.NotificationPreference, req ResolveRequest) ([]Candidate, error) {
	if strings.TrimSpace(pref.UserID) == "" {
		pref.UserID = req.UserID
	}

	order := domain.DefaultChannelOrder
	if category, ok := pref.Categories[req.Category]; ok {
		order = category.Ordered()
	}

	candidates := make([]Candidate, 0, len(order))
	for _, channel := range order {
		if !pref.ChannelEnabled(channel) {
			continue
		}

		address := channel.ContactAddress(pref)
		if address == "" && channel == req.Hint {
			address = strings.TrimSpace(req.Recipient)
		}
		if address == "" {
			continue
		}

		candidate := Candidate{Channel: channel, Address: address}
		if channel == req.Hint {
			candidates = append([]Candidate{candidate}, candidates...)
			continue
		}
		candidates = append(candidates, candidate)
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: user %s has no enabled channel with contact data for %s",
			domain.ErrNoDeliverableChannel, req.UserID, req.Category)
	}

	return candidates, nil
}

// withoutExhausted drops channels whose retry budget the notification already spent.
func withoutExhausted(candidates []Candidate, n *domain.Notification) []Candidate {
	remaining := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if n.HasExhausted(candidate.Channel) {
			continue
		}
		remaining = append(remaining, candidate)
	}
	return remaining
}

// selectCandidate keeps the channel a notification is already committed to when it is still
// deliverable, so retries stay on the same channel.
func selectCandidate(candidates []Candidate, current domain.Channel) (Candidate, int) {
	for i, candidate := range candidates {
		if candidate.Channel == current {
			return candidate, i
		}
	}
	return candidates[0], 0
}
