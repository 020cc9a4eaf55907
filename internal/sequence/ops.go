package sequence

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/soyeahso/helix/internal/domain"
)

// Default is the deterministic fallback used whenever generation or an
// AI edit fails: an initial outreach and one follow-up.
func Default(info domain.UserInfo) []domain.OutreachMessage {
	return []domain.OutreachMessage{
		{
			ID:      uuid.NewString(),
			Type:    domain.MessageInitialOutreach,
			Subject: fmt.Sprintf("Exciting %s Opportunity at %s", info.Role, info.Company),
			Content: fmt.Sprintf("Hi there! I hope this message finds you well. I'm reaching out about an exciting %s opportunity at %s...", info.Role, info.Company),
			Timing:  "immediately",
			Order:   1,
		},
		{
			ID:      uuid.NewString(),
			Type:    domain.MessageFollowUp,
			Subject: fmt.Sprintf("Following up on %s role", info.Role),
			Content: "I wanted to follow up on my previous message about the opportunity...",
			Timing:  "3 days after",
			Order:   2,
		},
	}
}

// Renumber returns a copy of seq with order set to 1..N in list order.
func Renumber(seq []domain.OutreachMessage) []domain.OutreachMessage {
	out := domain.CloneSequence(seq)
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// Remove drops the message with the given id and renumbers the rest.
// The input is never modified; an unknown id yields domain.ErrNotFound.
func Remove(seq []domain.OutreachMessage, id string) ([]domain.OutreachMessage, error) {
	kept := make([]domain.OutreachMessage, 0, len(seq))
	for _, m := range seq {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(seq) {
		return seq, fmt.Errorf("remove %s: %w", id, domain.ErrNotFound)
	}
	return Renumber(kept), nil
}

// SetContent replaces one message's content in place, leaving everything
// else untouched.
func SetContent(seq []domain.OutreachMessage, id, content string) ([]domain.OutreachMessage, error) {
	out := domain.CloneSequence(seq)
	for i := range out {
		if out[i].ID == id {
			out[i].Content = content
			return out, nil
		}
	}
	return seq, fmt.Errorf("set content %s: %w", id, domain.ErrNotFound)
}

// Render formats a sequence as plain text for chat front-ends.
func Render(seq []domain.OutreachMessage) string {
	if len(seq) == 0 {
		return "(empty sequence)"
	}
	var b strings.Builder
	for i, m := range seq {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. [%s] %s (%s) id=%s\n", m.Order, m.Type, m.Subject, m.Timing, m.ID)
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
