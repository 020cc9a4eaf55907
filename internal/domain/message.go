package domain

// MessageType classifies an outreach message's intent.
type MessageType string

const (
	MessageInitialOutreach   MessageType = "initial_outreach"
	MessageFollowUp          MessageType = "follow_up"
	MessageMeetingRequest    MessageType = "meeting_request"
	MessageThankYou          MessageType = "thank_you"
	MessageRejectionHandling MessageType = "rejection_handling"
	MessageValueAdd          MessageType = "value_add"
	MessageFinalFollowUp     MessageType = "final_follow_up"
	MessageOffer             MessageType = "offer"
)

// MessageTypes lists every valid message type.
var MessageTypes = []MessageType{
	MessageInitialOutreach,
	MessageFollowUp,
	MessageMeetingRequest,
	MessageThankYou,
	MessageRejectionHandling,
	MessageValueAdd,
	MessageFinalFollowUp,
	MessageOffer,
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	for _, known := range MessageTypes {
		if t == known {
			return true
		}
	}
	return false
}

// OutreachMessage is one slot in an outreach sequence.
type OutreachMessage struct {
	ID      string      `json:"id"`
	Type    MessageType `json:"type"`
	Subject string      `json:"subject"`
	Content string      `json:"content"`
	Timing  string      `json:"timing"` // e.g. "immediately", "3 days after"
	Order   int         `json:"order"`
}

// CloneSequence returns an independent copy of a message sequence.
// A nil input yields an empty, non-nil slice.
func CloneSequence(seq []OutreachMessage) []OutreachMessage {
	out := make([]OutreachMessage, len(seq))
	copy(out, seq)
	return out
}
