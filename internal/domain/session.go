package domain

import "time"

// Phase is a coarse label for the kind of operation that most recently
// happened in a session. It records "what happened last" and is not an
// enforced state machine.
type Phase string

const (
	PhaseGatheringInfo      Phase = "gathering_info"
	PhaseGeneratingSequence Phase = "generating_sequence"
	PhaseEditingSequence    Phase = "editing_sequence"
	// PhaseApproveSequence is declared for completeness; nothing assigns it.
	PhaseApproveSequence  Phase = "approve_sequence"
	PhaseFinalizeSequence Phase = "finalize_sequence"
)

// Role constants for history entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// UserInfo is the recruiter profile attached to a session. Empty strings
// mean "not yet known".
type UserInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Company           string `json:"company"`
	Role              string `json:"role"`
	Industry          string `json:"industry"`
	ExperienceLevel   string `json:"experience_level"`
	Location          string `json:"location"`
	AdditionalContext string `json:"additional_context"`
}

// UserInfoPatch carries a partial user info update. Nil fields are absent.
type UserInfoPatch struct {
	Company           *string
	Role              *string
	Industry          *string
	ExperienceLevel   *string
	AdditionalContext *string
}

// Merge applies the patch field by field. AdditionalContext is appended to
// the existing value rather than replacing it.
func (u *UserInfo) Merge(p UserInfoPatch) {
	if p.Company != nil {
		u.Company = *p.Company
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Industry != nil {
		u.Industry = *p.Industry
	}
	if p.ExperienceLevel != nil {
		u.ExperienceLevel = *p.ExperienceLevel
	}
	if p.AdditionalContext != nil && *p.AdditionalContext != "" {
		if u.AdditionalContext == "" {
			u.AdditionalContext = *p.AdditionalContext
		} else {
			u.AdditionalContext += " " + *p.AdditionalContext
		}
	}
}

// Session tracks one conversation and the outreach sequence derived from it.
type Session struct {
	ID        string            `json:"sessionId"`
	UserInfo  UserInfo          `json:"userInfo"`
	Sequence  []OutreachMessage `json:"messageSequence"`
	History   []HistoryEntry    `json:"conversationHistory,omitempty"`
	Phase     Phase             `json:"currentPhase"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// HistoryEntry is a single turn in a session's conversation log.
type HistoryEntry struct {
	Role       string     `json:"role"` // "user", "assistant", "system", "tool"
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON as produced by the model
}
