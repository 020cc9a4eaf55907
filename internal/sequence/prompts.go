package sequence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/helix/internal/domain"
)

const (
	generateSystemPrompt = "You are a professional recruiter assistant. Create personalized, professional outreach messages."
	editSystemPrompt     = "You are a professional recruiter assistant. Create and Edit personalized, professional outreach messages."
)

// responseSchema is the JSON Schema every generation and edit answer must match.
var responseSchema = mustSchema()

func mustSchema() string {
	types := make([]string, len(domain.MessageTypes))
	for i, t := range domain.MessageTypes {
		types[i] = string(t)
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"messages": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":    map[string]any{"type": "string", "enum": types},
						"subject": map[string]any{"type": "string", "description": "Subject line of the message"},
						"content": map[string]any{"type": "string", "description": "Content of the message"},
						"timing": map[string]any{
							"type":        "string",
							"description": "Timing of the message in relation to the outreach sequence e.g., immediately, 3 days after, 1 week after",
						},
					},
					"required":             []string{"type", "subject", "content", "timing"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"messages"},
		"additionalProperties": false,
	}
	data, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func or(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// GeneratePrompt asks for a fresh 4-5 message sequence personalized to info.
func GeneratePrompt(info domain.UserInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a sequence of 4-5 professional outreach messages for recruiting a %s at %s.\n", info.Role, info.Company)
	b.WriteString("Have place holders for candidate name. Use the following information to personalize the messages:\n\n")
	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "- Company: %s\n", info.Company)
	fmt.Fprintf(&b, "- Role: %s\n", info.Role)
	fmt.Fprintf(&b, "- Industry: %s\n", or(info.Industry, "General"))
	fmt.Fprintf(&b, "- Experience Level: %s\n", or(info.ExperienceLevel, "Mid-level"))
	fmt.Fprintf(&b, "- Additional Context: %s\n\n", or(info.AdditionalContext, "N/A"))
	b.WriteString("Create messages for:\n")
	b.WriteString("1. Initial outreach (immediately)\n")
	b.WriteString("2. Follow-up (3 days after)\n")
	b.WriteString("3. Meeting request (1 week after)\n")
	b.WriteString("4. Final follow-up (2 weeks after)\n")
	b.WriteString("5. Offer (1 month after)")
	return b.String()
}

func userContext(info domain.UserInfo) string {
	const unset = "Not specified"
	var b strings.Builder
	b.WriteString("User Info:\n")
	fmt.Fprintf(&b, "- Company: %s\n", or(info.Company, unset))
	fmt.Fprintf(&b, "- Role: %s\n", or(info.Role, unset))
	fmt.Fprintf(&b, "- Industry: %s\n", or(info.Industry, unset))
	fmt.Fprintf(&b, "- Experience Level: %s\n", or(info.ExperienceLevel, unset))
	fmt.Fprintf(&b, "- Additional Context: %s\n", or(info.AdditionalContext, unset))
	return b.String()
}

func sequenceContext(seq []domain.OutreachMessage) string {
	lines := make([]string, len(seq))
	for i, m := range seq {
		lines[i] = fmt.Sprintf("%d. Message Type: %s Message Subject: %s \n%s \nTiming: %s", i+1, m.Type, m.Subject, m.Content, m.Timing)
	}
	return strings.Join(lines, "\n")
}

// EditPrompt asks for the whole sequence back with the instruction applied.
func EditPrompt(info domain.UserInfo, seq []domain.OutreachMessage, instruction, identifier string) string {
	var b strings.Builder
	b.WriteString("Edit the following sequence of outreach messages based on the given edit instruction.\n")
	b.WriteString("Use the provided user info for context only and make edits if the current messages include stale user context. ")
	b.WriteString("If asked to edit existing messages identify the messages to edit based on the provided identifier, else edit based on the instruction.\n\n")
	b.WriteString(userContext(info))
	b.WriteString("\nCurrent Message Sequence:\n")
	b.WriteString(sequenceContext(seq))
	b.WriteString("\n\nEdit Instruction:\n")
	b.WriteString(instruction)
	fmt.Fprintf(&b, "\n\nMessage Identifier (if any): %s\n\n", or(identifier, "None"))
	b.WriteString("Return the updated sequence of messages in the same format as the original sequence.")
	return b.String()
}

// AddPrompt asks for the whole sequence back with one new message placed
// where the instruction says.
func AddPrompt(info domain.UserInfo, seq []domain.OutreachMessage, instruction string) string {
	var b strings.Builder
	b.WriteString("Given a sequence of outreach messages, add a new message to the sequence in the correct order based on the following instruction.\n")
	b.WriteString("Use the provided user info for context.\n\n")
	b.WriteString(userContext(info))
	b.WriteString("\nCurrent Message Sequence:\n")
	b.WriteString(sequenceContext(seq))
	b.WriteString("\n\nAdd Instruction:\n")
	b.WriteString(instruction)
	b.WriteString("\n\nReturn the updated sequence of messages in the same format as the original sequence.")
	return b.String()
}
