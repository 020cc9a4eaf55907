package agent

import (
	"fmt"
	"strings"

	"github.com/soyeahso/helix/internal/domain"
)

// systemPrompt frames the model as the recruiter assistant. Finalization
// requires an explicit confirming turn after the model asks for it.
const systemPrompt = `You are a professional recruiter assistant. Your job is to:
1. Gather information about the company and role the user wants to recruit for.
2. Generate personalized outreach message sequences.
3. Help users edit and refine their outreach messages when needed.

Use the provided tools to perform actions like generating, editing, and managing outreach messages.

Stepwise rules for approval and finalization:

<step>
If the user approves the outreach sequence, do not immediately save.
Instead, confirm with the user:
"Would you like to finalize and save this sequence?"
</step>

<step>
If, and only if, the user explicitly confirms they want to finalize and save,
then call the finalize_sequence tool.
</step>

Be conversational and helpful. Always ask clarifying questions if information is missing or unclear.`

const followUpPrompt = `You are a recruiting assistant Agent. You have just executed a tool call and the results have been presented to user.
Briefly summarize whats been done. Ask the user if they would like to approve the sequence or want to make further edits.`

// BuildSystemPrompt returns the fixed instruction for decision calls,
// with extra appended when configured.
func BuildSystemPrompt(extra string) string {
	if strings.TrimSpace(extra) == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\n" + extra
}

// BuildSnapshot describes the live session state for the model.
func BuildSnapshot(sess domain.Session) string {
	var b strings.Builder
	b.WriteString("Current session info:\n")
	fmt.Fprintf(&b, "- Phase: %s\n", sess.Phase)
	fmt.Fprintf(&b, "- Company: %s\n", orUnset(sess.UserInfo.Company))
	fmt.Fprintf(&b, "- Role: %s\n", orUnset(sess.UserInfo.Role))
	fmt.Fprintf(&b, "- Message sequence count: %d\n", len(sess.Sequence))

	if len(sess.Sequence) > 0 {
		b.WriteString("\nCurrent message sequence:\n")
		for i, m := range sess.Sequence {
			fmt.Fprintf(&b, "%d. %s (ID: %s) body: %s\n", i+1, m.Subject, m.ID, m.Content)
		}
	}
	return b.String()
}

func orUnset(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}
