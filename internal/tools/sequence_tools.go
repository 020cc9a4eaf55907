package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/sequence"
	"github.com/soyeahso/helix/internal/session"
)

const (
	labelGenerate = "Generating a message sequence ....."
	labelEdit     = "Editing sequence messages ....."
	labelFinalize = "Finalizing the outreach sequence ....."

	finalizeTimeout = 30 * time.Second
)

// Deps are the collaborators shared by the sequence tools.
type Deps struct {
	Sessions *session.Store
	Editor   sequence.Editor
	Notifier domain.Notifier    // optional
	Persist  domain.Persistence // optional
	Log      *logging.Logger
}

// NewSequenceRegistry builds a registry holding the five sequence tools in
// the order they are offered to the model.
func NewSequenceRegistry(d Deps) *Registry {
	r := NewRegistry(d.Sessions, d.Log)
	base := seqTool{deps: d, log: d.Log.Sub("tools")}
	r.Register(&generateTool{base})
	r.Register(&editTool{seqTool: base, mode: sequence.ModeEdit})
	r.Register(&editTool{seqTool: base, mode: sequence.ModeAdd})
	r.Register(&deleteTool{base})
	r.Register(&finalizeTool{base})
	return r
}

type seqTool struct {
	deps Deps
	log  *logging.Logger
}

// commit stores a new sequence, info and phase, notifies listeners and
// returns the sequence as the tool message.
func (b seqTool) commit(sessionID string, info *domain.UserInfo, seq []domain.OutreachMessage, phase domain.Phase) (string, error) {
	sess, err := b.deps.Sessions.Update(sessionID, func(s *domain.Session) error {
		if info != nil {
			s.UserInfo = *info
		}
		s.Sequence = seq
		s.Phase = phase
		return nil
	})
	if err != nil {
		return "", err
	}
	if b.deps.Notifier != nil {
		b.deps.Notifier.SequenceChanged(sessionID, domain.CloneSequence(sess.Sequence))
	}
	data, err := json.Marshal(sess.Sequence)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type generateTool struct{ seqTool }

func (t *generateTool) Name() string  { return "generate_sequence" }
func (t *generateTool) Label() string { return labelGenerate }
func (t *generateTool) Description() string {
	return "Generate a sequence of outreach messages based on user information"
}
func (t *generateTool) InputSchema() string {
	return objectSchema(userInfoFields(), "company", "role")
}

func (t *generateTool) Execute(ctx context.Context, sessionID string, p Params) (string, error) {
	sess, err := t.deps.Sessions.Get(sessionID)
	if err != nil {
		return "", err
	}

	info := sess.UserInfo
	info.Company = p.Get("company")
	info.Role = p.Get("role")
	info.Industry = p.Get("industry")
	info.ExperienceLevel = p.Get("experience_level")
	info.AdditionalContext = p.Get("additional_context")

	seq := t.deps.Editor.Generate(ctx, info)
	return t.commit(sessionID, &info, seq, domain.PhaseGeneratingSequence)
}

// editTool serves both edit_sequence and add_to_sequence; they differ in
// the instruction parameter and the editor mode.
type editTool struct {
	seqTool
	mode sequence.Mode
}

func (t *editTool) Name() string {
	if t.mode == sequence.ModeAdd {
		return "add_to_sequence"
	}
	return "edit_sequence"
}

func (t *editTool) Label() string { return labelEdit }

func (t *editTool) Description() string {
	if t.mode == sequence.ModeAdd {
		return "Add messages in the outreach sequence based on user instructions"
	}
	return "Edit messages in the outreach sequence based on user instructions"
}

func (t *editTool) instructionKey() string {
	if t.mode == sequence.ModeAdd {
		return "add_instruction"
	}
	return "edit_instruction"
}

func (t *editTool) InputSchema() string {
	var fields []field
	if t.mode == sequence.ModeAdd {
		fields = append(fields, str("add_instruction", "Natural language instructions for adding a new message to the sequence"))
	} else {
		fields = append(fields,
			str("message_identifier", "Description of the messages to edit"),
			str("edit_instruction", "Natural language instructions for the edit"),
		)
	}
	return objectSchema(append(fields, userInfoFields()...), t.instructionKey())
}

func (t *editTool) Execute(ctx context.Context, sessionID string, p Params) (string, error) {
	sess, err := t.deps.Sessions.Get(sessionID)
	if err != nil {
		return "", err
	}

	instruction := p.Get(t.instructionKey())
	if instruction == "" {
		msg := "Edit instruction is required"
		if t.mode == sequence.ModeAdd {
			msg = "Add instruction is required"
		}
		return "", &domain.ValidationError{Field: t.instructionKey(), Message: msg}
	}

	info := sess.UserInfo
	info.Merge(domain.UserInfoPatch{
		Company:           p.Ptr("company"),
		Role:              p.Ptr("role"),
		Industry:          p.Ptr("industry"),
		ExperienceLevel:   p.Ptr("experience_level"),
		AdditionalContext: p.Ptr("additional_context"),
	})

	seq := t.deps.Editor.ApplyEdit(ctx, info, sess.Sequence, t.mode, instruction, p.Get("message_identifier"))
	return t.commit(sessionID, &info, seq, domain.PhaseEditingSequence)
}

type deleteTool struct{ seqTool }

func (t *deleteTool) Name() string  { return "delete_sequence" }
func (t *deleteTool) Label() string { return labelEdit }
func (t *deleteTool) Description() string {
	return "Delete a specific message from the sequence"
}
func (t *deleteTool) InputSchema() string {
	return objectSchema([]field{
		str("message_id", "Identifier for the message to be deleted"),
		integer("message_order", "Order of the message in the sequence to be deleted"),
	}, "message_id")
}

func (t *deleteTool) Execute(_ context.Context, sessionID string, p Params) (string, error) {
	sess, err := t.deps.Sessions.Get(sessionID)
	if err != nil {
		return "", err
	}

	id := p.Get("message_id")
	if id == "" {
		return "", &domain.ValidationError{Field: "message_id"}
	}
	seq, err := sequence.Remove(sess.Sequence, id)
	if err != nil {
		return "", err
	}
	return t.commit(sessionID, nil, seq, domain.PhaseEditingSequence)
}

type finalizeTool struct{ seqTool }

func (t *finalizeTool) Name() string  { return "finalize_sequence" }
func (t *finalizeTool) Label() string { return labelFinalize }
func (t *finalizeTool) Description() string {
	return "Finalize and save the outreach sequence to the database after confirming users approval."
}
func (t *finalizeTool) InputSchema() string { return objectSchema(nil) }

// Execute marks the session finalized and writes it to storage. A storage
// failure is logged and does not fail the tool.
func (t *finalizeTool) Execute(ctx context.Context, sessionID string, _ Params) (string, error) {
	sess, err := t.deps.Sessions.Update(sessionID, func(s *domain.Session) error {
		s.Phase = domain.PhaseFinalizeSequence
		return nil
	})
	if err != nil {
		return "", err
	}

	if t.deps.Persist != nil {
		ctx, cancel := context.WithTimeout(ctx, finalizeTimeout)
		defer cancel()
		if err := t.deps.Persist.UpsertSequenceRecords(ctx, sessionID, sess.UserInfo, sess.Sequence); err != nil {
			t.log.Error().Err(err).Str("sessionId", sessionID).Int("count", len(sess.Sequence)).Msg("failed to save sequence")
		} else {
			t.log.Info().Str("sessionId", sessionID).Int("count", len(sess.Sequence)).Msg("sequence saved")
		}
	}
	return "Saved the sequence.", nil
}
