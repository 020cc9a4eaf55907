// Package sequence produces and transforms ordered outreach message lists,
// either with pure list operations or by asking a model for a whole new list.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/logging"
)

// Mode selects how ApplyEdit treats its instruction.
type Mode string

const (
	ModeEdit Mode = "Edit"
	ModeAdd  Mode = "Add"
)

// Editor builds outreach sequences. Implementations never fail: when the
// model cannot produce a usable answer they return Default.
type Editor interface {
	Generate(ctx context.Context, info domain.UserInfo) []domain.OutreachMessage
	ApplyEdit(ctx context.Context, info domain.UserInfo, current []domain.OutreachMessage, mode Mode, instruction, identifier string) []domain.OutreachMessage
}

// Options tunes model calls made by the AI editor.
type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// AIEditor regenerates the whole sequence through a model on every call.
type AIEditor struct {
	client llm.Client
	opts   Options
	log    *logging.Logger
}

// NewAIEditor creates an editor backed by client.
func NewAIEditor(client llm.Client, opts Options, log *logging.Logger) *AIEditor {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &AIEditor{
		client: client,
		opts:   opts,
		log:    log.Sub("sequence"),
	}
}

// Generate asks the model for a fresh sequence for info.
func (e *AIEditor) Generate(ctx context.Context, info domain.UserInfo) []domain.OutreachMessage {
	seq, err := e.request(ctx, generateSystemPrompt, GeneratePrompt(info))
	if err != nil {
		e.log.Error().Err(err).Str("company", info.Company).Str("role", info.Role).Msg("error generating sequence, using default")
		return Default(info)
	}
	return seq
}

// ApplyEdit asks the model for a replacement of current with the
// instruction applied. The result replaces current wholesale.
func (e *AIEditor) ApplyEdit(ctx context.Context, info domain.UserInfo, current []domain.OutreachMessage, mode Mode, instruction, identifier string) []domain.OutreachMessage {
	var prompt string
	if mode == ModeAdd {
		prompt = AddPrompt(info, current, instruction)
	} else {
		prompt = EditPrompt(info, current, instruction, identifier)
	}

	seq, err := e.request(ctx, editSystemPrompt, prompt)
	if err != nil {
		e.log.Error().Err(err).Str("mode", string(mode)).Msg("error editing sequence, using default")
		return Default(info)
	}
	return seq
}

type generated struct {
	Messages []struct {
		Type    domain.MessageType `json:"type"`
		Subject string             `json:"subject"`
		Content string             `json:"content"`
		Timing  string             `json:"timing"`
	} `json:"messages"`
}

func (e *AIEditor) request(ctx context.Context, system, prompt string) ([]domain.OutreachMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	temp := e.opts.Temperature
	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		System:         system,
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		ResponseFormat: &llm.ResponseFormat{Name: "outreach_messages", Schema: responseSchema},
		MaxTokens:      e.opts.MaxTokens,
		Temperature:    &temp,
		ToolChoice:     llm.ToolChoiceNone,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	var out generated
	if err := llm.DecodeJSON(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if len(out.Messages) == 0 {
		return nil, fmt.Errorf("%w: response has no messages", domain.ErrGeneration)
	}

	seq := make([]domain.OutreachMessage, len(out.Messages))
	for i, m := range out.Messages {
		if !m.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown message type %q", domain.ErrGeneration, m.Type)
		}
		seq[i] = domain.OutreachMessage{
			ID:      uuid.NewString(),
			Type:    m.Type,
			Subject: m.Subject,
			Content: m.Content,
			Timing:  m.Timing,
			Order:   i + 1,
		}
	}
	e.log.Debug().Int("count", len(seq)).Str("model", resp.Model).Msg("sequence generated")
	return seq, nil
}
