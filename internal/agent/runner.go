// Package agent runs one conversational turn: it asks the model to either
// answer or call tools, executes those tools against the session and
// produces the reply.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/notify"
	"github.com/soyeahso/helix/internal/session"
	"github.com/soyeahso/helix/internal/tools"
)

// Fixed replies for failures the user sees.
const (
	ReplySessionNotFound = "Session not found. Please start a new conversation."
	ReplyError           = "I apologize, but I encountered an error processing your request. Please try again."

	issuesPrefix      = "I encountered some issues: "
	invalidParameters = "Invalid tool parameters"
)

// RunnerConfig configures the agent runner.
type RunnerConfig struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration // per model call
	ExtraPrompt string
}

// RunResult is the outcome of processing a turn.
type RunResult struct {
	Response  string        `json:"response"`
	SessionID string        `json:"sessionId"`
	Tools     []ToolOutcome `json:"tools,omitempty"`
	Model     string        `json:"model,omitempty"`
	Usage     llm.Usage     `json:"usage"`
	Duration  time.Duration `json:"duration"`
	Phase     domain.Phase  `json:"phase,omitempty"`
}

// ToolOutcome pairs a tool call with its result.
type ToolOutcome struct {
	CallID string       `json:"callId"`
	Name   string       `json:"name"`
	Result tools.Result `json:"result"`
}

// Runner is the agent orchestration loop.
type Runner struct {
	cfg      RunnerConfig
	client   llm.Client
	sessions *session.Store
	tools    *tools.Registry
	notifier domain.Notifier
	system   string
	log      *logging.Logger
}

// NewRunner creates an agent runner. notifier may be nil.
func NewRunner(
	cfg RunnerConfig,
	client llm.Client,
	sessions *session.Store,
	registry *tools.Registry,
	notifier domain.Notifier,
	log *logging.Logger,
) *Runner {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Runner{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		tools:    registry,
		notifier: notifier,
		system:   BuildSystemPrompt(cfg.ExtraPrompt),
		log:      log.Sub("agent"),
	}
}

// HandleTurn processes one user message and returns the reply text.
// It never fails; failures become fixed conversational replies.
func (r *Runner) HandleTurn(ctx context.Context, sessionID, text string) string {
	return r.Run(ctx, sessionID, text).Response
}

// Run processes one user message for a session.
func (r *Runner) Run(ctx context.Context, sessionID, text string) *RunResult {
	start := time.Now()
	res := &RunResult{SessionID: sessionID}
	log := r.log.Session(sessionID)

	sess, err := r.sessions.Get(sessionID)
	if err != nil {
		log.Warn().Msg("turn for unknown session")
		res.Response = ReplySessionNotFound
		return res
	}

	log.Info().
		Int("historyLen", len(sess.History)).
		Str("phase", string(sess.Phase)).
		Msg("processing message")

	r.record(sessionID, domain.HistoryEntry{Role: domain.RoleUser, Content: text})

	resp, err := r.decide(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Msg("error processing message")
		res.Response = ReplyError
		return res
	}
	res.Model = resp.Model
	res.Usage = resp.Usage

	if len(resp.ToolCalls) == 0 {
		r.record(sessionID, domain.HistoryEntry{Role: domain.RoleAssistant, Content: resp.Content})
		res.Response = resp.Content
		r.finish(log, res, start)
		return res
	}

	res.Tools = r.runTools(ctx, sessionID, resp)
	res.Response = r.afterTools(ctx, sessionID, res)
	r.finish(log, res, start)
	return res
}

func (r *Runner) finish(log *logging.Logger, res *RunResult, start time.Time) {
	res.Duration = time.Since(start)
	if sess, err := r.sessions.Get(res.SessionID); err == nil {
		res.Phase = sess.Phase
	}
	log.Info().
		Str("model", res.Model).
		Int("toolCalls", len(res.Tools)).
		Int("inputTokens", res.Usage.InputTokens).
		Int("outputTokens", res.Usage.OutputTokens).
		Str("phase", string(res.Phase)).
		Dur("duration", res.Duration).
		Msg("response generated")
}

func (r *Runner) record(sessionID string, e domain.HistoryEntry) {
	e.Timestamp = time.Now()
	r.sessions.AppendHistory(sessionID, e)
}

// decide sends system prompt, history and a snapshot of the session to the
// model with every tool available.
func (r *Runner) decide(ctx context.Context, sessionID string) (*llm.CompletionResponse, error) {
	sess, err := r.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	msgs := toMessages(sess.History)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: BuildSnapshot(sess)})

	return r.complete(ctx, llm.CompletionRequest{
		System:     r.system,
		Messages:   msgs,
		Tools:      r.tools.Definitions(),
		ToolChoice: llm.ToolChoiceAuto,
	})
}

func (r *Runner) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	temp := r.cfg.Temperature
	req.Temperature = &temp
	req.MaxTokens = r.cfg.MaxTokens
	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty response from LLM")
	}
	return resp, nil
}

// runTools records the tool request and executes each call in order. A
// failing call never stops its siblings.
func (r *Runner) runTools(ctx context.Context, sessionID string, resp *llm.CompletionResponse) []ToolOutcome {
	calls := make([]domain.ToolCall, len(resp.ToolCalls))
	for i, c := range resp.ToolCalls {
		calls[i] = domain.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Input}
	}
	r.record(sessionID, domain.HistoryEntry{Role: domain.RoleAssistant, Content: resp.Content, ToolCalls: calls})

	r.log.Session(sessionID).Info().Int("toolCalls", len(calls)).Msg("executing tool calls")

	outcomes := make([]ToolOutcome, 0, len(calls))
	for _, call := range calls {
		r.notifier.ToolRunning(sessionID, r.tools.Label(call.Name))

		var result tools.Result
		params, err := tools.ParseParams(call.Arguments)
		if err != nil {
			r.log.Session(sessionID).Warn().Err(err).Str("tool", call.Name).Msg("invalid tool parameters")
			result = tools.Result{Error: invalidParameters, Err: err}
		} else {
			result = r.tools.Execute(ctx, sessionID, call.Name, params)
		}

		r.record(sessionID, domain.HistoryEntry{
			Role:       domain.RoleTool,
			Content:    result.Text(),
			Name:       call.Name,
			ToolCallID: call.ID,
		})
		outcomes = append(outcomes, ToolOutcome{CallID: call.ID, Name: call.Name, Result: result})
	}
	return outcomes
}

// afterTools builds the reply once every call has run. Outside the
// finalize phase the model summarizes; otherwise the tool messages are the
// reply.
func (r *Runner) afterTools(ctx context.Context, sessionID string, res *RunResult) string {
	sess, err := r.sessions.Get(sessionID)
	if err != nil {
		return ReplySessionNotFound
	}

	if sess.Phase != domain.PhaseFinalizeSequence {
		msgs := append(toMessages(sess.History), llm.Message{Role: llm.RoleSystem, Content: followUpPrompt})
		resp, err := r.complete(ctx, llm.CompletionRequest{
			Messages:   msgs,
			ToolChoice: llm.ToolChoiceNone,
		})
		if err != nil {
			r.log.Session(sessionID).Error().Err(err).Msg("follow-up summary failed")
			return ReplyError
		}
		res.Usage.InputTokens += resp.Usage.InputTokens
		res.Usage.OutputTokens += resp.Usage.OutputTokens
		r.record(sessionID, domain.HistoryEntry{Role: domain.RoleAssistant, Content: resp.Content})
		return resp.Content
	}

	allOK := true
	var okMsgs, errMsgs []string
	for _, o := range res.Tools {
		if o.Result.Success {
			okMsgs = append(okMsgs, o.Result.Message)
			continue
		}
		allOK = false
		if o.Result.Error != "" {
			errMsgs = append(errMsgs, o.Result.Error)
		}
	}
	if allOK {
		return strings.Join(okMsgs, " ")
	}

	reply := issuesPrefix + strings.Join(errMsgs, "; ")
	r.record(sessionID, domain.HistoryEntry{Role: domain.RoleTool, Content: reply})
	return reply
}

// toMessages converts history into model messages. Tool turns that answer
// no call become system turns, since providers reject orphan tool results.
func toMessages(history []domain.HistoryEntry) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, h := range history {
		m := llm.Message{Role: h.Role, Content: h.Content, Name: h.Name, ToolCallID: h.ToolCallID}
		if h.Role == domain.RoleTool && h.ToolCallID == "" {
			m.Role = llm.RoleSystem
			m.Name = ""
		}
		for _, c := range h.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, llm.ToolCall{ID: c.ID, Name: c.Name, Input: c.Arguments})
		}
		out = append(out, m)
	}
	return out
}
