package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/notify"
	"github.com/soyeahso/helix/internal/sequence"
	"github.com/soyeahso/helix/internal/session"
	"github.com/soyeahso/helix/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type stubEditor struct {
	mu        sync.Mutex
	generated int
}

func (e *stubEditor) Generate(_ context.Context, info domain.UserInfo) []domain.OutreachMessage {
	e.mu.Lock()
	e.generated++
	e.mu.Unlock()
	seq := make([]domain.OutreachMessage, 4)
	for i := range seq {
		seq[i] = domain.OutreachMessage{ID: fmt.Sprintf("m%d", i+1), Type: domain.MessageFollowUp, Subject: info.Company + " note", Content: "body", Order: i + 1}
	}
	return seq
}

func (e *stubEditor) ApplyEdit(_ context.Context, _ domain.UserInfo, current []domain.OutreachMessage, _ sequence.Mode, _, _ string) []domain.OutreachMessage {
	return current
}

type countingPersist struct {
	mu    sync.Mutex
	saves int
}

func (p *countingPersist) UpsertSessionRecord(context.Context, string, domain.UserInfo) error {
	return nil
}

func (p *countingPersist) UpsertSequenceRecords(context.Context, string, domain.UserInfo, []domain.OutreachMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	return nil
}

type harness struct {
	store   *session.Store
	editor  *stubEditor
	persist *countingPersist
	events  *notify.Recorder
	mock    *llm.MockClient
	runner  *Runner
}

func newHarness(t *testing.T, fn func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)) *harness {
	t.Helper()
	log := silentLog()
	h := &harness{
		store:   session.NewStore(nil, log),
		editor:  &stubEditor{},
		persist: &countingPersist{},
		events:  &notify.Recorder{},
		mock:    &llm.MockClient{ProviderName: "mock", CompleteFunc: fn},
	}
	reg := tools.NewSequenceRegistry(tools.Deps{
		Sessions: h.store,
		Editor:   h.editor,
		Notifier: h.events,
		Persist:  h.persist,
		Log:      log,
	})
	h.runner = NewRunner(RunnerConfig{Temperature: 0.7}, h.mock, h.store, reg, h.events, log)
	h.store.Create("s1")
	return h
}

func (h *harness) session(t *testing.T) domain.Session {
	t.Helper()
	sess, err := h.store.Get("s1")
	require.NoError(t, err)
	return sess
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Input: args}
}

func lastUser(req llm.CompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

func TestRunner_TextReply(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: "Which company are you hiring for?", Model: "mock-model", Usage: llm.Usage{InputTokens: 20, OutputTokens: 10}}, nil
	})

	res := h.runner.Run(context.Background(), "s1", "I need to hire someone")
	assert.Equal(t, "Which company are you hiring for?", res.Response)
	assert.Equal(t, 20, res.Usage.InputTokens)
	assert.Empty(t, res.Tools)

	reqs := h.mock.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Contains(t, req.System, "Would you like to finalize and save this sequence?")
	assert.Equal(t, llm.ToolChoiceAuto, req.ToolChoice)
	assert.Len(t, req.Tools, 5)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.7, *req.Temperature)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, "I need to hire someone", req.Messages[0].Content)
	snapshot := req.Messages[1]
	assert.Equal(t, llm.RoleSystem, snapshot.Role)
	assert.Contains(t, snapshot.Content, "- Phase: gathering_info")
	assert.Contains(t, snapshot.Content, "- Company: Not specified")
	assert.Contains(t, snapshot.Content, "- Message sequence count: 0")

	hist := h.session(t).History
	require.Len(t, hist, 2)
	assert.Equal(t, domain.RoleUser, hist[0].Role)
	assert.Equal(t, domain.RoleAssistant, hist[1].Role)
	assert.Equal(t, "Which company are you hiring for?", hist[1].Content)
}

func TestRunner_UnknownSession(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, ReplySessionNotFound, h.runner.HandleTurn(context.Background(), "nope", "hi"))
	assert.Empty(t, h.mock.Requests())
}

func TestRunner_DecisionFailure(t *testing.T) {
	h := newHarness(t, func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, &llm.ProviderError{Provider: "mock", Message: "unavailable", Code: 503}
	})
	before := h.session(t)

	reply := h.runner.HandleTurn(context.Background(), "s1", "generate something")
	assert.Equal(t, ReplyError, reply)

	after := h.session(t)
	assert.Equal(t, before.Sequence, after.Sequence)
	assert.Equal(t, before.UserInfo, after.UserInfo)
	assert.Equal(t, before.Phase, after.Phase)
	require.Len(t, after.History, 1)
	assert.Equal(t, domain.RoleUser, after.History[0].Role)
	assert.Empty(t, h.events.Events())
}

func TestRunner_ToolBranchSummarizes(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if req.ToolChoice == llm.ToolChoiceNone {
			return &llm.CompletionResponse{Content: "I drafted 4 messages. Approve or keep editing?"}, nil
		}
		return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{
			toolCall("call_1", "generate_sequence", `{"company":"Acme","role":"Engineer"}`),
		}}, nil
	})

	res := h.runner.Run(context.Background(), "s1", "Hiring an Engineer at Acme")
	assert.Equal(t, "I drafted 4 messages. Approve or keep editing?", res.Response)
	assert.Equal(t, domain.PhaseGeneratingSequence, res.Phase)
	require.Len(t, res.Tools, 1)
	assert.True(t, res.Tools[0].Result.Success)

	reqs := h.mock.Requests()
	require.Len(t, reqs, 2)
	follow := reqs[1]
	assert.Empty(t, follow.Tools)
	assert.Empty(t, follow.System)
	last := follow.Messages[len(follow.Messages)-1]
	assert.Equal(t, llm.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "Briefly summarize whats been done.")

	// assistant tool request followed by its keyed tool result
	var sawCall, sawResult bool
	for _, m := range follow.Messages {
		if len(m.ToolCalls) == 1 && m.ToolCalls[0].ID == "call_1" {
			sawCall = true
		}
		if m.Role == llm.RoleTool && m.ToolCallID == "call_1" {
			sawResult = true
			assert.Equal(t, "generate_sequence", m.Name)
		}
	}
	assert.True(t, sawCall)
	assert.True(t, sawResult)

	hist := h.session(t).History
	require.Len(t, hist, 4)
	assert.Equal(t, []string{domain.RoleUser, domain.RoleAssistant, domain.RoleTool, domain.RoleAssistant},
		[]string{hist[0].Role, hist[1].Role, hist[2].Role, hist[3].Role})
	assert.Equal(t, `{"company":"Acme","role":"Engineer"}`, hist[1].ToolCalls[0].Arguments)

	progress := h.events.Kind(notify.KindTool)
	require.Len(t, progress, 1)
	assert.Equal(t, "Generating a message sequence .....", progress[0].Text)
	assert.Len(t, h.events.Kind(notify.KindSequence), 1)
}

func TestRunner_MalformedArgumentsDoNotStopSiblings(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if req.ToolChoice == llm.ToolChoiceNone {
			return &llm.CompletionResponse{Content: "done"}, nil
		}
		return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{
			toolCall("bad", "edit_sequence", `{"edit_instruction": "shorter"`),
			toolCall("good", "generate_sequence", `{"company":"Acme","role":"Engineer"}`),
		}}, nil
	})

	res := h.runner.Run(context.Background(), "s1", "do two things")
	require.Len(t, res.Tools, 2)
	assert.False(t, res.Tools[0].Result.Success)
	assert.Equal(t, "Invalid tool parameters", res.Tools[0].Result.Error)
	assert.True(t, res.Tools[1].Result.Success)
	assert.Equal(t, 1, h.editor.generated)

	hist := h.session(t).History
	var bad *domain.HistoryEntry
	for i := range hist {
		if hist[i].ToolCallID == "bad" {
			bad = &hist[i]
		}
	}
	require.NotNil(t, bad)
	assert.Equal(t, domain.RoleTool, bad.Role)
	assert.Equal(t, "Invalid tool parameters", bad.Content)

	assert.Len(t, h.events.Kind(notify.KindTool), 2, "progress is reported before parsing")
}

func TestRunner_FinalizeNeedsExplicitConfirmation(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if req.ToolChoice == llm.ToolChoiceNone {
			return &llm.CompletionResponse{Content: "Here is your sequence. Approve?"}, nil
		}
		text := strings.ToLower(lastUser(req))
		switch {
		case strings.Contains(text, "finalize"):
			return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{toolCall("f1", "finalize_sequence", `{}`)}}, nil
		case strings.Contains(text, "looks good"):
			return &llm.CompletionResponse{Content: "Would you like to finalize and save this sequence?"}, nil
		default:
			return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{toolCall("g1", "generate_sequence", `{"company":"Acme","role":"Engineer"}`)}}, nil
		}
	})
	ctx := context.Background()

	h.runner.HandleTurn(ctx, "s1", "Engineer at Acme please")
	reply := h.runner.HandleTurn(ctx, "s1", "looks good")
	assert.Equal(t, "Would you like to finalize and save this sequence?", reply)
	assert.Equal(t, 0, h.persist.saves)
	assert.Equal(t, domain.PhaseGeneratingSequence, h.session(t).Phase)

	calls := len(h.mock.Requests())
	reply = h.runner.HandleTurn(ctx, "s1", "yes please finalize")
	assert.Equal(t, "Saved the sequence.", reply)
	assert.Equal(t, 1, h.persist.saves)
	assert.Equal(t, domain.PhaseFinalizeSequence, h.session(t).Phase)
	assert.Len(t, h.mock.Requests(), calls+1, "finalize skips the summary call")

	var finalizeCalls int
	for _, e := range h.session(t).History {
		for _, c := range e.ToolCalls {
			if c.Name == "finalize_sequence" {
				finalizeCalls++
			}
		}
	}
	assert.Equal(t, 1, finalizeCalls)
}

func TestRunner_FinalizeReportsIssues(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{
			toolCall("f1", "finalize_sequence", `{}`),
			toolCall("d1", "delete_sequence", `{"message_id":"ghost"}`),
			toolCall("x1", "send_fax", `{}`),
		}}, nil
	})

	reply := h.runner.HandleTurn(context.Background(), "s1", "finalize and delete ghost")
	assert.Equal(t, "I encountered some issues: Message not found; Unknown tool: send_fax", reply)

	hist := h.session(t).History
	last := hist[len(hist)-1]
	assert.Equal(t, domain.RoleTool, last.Role)
	assert.Empty(t, last.ToolCallID)
	assert.Equal(t, reply, last.Content)

	msgs := toMessages(hist)
	assert.Equal(t, llm.RoleSystem, msgs[len(msgs)-1].Role)
	assert.Len(t, h.events.Kind(notify.KindTool), 3)
	assert.Equal(t, "Executing tool...", h.events.Kind(notify.KindTool)[2].Text)
}

func TestRunner_FinalizeJoinsSuccessMessages(t *testing.T) {
	h := newHarness(t, func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{
			toolCall("f1", "finalize_sequence", `{}`),
			toolCall("f2", "finalize_sequence", ``),
		}}, nil
	})
	reply := h.runner.HandleTurn(context.Background(), "s1", "save it, yes")
	assert.Equal(t, "Saved the sequence. Saved the sequence.", reply)
	assert.Equal(t, 2, h.persist.saves)
}

func TestRunner_FollowUpFailure(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if req.ToolChoice == llm.ToolChoiceNone {
			return nil, errors.New("model went away")
		}
		return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{toolCall("g1", "generate_sequence", `{"company":"Acme","role":"Engineer"}`)}}, nil
	})

	assert.Equal(t, ReplyError, h.runner.HandleTurn(context.Background(), "s1", "go"))
	assert.Len(t, h.session(t).Sequence, 4, "tool effects survive a failed summary")
}

func TestRunner_SnapshotListsSequence(t *testing.T) {
	sess := domain.Session{
		Phase:    domain.PhaseEditingSequence,
		UserInfo: domain.UserInfo{Company: "Acme", Role: "Engineer"},
		Sequence: []domain.OutreachMessage{{ID: "m1", Subject: "Hello", Content: "Hi there", Order: 1}},
	}
	snap := BuildSnapshot(sess)
	assert.Contains(t, snap, "- Phase: editing_sequence")
	assert.Contains(t, snap, "- Company: Acme")
	assert.Contains(t, snap, "- Role: Engineer")
	assert.Contains(t, snap, "- Message sequence count: 1")
	assert.Contains(t, snap, "Current message sequence:\n1. Hello (ID: m1) body: Hi there")

	assert.NotContains(t, BuildSnapshot(domain.Session{}), "Current message sequence")
}

func TestBuildSystemPrompt(t *testing.T) {
	assert.Equal(t, systemPrompt, BuildSystemPrompt(""))
	assert.True(t, strings.HasSuffix(BuildSystemPrompt("Sign off as Dana."), "\n\nSign off as Dana."))
}
