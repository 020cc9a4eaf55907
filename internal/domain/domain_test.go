package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUserInfoMerge(t *testing.T) {
	tests := []struct {
		name  string
		start UserInfo
		patch UserInfoPatch
		want  UserInfo
	}{
		{
			name:  "empty patch is a no-op",
			start: UserInfo{Company: "Acme", Role: "Engineer"},
			patch: UserInfoPatch{},
			want:  UserInfo{Company: "Acme", Role: "Engineer"},
		},
		{
			name:  "present fields overwrite",
			start: UserInfo{Company: "Acme", Role: "Engineer", Industry: "Fintech"},
			patch: UserInfoPatch{Role: strPtr("Staff Engineer"), ExperienceLevel: strPtr("Senior")},
			want:  UserInfo{Company: "Acme", Role: "Staff Engineer", Industry: "Fintech", ExperienceLevel: "Senior"},
		},
		{
			name:  "context set when previously empty",
			start: UserInfo{},
			patch: UserInfoPatch{AdditionalContext: strPtr("remote friendly")},
			want:  UserInfo{AdditionalContext: "remote friendly"},
		},
		{
			name:  "context appends",
			start: UserInfo{AdditionalContext: "remote friendly"},
			patch: UserInfoPatch{AdditionalContext: strPtr("equity offered")},
			want:  UserInfo{AdditionalContext: "remote friendly equity offered"},
		},
		{
			name:  "empty context leaves value",
			start: UserInfo{AdditionalContext: "remote friendly"},
			patch: UserInfoPatch{AdditionalContext: strPtr("")},
			want:  UserInfo{AdditionalContext: "remote friendly"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start
			got.Merge(tt.patch)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserInfoMergeAccumulatesContext(t *testing.T) {
	var u UserInfo
	prev := ""
	for i := 0; i < 5; i++ {
		u.Merge(UserInfoPatch{AdditionalContext: strPtr(fmt.Sprintf("note-%d", i))})
		assert.Contains(t, u.AdditionalContext, prev)
		prev = u.AdditionalContext
	}
	assert.Equal(t, "note-0 note-1 note-2 note-3 note-4", u.AdditionalContext)
}

func TestMessageTypeValid(t *testing.T) {
	for _, mt := range MessageTypes {
		assert.True(t, mt.Valid(), mt)
	}
	assert.False(t, MessageType("cold_call").Valid())
	assert.False(t, MessageType("").Valid())
	assert.Len(t, MessageTypes, 8)
}

func TestOutreachMessageJSON(t *testing.T) {
	msg := OutreachMessage{
		ID:      "m1",
		Type:    MessageFollowUp,
		Subject: "Following up",
		Content: "Hi",
		Timing:  "3 days after",
		Order:   2,
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "follow_up", raw["type"])
	assert.Equal(t, "3 days after", raw["timing"])
	assert.Equal(t, float64(2), raw["order"])
}

func TestUserInfoJSONKeys(t *testing.T) {
	data, err := json.Marshal(UserInfo{ExperienceLevel: "Senior", AdditionalContext: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"experience_level":"Senior"`)
	assert.Contains(t, string(data), `"additional_context":"x"`)
}

func TestCloneSequence(t *testing.T) {
	orig := []OutreachMessage{{ID: "a", Order: 1}, {ID: "b", Order: 2}}
	cp := CloneSequence(orig)
	cp[0].Content = "changed"
	assert.Empty(t, orig[0].Content)

	empty := CloneSequence(nil)
	require.NotNil(t, empty)
	assert.Len(t, empty, 0)
}

func TestValidationError(t *testing.T) {
	var err error = &ValidationError{Field: "message_id"}
	assert.Equal(t, "message_id is required", err.Error())

	err = &ValidationError{Field: "edit_instruction", Message: "Edit instruction is required"}
	assert.Equal(t, "Edit instruction is required", err.Error())

	wrapped := fmt.Errorf("edit_sequence: %w", err)
	var ve *ValidationError
	require.True(t, errors.As(wrapped, &ve))
	assert.Equal(t, "edit_instruction", ve.Field)
}

func TestSentinelErrors(t *testing.T) {
	wrapped := fmt.Errorf("lookup abc: %w", ErrSessionNotFound)
	assert.True(t, errors.Is(wrapped, ErrSessionNotFound))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
}
