package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	for input, want := range map[string]EntityType{
		"project":  EntityProject,
		"FEATURE":  EntityFeature,
		" task ":   EntityTask,
		"Template": EntityTemplate,
	} {
		got, err := ParseEntityType(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got)
	}

	_, err := ParseEntityType("epic")
	assert.Error(t, err)
}

func TestParsePriority(t *testing.T) {
	got, err := ParsePriority("high")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, got)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)

	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, "high", PriorityHigh.Lower())
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		input string
		want  Status
	}{
		{"In Progress", "in-progress"},
		{"in_progress", "in-progress"},
		{"  COMPLETED  ", "completed"},
		{"on  hold", "on-hold"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStatus(tt.input), "input %q", tt.input)
	}
}

func TestParseDependencyType(t *testing.T) {
	got, err := ParseDependencyType("blocks")
	require.NoError(t, err)
	assert.Equal(t, DepBlocks, got)

	got, err = ParseDependencyType("IS_BLOCKED_BY")
	require.NoError(t, err)
	assert.Equal(t, DepIsBlockedBy, got)

	_, err = ParseDependencyType("depends")
	assert.Error(t, err)
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Urgent ", "backend", "URGENT", "", "Backend", "db"})
	assert.Equal(t, []string{"Urgent", "backend", "db"}, got)

	assert.Empty(t, NormalizeTags(nil))
	assert.Empty(t, NormalizeTags([]string{"", "  "}))
}

func TestHasTag(t *testing.T) {
	tags := []string{"Urgent", "backend"}
	assert.True(t, HasTag(tags, "urgent"))
	assert.True(t, HasTag(tags, "BACKEND"))
	assert.False(t, HasTag(tags, "frontend"))
	assert.False(t, HasTag(nil, "anything"))
}

func TestIDs(t *testing.T) {
	id := NewID()
	require.NoError(t, ValidateID(id))
	assert.Error(t, ValidateID("not-a-uuid"))
	assert.NotEqual(t, id, NewID())
}
