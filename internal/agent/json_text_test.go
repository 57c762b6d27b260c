package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtmcore/orchestrator/internal/core"
)

func TestExtractJSONPassesThroughBareObject(t *testing.T) {
	out, err := extractJSON(`{"facts":["a"]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"facts":["a"]}`, string(out))
}

func TestExtractJSONStripsMarkdownFence(t *testing.T) {
	out, err := extractJSON("```json\n{\"facts\":[\"a\"]}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"facts":["a"]}`, string(out))
}

func TestExtractJSONStripsBareFence(t *testing.T) {
	out, err := extractJSON("```\n{\"facts\":[\"a\"]}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"facts":["a"]}`, string(out))
}

func TestExtractJSONRejectsProse(t *testing.T) {
	_, err := extractJSON("Sure, here is my answer: the ICP is enterprise.")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatProvider))
}
