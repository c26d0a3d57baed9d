package clientpipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMetadata_StripsTextField(t *testing.T) {
	out, err := sanitizeMetadata(map[string]any{
		"text":     "sensitive sentence",
		"category": "news",
	}, true)
	require.NoError(t, err)
	assert.NotContains(t, out, "text")
	assert.Equal(t, "news", out["category"])
}

func TestSanitizeMetadata_LeavesTextFieldWhenStripDisabled(t *testing.T) {
	out, err := sanitizeMetadata(map[string]any{"text": "kept"}, false)
	require.NoError(t, err)
	assert.Equal(t, "kept", out["text"])
}

func TestSanitizeMetadata_NilMetadataIsFine(t *testing.T) {
	out, err := sanitizeMetadata(nil, true)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestSanitizeMetadata_DoesNotMutateCaller(t *testing.T) {
	original := map[string]any{"text": "sensitive", "category": "news"}
	_, err := sanitizeMetadata(original, true)
	require.NoError(t, err)
	assert.Equal(t, "sensitive", original["text"], "sanitizeMetadata must not mutate the caller's map")
}
