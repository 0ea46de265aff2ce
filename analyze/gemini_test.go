package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("  ```json\n{\"a\":1}\n```  "))
}

func TestParseBrief_Nested(t *testing.T) {
	brief := ParseBrief(`{"suno_request":{"title":"Night Drive","style":"lo-fi","prompt":"mellow beats","customMode":true,"instrumental":true}}`)

	require.Empty(t, brief.ParseErr)
	assert.Equal(t, "Night Drive", brief.Suno["title"])
	assert.Equal(t, "lo-fi", brief.Suno["style"])
	assert.Equal(t, true, brief.Suno["instrumental"])
	assert.Contains(t, brief.Analysis, "suno_request")
}

func TestParseBrief_FlatResponseGetsWrapped(t *testing.T) {
	brief := ParseBrief(`{"title":"Sunrise","style":"cinematic","prompt":"soaring strings","customMode":true,"instrumental":false}`)

	require.Empty(t, brief.ParseErr)
	assert.Equal(t, "Sunrise", brief.Suno["title"])
	assert.Contains(t, brief.Analysis, "suno_request")
}

func TestParseBrief_Fenced(t *testing.T) {
	brief := ParseBrief("```json\n{\"suno_request\":{\"title\":\"Fenced\"}}\n```")

	require.Empty(t, brief.ParseErr)
	assert.Equal(t, "Fenced", brief.Suno["title"])
}

func TestParseBrief_InvalidJSON(t *testing.T) {
	brief := ParseBrief("sorry, I cannot produce JSON today")

	assert.Equal(t, "JSON parse error", brief.ParseErr)
	assert.NotNil(t, brief.Suno)
	assert.Contains(t, brief.Analysis, "suno_request")
}
