package answer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGeminiRequiresAPIKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "gemini-2.0-flash")
	require.Error(t, err)
	require.Contains(t, err.Error(), "API key")
}
