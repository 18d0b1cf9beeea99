package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollectionName(t *testing.T) {
	valid := []string{"documents", "doc_chunks_v2", "a", strings.Repeat("x", 64)}
	for _, name := range valid {
		assert.NoError(t, ValidateCollectionName(name), name)
	}

	invalid := []string{
		"",
		"Documents",
		"doc-chunks",
		"doc chunks",
		"../etc/passwd",
		"doc:chunks",
		strings.Repeat("x", 65),
	}
	for _, name := range invalid {
		err := ValidateCollectionName(name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrInvalidCollectionName, name)
	}
}
