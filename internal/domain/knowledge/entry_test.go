package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
)

func validEntry() *Entry {
	return &Entry{
		ID:               "e-1",
		UserID:           "user-1",
		FieldIdentifier:  "avatar_name",
		Category:         CategoryAvatar,
		Content:          "John Smith",
		Version:          1,
		IsCurrentVersion: true,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
		LocalChanges:     true,
	}
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range []Category{CategoryDiagnostic, CategoryAvatar, CategoryInsights, CategoryCanvas, CategoryCopy} {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, Category("branding").Valid())
	assert.False(t, Category("").Valid())
}

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Entry)
	}{
		{"missing id", func(e *Entry) { e.ID = "" }},
		{"missing user", func(e *Entry) { e.UserID = "" }},
		{"missing field", func(e *Entry) { e.FieldIdentifier = "" }},
		{"bad category", func(e *Entry) { e.Category = "unknown" }},
		{"zero version", func(e *Entry) { e.Version = 0 }},
		{"negative version", func(e *Entry) { e.Version = -3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(e)
			err := e.Validate()
			require.Error(t, err)
			assert.Equal(t, appErrors.CodeInvalidEntry, appErrors.CodeOf(err))
		})
	}

	require.NoError(t, validEntry().Validate())
}

func TestLineageKey(t *testing.T) {
	e := validEntry()
	assert.Equal(t, "user-1/avatar_name", e.LineageKey())
	assert.Equal(t, e.LineageKey(), LineageKey("user-1", "avatar_name"))
}

func TestMetadata_IsZero(t *testing.T) {
	assert.True(t, Metadata{}.IsZero())
	assert.False(t, Metadata{Source: "chat"}.IsZero())
}
