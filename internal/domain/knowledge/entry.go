// Package knowledge defines the versioned entry model shared by the entry
// store, the knowledge repository and the sync engine.
package knowledge

import (
	"encoding/json"
	"time"

	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
)

// Category classifies an entry. The set is closed; anything else is rejected
// before it reaches storage.
type Category string

const (
	CategoryDiagnostic Category = "diagnostic"
	CategoryAvatar     Category = "avatar"
	CategoryInsights   Category = "insights"
	CategoryCanvas     Category = "canvas"
	CategoryCopy       Category = "copy"
)

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryDiagnostic, CategoryAvatar, CategoryInsights, CategoryCanvas, CategoryCopy:
		return true
	}
	return false
}

// Metadata carries optional provenance attached to an entry version.
type Metadata struct {
	SessionID       string  `json:"sessionId,omitempty"`
	DeviceID        string  `json:"deviceId,omitempty"`
	GenerationModel string  `json:"generationModel,omitempty"`
	ParentEntryID   string  `json:"parentEntryId,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	Source          string  `json:"source,omitempty"`
}

// IsZero reports whether no provenance was supplied.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// Entry is one versioned fact about one user field. Entries are append-only:
// after creation only IsCurrentVersion, LocalChanges and LastSyncedAt flip.
// The (UserID, FieldIdentifier) pair identifies a lineage; exactly one entry
// per lineage has IsCurrentVersion set.
type Entry struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	FieldIdentifier string          `json:"fieldIdentifier"`
	Category        Category        `json:"category"`
	Subcategory     string          `json:"subcategory,omitempty"`
	Content         string          `json:"content"`
	StructuredData  json.RawMessage `json:"structuredData,omitempty"`
	Metadata        Metadata        `json:"metadata,omitempty"`

	// Version is contiguous and increasing within a lineage, starting at 1.
	Version          int  `json:"version"`
	IsCurrentVersion bool `json:"isCurrentVersion"`

	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`

	// LocalChanges stays true until the remote store confirms the write.
	LocalChanges bool `json:"localChanges"`
}

// LineageKey returns the (user, field) identity of the entry's lineage.
func (e *Entry) LineageKey() string {
	return LineageKey(e.UserID, e.FieldIdentifier)
}

// LineageKey builds the composite lineage identity for a user field.
func LineageKey(userID, fieldIdentifier string) string {
	return userID + "/" + fieldIdentifier
}

// Validate checks the structural invariants an entry must satisfy before it
// is persisted.
func (e *Entry) Validate() error {
	switch {
	case e.ID == "":
		return appErrors.Validation(appErrors.CodeInvalidEntry, "entry id is required").Build()
	case e.UserID == "":
		return appErrors.Validation(appErrors.CodeInvalidEntry, "user id is required").Build()
	case e.FieldIdentifier == "":
		return appErrors.Validation(appErrors.CodeInvalidEntry, "field identifier is required").Build()
	case !e.Category.Valid():
		return appErrors.Validation(appErrors.CodeInvalidEntry, "unknown category").
			WithDetails(string(e.Category)).Build()
	case e.Version < 1:
		return appErrors.Validation(appErrors.CodeInvalidEntry, "version must be positive").Build()
	}
	return nil
}

// Draft is a caller-supplied partial entry used by the metadata-carrying
// write path to attach richer provenance to a new version.
type Draft struct {
	Subcategory    string
	StructuredData json.RawMessage
	Metadata       Metadata
}
