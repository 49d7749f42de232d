package knowledge

import "time"

// RemoteVersion is the engine's view of the remote store's current row for a
// lineage, as needed for conflict detection.
type RemoteVersion struct {
	ID        string
	Version   int
	Content   string
	UpdatedAt time.Time
}

// Conflict describes a detected divergence between the local and remote
// current versions of the same field. Conflicts are advisory: resolution
// always happens by layering a new local version, never by rewriting history.
type Conflict struct {
	UserID          string        `json:"userId"`
	FieldIdentifier string        `json:"fieldIdentifier"`
	Category        Category      `json:"category"`
	LocalVersion    int           `json:"localVersion"`
	RemoteVersion   int           `json:"remoteVersion"`
	LocalContent    string        `json:"localContent"`
	RemoteContent   string        `json:"remoteContent"`
	LocalUpdatedAt  time.Time     `json:"localUpdatedAt"`
	RemoteUpdatedAt time.Time     `json:"remoteUpdatedAt"`
	DetectedAt      time.Time     `json:"detectedAt"`

	// SuggestedResolution is the content the active conflict policy would
	// keep. Empty when the policy defers to manual resolution.
	SuggestedResolution string `json:"suggestedResolution,omitempty"`
}
