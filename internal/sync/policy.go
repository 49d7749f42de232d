package sync

import (
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/domain/knowledge"
	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/infrastructure/remote"
)

// Conflict policy selectors recognized in configuration.
const (
	PolicyLocalFirst  = "local-first"
	PolicyRemoteFirst = "remote-first"
	PolicyManual      = "manual"
)

// ConflictPolicy suggests which content survives a detected divergence.
// The suggestion is advisory: callers still resolve explicitly through the
// repository, which layers a new version.
type ConflictPolicy interface {
	// Resolve returns the suggested winning content, or "" to defer the
	// decision to the user.
	Resolve(local knowledge.Entry, rem remote.Record) string
}

// LocalFirstPolicy prefers local content when it is both more recent and at
// least as long as the remote content; otherwise the remote wins. Length is
// a crude proxy for "more complete" and is a default, not a correctness
// guarantee.
type LocalFirstPolicy struct{}

func (LocalFirstPolicy) Resolve(local knowledge.Entry, rem remote.Record) string {
	if local.UpdatedAt.After(rem.UpdatedAt) && len(local.Content) >= len(rem.Content) {
		return local.Content
	}
	return rem.Content
}

// RemoteFirstPolicy always suggests the remote content.
type RemoteFirstPolicy struct{}

func (RemoteFirstPolicy) Resolve(_ knowledge.Entry, rem remote.Record) string {
	return rem.Content
}

// ManualPolicy never suggests a resolution.
type ManualPolicy struct{}

func (ManualPolicy) Resolve(knowledge.Entry, remote.Record) string {
	return ""
}

// PolicyFor maps a configuration selector to its policy.
func PolicyFor(name string) (ConflictPolicy, error) {
	switch name {
	case PolicyLocalFirst, "":
		return LocalFirstPolicy{}, nil
	case PolicyRemoteFirst:
		return RemoteFirstPolicy{}, nil
	case PolicyManual:
		return ManualPolicy{}, nil
	}
	return nil, appErrors.Config(appErrors.CodeConfigInvalid, "unknown conflict policy").
		WithDetails(name).Build()
}
