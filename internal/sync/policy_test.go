package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/domain/knowledge"
	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/infrastructure/remote"
)

func TestLocalFirstPolicy(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	tests := []struct {
		name     string
		local    knowledge.Entry
		remote   remote.Record
		expected string
	}{
		{
			name:     "local newer and at least as long wins",
			local:    knowledge.Entry{Content: "A", UpdatedAt: t2},
			remote:   remote.Record{Content: "B", UpdatedAt: t1},
			expected: "A",
		},
		{
			name:     "local newer but shorter loses",
			local:    knowledge.Entry{Content: "A", UpdatedAt: t2},
			remote:   remote.Record{Content: "BB", UpdatedAt: t1},
			expected: "BB",
		},
		{
			name:     "local older loses even when longer",
			local:    knowledge.Entry{Content: "AAAA", UpdatedAt: t1},
			remote:   remote.Record{Content: "B", UpdatedAt: t2},
			expected: "B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LocalFirstPolicy{}.Resolve(tt.local, tt.remote))
		})
	}
}

func TestRemoteFirstAndManualPolicies(t *testing.T) {
	local := knowledge.Entry{Content: "local", UpdatedAt: time.Now()}
	rem := remote.Record{Content: "remote"}

	assert.Equal(t, "remote", RemoteFirstPolicy{}.Resolve(local, rem))
	assert.Equal(t, "", ManualPolicy{}.Resolve(local, rem))
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor(PolicyLocalFirst)
	require.NoError(t, err)
	assert.IsType(t, LocalFirstPolicy{}, p)

	p, err = PolicyFor("")
	require.NoError(t, err)
	assert.IsType(t, LocalFirstPolicy{}, p)

	p, err = PolicyFor(PolicyRemoteFirst)
	require.NoError(t, err)
	assert.IsType(t, RemoteFirstPolicy{}, p)

	p, err = PolicyFor(PolicyManual)
	require.NoError(t, err)
	assert.IsType(t, ManualPolicy{}, p)

	_, err = PolicyFor("merge")
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeConfigInvalid, appErrors.CodeOf(err))
}
