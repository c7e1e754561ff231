package repo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddeven-league/tournament-system/internal/protocol"
)

func TestStandingsRepoSaveIncrementsVersion(t *testing.T) {
	r := NewStandingsRepo(filepath.Join(t.TempDir(), "standings.json"))

	v1, err := r.Save("league-1", "r1", []protocol.StandingEntry{{PlayerID: "p1", Points: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	v2, err := r.Save("league-1", "r2", []protocol.StandingEntry{{PlayerID: "p1", Points: 6}})
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	doc, err := r.Load()
	require.NoError(t, err)
	assert.Equal(t, "r2", doc.RoundID)
	assert.Equal(t, 2, doc.Version)
}
