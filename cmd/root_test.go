package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"ingest", "plan"},
		{"ingest", "bags"},
		{"diff"},
		{"periods"},
		{"versions"},
		{"delete-period"},
		{"validate"},
		{"generate"},
		{"approve"},
		{"drafts"},
		{"preview"},
		{"send"},
		{"send-draft"},
		{"stats"},
		{"logs"},
		{"contacts", "import"},
	} {
		c, rest, err := rootCmd.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Empty(t, rest)
		assert.Equal(t, path[len(path)-1], c.Name())
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
