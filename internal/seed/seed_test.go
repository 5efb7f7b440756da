package seed

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/talgya/mini-garden/internal/garden"
)

func TestLoad(t *testing.T) {
	in := strings.Join([]string{
		"0,0,Carrot",
		"1, 2, sunflower",
		"# a comment",
		"4,4,Empty Soil",
	}, "\n")

	entries, err := Load(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Row: 0, Col: 0, Plant: "Carrot"},
		{Row: 1, Col: 2, Plant: "sunflower"},
		{Row: 4, Col: 4, Plant: "Empty Soil"},
	}, entries)
}

func TestLoadSkipsBadLines(t *testing.T) {
	in := strings.Join([]string{
		"row,col,plant",
		"0,0,Corn",
		"x,1,Corn",
		"2",
		"3,3,",
		"1,1,Pumpkin,extra",
	}, "\n")

	entries, err := Load(strings.NewReader(in))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadLine)
	assert.Len(t, multierr.Errors(err), 3)
	assert.Equal(t, []Entry{
		{Row: 0, Col: 0, Plant: "Corn"},
		{Row: 1, Col: 1, Plant: "Pumpkin"},
	}, entries)
}

func TestLoadEmpty(t *testing.T) {
	entries, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteRoundTripsThroughLoad(t *testing.T) {
	layout := []garden.Planting{
		{Pos: garden.Pos{Row: 0, Col: 1}, Species: garden.Cherry},
		{Pos: garden.Pos{Row: 2, Col: 0}, Species: garden.Empty},
	}
	entries := FromLayout(layout)

	path := filepath.Join(t.TempDir(), "garden_config.csv")
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	s, err := got[0].Resolve()
	require.NoError(t, err)
	assert.Equal(t, garden.Cherry, s)
}
