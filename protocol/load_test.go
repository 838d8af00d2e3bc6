package protocol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/persontime/event"
	"github.com/roach88/persontime/timeline"
)

func writeCUE(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "statin.cue", `
package protocol

protocol: {
	name: "statin_failure"

	exposure: {
		generate:   "statin"
		reference:  0
		grace:      30
		washout:    14
		projection: "currentformer"
	}
}
`)

	p, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "statin_failure", p.Name)
	require.NotNil(t, p.Exposure)
	assert.Equal(t, "statin", p.Exposure.Generate)
	assert.Equal(t, timeline.Int(0), p.Exposure.Reference)
	assert.Equal(t, int64(30), p.Exposure.Grace)
	assert.Nil(t, p.Merge)
	assert.Nil(t, p.Event)
}

func TestLoad_UnifiesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "study.cue", `
package protocol

protocol: {
	name: "statin_failure"
	exposure: {reference: 0, grace: 30}
}
`)
	writeCUE(t, dir, "outcomes.cue", `
package protocol

protocol: event: {
	semantics:   "single"
	time_column: "followup"
	time_unit:   "years"
}
`)

	p, err := Load(dir)
	require.NoError(t, err)

	require.NotNil(t, p.Exposure)
	require.NotNil(t, p.Event)
	assert.Equal(t, event.Single, p.Event.Semantics)
	assert.Equal(t, "followup", p.Event.TimeColumn)
	assert.Equal(t, timeline.UnitYears, p.Event.TimeUnit)
}

func TestLoad_CompileErrorsSurface(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `
package protocol

protocol: {
	name: "bad"
	exposure: {reference: 0, unit: "fortnights"}
}
`)

	_, err := Load(dir)
	findPath(t, err, ErrEnum, "protocol.exposure.unit")
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"))
	e := findPath(t, err, ErrNotFound, "protocol")
	assert.Contains(t, e.Message, "not found")
}

func TestLoad_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "file.cue", "protocol: {}")
	_, err := Load(filepath.Join(dir, "file.cue"))
	findPath(t, err, ErrNotFound, "protocol")
}

func TestLoad_EmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	e := findPath(t, err, ErrNoFiles, "protocol")
	assert.Contains(t, e.Message, "no CUE files")
}
