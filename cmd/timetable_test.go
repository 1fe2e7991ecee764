package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyplanner/planner/internal/timetable"
)

func runParse(t *testing.T, page string) timetable.ParseResult {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o600))

	var out bytes.Buffer
	timetableParseCmd.SetOut(&out)
	t.Cleanup(func() { timetableParseCmd.SetOut(nil) })
	require.NoError(t, timetableParseCmd.RunE(timetableParseCmd, []string{path}))

	var result timetable.ParseResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	return result
}

func TestTimetableParse_PrintsEvents(t *testing.T) {
	result := runParse(t, `<table><tr><td>13:00 - 14:00 Maths CM101 Smith Lecture (Group: A)</td></tr></table>`)

	assert.True(t, result.Success)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "Maths", result.Events[0].Module)
	assert.Equal(t, "13:00", result.Events[0].Start)
}

func TestTimetableParse_NoEventsIsNotAnError(t *testing.T) {
	result := runParse(t, `<table><tr><td>Free</td></tr></table>`)

	assert.False(t, result.Success)
	assert.Equal(t, timetable.NoEventsMessage, result.Error)
}

func TestTimetableParse_MissingFile(t *testing.T) {
	err := timetableParseCmd.RunE(timetableParseCmd, []string{filepath.Join(t.TempDir(), "absent.html")})
	assert.Error(t, err)
}
