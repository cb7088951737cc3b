package sheet

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/chriserin/bddgen/internal/testcase"
)

func writeWorkbook(t *testing.T, name string, rows [][]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f := excelize.NewFile()
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", ref, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadStories(t *testing.T) {
	path := writeWorkbook(t, "stories.xlsx", [][]interface{}{
		{" user story id ", "TITLE", "Acceptance   Criteria", "Notes"},
		{"US-1", "Login", "User can log in\nUser sees dashboard", "x"},
		{"", "Orphan", "no id"},
		{"US-2", "Search"},
	})

	stories, err := ReadStories(path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []testcase.Story{
		{ID: "US-1", Title: "Login", AcceptanceCriteria: "User can log in\nUser sees dashboard"},
		{ID: "US-2", Title: "Search"},
	}, stories)
}

func TestReadStories_MissingColumns(t *testing.T) {
	path := writeWorkbook(t, "stories.xlsx", [][]interface{}{
		{"ID", "Title"},
		{"US-1", "Login"},
	})

	_, err := ReadStories(path, quietLogger())
	var mce *MissingColumnsError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, []string{"User Story ID", "Acceptance Criteria"}, mce.Missing)
	assert.Contains(t, err.Error(), "User Story ID, Acceptance Criteria")
}

func TestReadStories_EmptySheet(t *testing.T) {
	path := writeWorkbook(t, "empty.xlsx", nil)
	_, err := ReadStories(path, quietLogger())
	var mce *MissingColumnsError
	require.ErrorAs(t, err, &mce)
	assert.Len(t, mce.Missing, 3)
}

func TestWriteAndReadTestCases(t *testing.T) {
	records := []testcase.Record{
		{StoryID: "US-1", Title: "Login", Seq: 1, Description: "Valid Login",
			Steps: []string{"Navigate to login page", "Click login"}, Results: []string{"Dashboard shown"}},
		{StoryID: "US-1", Title: "Login", Seq: 2, Description: "Invalid Login Credentials",
			Steps: []string{"Enter bad password"}, Results: []string{"Error shown", "Retry allowed"}},
	}
	path := filepath.Join(t.TempDir(), "out", TestCasesFile)
	require.NoError(t, WriteTestCases(path, records))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Len(t, rows, 3)
	assert.Equal(t, TestCaseColumns, rows[0])
	assert.Equal(t, "Navigate to login page\nClick login", rows[1][4])

	got, err := ReadTestCases(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestReadTestCases_OnlyRequiredColumns(t *testing.T) {
	path := writeWorkbook(t, "cases.xlsx", [][]interface{}{
		{"TestCasesDescription", "StepAction", "ExpectedResult"},
		{"Logout", "Click logout\n\n", "Login page shown"},
		{},
		{"Timeout", "", ""},
	})
	got, err := ReadTestCases(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"Click logout"}, got[0].Steps)
	assert.Equal(t, 1, got[0].Seq)
	assert.Equal(t, "Timeout", got[1].Description)
	assert.Empty(t, got[1].Steps)
}

func TestReadTestCases_MissingColumns(t *testing.T) {
	path := writeWorkbook(t, "cases.xlsx", [][]interface{}{{"TestCasesDescription"}})
	_, err := ReadTestCases(path)
	var mce *MissingColumnsError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, []string{"StepAction", "ExpectedResult"}, mce.Missing)
}

func TestValidateInput(t *testing.T) {
	assert.ErrorIs(t, ValidateInput(" "), ErrNoInput)

	dir := t.TempDir()
	err := ValidateInput(filepath.Join(dir, "missing.xlsx"))
	assert.ErrorContains(t, err, "does not exist")

	legacy := filepath.Join(dir, "old.xls")
	require.NoError(t, os.WriteFile(legacy, []byte("x"), 0o644))
	assert.ErrorContains(t, ValidateInput(legacy), ".xlsx")

	csv := filepath.Join(dir, "stories.csv")
	require.NoError(t, os.WriteFile(csv, []byte("a,b"), 0o644))
	assert.ErrorContains(t, ValidateInput(csv), "expected an .xlsx workbook")

	corrupt := filepath.Join(dir, "bad.xlsx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0o644))
	assert.ErrorContains(t, ValidateInput(corrupt), "opening workbook")

	good := writeWorkbook(t, "ok.xlsx", [][]interface{}{{"User Story ID", "Title", "Acceptance Criteria"}})
	assert.NoError(t, ValidateInput(good))
}
