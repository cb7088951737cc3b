// Package sheet reads user stories from and writes test cases to xlsx
// workbooks.
package sheet

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/chriserin/bddgen/internal/testcase"
)

// TestCasesFile is the phase-one workbook's file name.
const TestCasesFile = "Comprehensive_Test_Cases.xlsx"

// Column headers.
const (
	ColStoryID     = "User Story ID"
	ColTitle       = "Title"
	ColCriteria    = "Acceptance Criteria"
	ColSeq         = "S.No"
	ColDescription = "TestCasesDescription"
	ColSteps       = "StepAction"
	ColResults     = "ExpectedResult"
)

// TestCaseColumns is the exact header row of the test-case workbook.
var TestCaseColumns = []string{ColStoryID, ColTitle, ColSeq, ColDescription, ColSteps, ColResults}

var storyColumns = []string{ColStoryID, ColTitle, ColCriteria}

// MissingColumnsError names required headers absent from a workbook.
type MissingColumnsError struct {
	Path    string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", filepath.Base(e.Path), strings.Join(e.Missing, ", "))
}

// ErrNoInput is returned when no input path was given.
var ErrNoInput = errors.New("no input file specified")

// ValidateInput checks that path names a readable xlsx workbook.
func ValidateInput(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrNoInput
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file %q does not exist", path)
		}
		return fmt.Errorf("checking input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %q is a directory", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
	case ".xls":
		return fmt.Errorf("%s: legacy .xls workbooks are not supported, save it as .xlsx", filepath.Base(path))
	default:
		return fmt.Errorf("%s: expected an .xlsx workbook", filepath.Base(path))
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("opening workbook: %w", err)
	}
	return f.Close()
}

// ReadStories reads user stories from the first sheet of path. Rows without a
// story ID are skipped with a warning.
func ReadStories(path string, logger *slog.Logger) ([]testcase.Story, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rows, err := firstSheetRows(path)
	if err != nil {
		return nil, err
	}
	cols, err := locate(path, rows, storyColumns)
	if err != nil {
		return nil, err
	}

	var stories []testcase.Story
	for i, row := range rows[1:] {
		id := strings.TrimSpace(cell(row, cols[ColStoryID]))
		if id == "" {
			if !blank(row) {
				logger.Warn("skipping row without story ID", "row", i+2)
			}
			continue
		}
		stories = append(stories, testcase.Story{
			ID:                 id,
			Title:              strings.TrimSpace(cell(row, cols[ColTitle])),
			AcceptanceCriteria: strings.TrimSpace(cell(row, cols[ColCriteria])),
		})
	}
	return stories, nil
}

// WriteTestCases writes one row per record to path, replacing any existing
// file.
func WriteTestCases(path string, records []testcase.Record) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	header := make([]interface{}, len(TestCaseColumns))
	for i, c := range TestCaseColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range records {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.StoryID, r.Title, r.Seq, r.Description, r.StepText(), r.ResultText()}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}
	if err := f.SetColStyle(sheet, "A:F", style); err != nil {
		return fmt.Errorf("styling columns: %w", err)
	}
	if err := f.SetColWidth(sheet, "D", "F", 50); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadTestCases reads records previously written by WriteTestCases, or any
// workbook carrying the description, step and result columns.
func ReadTestCases(path string) ([]testcase.Record, error) {
	rows, err := firstSheetRows(path)
	if err != nil {
		return nil, err
	}
	cols, err := locate(path, rows, []string{ColDescription, ColSteps, ColResults})
	if err != nil {
		return nil, err
	}
	optional := indexHeaders(rows[0])

	var records []testcase.Record
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		r := testcase.Record{
			Description: strings.TrimSpace(cell(row, cols[ColDescription])),
			Steps:       lines(cell(row, cols[ColSteps])),
			Results:     lines(cell(row, cols[ColResults])),
			Seq:         i + 1,
		}
		if c, ok := optional[headerKey(ColStoryID)]; ok {
			r.StoryID = strings.TrimSpace(cell(row, c))
		}
		if c, ok := optional[headerKey(ColTitle)]; ok {
			r.Title = strings.TrimSpace(cell(row, c))
		}
		if c, ok := optional[headerKey(ColSeq)]; ok {
			if n, err := strconv.Atoi(strings.TrimSpace(cell(row, c))); err == nil && n > 0 {
				r.Seq = n
			}
		}
		records = append(records, r)
	}
	return records, nil
}

func firstSheetRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sheets[0], err)
	}
	return rows, nil
}

// locate maps each required header to its column index.
func locate(path string, rows [][]string, required []string) (map[string]int, error) {
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	index := indexHeaders(header)

	cols := map[string]int{}
	var missing []string
	for _, name := range required {
		c, ok := index[headerKey(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = c
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Path: path, Missing: missing}
	}
	return cols, nil
}

func indexHeaders(header []string) map[string]int {
	index := map[string]int{}
	for i, h := range header {
		if k := headerKey(h); k != "" {
			if _, dup := index[k]; !dup {
				index[k] = i
			}
		}
	}
	return index
}

// headerKey matches headers case-insensitively with whitespace collapsed.
func headerKey(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
