package testcase

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriserin/bddgen/internal/model"
)

const wellFormed = `Here are the test cases.

Test Cases:

S.No: 1
TestCasesDescription: Valid Login and profile update
StepAction:
1. Navigate to application login page
2. Enter valid username in username field
3. Click login button
ExpectedResult:
1. Login page loads successfully.
2. Username field accepts valid input
3. Login successful and redirected to dashboard.

S.No: 2
TestCasesDescription: Invalid Login Credentials
StepAction:
Navigate to application login page
Enter invalid username, invalid password
ExpectedResult:
Error message displayed for invalid credentials
S.No: 3
TestCasesDescription: Empty password
StepAction:
Leave password blank
ExpectedResult:
Validation message is shown

Example (for clarity, do not include)
S.No: 99
TestCasesDescription: ignored
StepAction: ignored
ExpectedResult: ignored
`

func TestParse_ErrorResponseYieldsFailSoftRecord(t *testing.T) {
	kinds := []model.ErrorKind{model.KindUnavailable, model.KindFormatIssue, model.KindCallFailed}
	for _, k := range kinds {
		recs := Parse(model.Failure(k, errors.New("boom")), "US-1", "Login")
		require.Len(t, recs, 1, k.String())
		assert.Equal(t, FailSoft("US-1", "Login"), recs[0])
		assert.Equal(t, "Test case generation failed for Login", recs[0].Description)
	}
}

func TestParse_StrictBlocks(t *testing.T) {
	recs, strategy := ParseWithStrategy(model.Text(wellFormed), "US-1", "Login")
	assert.Equal(t, "strict", strategy)
	require.Len(t, recs, 3)

	assert.Equal(t, 1, recs[0].Seq)
	assert.Equal(t, "US-1", recs[0].StoryID)
	assert.Equal(t, "Login", recs[0].Title)
	assert.Equal(t, "Valid Login and profile update", recs[0].Description)
	assert.Equal(t, []string{
		"Navigate to application login page",
		"Enter valid username in username field",
		"Click login button",
	}, recs[0].Steps)
	assert.Equal(t, "Login successful and redirected to dashboard", recs[0].Results[2])

	assert.Equal(t, "Invalid Login Credentials", recs[1].Description)
	assert.Equal(t, "Enter invalid username invalid password", recs[1].Steps[1])

	// adjacent blocks without a blank line stay separate
	assert.Equal(t, []string{"Error message displayed for invalid credentials"}, recs[1].Results)
	assert.Equal(t, "Empty password", recs[2].Description)
	assert.Equal(t, 3, recs[2].Seq)
}

func TestParse_SequenceNumbersPositiveAndDistinct(t *testing.T) {
	text := "S.No: 2\nTestCasesDescription: A\nStepAction:\nx\nExpectedResult:\ny\n" +
		"S.No: 2\nTestCasesDescription: B\nStepAction:\nx\nExpectedResult:\ny\n" +
		"S.No: 0\nTestCasesDescription: C\nStepAction:\nx\nExpectedResult:\ny\n"
	recs := Parse(model.Text(text), "US-1", "T")
	require.Len(t, recs, 3)
	seen := map[int]bool{}
	for _, r := range recs {
		assert.Positive(t, r.Seq)
		assert.False(t, seen[r.Seq], "duplicate seq %d", r.Seq)
		seen[r.Seq] = true
	}
	assert.Equal(t, 2, recs[0].Seq)
}

func TestParse_NonNumericMarkerSkipsOnlyThatBlock(t *testing.T) {
	text := "S.No: one\nTestCasesDescription: Bad\nStepAction:\nx\nExpectedResult:\ny\n" +
		"S.No: 2\nTestCasesDescription: Good\nStepAction:\nx\nExpectedResult:\ny\n"
	recs := Parse(model.Text(text), "US-1", "T")
	require.Len(t, recs, 1)
	assert.Equal(t, "Good", recs[0].Description)
	assert.Equal(t, 2, recs[0].Seq)
}

func TestParse_BlockSplitFallbackUsesDefaults(t *testing.T) {
	text := `**S.No:** 1
**Test Case Description:** Search by keyword
**Steps:**
- Type a keyword
- Press enter

**S.No:** 2
**Description:** Search with no results
**Expected Results:**
- Empty state is displayed
`
	recs, strategy := ParseWithStrategy(model.Text(text), "US-7", "Search")
	assert.Equal(t, "block-split", strategy)
	require.Len(t, recs, 2)

	assert.Equal(t, "Search by keyword", recs[0].Description)
	assert.Equal(t, []string{"Type a keyword", "Press enter"}, recs[0].Steps)
	assert.Equal(t, []string{"Expected results not specified"}, recs[0].Results)

	assert.Equal(t, "Search with no results", recs[1].Description)
	assert.Equal(t, []string{"No step actions specified"}, recs[1].Steps)
	assert.Equal(t, []string{"Empty state is displayed"}, recs[1].Results)
}

func TestParse_BlockSplitMissingDescription(t *testing.T) {
	text := "S.No: 1\nStepAction:\nOpen the page\n"
	recs, strategy := ParseWithStrategy(model.Text(text), "US-2", "Checkout")
	assert.Equal(t, "block-split", strategy)
	require.Len(t, recs, 1)
	assert.Equal(t, "Test case 1 for Checkout", recs[0].Description)
	assert.Equal(t, []string{"Open the page"}, recs[0].Steps)
}

func TestParse_LabelsOnOneLine(t *testing.T) {
	text := "S.No: 1 TestCasesDescription: Add to cart StepAction: Click add ExpectedResult: Cart count is 1\n" +
		"S.No: 2 TestCasesDescription: Remove from cart StepAction: Click remove ExpectedResult: Cart is empty\n"
	recs, strategy := ParseWithStrategy(model.Text(text), "US-4", "Cart")
	assert.Equal(t, "block-split", strategy)
	require.Len(t, recs, 2)

	assert.Equal(t, "Add to cart", recs[0].Description)
	assert.Equal(t, []string{"Click add"}, recs[0].Steps)
	assert.Equal(t, []string{"Cart count is 1"}, recs[0].Results)
	assert.Equal(t, 2, recs[1].Seq)
	assert.Equal(t, "Remove from cart", recs[1].Description)
}

func TestParse_LabeledWithoutMarkers(t *testing.T) {
	text := "TestCasesDescription: Logout\nStepAction:\nClick logout\nExpectedResult:\nLogin page shown\n"
	recs, strategy := ParseWithStrategy(model.Text(text), "US-3", "Session")
	assert.Equal(t, "block-split", strategy)
	require.Len(t, recs, 1)
	assert.Equal(t, "Logout", recs[0].Description)
	assert.Equal(t, 1, recs[0].Seq)
}

func TestParse_UnstructuredTextIsBounded(t *testing.T) {
	text := strings.Repeat("the model rambled without any structure at all\n", 100)
	recs, strategy := ParseWithStrategy(model.Text(text), "US-4", "Reports")
	assert.Equal(t, "single-blob", strategy)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "Comprehensive test for Reports", r.Description)
	assert.Equal(t, TruncationMarker, r.Steps[len(r.Steps)-1])
	total := 0
	for _, s := range r.Steps {
		total += len(s)
	}
	assert.LessOrEqual(t, total, BlobLimit+len(TruncationMarker))
	assert.Equal(t, []string{blobResult}, r.Results)
}

func TestParse_ShortUnstructuredTextNotMarked(t *testing.T) {
	recs := Parse(model.Text("just a sentence."), "US-5", "X")
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"just a sentence"}, recs[0].Steps)
}

func TestStrategies_OrderAndIsolation(t *testing.T) {
	s := Strategies()
	require.Len(t, s, 3)
	assert.Equal(t, "strict", s[0].Name)
	assert.Equal(t, "block-split", s[1].Name)
	assert.Equal(t, "single-blob", s[2].Name)

	loose := "S.No: 1\nDescription: only loose labels\n"
	assert.Empty(t, s[0].Extract(loose, "T"))
	assert.Len(t, s[1].Extract(loose, "T"), 1)
	assert.Empty(t, s[1].Extract("no structure", "T"))
	assert.Len(t, s[2].Extract("", "T"), 1)
}

func TestTruncate_RuneSafe(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes each
	out, cut := truncate(s, 5)
	assert.True(t, cut)
	assert.Equal(t, "éé", out)
}

func TestSet_Degraded(t *testing.T) {
	set := &Set{Records: []Record{FailSoft("1", "A"), {Description: "ok"}}}
	assert.Equal(t, 1, set.Degraded())
}
