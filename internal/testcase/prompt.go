package testcase

import (
	"fmt"
	"strings"
)

// Prompt asks the model for test cases in the layout the strict strategy
// reads.
func Prompt(s Story) string {
	criteria := strings.TrimSpace(s.AcceptanceCriteria)
	if criteria == "" {
		criteria = "(none given; derive them from the title)"
	}

	var b strings.Builder
	b.WriteString("You are an expert Quality Assurance Engineer. Generate comprehensive test cases for the user story below with full coverage of its acceptance criteria.\n\n")
	fmt.Fprintf(&b, "User Story ID: %s\n", s.ID)
	fmt.Fprintf(&b, "User Story Title: %s\n", s.Title)
	fmt.Fprintf(&b, "Acceptance Criteria:\n%s\n\n", criteria)
	b.WriteString(`Requirements:
1. Create both positive and negative test cases
2. Include application login steps in every test case
3. Provide detailed step-by-step actions
4. Include boundary value and error handling cases where applicable

Strict output format, follow it exactly:

Test Cases:

S.No: 1
TestCasesDescription: Valid Login and [specific functionality]
StepAction:
Navigate to application login page
Enter valid username in username field
Click login button
[Steps specific to this user story]
ExpectedResult:
Login page loads successfully
Login successful and redirected to dashboard
[Expected results for each step above]

S.No: 2
TestCasesDescription: Invalid Login Credentials
StepAction:
Navigate to application login page
Enter invalid username
Click login button
ExpectedResult:
Error message displayed for invalid credentials

Rules:
- Each S.No on its own line
- Label every section: TestCasesDescription, StepAction, ExpectedResult
- Generate at least 2-3 test cases
- Keep descriptions short, without prefixes like "Positive Test Case"

Generate the test cases now:
`)
	return b.String()
}
