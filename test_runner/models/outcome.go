package models

// FailureRecord is one failing test case.
type FailureRecord struct {
	ID     string `json:"id"`
	Detail string `json:"detail"`
}

// TestOutcome is the result of one full test run. It is never merged across runs.
type TestOutcome struct {
	Success  bool            `json:"success"`
	Failures []FailureRecord `json:"failures"`
}

// Passed builds a successful outcome.
func Passed() *TestOutcome {
	return &TestOutcome{Success: true, Failures: []FailureRecord{}}
}

// Failed builds an unsuccessful outcome from records in discovery order.
func Failed(records ...FailureRecord) *TestOutcome {
	return &TestOutcome{Success: false, Failures: records}
}
