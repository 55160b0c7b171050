package test_runner

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meysamhadeli/scaffai/test_runner/models"
)

type junitProblem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

type junitCase struct {
	ClassName string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	File      string        `xml:"file,attr"`
	Failure   *junitProblem `xml:"failure"`
	Error     *junitProblem `xml:"error"`
}

// parseJUnit returns failure records for every failing or erroring testcase in
// document order, plus the number of testcases seen.
func parseJUnit(r io.Reader) ([]models.FailureRecord, int, error) {
	decoder := xml.NewDecoder(r)
	var records []models.FailureRecord
	cases := 0

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, cases, fmt.Errorf("error parsing junit report: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "testcase" {
			continue
		}

		var tc junitCase
		if err := decoder.DecodeElement(&tc, &start); err != nil {
			return nil, cases, fmt.Errorf("error parsing junit testcase: %w", err)
		}
		cases++

		// A case can carry both (failed test plus teardown error); report each.
		for _, problem := range []*junitProblem{tc.Failure, tc.Error} {
			if problem == nil {
				continue
			}
			records = append(records, models.FailureRecord{
				ID:     junitID(tc),
				Detail: junitDetail(problem),
			})
		}
	}

	if cases == 0 && records == nil {
		return nil, 0, nil
	}
	return records, cases, nil
}

func junitID(tc junitCase) string {
	if tc.ClassName == "" {
		return tc.Name
	}
	return tc.ClassName + "::" + tc.Name
}

func junitDetail(problem *junitProblem) string {
	text := strings.TrimSpace(problem.Text)
	message := strings.TrimSpace(problem.Message)
	switch {
	case text == "":
		return message
	case message == "" || strings.Contains(text, message):
		return text
	default:
		return message + "\n" + text
	}
}
