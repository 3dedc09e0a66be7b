// Package ingest normalizes heterogeneous test-report files into the
// canonical test run/result shape and records them through the store.
//
// Two wire formats are understood: structured test-framework JSON (aggregate
// counts plus per-test assertion results) and generic XML test reports (one
// or more suite elements, possibly nested, containing test-case elements
// with failure/error/skipped markers).
package ingest

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
	"github.com/fyrsmithlabs/devjournal/internal/signature"
)

// ErrUnparseable indicates a report file matched no known shape. Logged and
// skipped by the watcher, never fatal.
var ErrUnparseable = errors.New("unparseable test report")

// Report is a parsed, format-independent test report.
type Report struct {
	Total    int
	Passed   int
	Failed   int
	Skipped  int
	Duration time.Duration
	Results  []journal.TestResult // RunID unset; signatures filled for failures
}

// ParseReport sniffs the format from the payload and parses it.
func ParseReport(data []byte) (*Report, error) {
	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\uFEFF'
	})
	switch {
	case strings.HasPrefix(trimmed, "{"):
		return parseFrameworkJSON([]byte(trimmed))
	case strings.HasPrefix(trimmed, "<"):
		return parseXMLReport([]byte(trimmed))
	default:
		return nil, ErrUnparseable
	}
}

// frameworkReport is the JSON shape emitted by JS test frameworks: aggregate
// counts at the top, per-file suites with assertion results below.
type frameworkReport struct {
	NumTotalTests   int  `json:"numTotalTests"`
	NumPassedTests  int  `json:"numPassedTests"`
	NumFailedTests  int  `json:"numFailedTests"`
	NumPendingTests int  `json:"numPendingTests"`
	NumTodoTests    int  `json:"numTodoTests"`
	Success         bool `json:"success"`
	TestResults     []struct {
		TestFilePath     string `json:"testFilePath"`
		Name             string `json:"name"`
		AssertionResults []struct {
			Title           string   `json:"title"`
			FullName        string   `json:"fullName"`
			Status          string   `json:"status"`
			Duration        *float64 `json:"duration"` // milliseconds, optional
			FailureMessages []string `json:"failureMessages"`
		} `json:"assertionResults"`
	} `json:"testResults"`
}

func parseFrameworkJSON(data []byte) (*Report, error) {
	var raw frameworkReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if raw.NumTotalTests == 0 && len(raw.TestResults) == 0 {
		return nil, fmt.Errorf("%w: no recognizable test fields", ErrUnparseable)
	}

	rep := &Report{
		Total:   raw.NumTotalTests,
		Passed:  raw.NumPassedTests,
		Failed:  raw.NumFailedTests,
		Skipped: raw.NumPendingTests + raw.NumTodoTests,
	}

	for _, suite := range raw.TestResults {
		file := suite.TestFilePath
		if file == "" {
			file = suite.Name
		}
		for _, tc := range suite.AssertionResults {
			name := tc.FullName
			if name == "" {
				name = tc.Title
			}
			result := journal.TestResult{
				Name:   name,
				File:   file,
				Status: normalizeStatus(tc.Status),
			}
			if tc.Duration != nil {
				result.Duration = time.Duration(*tc.Duration * float64(time.Millisecond))
				rep.Duration += result.Duration
			}
			if len(tc.FailureMessages) > 0 {
				result.ErrorMessage = tc.FailureMessages[0]
			}
			finalizeResult(&result)
			rep.Results = append(rep.Results, result)
		}
	}

	// Some producers omit aggregates; recover them from the cases.
	if rep.Total == 0 {
		recountFromResults(rep)
	}
	return rep, nil
}

// XML test-report shapes. The root may be a <testsuites> container or a
// single bare <testsuite>; suites may nest arbitrarily.
type xmlSuites struct {
	XMLName xml.Name   `xml:"testsuites"`
	Time    float64    `xml:"time,attr"`
	Suites  []xmlSuite `xml:"testsuite"`
}

type xmlSuite struct {
	Name    string     `xml:"name,attr"`
	Time    float64    `xml:"time,attr"`
	Suites  []xmlSuite `xml:"testsuite"`
	Cases   []xmlCase  `xml:"testcase"`
}

type xmlCase struct {
	Name      string      `xml:"name,attr"`
	Classname string      `xml:"classname,attr"`
	File      string      `xml:"file,attr"`
	Time      float64     `xml:"time,attr"`
	Failure   *xmlMessage `xml:"failure"`
	Error     *xmlMessage `xml:"error"`
	Skipped   *xmlMessage `xml:"skipped"`
}

type xmlMessage struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

func parseXMLReport(data []byte) (*Report, error) {
	rep := &Report{}

	var container xmlSuites
	if err := xml.Unmarshal(data, &container); err == nil {
		for _, s := range container.Suites {
			collectSuite(rep, s)
		}
		rep.Duration = time.Duration(container.Time * float64(time.Second))
	} else {
		var single xmlSuite
		if err := xml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		collectSuite(rep, single)
		rep.Duration = time.Duration(single.Time * float64(time.Second))
	}

	if len(rep.Results) == 0 {
		return nil, fmt.Errorf("%w: no test cases found", ErrUnparseable)
	}
	recountFromResults(rep)
	return rep, nil
}

// collectSuite flattens a suite and its nested children into the report.
func collectSuite(rep *Report, s xmlSuite) {
	for _, tc := range s.Cases {
		result := journal.TestResult{
			Name:     tc.Name,
			File:     tc.File,
			Duration: time.Duration(tc.Time * float64(time.Second)),
		}
		if result.File == "" {
			result.File = tc.Classname
		}
		switch {
		case tc.Error != nil:
			result.Status = journal.TestError
			result.ErrorMessage = messageText(tc.Error)
		case tc.Failure != nil:
			result.Status = journal.TestFailed
			result.ErrorMessage = messageText(tc.Failure)
		case tc.Skipped != nil:
			result.Status = journal.TestSkipped
		default:
			result.Status = journal.TestPassed
		}
		finalizeResult(&result)
		rep.Results = append(rep.Results, result)
	}
	for _, child := range s.Suites {
		collectSuite(rep, child)
	}
}

func messageText(m *xmlMessage) string {
	if m.Message != "" {
		return m.Message
	}
	return strings.TrimSpace(m.Body)
}

// normalizeStatus maps alternate status vocabularies onto the canonical
// enumeration; "pending" and "todo" both mean skipped.
func normalizeStatus(s string) journal.TestStatus {
	switch strings.ToLower(s) {
	case "passed", "pass", "ok":
		return journal.TestPassed
	case "failed", "fail":
		return journal.TestFailed
	case "skipped", "pending", "todo", "disabled":
		return journal.TestSkipped
	case "error", "errored", "broken":
		return journal.TestError
	default:
		return journal.TestSkipped
	}
}

// finalizeResult assigns the error signature for failing and erroring cases.
func finalizeResult(r *journal.TestResult) {
	if r.Status == journal.TestFailed || r.Status == journal.TestError {
		r.ErrorSignature = signature.Canonicalize(r.ErrorMessage)
	}
}

func recountFromResults(rep *Report) {
	rep.Total, rep.Passed, rep.Failed, rep.Skipped = 0, 0, 0, 0
	for _, r := range rep.Results {
		rep.Total++
		switch r.Status {
		case journal.TestPassed:
			rep.Passed++
		case journal.TestSkipped:
			rep.Skipped++
		default:
			rep.Failed++
		}
	}
}
