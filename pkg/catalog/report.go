package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/scenario-config/pkg/scenario"
)

// Report summarises the state of a scenario catalog
type Report struct {
	Metadata  ReportMetadata   `json:"metadata"`
	Summary   ReportSummary    `json:"summary"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// ReportMetadata contains report metadata
type ReportMetadata struct {
	ReportID    string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Root        string    `json:"root"`
}

// ReportSummary provides the catalog-wide counts
type ReportSummary struct {
	Total    int            `json:"total"`
	Valid    int            `json:"valid"`
	Failed   int            `json:"failed"`
	Warnings int            `json:"warnings"`
	ByAttack map[string]int `json:"by_attack"`
	ByTask   map[string]int `json:"by_task"`
}

// ScenarioReport is the outcome for one document
type ScenarioReport struct {
	Path     string        `json:"path"`
	Format   string        `json:"format"`
	Name     string        `json:"name"`
	Stage    string        `json:"stage"`
	Digest   string        `json:"digest,omitempty"`
	Attack   string        `json:"attack,omitempty"`
	Task     string        `json:"task,omitempty"`
	Message  string        `json:"message,omitempty"`
	Errors   []IssueReport `json:"errors,omitempty"`
	Warnings []IssueReport `json:"warnings,omitempty"`
}

// IssueReport is one validation finding
type IssueReport struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// NewReport builds a report from discovered entries
func NewReport(root string, entries []Entry) *Report {
	r := &Report{
		Metadata: ReportMetadata{
			ReportID:    uuid.New().String(),
			GeneratedAt: time.Now().UTC(),
			Root:        root,
		},
		Summary: ReportSummary{
			ByAttack: make(map[string]int),
			ByTask:   make(map[string]int),
		},
		Scenarios: make([]ScenarioReport, 0, len(entries)),
	}

	for _, e := range entries {
		sr := ScenarioReport{
			Path:   e.Path,
			Format: e.Format.String(),
			Name:   e.Name(),
			Stage:  scenario.FailedStage(e.Err).String(),
		}

		if e.OK() {
			r.Summary.Valid++
			sr.Digest = e.Config.Digest()
			sr.Attack = e.Config.Attack().Ref()
			sr.Task = e.Config.Scenario().Ref()
			sr.Warnings = issueReports(e.Config.Warnings())
			r.Summary.ByAttack[sr.Attack]++
			r.Summary.ByTask[sr.Task]++
		} else {
			r.Summary.Failed++
			var verr *scenario.ValidationError
			if errors.As(e.Err, &verr) {
				sr.Errors = issueReports(verr.Issues)
				sr.Warnings = issueReports(verr.Warnings)
			} else {
				sr.Message = e.Err.Error()
			}
		}

		r.Summary.Warnings += len(sr.Warnings)
		r.Scenarios = append(r.Scenarios, sr)
	}
	r.Summary.Total = len(r.Scenarios)
	return r
}

func issueReports(issues []scenario.Issue) []IssueReport {
	if len(issues) == 0 {
		return nil
	}
	out := make([]IssueReport, len(issues))
	for i, issue := range issues {
		out[i] = IssueReport{Path: issue.Path, Reason: issue.Reason}
	}
	return out
}

// Save writes the report to path as JSON (.json) or Markdown (.md)
func (r *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var err error
		data, err = json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
	case ".md", ".markdown":
		data = []byte(r.Markdown())
	default:
		return fmt.Errorf("unsupported report format %q (use .json or .md)", filepath.Ext(path))
	}

	return os.WriteFile(path, data, 0644)
}

// Markdown renders the report as a Markdown document
func (r *Report) Markdown() string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Scenario Catalog Report\n\n")
	sb.WriteString(fmt.Sprintf("**Report ID:** %s\n", r.Metadata.ReportID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Root:** %s\n\n", r.Metadata.Root))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Scenarios:** %d\n", r.Summary.Total))
	sb.WriteString(fmt.Sprintf("- **Valid:** %d\n", r.Summary.Valid))
	sb.WriteString(fmt.Sprintf("- **Failed:** %d\n", r.Summary.Failed))
	sb.WriteString(fmt.Sprintf("- **Warnings:** %d\n\n", r.Summary.Warnings))

	if len(r.Summary.ByAttack) > 0 {
		sb.WriteString("### Attacks\n\n")
		writeCounts(&sb, r.Summary.ByAttack)
	}
	if len(r.Summary.ByTask) > 0 {
		sb.WriteString("### Tasks\n\n")
		writeCounts(&sb, r.Summary.ByTask)
	}

	// Scenarios
	sb.WriteString("## Scenarios\n\n")
	sb.WriteString("| File | Status | Name | Attack |\n")
	sb.WriteString("|------|--------|------|--------|\n")
	for _, s := range r.Scenarios {
		status := "ok"
		if s.Stage != scenario.StageReady.String() {
			status = "failed at " + s.Stage
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", s.Path, status, s.Name, orDash(s.Attack)))
	}
	sb.WriteString("\n")

	// Findings
	for _, s := range r.Scenarios {
		if len(s.Errors) == 0 && len(s.Warnings) == 0 && s.Message == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n\n", s.Path))
		if s.Message != "" {
			sb.WriteString(fmt.Sprintf("- **Error:** %s\n", s.Message))
		}
		for _, issue := range s.Errors {
			sb.WriteString(fmt.Sprintf("- **Error** `%s`: %s\n", issue.Path, issue.Reason))
		}
		for _, issue := range s.Warnings {
			sb.WriteString(fmt.Sprintf("- **Warning** `%s`: %s\n", issue.Path, issue.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeCounts(sb *strings.Builder, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", k, counts[k]))
	}
	sb.WriteString("\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
