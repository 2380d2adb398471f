package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/harness"
	"github.com/ternarybob/specto/pkg/models"
)

func sampleResults() []harness.ScenarioResult {
	return []harness.ScenarioResult{
		{
			Name:     "renders custom array",
			Status:   harness.StatusPassed,
			Duration: 1200 * time.Millisecond,
			Checks: []harness.CheckResult{
				{Name: "tiles rendered", Outcome: harness.OutcomeMatched, Detail: "observed 4 elements"},
			},
		},
		{
			Name:     "completes in ascending order",
			Status:   harness.StatusFailed,
			Error:    "check \"completion text\" failed",
			Duration: 3 * time.Second,
			Checks: []harness.CheckResult{
				{Name: "completion text", Outcome: harness.OutcomeMismatched, Detail: `observed "Sorting..."`},
			},
			Transcript: []string{"[12:00:01.000] console.log: step 1"},
			Snapshot:   `<html><body><div id="status">Sorting...</div></body></html>`,
		},
	}
}

func sampleReportRun() *models.SuiteRun {
	return &models.SuiteRun{
		ID:        "run_report_test",
		Suite:     "sorting",
		TargetURL: "http://localhost:8090",
		StartedAt: time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
		Duration:  4200 * time.Millisecond,
		Passed:    1,
		Failed:    1,
		Scenarios: []models.ScenarioOutcome{
			{Name: "renders custom array", Status: "passed", Duration: 1200 * time.Millisecond},
			{Name: "completes in ascending order", Status: "failed", Error: "check failed", Duration: 3 * time.Second},
		},
	}
}

func TestWriteRunReportMarkdownAndHTML(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(common.ReportConfig{Dir: dir}, common.GetLogger())

	path, err := reporter.WriteRunReport(sampleReportRun(), sampleResults())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run_report_test.md"), path)

	markdown, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(markdown)

	assert.Contains(t, content, "# Run Report: sorting")
	assert.Contains(t, content, "| 1 | 1 | 0 |")
	assert.Contains(t, content, "[PASS] tiles rendered")
	assert.Contains(t, content, "[FAIL] completion text")
	assert.Contains(t, content, "### Signal transcript")
	assert.Contains(t, content, "### Page at failure")
	assert.Contains(t, content, "Sorting...")

	html, err := os.ReadFile(filepath.Join(dir, "run_report_test.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table>")
	assert.Contains(t, string(html), "Run Report: sorting")

	// No PDF unless configured.
	_, err = os.Stat(filepath.Join(dir, "run_report_test.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteRunReportPDF(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(common.ReportConfig{Dir: dir, PDF: true}, common.GetLogger())

	_, err := reporter.WriteRunReport(sampleReportRun(), sampleResults())
	require.NoError(t, err)

	pdf, err := os.ReadFile(filepath.Join(dir, "run_report_test.pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"), "PDF output must carry the magic header")
}

func TestSnapshotMarkdownTruncates(t *testing.T) {
	reporter := NewReporter(common.ReportConfig{}, common.GetLogger())

	long := "<html><body><p>" + strings.Repeat("x", snapshotExcerptLimit*2) + "</p></body></html>"
	out := reporter.snapshotMarkdown(long)
	assert.LessOrEqual(t, len(out), snapshotExcerptLimit+64)
	assert.Contains(t, out, "(truncated)")
}
