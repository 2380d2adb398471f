package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/harness"
	"github.com/ternarybob/specto/pkg/models"
)

// snapshotExcerptLimit caps how much of a failure snapshot lands in a
// report; full page HTML can run to hundreds of kilobytes.
const snapshotExcerptLimit = 4000

// Reporter writes run reports to disk: markdown always, HTML always, and a
// PDF when configured.
type Reporter struct {
	config common.ReportConfig
	logger arbor.ILogger
}

// NewReporter creates a reporter writing into the configured directory.
func NewReporter(config common.ReportConfig, logger arbor.ILogger) *Reporter {
	return &Reporter{
		config: config,
		logger: logger,
	}
}

// WriteRunReport renders the run to markdown, HTML and optionally PDF, and
// returns the markdown report path.
func (r *Reporter) WriteRunReport(run *models.SuiteRun, results []harness.ScenarioResult) (string, error) {
	if err := os.MkdirAll(r.config.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	markdown := r.buildMarkdown(run, results)

	mdPath := filepath.Join(r.config.Dir, run.ID+".md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0644); err != nil {
		return "", fmt.Errorf("failed to write markdown report: %w", err)
	}

	htmlPath := filepath.Join(r.config.Dir, run.ID+".html")
	html, err := r.renderHTML(markdown, run)
	if err != nil {
		r.logger.Warn().Err(err).Msg("HTML report rendering failed")
	} else if err := os.WriteFile(htmlPath, html, 0644); err != nil {
		r.logger.Warn().Err(err).Str("path", htmlPath).Msg("Failed to write HTML report")
	}

	if r.config.PDF {
		pdfPath := filepath.Join(r.config.Dir, run.ID+".pdf")
		pdfBytes, err := r.renderPDF(run)
		if err != nil {
			r.logger.Warn().Err(err).Msg("PDF report rendering failed")
		} else if err := os.WriteFile(pdfPath, pdfBytes, 0644); err != nil {
			r.logger.Warn().Err(err).Str("path", pdfPath).Msg("Failed to write PDF report")
		}
	}

	r.logger.Info().
		Str("run_id", run.ID).
		Str("path", mdPath).
		Msg("Run report written")
	return mdPath, nil
}

func (r *Reporter) buildMarkdown(run *models.SuiteRun, results []harness.ScenarioResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run Report: %s\n\n", run.Suite)
	fmt.Fprintf(&b, "- **Run ID**: %s\n", run.ID)
	fmt.Fprintf(&b, "- **Target**: %s\n", run.TargetURL)
	fmt.Fprintf(&b, "- **Started**: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Duration**: %s\n\n", run.Duration.Round(1e6))

	b.WriteString("| Passed | Failed | Skipped |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d |\n\n", run.Passed, run.Failed, run.Skipped)

	for _, result := range results {
		fmt.Fprintf(&b, "## %s — %s\n\n", result.Name, result.Status)
		fmt.Fprintf(&b, "- Duration: %s\n", result.Duration.Round(1e6))
		if result.Error != "" {
			fmt.Fprintf(&b, "- Error: `%s`\n", result.Error)
		}
		b.WriteString("\n")

		for _, check := range result.Checks {
			marker := "PASS"
			if check.Hard() {
				marker = "FAIL"
			} else if check.Outcome != harness.OutcomeMatched {
				marker = string(check.Outcome)
			}
			fmt.Fprintf(&b, "- [%s] %s: %s\n", marker, check.Name, check.Detail)
		}
		if len(result.Checks) > 0 {
			b.WriteString("\n")
		}

		if len(result.Transcript) > 0 {
			b.WriteString("### Signal transcript\n\n```\n")
			for _, line := range result.Transcript {
				b.WriteString(line)
				b.WriteString("\n")
			}
			b.WriteString("```\n\n")
		}

		if result.Snapshot != "" {
			b.WriteString("### Page at failure\n\n")
			b.WriteString(r.snapshotMarkdown(result.Snapshot))
			b.WriteString("\n\n")
		}
	}

	return b.String()
}

// snapshotMarkdown converts a failure snapshot to a readable markdown
// excerpt, falling back to a fenced HTML block when conversion fails.
func (r *Reporter) snapshotMarkdown(html string) string {
	mdConverter := md.NewConverter("", true, nil)
	converted, err := mdConverter.ConvertString(html)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Snapshot HTML to markdown conversion failed, embedding raw excerpt")
		converted = "```html\n" + html + "\n```"
	}
	if len(converted) > snapshotExcerptLimit {
		converted = converted[:snapshotExcerptLimit] + "\n\n*(truncated)*"
	}
	return converted
}

func (r *Reporter) renderHTML(markdown string, run *models.SuiteRun) ([]byte, error) {
	gm := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Table),
	)

	var body bytes.Buffer
	if err := gm.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("markdown conversion failed: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Run %s</title>\n</head>\n<body>\n", run.ID)
	page.Write(body.Bytes())
	page.WriteString("\n</body>\n</html>\n")
	return page.Bytes(), nil
}

func (r *Reporter) renderPDF(run *models.SuiteRun) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("Run Report: %s", run.Suite), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Run ID: %s", run.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Target: %s", run.TargetURL), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Started: %s", run.StartedAt.Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Passed: %d  Failed: %d  Skipped: %d", run.Passed, run.Failed, run.Skipped), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Scenarios", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, scenario := range run.Scenarios {
		line := fmt.Sprintf("[%s] %s (%s)", strings.ToUpper(scenario.Status), scenario.Name, scenario.Duration.Round(1e6))
		pdf.MultiCell(0, 6, line, "", "L", false)
		if scenario.Error != "" {
			pdf.SetFont("Courier", "", 9)
			pdf.MultiCell(0, 5, scenario.Error, "", "L", false)
			pdf.SetFont("Arial", "", 10)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}
