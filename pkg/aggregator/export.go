package aggregator

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"

	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// ExportFormat names one of the report export encodings.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
	FormatCSV      ExportFormat = "csv"
	FormatHTML     ExportFormat = "html"
)

// Export renders report in format. JSON is the canonical representation;
// Markdown and CSV are deterministic given the same report (stable key
// ordering); HTML is a minimal, optional rendering.
func Export(report AggregatedResults, format ExportFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(report, "", "  ")
	case FormatMarkdown:
		return exportMarkdown(report), nil
	case FormatCSV:
		return exportCSV(report)
	case FormatHTML:
		return exportHTML(report), nil
	default:
		return nil, sharederrors.ValidationError("format", fmt.Sprintf("unsupported export format %q", format))
	}
}

func exportMarkdown(report AggregatedResults) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Aggregated Test Report\n\n")
	fmt.Fprintf(&buf, "Window: %s to %s\n\n", report.WindowStart.Format("2006-01-02T15:04:05Z"), report.WindowEnd.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&buf, "## Overall\n\n")
	fmt.Fprintf(&buf, "- Total: %d\n", report.Overall.TotalTests)
	fmt.Fprintf(&buf, "- Passed: %d\n", report.Overall.PassedTests)
	fmt.Fprintf(&buf, "- Failed: %d\n", report.Overall.FailedTests)
	fmt.Fprintf(&buf, "- Pass rate: %.3f\n", report.Overall.PassRate)
	fmt.Fprintf(&buf, "- Avg score: %.3f\n", report.Overall.AvgScore)
	fmt.Fprintf(&buf, "- Data completeness: %.3f\n\n", report.DataCompleteness)

	if len(report.Trends) > 0 {
		fmt.Fprintf(&buf, "## Trends\n\n")
		for _, t := range report.Trends {
			fmt.Fprintf(&buf, "- %s: %s (slope=%.4f, confidence=%.3f)\n", t.Metric, t.Direction, t.Slope, t.Confidence)
		}
		buf.WriteString("\n")
	}

	if len(report.TopFailures) > 0 {
		fmt.Fprintf(&buf, "## Top Failures\n\n")
		for _, f := range report.TopFailures {
			fmt.Fprintf(&buf, "- %s: %d failures\n", f.ScenarioID, f.FailureCount)
		}
		buf.WriteString("\n")
	}

	if len(report.TopPerformers) > 0 {
		fmt.Fprintf(&buf, "## Top Performers\n\n")
		for _, p := range report.TopPerformers {
			fmt.Fprintf(&buf, "- %s: efficiency=%.4f, avg_score=%.3f\n", p.ScenarioID, p.Efficiency, p.AvgScore)
		}
		buf.WriteString("\n")
	}

	if len(report.Recommendations) > 0 {
		fmt.Fprintf(&buf, "## Recommendations\n\n")
		for _, r := range report.Recommendations {
			fmt.Fprintf(&buf, "- %s\n", r)
		}
	}

	return buf.Bytes()
}

// exportCSV renders the per-service summary table, the dimension most
// useful to spreadsheet consumers; the fuller structure belongs in JSON.
func exportCSV(report AggregatedResults) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"service", "total", "passed", "failed", "pass_rate", "avg_score", "avg_duration_s"}); err != nil {
		return nil, err
	}

	services := make([]string, 0, len(report.ByService))
	for name := range report.ByService {
		services = append(services, name)
	}
	sort.Strings(services)

	for _, name := range services {
		s := report.ByService[name]
		row := []string{
			name,
			fmt.Sprintf("%d", s.TotalTests),
			fmt.Sprintf("%d", s.PassedTests),
			fmt.Sprintf("%d", s.FailedTests),
			fmt.Sprintf("%.3f", s.PassRate),
			fmt.Sprintf("%.3f", s.AvgScore),
			fmt.Sprintf("%.3f", s.AvgDurationSec),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportHTML(report AggregatedResults) []byte {
	var buf bytes.Buffer
	buf.WriteString("<html><body>")
	fmt.Fprintf(&buf, "<h1>Aggregated Test Report</h1>")
	fmt.Fprintf(&buf, "<p>Window: %s to %s</p>", report.WindowStart.Format("2006-01-02T15:04:05Z"), report.WindowEnd.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&buf, "<ul><li>Total: %d</li><li>Passed: %d</li><li>Failed: %d</li><li>Pass rate: %.3f</li></ul>",
		report.Overall.TotalTests, report.Overall.PassedTests, report.Overall.FailedTests, report.Overall.PassRate)
	buf.WriteString("</body></html>")
	return buf.Bytes()
}
