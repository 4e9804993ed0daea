package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"crmload/internal/driver"
	"crmload/internal/scenario"
	"crmload/internal/stats"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	passStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFAF00"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	subtle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	maxErrorsShown = 5

	// Verdict thresholds.
	passSuccessRate = 95.0
	passMeanMs      = 500.0
)

// PrintHeader announces the run configuration.
func PrintHeader(w io.Writer, cfg driver.Config, sc scenario.Config) {
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("🚀 STARTING CRM LOAD TEST"))
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target URL   : %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "Timeout      : %s\n", cfg.Timeout())
	fmt.Fprintf(w, "Auth Reads   : %d\n", sc.AuthReads)
	fmt.Fprintf(w, "Customers    : %d (+%d list calls)\n", sc.Customers, sc.ListCalls)
	fmt.Fprintf(w, "Chat Messages: %d\n", sc.ChatMessages)
	fmt.Fprintf(w, "======================================================================\n")
}

// PrintSummary prints totals, latency aggregates, the first few error
// details and the pass/concern verdict.
func PrintSummary(w io.Writer, rec *stats.Recorder, totalTime time.Duration) {
	sum := rec.Summarize()

	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("📊 STRESS TEST RESULTS"))
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Total Duration : %s\n", totalTime.Round(time.Millisecond))
	fmt.Fprintf(w, "Total Requests : %d\n", rec.Total())
	fmt.Fprintf(w, "Successful     : %d\n", rec.Success())
	fmt.Fprintf(w, "Errors         : %d\n", rec.Errors())

	if sum.Count > 0 {
		fmt.Fprintf(w, "\n⏱️  RESPONSE TIMES (ms)\n")
		fmt.Fprintf(w, "   Mean   : %.2f\n", sum.MeanMs)
		fmt.Fprintf(w, "   Median : %.2f\n", sum.MedianMs)
		fmt.Fprintf(w, "   P95    : %.2f\n", sum.P95Ms)
		fmt.Fprintf(w, "   Max    : %.2f\n", sum.MaxMs)
	}

	if details := rec.ErrorDetails(); len(details) > 0 {
		fmt.Fprintf(w, "\n%s\n", errStyle.Render("❌ Errors encountered:"))
		for i, d := range details {
			if i >= maxErrorsShown {
				fmt.Fprintf(w, "   %s\n", subtle.Render(fmt.Sprintf("... and %d more", len(details)-maxErrorsShown)))
				break
			}
			if d.Err != "" {
				fmt.Fprintf(w, "   - %s: %s\n", d.Path, d.Err)
			} else {
				fmt.Fprintf(w, "   - %s: status %d %s\n", d.Path, d.Status, d.Body)
			}
		}
	}

	rate := rec.SuccessRate()
	fmt.Fprintf(w, "\n🎯 Success Rate: %.2f%%\n", rate)

	if rate > passSuccessRate && sum.MeanMs < passMeanMs {
		fmt.Fprintf(w, "%s\n", passStyle.Render("🎉 STRESS TEST PASSED"))
	} else {
		fmt.Fprintf(w, "%s\n", warnStyle.Render("⚠️  STRESS TEST CONCERNS - Review performance"))
	}
	fmt.Fprintf(w, "======================================================================\n")
}

// Verdict reports whether a run meets the pass thresholds.
func Verdict(rec *stats.Recorder) bool {
	sum := rec.Summarize()
	return rec.SuccessRate() > passSuccessRate && sum.MeanMs < passMeanMs
}
