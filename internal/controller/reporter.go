// Package controller renders run and classification results for humans.
package controller

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	m "paratest.dev/pkg/paratest/internal/model"
)

// Reporter receives per-case results and the final aggregate.
type Reporter interface {
	// CaseResult reports one executed case.
	CaseResult(cr m.CaseReport)

	// CheckResult reports one statically classified function.
	CheckResult(name string, verdict m.Verdict)

	// Summary renders the aggregate counts. With verbose set, every case
	// that did not run in parallel is listed with its reason.
	Summary(report m.RunReport, verbose bool)
}

type consoleReporter struct {
	out       io.Writer
	passStyle lipgloss.Style
	failStyle lipgloss.Style
	skipStyle lipgloss.Style
}

// NewConsoleReporter constructs a Reporter writing plain lines and a summary
// table to out.
func NewConsoleReporter(out io.Writer) Reporter {
	return &consoleReporter{
		out:       out,
		passStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		failStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		skipStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

func (r *consoleReporter) CaseResult(cr m.CaseReport) {
	var label string

	switch cr.Status {
	case m.StatusPassed:
		if cr.Parallel {
			label = r.passStyle.Render("PARALLEL PASSED")
		} else {
			label = r.passStyle.Render("PASSED")
		}
	case m.StatusFailed:
		if cr.Parallel {
			label = r.failStyle.Render("PARALLEL FAILED")
		} else {
			label = r.failStyle.Render("FAILED")
		}
	case m.StatusSkipped:
		label = r.skipStyle.Render("SKIPPED")
	}

	line := cr.Name + " " + label
	if cr.Reason != "" {
		line += " [thread-unsafe]: " + cr.Reason
	}

	if cr.Message != "" {
		line += " (" + cr.Message + ")"
	}

	fmt.Fprintln(r.out, line)
}

func (r *consoleReporter) CheckResult(name string, verdict m.Verdict) {
	if !verdict.Unsafe {
		fmt.Fprintf(r.out, "%s %s\n", name, r.passStyle.Render("parallel"))
		return
	}

	fmt.Fprintf(r.out, "%s %s: %s\n", name, r.skipStyle.Render("single-threaded"), verdict.Reason)
}

func (r *consoleReporter) Summary(report m.RunReport, verbose bool) {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"Outcome", "Cases"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.Append([]string{"ran in parallel", strconv.Itoa(report.Parallelized)})
	table.Append([]string{"single-threaded", strconv.Itoa(report.SingleThreaded)})
	table.Append([]string{"skipped", strconv.Itoa(report.Skipped)})
	table.Render()

	if report.SingleThreaded == 0 && report.Skipped == 0 && len(report.Cases) > 0 {
		fmt.Fprintln(r.out, "All cases ran in parallel!")
		return
	}

	if !verbose {
		return
	}

	for _, cr := range report.Cases {
		if cr.Reason != "" {
			fmt.Fprintf(r.out, "%s did not run in parallel because it %s\n", cr.Name, cr.Reason)
		}
	}
}
