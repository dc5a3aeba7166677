package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"paratest.dev/pkg/paratest/internal/adapter"
	"paratest.dev/pkg/paratest/internal/controller"
	"paratest.dev/pkg/paratest/internal/domain"
	"paratest.dev/pkg/paratest/internal/domain/safety"
	m "paratest.dev/pkg/paratest/internal/model"
)

// Swapped in tests.
var (
	packageLoader adapter.PackageLoader = adapter.NewPackageLoader()
	reportStore   adapter.ReportStore   = adapter.NewReportStore()
	cpuDetector   adapter.CPUDetector   = adapter.NewCPUDetector()
	newReporter                         = controller.NewConsoleReporter
)

var checkCmd = &cobra.Command{
	Use:   "check [packages]",
	Short: "Classify test functions as thread-safe or thread-unsafe",
	Long: `check statically inspects the test functions of the given packages
(./... by default) and reports, per function, whether it can run on
multiple threads concurrently and, if not, why.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("save", false, "write the classification report to the output directory")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	cfg, err := suiteConfigFromViper(cpuDetector.LogicalCPUs())
	if err != nil {
		return err
	}

	blocklist := configuredBlocklist(cfg)

	funcs, err := packageLoader.LoadTestFunctions(cmd.Context(), patterns)
	if err != nil {
		return fmt.Errorf("discover test functions: %w", err)
	}

	classifier := safety.NewClassifier(safety.NewVerdictCache(), nil)
	reporter := newReporter(cmd.OutOrStdout())
	verbose, _ := cmd.Flags().GetBool(verboseFlagName)

	var report m.RunReport

	for _, fn := range funcs {
		verdict := classifier.Classify(fn.Callable, blocklist, cfg.Flags)
		reporter.CheckResult(fn.Package+"."+fn.Callable.Name, verdict)

		report.Record(effectiveCase(fn.Package+"."+fn.Callable.Name, verdict, cfg))
	}

	reporter.Summary(report, verbose)

	if save, _ := cmd.Flags().GetBool("save"); save {
		if err := os.MkdirAll(string(cfg.ReportsDir), 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}

		path, err := reportStore.Save(cfg.ReportsDir, report)
		if err != nil {
			return fmt.Errorf("save report: %w", err)
		}

		slog.Info("classification report saved", "path", path)
	}

	return nil
}

// effectiveCase projects a classification verdict onto the configured run
// shape: safe cases get the full worker count, unsafe ones either drop to a
// single thread or are skipped outright.
func effectiveCase(name string, verdict m.Verdict, cfg domain.SuiteConfig) m.CaseReport {
	if !verdict.Unsafe {
		return m.CaseReport{
			Name:       name,
			Parallel:   cfg.Workers > 1,
			Workers:    cfg.Workers,
			Iterations: cfg.Iterations,
			Status:     m.StatusPassed,
		}
	}

	if cfg.SkipUnsafe {
		return m.CaseReport{
			Name:       name,
			Workers:    1,
			Iterations: cfg.Iterations,
			Status:     m.StatusSkipped,
			Reason:     verdict.Reason,
		}
	}

	return m.CaseReport{
		Name:       name,
		Workers:    1,
		Iterations: cfg.Iterations,
		Status:     m.StatusPassed,
		Reason:     verdict.Reason,
	}
}

// configuredBlocklist assembles the effective blocklist from the built-in
// entries and the configured extras.
func configuredBlocklist(cfg domain.SuiteConfig) *m.Blocklist {
	blocklist := m.NewBlocklist(m.BuiltinEntries(cfg.Flags)...)

	for _, entry := range cfg.ExtraBlocklist {
		blocklist.Add(entry)
	}

	return blocklist
}
