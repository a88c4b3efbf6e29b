package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evalgo.org/tsuite/internal/testrun"
)

var (
	runReport      bool
	runStopDaemons bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Prepare the fleet and run the test set",
	Long: `Create a build root, deploy the rewritten configuration to every host,
run the test set on all clients and print the collected results.

With --report (or report.enabled) the results are stored as a new run in
the configured report backend.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runReport, "report", false, "store the results in the report backend")
	runCmd.Flags().BoolVar(&runStopDaemons, "stop-daemons", false, "stop the daemons on every host after the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := newSuite()
	if err != nil {
		return err
	}
	defer s.Shutdown()

	if err := s.Setup(ctx); err != nil {
		return err
	}

	run, err := s.RunTests(ctx)
	if err != nil {
		return err
	}
	printRun(cmd.OutOrStdout(), run)

	if runReport || cfg.Report.Enabled {
		store, err := openStore(ctx)
		if err != nil {
			logger.Error("unable to open report store", "backend", cfg.Report.Backend, "error", err)
		} else {
			defer store.Close()
			if rep, err := s.StoreReport(ctx, store, run); err != nil {
				logger.Error("unable to store report", "error", err)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "\nStored run %s (%d tests, %d failed)\n",
					rep.Label, rep.TotalTests, rep.FailedTests)
			}
		}
	}

	if runStopDaemons {
		if err := s.StopDaemons(ctx); err != nil {
			logger.Warn("some daemons could not be stopped", "error", err)
		}
	}

	if err := run.Err(); err != nil {
		logger.Warn("test run finished with client errors", "error", err)
	}
	return nil
}

func printRun(w io.Writer, run *testrun.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "HOST\tTEST\tSETUP\tOPERATE\tCLEANUP\tELAPSED\n")
	for _, hr := range run.Results {
		if hr.Results == nil {
			continue
		}
		for _, t := range hr.Results.Tests {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2fs\n", hr.Host, t.Name,
				passFail(t.Setup.Pass), passFail(t.Operate.Pass), passFail(t.Cleanup.Pass),
				t.Operate.Elapsed)
		}
	}
	for host, err := range run.Failures {
		fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%v\n", host, err)
	}
	_ = tw.Flush()
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "FAIL"
}
