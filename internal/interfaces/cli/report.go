package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReportCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Retrieve stored reports",
	}
	cmd.AddCommand(newReportGetCommand(opts))
	cmd.AddCommand(newReportListCommand(opts))
	cmd.AddCommand(newReportExportCommand(opts))
	return cmd
}

func newReportGetCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id>",
		Short: "Fetch one report by run ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.newClient()
			if err != nil {
				return err
			}
			report, err := api.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report, opts.Output)
		},
	}
}

func newReportListCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <document-id>",
		Short: "List reports for a document, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.newClient()
			if err != nil {
				return err
			}
			reports, err := api.ListReports(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for _, report := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d entries\t%d completed\n",
					report.RunID, report.GeneratedAt.Format("2006-01-02 15:04:05"),
					len(report.Entries), report.Completed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports")
	return cmd
}

func newReportExportCommand(opts *globalOptions) *cobra.Command {
	var (
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Download a rendered report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.newClient()
			if err != nil {
				return err
			}
			data, err := api.ExportReport(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			return writeOutput(cmd, outPath, data)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "export format (json, csv)")
	cmd.Flags().StringVar(&outPath, "out", "", "write to a file instead of stdout")
	return cmd
}
