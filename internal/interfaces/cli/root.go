// Package cli implements the rxdossier command-line client: submitting
// candidate lists for analysis and retrieving stored reports.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/RxDossier/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	ServerAddr string
	Output     string
	Timeout    time.Duration
}

func (o *globalOptions) newClient() (*client.Client, error) {
	return client.NewClient(o.ServerAddr, client.WithTimeout(o.Timeout))
}

func (o *globalOptions) validateOutput() error {
	switch o.Output {
	case "json", "csv", "table":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (json, csv, table)", o.Output)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:     "rxdossier",
		Short:   "RxDossier CLI — drug evidence enrichment for clinical documents",
		Long:    "RxDossier enriches extracted drug mentions with regulatory status,\ndosage comparison, literature evidence, and an AI evidence grade.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.validateOutput()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ServerAddr, "server", "http://localhost:8080", "API server address")
	pf.StringVarP(&opts.Output, "output", "o", "table", "output format (json, csv, table)")
	pf.DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "request timeout")

	cmd.AddCommand(newAnalyzeCommand(opts))
	cmd.AddCommand(newReportCommand(opts))

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}
