package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/RxDossier/pkg/client"
)

// candidateFile is the accepted input document: either a bare candidate
// array or an object carrying the document ID alongside it.
type candidateFile struct {
	DocumentID string             `json:"document_id,omitempty"`
	Candidates []client.Candidate `json:"candidates"`
}

func readCandidateFile(path string) (candidateFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return candidateFile{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file candidateFile
	if err := json.Unmarshal(data, &file); err != nil {
		// fall back to a bare candidate array
		var candidates []client.Candidate
		if arrErr := json.Unmarshal(data, &candidates); arrErr != nil {
			return candidateFile{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		file.Candidates = candidates
	}
	if len(file.Candidates) == 0 {
		return candidateFile{}, fmt.Errorf("%s contains no candidates", path)
	}
	return file, nil
}

func newAnalyzeCommand(opts *globalOptions) *cobra.Command {
	var (
		documentID string
		async      bool
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "analyze <candidates.json>",
		Short: "Submit a candidate list for enrichment",
		Long:  "Reads a JSON file of extracted drug candidates, submits it to the API\nserver, and prints the resulting report.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := readCandidateFile(args[0])
			if err != nil {
				return err
			}
			if documentID != "" {
				file.DocumentID = documentID
			}
			if file.DocumentID == "" {
				return fmt.Errorf("document ID missing: set it in the file or via --document-id")
			}

			api, err := opts.newClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if async {
				jobID, err := api.SubmitAnalysisAsync(ctx, file.DocumentID, file.Candidates)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued job %s\n", jobID)
				return nil
			}

			report, err := api.SubmitAnalysis(ctx, file.DocumentID, file.Candidates)
			if err != nil {
				return err
			}

			if opts.Output == "csv" {
				// the CSV rendering lives server-side
				data, err := api.ExportReport(ctx, report.RunID, "csv")
				if err != nil {
					return err
				}
				return writeOutput(cmd, outPath, data)
			}
			if outPath != "" {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				return writeOutput(cmd, outPath, data)
			}
			return printReport(cmd.OutOrStdout(), report, opts.Output)
		},
	}

	cmd.Flags().StringVar(&documentID, "document-id", "", "document identifier (overrides the file)")
	cmd.Flags().BoolVar(&async, "async", false, "queue the job instead of waiting for the report")
	cmd.Flags().StringVar(&outPath, "out", "", "write the report to a file instead of stdout")

	return cmd
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", path)
	return nil
}
