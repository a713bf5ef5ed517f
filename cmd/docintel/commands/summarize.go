package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docintel-go/internal/agent"
	"github.com/54b3r/docintel-go/internal/classifier"
	"github.com/54b3r/docintel-go/internal/ingestion"
	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/response"
	"github.com/54b3r/docintel-go/internal/task"
)

// NewSummarizeCmd constructs the `docintel summarize` command.
func NewSummarizeCmd() *cobra.Command {
	var file, style, audience string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summarize [--file FILE | TEXT]",
		Short: "Summarize a document or inline text",
		Long: `Summarize the text of a file, or the text given as arguments.

Styles: brief (default), detailed, bullet_points, micro, audience.
The audience style adapts the summary to --audience (general or professional).

Examples:
  docintel summarize --file report.pdf --style bullet_points
  docintel summarize --style audience --audience professional "long text..."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			text := strings.Join(args, " ")
			if file != "" {
				t, err := extractFile(ctx, file)
				if err != nil {
					return fmt.Errorf("summarize: %w", err)
				}
				text = t
			}

			rt, err := buildService(ctx, log)
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}
			defer rt.Close()

			sum, err := rt.agent.Summarize(ctx, text, style, audience)
			var res task.Result
			if err == nil {
				res = sum
			}
			env, err := directEnvelope(text, classifier.Summarization, res, err)
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}
			return printEnvelope(cmd.OutOrStdout(), env, asJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document to summarize (PDF or text)")
	cmd.Flags().StringVar(&style, "style", "brief", "Summary style")
	cmd.Flags().StringVar(&audience, "audience", "general", "Audience for the audience style")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response envelope as JSON")

	return cmd
}

// NewCompareCmd constructs the `docintel compare` command.
func NewCompareCmd() *cobra.Command {
	var fileA, fileB, mode string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compare --a FILE --b FILE",
		Short: "Compare two documents",
		Long: `Compare the text of two files.

Modes: comprehensive (default), similarities, differences.

Examples:
  docintel compare --a v1.pdf --b v2.pdf
  docintel compare --a old.txt --b new.txt --mode differences`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			textA, err := extractFile(ctx, fileA)
			if err != nil {
				return fmt.Errorf("compare: %w", err)
			}
			textB, err := extractFile(ctx, fileB)
			if err != nil {
				return fmt.Errorf("compare: %w", err)
			}

			rt, err := buildService(ctx, log)
			if err != nil {
				return fmt.Errorf("compare: %w", err)
			}
			defer rt.Close()

			cmp, err := rt.agent.Compare(ctx, textA, textB, mode)
			var res task.Result
			if err == nil {
				res = cmp
			}
			env, err := directEnvelope("", classifier.Comparison, res, err)
			if err != nil {
				return fmt.Errorf("compare: %w", err)
			}
			return printEnvelope(cmd.OutOrStdout(), env, asJSON)
		},
	}

	cmd.Flags().StringVar(&fileA, "a", "", "First document (PDF or text)")
	cmd.Flags().StringVar(&fileB, "b", "", "Second document (PDF or text)")
	cmd.Flags().StringVar(&mode, "mode", "comprehensive", "Comparison mode")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response envelope as JSON")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")

	return cmd
}

// directEnvelope wraps the outcome of a direct summarize or compare call the
// way the HTTP API does. Invalid options are returned as errors.
func directEnvelope(query string, cat classifier.Category, res task.Result, err error) (*response.Envelope, error) {
	if errors.Is(err, agent.ErrInvalidOption) {
		return nil, err
	}
	c := classifier.Classification{Category: cat, Confidence: 1, Reasoning: "direct " + string(cat) + " request"}
	return response.Assemble(query, c, res, err), nil
}

// extractFile reads path and returns its text, running pdftotext for PDFs.
func extractFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	ex := ingestion.NewExtractor(ingestion.ExecRunner{}, getEnvOrDefault("PDFTOTEXT_PATH", "pdftotext"))
	return ex.Extract(ctx, filepath.Base(path), data)
}
