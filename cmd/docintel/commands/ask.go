package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docintel-go/internal/agent"
	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/response"
)

// NewAskCmd constructs the `docintel ask` command, which ingests the given
// files and routes one query through the classifier.
func NewAskCmd() *cobra.Command {
	var files []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [--file FILE]... QUESTION",
		Short: "Ask a question, optionally about one or more documents",
		Long: `Ask a natural language question. Files given with --file are ingested
and become the active documents for the question.

The query is classified as a document question, summary, comparison or chat
message and answered by the matching handler, so "summarize this" or
"compare these two" work as well as direct questions.

Examples:
  docintel ask --file contract.pdf "what is the termination notice period?"
  docintel ask --file v1.txt --file v2.txt "compare these documents"
  docintel ask "hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			rt, err := buildService(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer rt.Close()

			sessionID := rt.agent.CreateSession()
			if len(files) > 0 {
				loaded, err := readFiles(files)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				up, err := rt.agent.Upload(ctx, sessionID, loaded)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				for _, d := range up.Documents {
					if d.Error != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", d.Name, d.Error)
					}
				}
			}

			env, err := rt.agent.Query(ctx, agent.QueryRequest{
				Message:   strings.Join(args, " "),
				SessionID: sessionID,
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			return printEnvelope(cmd.OutOrStdout(), env, asJSON)
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Document to ingest and activate (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response envelope as JSON")

	return cmd
}

// printEnvelope writes env either as indented JSON or as plain text for a
// terminal. A failed envelope is returned as an error after printing.
func printEnvelope(w io.Writer, env *response.Envelope, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(env); err != nil {
			return err
		}
	} else {
		printResult(w, env)
	}
	if !env.Success {
		return fmt.Errorf("%s", env.Error)
	}
	return nil
}

// printResult renders the payload of a successful envelope.
func printResult(w io.Writer, env *response.Envelope) {
	switch r := env.Result.(type) {
	case response.AnswerPayload:
		fmt.Fprintln(w, r.Answer)
		for _, c := range r.Citations {
			fmt.Fprintf(w, "  [%s, page %d] score %.3f\n", c.DocumentName, c.Page, c.Score)
		}
	case response.SummaryPayload:
		fmt.Fprintln(w, r.Summary)
	case response.ComparisonPayload:
		fmt.Fprintln(w, r.Comparison)
	case response.MessagePayload:
		fmt.Fprintln(w, r.Message)
	}
}
