package commands

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/docintel-go/internal/logging"
)

// NewIngestCmd constructs the `docintel ingest` command, which runs the
// ingestion pipeline over local files and reports the stored documents.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Extract, chunk and embed documents",
		Long: `Ingest one or more PDF or text files and print their document ids.

Documents are identified by the SHA-256 of their bytes, so ingesting the same
content twice, under any name, reuses the first result without re-embedding.
With INDEX_BACKEND=qdrant the chunk vectors are also upserted into Qdrant.

Relevant environment variables:
  EMBEDDING_PROVIDER   hash (default), ollama, openai, azure
  CHUNK_SIZE           runes per chunk (default: 400)
  CHUNK_OVERLAP        runes shared by consecutive chunks (default: 50)
  PDFTOTEXT_PATH       pdftotext binary (default: pdftotext)

Examples:
  docintel ingest report.pdf notes.txt
  EMBEDDING_PROVIDER=ollama docintel ingest ./docs/*.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			rt, err := buildDocuments(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer rt.Close()

			files, err := readFiles(args)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDOCUMENT ID\tSTATUS\tREUSED\tCHUNKS")
			failed := 0
			var ready []string
			for _, f := range files {
				res, err := rt.docs.Ingest(ctx, f.Data, f.Name)
				if err != nil {
					failed++
					log.Error("ingest failed", slog.String("file", f.Name), slog.Any("error", err))
					id := "-"
					if res != nil {
						id = res.Document.ID
					}
					fmt.Fprintf(tw, "%s\t%s\tfailed\t-\t-\n", f.Name, id)
					continue
				}
				d := res.Document
				ready = append(ready, d.ID)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\n", f.Name, d.ID, d.Status, res.Reused, d.Chunks)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			// Qdrant keeps the vectors beyond this process; build the set so
			// they are upserted now.
			if rt.qdrant != nil && len(ready) > 0 {
				if _, err := rt.indexes.GetOrBuild(ctx, ready); err != nil {
					return fmt.Errorf("ingest: index build failed: %w", err)
				}
			}

			if failed > 0 {
				return fmt.Errorf("ingest: %d of %d documents failed", failed, len(files))
			}
			return nil
		},
	}

	return cmd
}
