package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	ctxpkg "github.com/Ramsey-B/docket/pkg/context"
	"github.com/Ramsey-B/docket/pkg/models"
)

// NewIngestCommand loads one batch file the same way the HTTP routes would.
func NewIngestCommand() *cobra.Command {
	var (
		kind string
		file string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a single batch file",
		Example: `  docket ingest --kind roster --file roster.json
  cat calls.json | docket ingest --kind dispatch --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			recordKind, err := models.ParseRecordKind(kind)
			if err != nil {
				return err
			}

			body, err := readBatchFile(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			batch, err := models.DecodeBatch(recordKind, body)
			if err != nil {
				return fmt.Errorf("failed to decode %s batch: %w", recordKind, err)
			}

			result, err := runIngest(cmd.Context(), batch)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "record kind: roster, dispatch, registry, bulletin, offender_summary, offender_detail")
	cmd.Flags().StringVarP(&file, "file", "f", "", "batch JSON file, or - for stdin")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readBatchFile(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return body, nil
}

func runIngest(ctx context.Context, batch models.Batch) (any, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	defer a.close(context.WithoutCancel(ctx))

	if err := a.databaseDependency().OnStart(ctx); err != nil {
		return nil, err
	}
	if err := a.producerDependency().OnStart(ctx); err != nil {
		return nil, err
	}

	service, err := a.newService()
	if err != nil {
		return nil, err
	}

	ctx = ctxpkg.SetSource(ctx, "cli")
	return service.Ingest(ctx, batch)
}
