package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/docket/pkg/redis"
)

// NewDLQCommand inspects batches the Kafka consumer could not apply. Exported
// payloads replay with `docket ingest --kind <kind> --file <file>`.
func NewDLQCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect dead-lettered Kafka batches",
	}

	cmd.AddCommand(newDLQListCommand())
	cmd.AddCommand(newDLQCountCommand())

	return cmd
}

func newDLQListCommand() *cobra.Command {
	var (
		limit       int64
		withPayload bool
		exportDir   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest dead-lettered batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDLQ(cmd.Context(), func(ctx context.Context, dlq *redis.DeadLetterQueue) error {
				entries, err := dlq.List(ctx, limit)
				if err != nil {
					return err
				}
				if exportDir != "" {
					if err := exportPayloads(exportDir, entries); err != nil {
						return err
					}
				}
				return writeEntries(cmd.OutOrStdout(), entries, withPayload)
			})
		},
	}

	cmd.Flags().Int64VarP(&limit, "limit", "n", 100, "number of entries to show")
	cmd.Flags().BoolVar(&withPayload, "payload", false, "include the batch body in the output")
	cmd.Flags().StringVar(&exportDir, "export", "", "write each batch body to <dir>/<kind>-<id>.json for replay")

	return cmd
}

func newDLQCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of dead-lettered batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDLQ(cmd.Context(), func(ctx context.Context, dlq *redis.DeadLetterQueue) error {
				n, err := dlq.Count(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
}

func withDLQ(ctx context.Context, fn func(ctx context.Context, dlq *redis.DeadLetterQueue) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	client, err := a.connectRedis(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(ctx, redis.NewDeadLetterQueue(client, a.cfg.RedisDLQStream, a.logger))
}

func writeEntries(w io.Writer, entries []redis.DLQEntry, withPayload bool) error {
	if !withPayload {
		for i := range entries {
			entries[i].Payload = ""
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func exportPayloads(dir string, entries []redis.DLQEntry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for _, e := range entries {
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", e.Kind, e.ID))
		if err := os.WriteFile(path, []byte(e.Payload), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}
