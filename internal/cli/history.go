package cli

import (
	"fmt"
	"time"

	"github.com/bosonshiggs/webr/pkg/webr"
	"github.com/spf13/cobra"
)

func newHistoryCmd(factory RuntimeFactory) *cobra.Command {
	var (
		tag   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled results",
		Long: `Show results recorded in the local journal, newest first. With --tag,
show every result for that tag, oldest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, factory)
			if err != nil {
				return err
			}

			var events []webr.Event
			if tag != "" {
				events, err = s.rt.Journal().ByTag(tag)
			} else {
				events, err = s.rt.Journal().Recent(limit)
			}
			if closeErr := s.close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}

			for _, evt := range events {
				fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s: %s\n",
					evt.At.Format(time.RFC3339), evt.Name, evt.Key(), evt.Payload)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Only show results for this tag")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results (0 for all)")
	return cmd
}
