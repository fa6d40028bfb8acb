package cli

import (
	"fmt"

	"github.com/bosonshiggs/webr/internal/app"
	"github.com/spf13/cobra"
)

func newRunCmd(factory RuntimeFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "run <collection.yaml>",
		Short: "Run every request in a collection file",
		Long: `Run every request declared in a YAML collection file and wait for all
results. Collection headers apply to every request; request headers and
data apply to that request only.

Example collection:
  base_url: https://api.example.com
  headers:
    Authorization: Bearer token
  requests:
    - name: list users
      verb: GET
      endpoint: /users
    - name: create user
      verb: POST
      endpoint: /users
      data: '{"name":"ada"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := app.LoadCollection(args[0])
			if err != nil {
				return &exitError{code: ExitParseError, err: err}
			}

			s, err := openSession(cmd, factory)
			if err != nil {
				return err
			}
			results, runErr := app.RunCollection(cmd.Context(), s.client(), col)
			closeErr := s.close()
			if runErr != nil {
				return runErr
			}

			failed := 0
			for _, res := range results {
				if !res.Event.Succeeded() {
					failed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d requests, %d failed\n", len(results), failed)
			return closeErr
		},
	}
}
