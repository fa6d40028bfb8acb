package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/bosonshiggs/webr/pkg/webr"
	"github.com/spf13/cobra"
)

func newRequestCmd(verb webr.Verb, factory RuntimeFactory) *cobra.Command {
	var (
		baseURL string
		headers []string
		data    string
		async   bool
	)

	name := strings.ToLower(string(verb))
	cmd := &cobra.Command{
		Use:   name + " <endpoint> [tag]",
		Short: fmt.Sprintf("Send a %s request to base URL + endpoint", verb),
		Long: fmt.Sprintf(`Send a %s request to the concatenation of the base URL and endpoint.
The tag defaults to the endpoint and is echoed back with the result.

Examples:
  webr %s /users --base-url https://api.example.com
  webr %s /users create-user -H "Content-Type: application/json" -d '{"name":"ada"}'`, verb, name, name),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hdrs, err := parseHeaders(headers)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, factory)
			if err != nil {
				return err
			}
			client := s.client()
			if cmd.Flags().Changed("base-url") {
				client.SetBaseURL(baseURL)
			}
			if len(hdrs) > 0 {
				client.SetHeaders(hdrs)
			}
			client.SetData(data)
			if cmd.Flags().Changed("async") {
				client.SetAsync(async)
			}

			tag := args[0]
			if len(args) > 1 {
				tag = args[1]
			}
			// The call is bound to the command context, so it always resolves.
			_, _ = client.Do(cmd.Context(), verb, args[0], tag).Wait(context.Background())
			return s.close()
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL prepended to the endpoint (overrides BASE_URL)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Request header as 'Key: Value' (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body (ignored for GET)")
	cmd.Flags().BoolVar(&async, "async", true, "Run the exchange on the worker pool")
	return cmd
}

// parseHeaders turns "Key: Value" flags into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usageError("invalid header %q (expected 'Key: Value')", h)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
