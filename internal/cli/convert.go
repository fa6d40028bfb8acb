package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newJSONToDictCmd(factory RuntimeFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "json2dict <json>",
		Short: "Convert a JSON object into a dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, factory)
			if err != nil {
				return err
			}
			dict := s.client().JSONToDictionary(args[0])
			if err := s.close(); err != nil {
				return err
			}
			for _, k := range slices.Sorted(maps.Keys(dict)) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", k, dict[k])
			}
			return nil
		},
	}
}

func newDictToJSONCmd(factory RuntimeFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "dict2json key=value...",
		Short: "Convert key=value pairs into a JSON object",
		Long: `Convert key=value pairs into a JSON object. Values that parse as JSON
(numbers, booleans, null, arrays, objects) keep their type; anything else is
a string.

Example:
  webr dict2json name=ada age=36 admin=true`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dict, err := parsePairs(args)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, factory)
			if err != nil {
				return err
			}
			out := s.client().DictionaryToJSON(dict)
			if err := s.close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func parsePairs(args []string) (map[string]any, error) {
	dict := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, usageError("invalid pair %q (expected key=value)", arg)
		}
		if gjson.Valid(value) {
			dict[key] = gjson.Parse(value).Value()
			continue
		}
		dict[key] = value
	}
	return dict, nil
}
