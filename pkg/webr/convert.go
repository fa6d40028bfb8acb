package webr

import (
	"github.com/bosonshiggs/webr/pkg/jsonconv"
)

// JSONToDictionary decodes a JSON object. On failure it posts a
// JsonToDictionaryError event and returns an empty map.
func (c *Client) JSONToDictionary(s string) map[string]any {
	m, err := jsonconv.ToMap(s)
	if err != nil {
		c.reportError(CodeJSONToDictionary, "Error converting JSON to dictionary: "+err.Error())
		return map[string]any{}
	}
	return m
}

// DictionaryToJSON encodes a map as a JSON object. On failure it posts a
// DictionaryToJsonError event and returns "{}".
func (c *Client) DictionaryToJSON(m map[string]any) string {
	s, err := jsonconv.FromMap(m)
	if err != nil {
		c.reportError(CodeDictionaryToJSON, "Error converting dictionary to JSON: "+err.Error())
		return "{}"
	}
	return s
}
