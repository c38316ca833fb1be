package tool

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

// Decode copies validated arguments into an input struct with json tags
func Decode(args map[string]any, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return goerr.Wrap(err, "failed to encode arguments")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return goerr.Wrap(err, "failed to parse input parameters")
	}
	return nil
}
