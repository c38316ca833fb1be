package logging

import (
	"errors"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
)

// replaceGoerr expands goerr values into a group for JSON output, the same
// way clog.GoerrHook does for console output.
func replaceGoerr(_ []string, attr slog.Attr) slog.Attr {
	err, ok := attr.Value.Any().(error)
	if !ok {
		return attr
	}

	var ge *goerr.Error
	if !errors.As(err, &ge) {
		return slog.String(attr.Key, err.Error())
	}

	attrs := []any{slog.String("message", ge.Error())}
	for k, v := range ge.Values() {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.Group(attr.Key, attrs...)
}
