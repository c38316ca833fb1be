package adapter

import (
	"errors"
	"strings"

	"google.golang.org/genai"
)

// IsTokenLimitError reports whether err is Gemini rejecting a request whose
// input is over the model's token limit, e.g. "The input token count
// (2500030) exceeds the maximum number of tokens allowed (1048576)."
func IsTokenLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Code == 400 &&
		apiErr.Status == "INVALID_ARGUMENT" &&
		strings.HasPrefix(apiErr.Message, "The input token count (") &&
		strings.Contains(apiErr.Message, ") exceeds the maximum number of tokens allowed (")
}
