package llm

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/openai/openai-go"
)

// DescribeError turns a model request failure into a message for the user.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}

	status := 0
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	text := err.Error()
	lower := strings.ToLower(text)

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return "Model request timed out. Check the network and the model service, then try again."
	case status == 401 || strings.Contains(text, "401") || strings.Contains(lower, "unauthorized"):
		return "Model authentication failed (401). Check the API key."
	case status == 404 || strings.Contains(text, "404"):
		return "Model endpoint not found (404). Check the base URL; OpenAI-compatible endpoints usually end with /v1."
	}
	return "API call failed: " + text
}
