package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

// ConnectionReport is the outcome of TestConnection.
type ConnectionReport struct {
	Models     []string
	ModelFound bool
	Reply      string
}

// TestConnection probes an endpoint: it lists the served models and then
// sends a tiny chat completion to model. Listing is optional since some
// servers do not implement it.
func TestConnection(ctx context.Context, client Client, model string) (*ConnectionReport, error) {
	report := &ConnectionReport{}

	models, err := client.ListModels(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("model listing unavailable")
	} else {
		report.Models = models
		report.ModelFound = slices.Contains(models, model)
	}

	resp, err := client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model:     model,
		Messages:  []Message{TextMessage(RoleUser, "Ping")},
		MaxTokens: 4,
	})
	if err != nil {
		return report, fmt.Errorf("chat completion: %w", err)
	}
	report.Reply = strings.TrimSpace(resp.Content)
	return report, nil
}
