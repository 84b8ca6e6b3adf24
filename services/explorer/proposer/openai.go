// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package proposer asks a chat model for candidate product changes.
package proposer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("openai api key is not set")

// OpenAI implements explore.ActionProposalProvider with a chat completion.
//
// One Propose call is exactly one request. Retries, pacing and timeouts are
// applied by explore.ResilientProvider.
//
// Thread Safety: Safe for concurrent use.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures an OpenAI provider.
type Option func(*OpenAI)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *OpenAI) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *OpenAI) {
		o.httpClient = c
	}
}

// New creates a provider from the proposal config.
//
// Outputs:
//   - *OpenAI: Ready to use.
//   - error: ErrMissingAPIKey if cfg.APIKey is empty.
func New(cfg explore.ProposalConfig, opts ...Option) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	o := &OpenAI{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if o.httpClient != nil {
		clientCfg.HTTPClient = o.httpClient
	}
	o.client = openai.NewClientWithConfig(clientCfg)

	o.logger.Info("initialized proposal model", slog.String("model", o.model))
	return o, nil
}

// Propose implements explore.ActionProposalProvider.
func (o *OpenAI) Propose(ctx context.Context, node *explore.ScenarioNode, pc explore.ProposalContext) ([]explore.ActionProposal, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(node, pc)},
		},
		Temperature: o.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, explore.NewProposalError(explore.ProposalMalformedOutput, errors.New("model returned no choices"))
	}

	o.logger.Debug("proposal model responded",
		slog.String("node_id", node.ID),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return explore.ParseProposals(resp.Choices[0].Message.Content)
}

// classify maps API failures onto proposal error kinds.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return explore.NewProposalError(explore.ProposalTimeout, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	kind := explore.ProposalUnavailable
	switch {
	case status == http.StatusTooManyRequests:
		kind = explore.ProposalRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = explore.ProposalTimeout
	}
	return explore.NewProposalError(kind, fmt.Errorf("chat completion: %w", err))
}
