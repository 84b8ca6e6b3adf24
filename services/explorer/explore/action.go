// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ActionCategory is the closed set of product change kinds a proposal may use.
type ActionCategory string

const (
	CategoryOnboarding     ActionCategory = "onboarding"
	CategoryPricing        ActionCategory = "pricing"
	CategoryMessaging      ActionCategory = "messaging"
	CategoryFeature        ActionCategory = "feature"
	CategorySupport        ActionCategory = "support"
	CategoryIntegration    ActionCategory = "integration"
	CategorySimplification ActionCategory = "simplification"
)

// Categories returns every known action category.
func Categories() []ActionCategory {
	return []ActionCategory{
		CategoryOnboarding,
		CategoryPricing,
		CategoryMessaging,
		CategoryFeature,
		CategorySupport,
		CategoryIntegration,
		CategorySimplification,
	}
}

// IsValid reports whether c belongs to the closed category set.
func (c ActionCategory) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ActionProposal is one concrete change suggested by the proposal provider.
//
// Proposals are ephemeral: they live only for the iteration that requested
// them and either become a ScenarioNode or are discarded.
type ActionProposal struct {
	Description string                `json:"description"`
	Category    ActionCategory        `json:"category"`
	Rationale   string                `json:"rationale"`
	Deltas      map[Dimension]float64 `json:"deltas,omitempty"`
}

// Validate checks the proposal and translates its deltas.
//
// Outputs:
//   - ScorecardDelta: The dense delta to apply to the parent scorecard.
//   - error: Non-nil if the proposal must be dropped.
func (p ActionProposal) Validate(maxDeltaMagnitude float64) (ScorecardDelta, error) {
	if !p.Category.IsValid() {
		return ScorecardDelta{}, fmt.Errorf("%w: %q", ErrUnknownCategory, p.Category)
	}
	if strings.TrimSpace(p.Description) == "" && strings.TrimSpace(p.Rationale) == "" {
		return ScorecardDelta{}, ErrEmptyRationale
	}
	return TranslateDeltas(p.Deltas, maxDeltaMagnitude)
}

// proposalEnvelope is the wire shape expected from the proposal model.
type proposalEnvelope struct {
	Proposals []ActionProposal `json:"proposals"`
}

// ParseProposals decodes model output into proposals.
//
// The output must be a JSON object {"proposals": [...]} or a bare JSON array.
// Surrounding prose, markdown code fences and keys outside the proposal shape
// are tolerated. A shape error is returned as a *ProposalError of kind
// ProposalMalformedOutput. Individual proposals are not validated here.
func ParseProposals(raw string) ([]ActionProposal, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, NewProposalError(ProposalMalformedOutput, fmt.Errorf("no JSON payload in output"))
	}

	if strings.HasPrefix(body, "[") {
		var list []ActionProposal
		if err := decodeProposals(body, &list); err != nil {
			return nil, NewProposalError(ProposalMalformedOutput, err)
		}
		return list, nil
	}

	var env proposalEnvelope
	if err := decodeProposals(body, &env); err != nil {
		return nil, NewProposalError(ProposalMalformedOutput, err)
	}
	if env.Proposals == nil {
		return nil, NewProposalError(ProposalMalformedOutput, fmt.Errorf("missing proposals field"))
	}
	return env.Proposals, nil
}

func decodeProposals(body string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode proposals: %w", err)
	}
	return nil
}

// extractJSON returns the outermost JSON object or array in s.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}
