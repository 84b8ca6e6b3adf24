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
	"fmt"
	"sort"
	"strings"
)

// FormatTree renders an exploration's nodes as an ASCII tree.
//
// Nodes on the path from the root to the winner are starred.
//
// Inputs:
//   - exp: The exploration (may be nil to omit the header).
//   - nodes: The exploration's nodes, in any order.
//
// Outputs:
//   - string: The rendered tree.
func FormatTree(exp *Exploration, nodes []*ScenarioNode) string {
	if len(nodes) == 0 {
		return "Empty tree"
	}

	byID := make(map[string]*ScenarioNode, len(nodes))
	children := make(map[string][]*ScenarioNode)
	var root *ScenarioNode
	for _, n := range nodes {
		byID[n.ID] = n
		if n.IsRoot() {
			root = n
		} else {
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}
	for _, c := range children {
		sort.Slice(c, func(i, j int) bool { return c[i].Seq < c[j].Seq })
	}

	onPath := make(map[string]bool)
	var sb strings.Builder
	if exp != nil {
		sb.WriteString(fmt.Sprintf("Exploration: %s (experiment %s)\n", exp.ID, exp.ExperimentID))
		sb.WriteString(fmt.Sprintf("Goal: %s\n", exp.Goal))
		sb.WriteString(fmt.Sprintf("Status: %s, Depth: %d, Nodes: %d, LLM calls: %d/%d\n",
			exp.Status, exp.CurrentDepth, len(nodes), exp.TotalLLMCalls, exp.Config.MaxLLMCalls))
		for id := exp.WinnerID; id != ""; {
			n, ok := byID[id]
			if !ok {
				break
			}
			onPath[id] = true
			id = n.ParentID
		}
		sb.WriteString("\n")
	}
	if root == nil {
		return sb.String() + "No root node"
	}

	formatNode(&sb, root, children, onPath, "", true)
	return sb.String()
}

func formatNode(sb *strings.Builder, node *ScenarioNode, children map[string][]*ScenarioNode, onPath map[string]bool, prefix string, isLast bool) {
	branch := "├── "
	if isLast {
		branch = "└── "
	}

	statusIcon := " "
	switch node.Status {
	case NodeWinner:
		statusIcon = "✓"
	case NodeExpansionFailed:
		statusIcon = "✗"
	case NodeDominated:
		statusIcon = "-"
	case NodeActive:
		statusIcon = "→"
	}

	pathIcon := ""
	if onPath[node.ID] {
		pathIcon = " ★"
	}

	label := "baseline"
	if node.Action != nil {
		label = fmt.Sprintf("[%s] %s", node.Action.Category, truncate(node.Action.Description, 40))
	}

	sb.WriteString(fmt.Sprintf("%s%s%s (success: %.3f, Δ%+.3f, risk: %+.3f) %s%s\n",
		prefix, branch, label,
		node.Fitness.SuccessRate, node.SuccessDelta, node.AccumulatedRisk,
		statusIcon, pathIcon))

	childPrefix := prefix
	if isLast {
		childPrefix += "    "
	} else {
		childPrefix += "│   "
	}

	kids := children[node.ID]
	for i, child := range kids {
		formatNode(sb, child, children, onPath, childPrefix, i == len(kids)-1)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
