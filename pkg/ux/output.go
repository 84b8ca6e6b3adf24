// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package ux styles explorer CLI output.
//
// Colors are dropped automatically when stdout is not a terminal.
package ux

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorSlate       = lipgloss.Color("#2C4A54")
	ColorWarning     = lipgloss.Color("#F4D03F")
	ColorError       = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Muted   lipgloss.Style
	Winner  lipgloss.Style
	Active  lipgloss.Style
	Failed  lipgloss.Style
	Warning lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Header:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Winner:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Active:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Failed:  lipgloss.NewStyle().Foreground(ColorError),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
}

// StyleTree colors a rendered exploration tree line by line.
//
// The first line is the title and the remaining header lines (up to the
// first blank line) are dimmed headers. Node lines are styled by their
// trailing markers: ★ for the winning path, ✗ for failed expansion, - for
// dominated and → for active.
func StyleTree(tree string) string {
	lines := strings.Split(tree, "\n")
	inHeader := strings.HasPrefix(tree, "Exploration:")
	for i, line := range lines {
		if line == "" {
			inHeader = false
			continue
		}
		if inHeader {
			if i == 0 {
				lines[i] = Styles.Title.Render(line)
			} else {
				lines[i] = Styles.Header.Render(line)
			}
			continue
		}
		lines[i] = styleNodeLine(line)
	}
	return strings.Join(lines, "\n")
}

func styleNodeLine(line string) string {
	switch {
	case strings.HasSuffix(line, "★"):
		return Styles.Winner.Render(line)
	case strings.HasSuffix(line, "✗"):
		return Styles.Failed.Render(line)
	case strings.HasSuffix(line, " -"):
		return Styles.Muted.Render(line)
	case strings.HasSuffix(line, "→"):
		return Styles.Active.Render(line)
	default:
		return line
	}
}

// Status renders an exploration status word.
func Status(status string) string {
	switch status {
	case "goal_achieved":
		return Styles.Winner.Render(status)
	case "running":
		return Styles.Active.Render(status)
	case "no_viable_paths":
		return Styles.Failed.Render(status)
	default:
		return Styles.Warning.Render(status)
	}
}
