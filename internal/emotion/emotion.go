// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package emotion provides keyword-based emotion tagging for outgoing text.
package emotion

import (
	"regexp"
	"strings"
)

// =============================================================================
// LABELS
// =============================================================================

// Label is a coarse emotion category attached to outgoing completion requests.
type Label string

const (
	LabelSadness    Label = "sadness"
	LabelAnxiety    Label = "anxiety"
	LabelLoneliness Label = "loneliness"
	LabelGuilt      Label = "guilt"
	LabelAnger      Label = "anger"

	// LabelUnknown is returned when no pattern matches, so the result set
	// is never empty.
	LabelUnknown Label = "unknown"
)

// String returns the string representation of the label.
func (l Label) String() string {
	return string(l)
}

// Labels is an ordered set of detected emotion labels.
type Labels []Label

// String joins the labels with ", " for embedding in a prompt.
func (ls Labels) String() string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

// Contains reports whether the set includes the given label.
func (ls Labels) Contains(label Label) bool {
	for _, l := range ls {
		if l == label {
			return true
		}
	}
	return false
}

// =============================================================================
// DETECTION
// =============================================================================

// pattern pairs a label with its word-bound keyword check. Checks are
// independent and non-exclusive: multiple labels may apply to one input.
type pattern struct {
	label Label
	re    *regexp.Regexp
}

// patterns is applied in order over the lower-cased input.
var patterns = []pattern{
	{LabelSadness, regexp.MustCompile(`\b(sad|down|depressed)\b`)},
	{LabelAnxiety, regexp.MustCompile(`\b(anxious|worried|nervous)\b`)},
	{LabelLoneliness, regexp.MustCompile(`\b(lonely|alone)\b`)},
	{LabelGuilt, regexp.MustCompile(`\b(guilty|ashamed)\b`)},
	{LabelAnger, regexp.MustCompile(`\b(angry|mad)\b`)},
}

// Detect returns the emotion labels matching the text.
//
// Pure and deterministic: no I/O, no state, total over any string input.
// If no pattern matches, the singleton set {unknown} is returned.
func Detect(text string) Labels {
	lowered := strings.ToLower(text)

	var labels Labels
	for _, p := range patterns {
		if p.re.MatchString(lowered) {
			labels = append(labels, p.label)
		}
	}

	if len(labels) == 0 {
		return Labels{LabelUnknown}
	}
	return labels
}
