// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package muse

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/jeranaias/muse-tui/internal/persona"
)

// FallbackNarration is used when the model output carries no narration tag.
const FallbackNarration = "*thinks quietly*"

// ResponseInstruction is the synthetic user turn that starts phase two.
const ResponseInstruction = "Now provide your detailed response:"

// narrationBoost is added to the persona temperature for phase one.
const narrationBoost = 0.2

var narrationPattern = regexp.MustCompile(`\[NARRATION:\s*(.*?)\]`)

// SystemPrompt returns the persona prompt extended with the reply format.
func SystemPrompt(p persona.Persona, userMessage string) string {
	var b strings.Builder
	b.WriteString(p.SystemPrompt)
	fmt.Fprintf(&b, `

IMPORTANT RESPONSE FORMAT:
You must structure your response in exactly this format:

[NARRATION: Brief first-person action or emotion, max %d characters]

[RESPONSE: Your full detailed response here]

Examples:
[NARRATION: *leans forward with curiosity*]
[RESPONSE: That's a fascinating question! Let me explore this with you...]

[NARRATION: *smiles warmly and tilts head*]
[RESPONSE: I love how you're thinking about this...]

The narration should be a short stage direction describing your reaction. `, p.NarrationLength.MaxChars())
	fmt.Fprintf(&b, `The response should be your full, thoughtful reply to: "%s"`, userMessage)
	return b.String()
}

// NarrationTemperature raises t for the narration phase, capped at 1.0.
func NarrationTemperature(t float64) float64 {
	return math.Min(t+narrationBoost, 1.0)
}

// ExtractNarration pulls the text of the first [NARRATION: ...] tag out of
// model output, removing emphasis markers. Output without a usable tag gives
// FallbackNarration; that is not an error.
func ExtractNarration(text string) string {
	m := narrationPattern.FindStringSubmatch(text)
	if m == nil {
		return FallbackNarration
	}
	n := strings.TrimSpace(strings.ReplaceAll(m[1], "*", ""))
	if n == "" {
		return FallbackNarration
	}
	return n
}

// NarrationTag formats a narration the way phase two replays it.
func NarrationTag(narration string) string {
	return "[NARRATION: " + narration + "]"
}
