// Package costar models the six-field COSTAR prompt structure and its
// deterministic renderings. Rendering performs no I/O and no provider
// logic; the same sections always produce byte-identical output.
package costar

import (
	"fmt"
	"strings"
)

// Sections holds the six COSTAR fields in their canonical order.
type Sections struct {
	Context   string `json:"context"`
	Objective string `json:"objective"`
	Style     string `json:"style"`
	Tone      string `json:"tone"`
	Audience  string `json:"audience"`
	Response  string `json:"response"`
}

// fieldNames gives the canonical labels in render order.
var fieldNames = [6]string{"Context", "Objective", "Style", "Tone", "Audience", "Response"}

// Fields returns the section values in canonical order.
func (s Sections) Fields() [6]string {
	return [6]string{s.Context, s.Objective, s.Style, s.Tone, s.Audience, s.Response}
}

// Normalize trims surrounding whitespace from every field.
func (s Sections) Normalize() Sections {
	return Sections{
		Context:   strings.TrimSpace(s.Context),
		Objective: strings.TrimSpace(s.Objective),
		Style:     strings.TrimSpace(s.Style),
		Tone:      strings.TrimSpace(s.Tone),
		Audience:  strings.TrimSpace(s.Audience),
		Response:  strings.TrimSpace(s.Response),
	}
}

// Validate reports the first missing required field. Context and Objective
// are mandatory; the remaining fields may be left blank.
func (s Sections) Validate() error {
	if strings.TrimSpace(s.Context) == "" {
		return fmt.Errorf("costar: context is required")
	}
	if strings.TrimSpace(s.Objective) == "" {
		return fmt.Errorf("costar: objective is required")
	}
	return nil
}

// RenderInstruction builds the instruction prompt sent to an AI provider.
// The output is a deterministic function of the sections alone.
func RenderInstruction(s Sections) string {
	s = s.Normalize()
	var b strings.Builder
	b.WriteString("Generate a prompt following the COSTAR methodology:\n\n")
	for i, value := range s.Fields() {
		if value == "" {
			value = "(not specified)"
		}
		b.WriteString("**")
		b.WriteString(fieldNames[i])
		b.WriteString(":** ")
		b.WriteString(value)
		b.WriteString("\n")
	}
	b.WriteString("\nWrite a detailed, effective prompt that honors every parameter above.")
	return b.String()
}

// RenderFallback produces the degraded output used when no live provider
// succeeded. It is pure string assembly and must never fail.
func RenderFallback(s Sections) string {
	s = s.Normalize()
	var b strings.Builder
	b.WriteString("# COSTAR Prompt\n\n")
	for i, value := range s.Fields() {
		if value == "" {
			continue
		}
		b.WriteString("## ")
		b.WriteString(fieldNames[i])
		b.WriteString("\n")
		b.WriteString(value)
		b.WriteString("\n\n")
	}
	b.WriteString("---\n")
	b.WriteString("Generated from the raw template without AI enhancement. ")
	b.WriteString("Check AI provider availability for enhanced results.")
	return b.String()
}
