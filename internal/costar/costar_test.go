package costar

import (
	"strings"
	"testing"
)

func sample() Sections {
	return Sections{
		Context:   "Marketing team at a SaaS startup",
		Objective: "Write a product launch email",
		Style:     "Persuasive",
		Tone:      "Enthusiastic",
		Audience:  "Existing customers",
		Response:  "Three short paragraphs",
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Sections)
		wantErr bool
	}{
		{"complete", func(s *Sections) {}, false},
		{"missing context", func(s *Sections) { s.Context = "" }, true},
		{"missing objective", func(s *Sections) { s.Objective = "  " }, true},
		{"optional fields blank", func(s *Sections) { s.Style, s.Tone, s.Audience, s.Response = "", "", "", "" }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := sample()
			tc.mutate(&s)
			err := s.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestNormalizeTrimsWhitespace(t *testing.T) {
	s := Sections{Context: "  padded  ", Objective: "\tgoal\n"}
	n := s.Normalize()
	if n.Context != "padded" || n.Objective != "goal" {
		t.Errorf("Normalize() = %+v", n)
	}
}

func TestRenderInstructionIsDeterministic(t *testing.T) {
	s := sample()
	first := RenderInstruction(s)
	for i := 0; i < 5; i++ {
		if got := RenderInstruction(s); got != first {
			t.Fatalf("rendering differed on iteration %d", i)
		}
	}
}

func TestRenderInstructionMarksBlankFields(t *testing.T) {
	s := Sections{Context: "ctx", Objective: "obj"}
	out := RenderInstruction(s)

	if !strings.Contains(out, "**Context:** ctx") {
		t.Errorf("missing context block:\n%s", out)
	}
	if !strings.Contains(out, "**Style:** (not specified)") {
		t.Errorf("blank style should render as (not specified):\n%s", out)
	}
}

func TestRenderInstructionFieldOrder(t *testing.T) {
	out := RenderInstruction(sample())
	order := []string{"**Context:**", "**Objective:**", "**Style:**", "**Tone:**", "**Audience:**", "**Response:**"}
	last := -1
	for _, label := range order {
		idx := strings.Index(out, label)
		if idx < 0 {
			t.Fatalf("label %s missing from output", label)
		}
		if idx < last {
			t.Errorf("label %s out of order", label)
		}
		last = idx
	}
}

func TestRenderFallbackSkipsBlankSections(t *testing.T) {
	s := Sections{Context: "ctx", Objective: "obj"}
	out := RenderFallback(s)

	if !strings.Contains(out, "## Context") || !strings.Contains(out, "## Objective") {
		t.Errorf("required sections missing:\n%s", out)
	}
	if strings.Contains(out, "## Style") {
		t.Errorf("blank section should be omitted:\n%s", out)
	}
	if !strings.Contains(out, "without AI enhancement") {
		t.Errorf("advisory footer missing:\n%s", out)
	}
}

func TestRenderFallbackIsDeterministic(t *testing.T) {
	s := sample()
	first := RenderFallback(s)
	if second := RenderFallback(s); second != first {
		t.Error("fallback rendering is not deterministic")
	}
}
