package retrieval

import (
	"strings"
	"testing"

	"github.com/verticelabs/acervo/internal/models"
)

func TestEnrichQuery_SpecificQueryPassesThrough(t *testing.T) {
	q := "qual o quórum mínimo exigido pelo regimento interno"
	if got := enrichQuery(q, nil); got != q {
		t.Errorf("specific query was rewritten: %q", got)
	}
}

func TestEnrichQuery_VagueQueryGainsContext(t *testing.T) {
	history := []models.ChatMessage{
		{Role: "user", Content: "me mostre a resolução mais nova do CONSUNI"},
	}
	got := enrichQuery("e a última?", history)
	if !strings.Contains(got, "CONSUNI") {
		t.Errorf("enriched query %q lacks council from history", got)
	}
	if !strings.Contains(got, string(models.DocTypeResolution)) {
		t.Errorf("enriched query %q lacks document type from history", got)
	}
	if !strings.HasPrefix(got, "e a última?") {
		t.Errorf("original query must be preserved as prefix: %q", got)
	}
}

func TestEnrichQuery_AccentedCueDetected(t *testing.T) {
	history := []models.ChatMessage{
		{Role: "user", Content: "sobre as atas do CEPE"},
	}
	got := enrichQuery("qual foi a decisão mais recente sobre isso?", history)
	if got == "qual foi a decisão mais recente sobre isso?" {
		t.Error("recency cue should mark the query as vague")
	}
	if !strings.Contains(got, "CEPE") {
		t.Errorf("enriched query %q lacks council", got)
	}
}

func TestEnrichQuery_NoContextNoChange(t *testing.T) {
	q := "e aí?"
	if got := enrichQuery(q, nil); got != q {
		t.Errorf("vague query with nothing to add was rewritten: %q", got)
	}
}

func TestIsVague(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"sim", true},
		{"e a última?", true},
		{"qual a última resolução aprovada este ano", true},
		{"qual o quórum mínimo exigido pelo regimento interno", false},
	}
	for _, tt := range tests {
		if got := isVague(tt.query); got != tt.want {
			t.Errorf("isVague(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
