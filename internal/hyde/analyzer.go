// Package hyde implements hypothesis-based query expansion: generate a
// plausible answer first, embed it, and search with that instead of the raw
// query when confidence allows.
package hyde

import (
	"regexp"
	"strings"

	"github.com/verticelabs/acervo/internal/models"
)

// Analysis is the context classification of a query: the document type most
// likely to contain the answer, the organizational scope (council), and how
// certain the heuristics are about both.
type Analysis struct {
	DocType   models.DocType
	Council   string
	Topic     string
	Certainty float64
}

// Keyword tables cover the corpus vocabulary in both the canonical tags and
// the Portuguese terms users actually type.
var docTypeKeywords = map[models.DocType][]string{
	models.DocTypeRegulation: {"regulation", "bylaw", "regimento", "regulamento", "estatuto"},
	models.DocTypeMinutes:    {"minutes", "ata ", "atas", "deliberado", "deliberated"},
	models.DocTypeAgenda:     {"agenda", "pauta", "ordem do dia", "order of business"},
	models.DocTypeResolution: {"resolution", "resolucao", "resolução", "resolved"},
	models.DocTypeOrdinance:  {"ordinance", "portaria"},
}

var councilPattern = regexp.MustCompile(`\b[A-Z]{4,}\b`)

// Analyze classifies the query using lightweight heuristics over the query
// text and the most recent history. No generative call is involved; the
// certainty estimate feeds the expansion confidence.
func Analyze(query string, history []models.ChatMessage) Analysis {
	a := Analysis{
		DocType:   models.DocTypeOther,
		Topic:     query,
		Certainty: 0.5,
	}

	texts := []string{query}
	start := len(history) - 3
	if start < 0 {
		start = 0
	}
	for _, msg := range history[start:] {
		texts = append(texts, msg.Content)
	}

	for _, text := range texts {
		if a.DocType == models.DocTypeOther {
			a.DocType = detectDocType(text)
		}
		if a.Council == "" {
			a.Council = councilPattern.FindString(text)
		}
	}

	if a.DocType != models.DocTypeOther {
		a.Certainty += 0.2
	}
	if a.Council != "" {
		a.Certainty += 0.1
	}
	return a
}

func detectDocType(text string) models.DocType {
	lower := " " + strings.ToLower(text) + " "
	for _, t := range models.AllDocTypes {
		for _, kw := range docTypeKeywords[t] {
			if strings.Contains(lower, kw) {
				return t
			}
		}
	}
	return models.DocTypeOther
}

var citationMarkers = []string{"art.", "artigo", "§", "inciso", "article", "section "}

// Confidence combines the analysis certainty with structural markers in the
// generated hypothesis: a hypothesis that cites articles and paragraphs the
// way real documents do is worth trusting more.
func Confidence(a Analysis, hypothesis string) float64 {
	c := a.Certainty
	lower := strings.ToLower(hypothesis)
	for _, marker := range citationMarkers {
		if strings.Contains(lower, marker) {
			c += 0.2
			break
		}
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}
