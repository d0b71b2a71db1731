package retrieval

import (
	"strings"

	"github.com/verticelabs/acervo/internal/cache"
	"github.com/verticelabs/acervo/internal/hyde"
	"github.com/verticelabs/acervo/internal/models"
)

// Vague cues: follow-up questions that lean on the conversation for their
// subject. Both the corpus Portuguese and English forms are covered.
var vagueCues = []string{
	"ultima", "ultimo", "last", "latest", "recente", "recent",
	"foi aprovado", "was it approved", "quem votou", "who voted",
	"e a proxima", "the next one",
}

// enrichQuery rewrites vague queries using context recovered from the recent
// history: the detected document type and council are appended so the search
// vector carries the subject the user left implicit. Specific queries pass
// through unchanged. Purely heuristic, no generative call.
func enrichQuery(query string, history []models.ChatMessage) string {
	if !isVague(query) {
		return query
	}
	analysis := hyde.Analyze(query, history)

	var extra []string
	if analysis.DocType != models.DocTypeOther && !strings.Contains(strings.ToLower(query), string(analysis.DocType)) {
		extra = append(extra, string(analysis.DocType))
	}
	if analysis.Council != "" && !strings.Contains(query, analysis.Council) {
		extra = append(extra, analysis.Council)
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}

func isVague(query string) bool {
	if len(strings.Fields(query)) < 4 {
		return true
	}
	normalized := cache.Normalize(query)
	for _, cue := range vagueCues {
		if strings.Contains(normalized, cue) {
			return true
		}
	}
	return false
}
