package models

import "fmt"

// Provenance tags where an answer came from.
const (
	ProvenanceUser   = "user"   // per-user cache hit
	ProvenanceGlobal = "global" // shared cache hit
	ProvenanceFresh  = "fresh"  // full retrieval pass
)

// Source is a cited chunk's document with its similarity score.
type Source struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Type       DocType `json:"type"`
	IsGlobal   bool    `json:"is_global"`
	Similarity float64 `json:"similarity"`
}

// Citation renders the source as shown to users, with the similarity as a
// percentage.
func (s Source) Citation() string {
	return fmt.Sprintf("%s (%s, %.1f%%)", s.Title, s.Type, s.Similarity*100)
}

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is a question posed to the retrieval engine.
type AskRequest struct {
	Query   string        `json:"query"`
	UserID  string        `json:"user_id,omitempty"`
	Role    string        `json:"role,omitempty"`
	History []ChatMessage `json:"history,omitempty"`
	UseHyDE bool          `json:"use_hyde"`
}

// Answer is the engine's response: the generated (or cached) text, the
// cited sources, and where it came from.
type Answer struct {
	Text       string   `json:"text"`
	Sources    []Source `json:"sources"`
	Provenance string   `json:"provenance"`
}
