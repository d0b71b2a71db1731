package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeChatResponse(w http.ResponseWriter, content string) {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestGenerator(t *testing.T, url string) *HTTPGenerator {
	t.Helper()
	g, err := NewHTTPGenerator(HTTPGeneratorConfig{
		Endpoint:          url,
		Model:             "test-model",
		RequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestHTTPGenerator_Generate(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		writeChatResponse(w, "A pauta inclui três itens.")
	})

	g := newTestGenerator(t, srv.URL)
	text, err := g.Generate(context.Background(), "contexto do sistema", "qual a pauta")
	if err != nil {
		t.Fatal(err)
	}
	if text != "A pauta inclui três itens." {
		t.Errorf("text = %q", text)
	}
}

func TestHTTPGenerator_EmptySystemOmitted(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		writeChatResponse(w, "ok")
	})

	g := newTestGenerator(t, srv.URL)
	if _, err := g.Generate(context.Background(), "", "pergunta"); err != nil {
		t.Fatal(err)
	}
}

func TestHTTPGenerator_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeChatResponse(w, "resposta")
	})

	g := newTestGenerator(t, srv.URL)
	text, err := g.Generate(context.Background(), "s", "p")
	if err != nil {
		t.Fatal(err)
	}
	if text != "resposta" || calls.Load() != 2 {
		t.Errorf("text = %q, calls = %d", text, calls.Load())
	}
}

func TestHTTPGenerator_PersistentFailureSurfaces(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	g := newTestGenerator(t, srv.URL)
	_, err := g.Generate(context.Background(), "s", "p")
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("err = %v, want ErrProvider", err)
	}
}

func TestHTTPGenerator_NoChoices(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"choices": []}`))
	})

	g := newTestGenerator(t, srv.URL)
	if _, err := g.Generate(context.Background(), "s", "p"); err == nil {
		t.Fatal("expected error for empty choices")
	}
	if calls.Load() != 1 {
		t.Errorf("malformed response must not be retried, calls = %d", calls.Load())
	}
}
