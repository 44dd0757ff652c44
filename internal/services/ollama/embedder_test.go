package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"debatelens/internal/services"
)

func TestEmbedPreservesOrder(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		models = append(models, req.Model)
		vec := []float64{float64(len(req.Prompt)), 1}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	defer srv.Close()

	emb, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vectors, err := emb.Embed(context.Background(), []string{"a", "abc"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][0] != 3 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
	if len(models) != 2 || models[0] != DefaultModel {
		t.Fatalf("unexpected models %v", models)
	}
}

func TestEmbedEmptyVectorIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embedding": []}`))
	}))
	defer srv.Close()

	emb, err := New(Config{URL: srv.URL, Model: "mxbai-embed-large"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := emb.Embed(context.Background(), []string{"text"}); !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	emb, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := emb.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected error from server")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(Config{URL: "not a url"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCheckModelMatchesLatestTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:8b"},{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	emb, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := emb.CheckModel(context.Background()); err != nil {
		t.Fatalf("CheckModel: %v", err)
	}

	other, err := New(Config{URL: srv.URL, Model: "mxbai-embed-large"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := other.CheckModel(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for missing model, got %v", err)
	}
}
