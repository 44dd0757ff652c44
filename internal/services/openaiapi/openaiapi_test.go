package openaiapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"debatelens/internal/debate"
	"debatelens/internal/services"
)

const verboseBody = `{
  "task": "transcribe",
  "language": "english",
  "duration": 10.0,
  "text": "Thank you. Let me respond.",
  "segments": [
    {"id": 0, "start": 0.0, "end": 1.2, "text": " Thank you.", "avg_logprob": -0.1},
    {"id": 1, "start": 1.4, "end": 12.0, "text": " Let me respond.", "avg_logprob": 0.0}
  ]
}`

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestTranscriberParsesSegments(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(verboseBody))
	})

	path := filepath.Join(t.TempDir(), "chunk_0000.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	tr, err := NewTranscriber(Config{APIKey: "test", BaseURL: srv.URL + "/v1", Language: "en", MaxRetries: 0})
	if err != nil {
		t.Fatalf("NewTranscriber: %v", err)
	}
	segments, err := tr.Transcribe(context.Background(), debate.Chunk{Index: 0, Length: 10, Path: path})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Thank you." || math.Abs(segments[0].Confidence-math.Exp(-0.1)) > 1e-9 {
		t.Fatalf("unexpected first segment %+v", segments[0])
	}
	if segments[1].End != 10 {
		t.Fatalf("expected end clamped to chunk length, got %v", segments[1].End)
	}
}

func TestTranscriberMissingFile(t *testing.T) {
	tr, err := NewTranscriber(Config{APIKey: "test"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = tr.Transcribe(context.Background(), debate.Chunk{Path: filepath.Join(t.TempDir(), "absent.wav")})
	if !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
}

func TestParseVerboseWithoutSegments(t *testing.T) {
	segments, err := ParseVerbose(`{"text": "  only text  "}`, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 || segments[0].End != 8 || segments[0].Text != "only text" {
		t.Fatalf("unexpected segments %+v", segments)
	}
	if _, err := ParseVerbose("not json", 8); !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestEmbedderOrdersByIndex(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != DefaultEmbeddingModel {
			t.Errorf("model = %q", req.Model)
		}
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": []float64{float64(i), 1}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	})

	emb, err := NewEmbedder(Config{APIKey: "test", BaseURL: srv.URL + "/v1/"})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	vectors, err := emb.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, vec := range vectors {
		if vec[0] != float64(i) {
			t.Fatalf("vector %d out of order: %v", i, vec)
		}
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := NewEmbedder(Config{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := NewTranscriber(Config{APIKey: "  "}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
