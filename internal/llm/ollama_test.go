// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ndjsonServer answers /api/chat with the given lines, flushing after each.
func ndjsonServer(t *testing.T, lines []string, seen *ollamaChatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllama_Stream(t *testing.T) {
	var seen ollamaChatRequest
	srv := ndjsonServer(t, []string{
		`{"message":{"role":"assistant","content":"H"},"done":false}`,
		``,
		`{"message":{"role":"assistant","content":"ello there"},"done":false}`,
		`{"message":{"role":"assistant","content":"!"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
	}, &seen)

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL + "/", Model: "llama3.2"}, nil)

	var chunks []Chunk
	err := client.Stream(context.Background(), conversation("Hi", "Hello", "How are you?"), collect(&chunks))
	require.NoError(t, err)

	assertWellFormed(t, chunks)
	assert.Equal(t, "Hello there!", chunks[len(chunks)-1].Text)

	assert.Equal(t, "llama3.2", seen.Model)
	assert.True(t, seen.Stream)
	require.Len(t, seen.Messages, 3)
	assert.Equal(t, "assistant", seen.Messages[1].Role)
	assert.Equal(t, 40, seen.Options.TopK)
	assert.Equal(t, 8192, seen.Options.NumPredict)
}

func TestOllama_StreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		kind   ErrorKind
		chunks int
	}{
		{
			name:   "ends without done",
			lines:  []string{`{"message":{"content":"par"},"done":false}`},
			kind:   KindIncomplete,
			chunks: 1,
		},
		{
			name:   "malformed line",
			lines:  []string{`{"message":{"content":"a"},"done":false}`, `{not json`},
			kind:   KindMalformed,
			chunks: 1,
		},
		{
			name:   "remote error",
			lines:  []string{`{"error":"model crashed"}`},
			kind:   KindRemote,
			chunks: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := ndjsonServer(t, tt.lines, nil)
			client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "m"}, nil)

			var chunks []Chunk
			err := client.Stream(context.Background(), conversation("Hi"), collect(&chunks))

			var provErr *ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, tt.kind, provErr.Kind)
			assert.Len(t, chunks, tt.chunks)
			for _, c := range chunks {
				assert.False(t, c.Complete)
			}
		})
	}
}

func TestOllama_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "nope"}, nil)
	err := client.Stream(context.Background(), conversation("Hi"), func(Chunk) {})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, KindStatus, provErr.Kind)
	assert.Equal(t, http.StatusNotFound, provErr.StatusCode)
	assert.Contains(t, err.Error(), "model 'nope' not found")
}

func TestOllama_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: url, Model: "m"}, nil)
	err := client.Stream(context.Background(), conversation("Hi"), func(Chunk) {})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, KindTransport, provErr.Kind)
}

func TestOllama_NoModel(t *testing.T) {
	client := NewOllamaClient(OllamaConfig{}, nil)
	err := client.Stream(context.Background(), conversation("Hi"), func(Chunk) {})
	assert.True(t, IsConfigurationError(err))
}

func TestOllama_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"first"},"done":false}`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	stop := fmt.Errorf("cancelled by test")
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "m"}, nil)
	var chunks []Chunk
	err := client.Stream(ctx, conversation("Hi"), func(c Chunk) {
		chunks = append(chunks, c)
		cancel(stop)
	})

	assert.ErrorIs(t, err, stop)
	assert.Len(t, chunks, 1)
}
