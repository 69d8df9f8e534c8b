package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Run("success with response field", func(t *testing.T) {
		var received map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/generate", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			json.NewEncoder(w).Encode(map[string]any{"response": "Yes, trade now"})
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "llama3.2:1b", 0)
		res := c.Generate(context.Background(), "should we trade?")

		assert.Equal(t, Success, res.Kind)
		assert.Equal(t, "Yes, trade now", res.Text)
		assert.Equal(t, "llama3.2:1b", received["model"])
		assert.Equal(t, false, received["stream"])
	})

	t.Run("timeout is classified", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "llama3.2:1b", 20*time.Millisecond)
		res := c.Generate(context.Background(), "slow")

		assert.Equal(t, Timeout, res.Kind)
		assert.Error(t, res.Err)
	})

	t.Run("unreachable host is a transport error", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", "llama3.2:1b", time.Second)
		res := c.Generate(context.Background(), "hello")
		assert.Equal(t, TransportError, res.Kind)
	})

	t.Run("non-2xx is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "llama3.2:1b", 0)
		res := c.Generate(context.Background(), "hello")
		assert.Equal(t, TransportError, res.Kind)
	})

	t.Run("invalid JSON is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json at all"))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "llama3.2:1b", 0)
		res := c.Generate(context.Background(), "hello")
		assert.Equal(t, MalformedResponse, res.Kind)
	})

	t.Run("missing response field is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"done": true})
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "llama3.2:1b", 0)
		res := c.Generate(context.Background(), "hello")
		assert.Equal(t, MalformedResponse, res.Kind)
		assert.Contains(t, res.Err.Error(), "missing 'response'")
	})
}

func TestShouldTrade(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"explicit yes", "yes", true},
		{"yes with context", "Yes, trade now", true},
		{"uppercase", "YES", true},
		{"explicit no", "no", false},
		{"no without yes token", "absolutely not", false},
		{"empty text", "", false},
		// Substring semantics: negated text containing "yes" still parses true.
		{"negated yes", "I don't think so... actually yes", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldTrade(tt.text))
		})
	}
}
