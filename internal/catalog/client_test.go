package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayClient_GetDatabase(t *testing.T) {
	t.Run("decodes existing database", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/databases/raw_data", r.URL.Path)
			json.NewEncoder(w).Encode(Database{Name: "raw_data", LocationURI: "abfss://x/raw_data"})
		}))
		defer srv.Close()

		c := NewGatewayClient(srv.URL)
		db, err := c.GetDatabase(context.Background(), "raw_data")
		require.NoError(t, err)
		assert.Equal(t, "raw_data", db.Name)
	})

	t.Run("404 maps to ErrNotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		c := NewGatewayClient(srv.URL)
		_, err := c.GetDatabase(context.Background(), "missing")
		assert.True(t, IsNotFound(err))
	})

	t.Run("unreachable gateway is a connectivity error", func(t *testing.T) {
		c := NewGatewayClient("http://127.0.0.1:1")
		_, err := c.GetDatabase(context.Background(), "raw_data")
		require.Error(t, err)
		assert.False(t, IsNotFound(err))
	})
}

func TestGatewayClient_CreateTable(t *testing.T) {
	var received Table
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/databases/raw_data/tables", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewGatewayClient(srv.URL)
	err := c.CreateTable(context.Background(), &Table{
		Name:   "weather",
		DBName: "raw_data",
		SD:     StorageDescriptor{Location: "abfss://x/weather"},
	})
	require.NoError(t, err)
	assert.Equal(t, "weather", received.Name)
	assert.Equal(t, "abfss://x/weather", received.SD.Location)
}

func TestGatewayClient_CreateDatabaseConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewGatewayClient(srv.URL)
	err := c.CreateDatabase(context.Background(), &Database{Name: "raw_data"})
	assert.True(t, isAlreadyExists(err))
}

func TestGatewayClient_DropTable(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
	}))
	defer srv.Close()

	c := NewGatewayClient(srv.URL)
	require.NoError(t, c.DropTable(context.Background(), "raw_data", "weather"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/api/v1/databases/raw_data/tables/weather", path)
}
