package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
)

func TestClient_Download_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(common.ObjectStoreConfig{BaseURL: srv.URL}, common.GetLogger())

	_, err := c.Download(context.Background(), "financials-quarterly-income", "PLTR")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_Download_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/financials-quarterly-income/PLTR.xlsx", r.URL.Path)
		_, _ = w.Write([]byte("workbook-bytes"))
	}))
	defer srv.Close()

	c := New(common.ObjectStoreConfig{BaseURL: srv.URL}, common.GetLogger())

	data, err := c.Download(context.Background(), "financials-quarterly-income", "pltr")
	require.NoError(t, err)
	assert.Equal(t, "workbook-bytes", string(data))
}

func TestClient_Upload_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(common.ObjectStoreConfig{UploadURL: srv.URL}, common.GetLogger())

	err := c.Upload(context.Background(), "financials-quarterly-income", "ZM", []byte("data"))
	require.NoError(t, err)
}
