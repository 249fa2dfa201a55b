package repository_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MITLibraries/dspace-submission-service/internal/repository"
)

func TestDSpaceClientGetCollectionByHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/handle/0000/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uuid": "coll-1"}`))
	}))
	defer srv.Close()

	client := repository.NewDSpaceClient(srv.URL+"/", 2*time.Second)
	collection, err := client.GetCollectionByHandle("0000/1")
	require.NoError(t, err)
	assert.Equal(t, "coll-1", collection.UUID)
}

func TestDSpaceClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("collection not found"))
	}))
	defer srv.Close()

	client := repository.NewDSpaceClient(srv.URL+"/", 2*time.Second)
	_, err := client.GetCollectionByHandle("0000/missing")

	var httpErr *repository.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "collection not found", httpErr.Body)
}

func TestDSpaceClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := repository.NewDSpaceClient(srv.URL+"/", 5*time.Millisecond)
	_, err := client.GetCollectionByHandle("0000/1")

	var timeoutErr *repository.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.True(t, timeoutErr.Timeout())
}

func TestDSpaceClientCreateItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uuid": "item-1", "handle": "0000/2", "lastModified": "2024-01-01"}`))
	}))
	defer srv.Close()

	client := repository.NewDSpaceClient(srv.URL+"/", 2*time.Second)
	created, err := client.CreateItem("coll-1", repository.ItemPayload{Metadata: []repository.MetadataEntry{{Key: "dc.title", Value: "A title"}}})
	require.NoError(t, err)
	assert.Equal(t, "item-1", created.UUID)
	assert.Equal(t, "0000/2", created.Handle)
}
