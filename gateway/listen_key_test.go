package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenKeyLifecycle(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/listenKey", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		methods = append(methods, r.Method)
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"listenKey":"abc123listenkey"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := &ListenKeyClient{BaseURL: srv.URL, APIKey: "test-key", HTTPClient: srv.Client()}

	key, err := client.NewListenKey()
	require.NoError(t, err)
	assert.Equal(t, "abc123listenkey", key)

	require.NoError(t, client.KeepAlive(key))
	assert.Equal(t, []string{http.MethodPost, http.MethodPut}, methods)
}

func TestListenKeyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := &ListenKeyClient{BaseURL: srv.URL, APIKey: "bad", HTTPClient: srv.Client()}
	_, err := client.NewListenKey()
	assert.Error(t, err)
}
