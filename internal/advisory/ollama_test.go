package advisory

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/spec-kit/helpdesk-chat/internal/config"
	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

var candidates = []domain.Technician{
	{ID: "ana", Name: "Ana", Specialty: "Network"},
	{ID: "bruno", Name: "Bruno", Specialty: "Network"},
}

func newClient(t *testing.T, handler http.HandlerFunc, timeoutSeconds int) *OllamaClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewOllamaClient(config.AdvisoryConfig{
		Enabled:        true,
		URL:            server.URL + "/api/generate",
		Model:          "llama3.2",
		TimeoutSeconds: timeoutSeconds,
	}, nil)
	require.NotNil(t, client)
	return client
}

func TestSuggestMatchesCandidateName(t *testing.T) {
	var request string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		request = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","response":"  O tecnico indicado e BRUNO.","done":true}`))
	}, 2)

	id, ok := client.Suggest(context.Background(), "roteador sem sinal", candidates, map[string]int{"ana": 3})
	assert.True(t, ok)
	assert.Equal(t, "bruno", id)

	assert.Equal(t, "llama3.2", gjson.Get(request, "model").String())
	assert.False(t, gjson.Get(request, "stream").Bool())
	assert.Equal(t, float64(0), gjson.Get(request, "options.temperature").Float())
	assert.Contains(t, gjson.Get(request, "prompt").String(), "Ana (Network) - 3 open tickets")
	assert.Contains(t, gjson.Get(request, "prompt").String(), "roteador sem sinal")
}

func TestSuggestDegradesToNoSuggestion(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"garbage body": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		},
		"unknown name": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"response":"Carla"}`))
		},
		"missing answer": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"done":true}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			client := newClient(t, handler, 2)
			id, ok := client.Suggest(context.Background(), "sem internet", candidates, nil)
			assert.False(t, ok)
			assert.Empty(t, id)
		})
	}
}

func TestSuggestTimesOut(t *testing.T) {
	release := make(chan struct{})
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"response":"Ana"}`))
	}, 1)
	defer close(release)

	start := time.Now()
	_, ok := client.Suggest(context.Background(), "sem internet", candidates, nil)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestDisabledClient(t *testing.T) {
	assert.Nil(t, NewOllamaClient(config.AdvisoryConfig{Enabled: false, URL: "http://localhost"}, nil))

	var client *OllamaClient
	_, ok := client.Suggest(context.Background(), "x", candidates, nil)
	assert.False(t, ok)
}
