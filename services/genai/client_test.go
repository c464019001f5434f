package genai

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/usajili/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, apiKey ...string) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	key := "test-key"
	if len(apiKey) > 0 {
		key = apiKey[0]
	}
	return New(core.GenAIConfig{BaseURL: srv.URL + "/", APIKey: key, Model: "gemini-test"}, srv.Client())
}

func TestClient_ListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "1000", r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{"models": [
			{"name": "models/gemini-test", "displayName": "Gemini Test", "supportedGenerationMethods": ["generateContent"]},
			{"name": "models/embedding-test", "displayName": "Embedding Test", "supportedGenerationMethods": ["embedContent"]}
		]}`))
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "models/gemini-test", models[0].Name)
	assert.Equal(t, []string{"generateContent"}, models[0].SupportedGenerationMethods)
}

func TestClient_ListModelsPages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "":
			_, _ = w.Write([]byte(`{"models": [{"name": "models/a"}], "nextPageToken": "p2"}`))
		case "p2":
			_, _ = w.Write([]byte(`{"models": [{"name": "models/b"}], "nextPageToken": "p3"}`))
		case "p3":
			_, _ = w.Write([]byte(`{"models": [{"name": "models/c"}]}`))
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 3)
	assert.Equal(t, "models/a", models[0].Name)
	assert.Equal(t, "models/b", models[1].Name)
	assert.Equal(t, "models/c", models[2].Name)
}

func TestClient_GenerateContent(t *testing.T) {
	tests := []struct {
		name       string
		model      string
		wantPath   string
		status     int
		body       string
		want       string
		wantErr    string
		wantAPIErr bool
	}{
		{
			name:     "default model",
			wantPath: "/v1beta/models/gemini-test:generateContent",
			status:   http.StatusOK,
			body:     `{"candidates": [{"content": {"role": "model", "parts": [{"text": "Hello"}, {"text": ", world"}]}}]}`,
			want:     "Hello, world",
		},
		{
			name:     "explicit model",
			model:    "models/gemini-other",
			wantPath: "/v1beta/models/gemini-other:generateContent",
			status:   http.StatusOK,
			body:     `{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`,
			want:     "ok",
		},
		{
			name:     "no candidates",
			wantPath: "/v1beta/models/gemini-test:generateContent",
			status:   http.StatusOK,
			body:     `{"candidates": []}`,
			wantErr:  "generating content: no candidates returned",
		},
		{
			name:       "api error",
			wantPath:   "/v1beta/models/gemini-test:generateContent",
			status:     http.StatusForbidden,
			body:       `{"error": {"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED"}}`,
			wantErr:    "generating content: genai: 403 PERMISSION_DENIED: API key not valid",
			wantAPIErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tc.wantPath, r.URL.Path)

				data, err := ioutil.ReadAll(r.Body)
				assert.NoError(t, err)
				var req generateRequest
				if assert.NoError(t, json.Unmarshal(data, &req)) && assert.Len(t, req.Contents, 1) {
					assert.Equal(t, "Say hello", req.Contents[0].Parts[0].Text)
				}

				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			got, err := client.GenerateContent(context.Background(), tc.model, "Say hello")
			if tc.wantErr != "" {
				assert.EqualError(t, err, tc.wantErr)
				if tc.wantAPIErr {
					apiErr, ok := errors.Cause(err).(*APIError)
					require.True(t, ok)
					assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClient_MissingAPIKey(t *testing.T) {
	client := New(core.GenAIConfig{BaseURL: "http://localhost"})
	_, err := client.ListModels(context.Background())
	assert.Equal(t, ErrMissingAPIKey, errors.Cause(err))
}
