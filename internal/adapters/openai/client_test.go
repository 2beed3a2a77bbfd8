package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/vibereco/internal/adapters/llm"
	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

const profileJSON = `{"song_meta":{"title":"Hurt","artist":"Johnny Cash","language":"en"},"emotional_profile":{"valence":-0.8,"arousal":0.3,"dominance":0.2,"emotional_trajectory":"Regret -> Acceptance"},"semantic_layer":{"primary_theme":"Regret","secondary_themes":["Mortality"],"keywords":["hurt","empire","dirt","needle","crown"],"narrative_arc":"An old man takes stock of a wasted life."},"contextual_metadata":{"listening_context":["Alone at night"],"similarity_anchors":"Nine Inch Nails"}}`

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestProfiler_AnalyzeProfile(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		status  int
		body    string
		wantErr error
	}{
		{name: "success", apiKey: "k", status: http.StatusOK, body: chatBody(profileJSON)},
		{name: "fenced content", apiKey: "k", status: http.StatusOK, body: chatBody("```json\n" + profileJSON + "\n```")},
		{name: "prose instead of json", apiKey: "k", status: http.StatusOK, body: chatBody("Sorry, I can't."), wantErr: domain.ErrMalformedResponse},
		{name: "no choices", apiKey: "k", status: http.StatusOK, body: `{"choices":[]}`, wantErr: domain.ErrMalformedResponse},
		{name: "error in body", apiKey: "k", status: http.StatusOK, body: `{"error":{"message":"upstream overloaded"}}`, wantErr: domain.ErrTransientAPI},
		{name: "rate limited", apiKey: "k", status: http.StatusTooManyRequests, body: `{}`, wantErr: domain.ErrTransientAPI},
		{name: "unauthorized", apiKey: "k", status: http.StatusUnauthorized, body: `{}`, wantErr: domain.ErrFatal},
		{name: "missing key", apiKey: "", status: http.StatusOK, body: chatBody(profileJSON), wantErr: domain.ErrFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got chatRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer "+tt.apiKey, r.Header.Get("Authorization"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewProfiler(srv.Client(), srv.URL+"/", tt.apiKey, "test-model", "openrouter")
			profile, err := p.AnalyzeProfile(context.Background(), "Hurt", "Johnny Cash", "I hurt myself today")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, profile)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Regret", profile.PrimaryTheme)
			assert.InDelta(t, -0.8, profile.Valence, 1e-9)

			assert.Equal(t, "test-model", got.Model)
			require.NotNil(t, got.ResponseFormat)
			assert.Equal(t, "json_object", got.ResponseFormat.Type)
			require.Len(t, got.Messages, 2)
			assert.Equal(t, llm.SystemPrompt, got.Messages[0].Content)
			assert.Contains(t, got.Messages[1].Content, "I hurt myself today")
		})
	}
}

func TestEmbedder_Embed(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    []float32
		wantErr error
	}{
		{name: "success", status: http.StatusOK, body: `{"data":[{"index":0,"embedding":[0.1,-0.2,0.3]}]}`, want: []float32{0.1, -0.2, 0.3}},
		{name: "empty data", status: http.StatusOK, body: `{"data":[]}`, wantErr: domain.ErrMalformedResponse},
		{name: "garbage", status: http.StatusOK, body: `not json`, wantErr: domain.ErrMalformedResponse},
		{name: "server error", status: http.StatusBadGateway, body: ``, wantErr: domain.ErrTransientAPI},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/embeddings", r.URL.Path)
				var req embeddingRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "embed-model", req.Model)
				assert.Equal(t, "text "+strconv.Itoa(i), req.Input)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := NewEmbedder(srv.Client(), srv.URL, "k", "embed-model")
			got, err := e.Embed(context.Background(), "text "+strconv.Itoa(i))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
