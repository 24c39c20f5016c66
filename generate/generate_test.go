package generate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/generate"
	"github.com/xraph/entitle/plan"
)

func TestSystemPrompt(t *testing.T) {
	settings := entitlement.Settings{SimplifyLevel: 7, ShortenLevel: 3, BulletCount: 4, ExampleCount: 1}

	tests := []struct {
		name     string
		mode     plan.Mode
		settings *entitlement.Settings
		contains string
		excludes string
	}{
		{"simple plain", plan.ModeSimple, nil, "8-классника", "из 10"},
		{"simple tuned", plan.ModeSimple, &settings, "Степень упрощения: 7 из 10", ""},
		{"short tuned", plan.ModeShort, &settings, "Степень сокращения: 3 из 10", ""},
		{"key points tuned", plan.ModeKeyPoints, &settings, "не более 4", ""},
		{"examples tuned", plan.ModeExamples, &settings, "Количество примеров: 1", ""},
		{"unknown mode", plan.Mode("poetry"), &settings, "Упрости этот текст.", "Степень"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generate.SystemPrompt(tt.mode, tt.settings)
			assert.True(t, strings.HasPrefix(got, "You are a helpful assistant"))
			assert.Contains(t, got, tt.contains)
			if tt.excludes != "" {
				assert.NotContains(t, got, tt.excludes)
			}
		})
	}
}

func TestOpenAIStream(t *testing.T) {
	reqs := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		reqs <- body

		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"choices":[{"delta":{"role":"assistant"}}]}`,
			`{"choices":[{"delta":{"content":"Привет"}}]}`,
			`{"choices":[{"delta":{"content":", мир"}}]}`,
			`[DONE]`,
			`{"choices":[{"delta":{"content":"ignored"}}]}`,
		}
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	p := generate.NewOpenAI("sk-test", generate.WithBaseURL(srv.URL+"/v1/"), generate.WithMaxTokens(100))
	ch, err := p.Stream(context.Background(), generate.Request{Mode: plan.ModeShort, Text: "длинный текст"})
	require.NoError(t, err)

	out, err := generate.Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "Привет, мир", out)

	gotReq := <-reqs
	assert.Equal(t, generate.DefaultModel, gotReq["model"])
	assert.Equal(t, true, gotReq["stream"])
	assert.EqualValues(t, 100, gotReq["max_tokens"])
}

func TestOpenAIUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit reached"}}`)
	}))
	defer srv.Close()

	p := generate.NewOpenAI("sk-test", generate.WithBaseURL(srv.URL))
	_, err := p.Stream(context.Background(), generate.Request{Mode: plan.ModeSimple, Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, entitle.ErrUpstream)

	var ue *entitle.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusTooManyRequests, ue.StatusCode)
	assert.Contains(t, ue.Error(), "rate limit reached")
}

func TestOpenAIMissingKey(t *testing.T) {
	_, err := generate.NewOpenAI("").Stream(context.Background(), generate.Request{Text: "x"})
	assert.ErrorIs(t, err, entitle.ErrUpstream)
}

func TestOpenAICancelStopsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for {
			if _, err := fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n"); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			default:
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := generate.NewOpenAI("sk-test", generate.WithBaseURL(srv.URL))
	ch, err := p.Stream(ctx, generate.Request{Text: "x"})
	require.NoError(t, err)

	<-ch
	cancel()
	for range ch {
	}
}
