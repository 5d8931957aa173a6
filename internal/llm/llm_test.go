package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/httputil"
	"github.com/wonny/stockgame/pkg/logger"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  \n[1]\n\t", `[1]`},
		{"unterminated fence", "```json\n[1]", `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, ExtractJSON(`Sure! Here you go: [{"a":1}] Hope it helps.`, '['))
	assert.Equal(t, `{"a":{"b":2}}`, ExtractJSON(`text {"a":{"b":2}} more`, '{'))
	assert.Equal(t, `no json here`, ExtractJSON(`no json here`, '['))
	assert.Equal(t, `] backwards [`, ExtractJSON(`] backwards [`, '['))
}

func newTestClient(serverURL string) *OpenRouterClient {
	cfg := config.LLMConfig{
		BaseURL: serverURL,
		APIKey:  "sk-test",
		Model:   "test/model",
		Referer: "https://stockgame.local",
		Title:   "stockgame",
	}
	return NewOpenRouterClient(cfg, httputil.New(logger.Nop()).WithRetry(1, time.Millisecond))
}

func TestOpenRouterClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://stockgame.local", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "stockgame", r.Header.Get("X-Title"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{
			"model": "test/model",
			"messages": []interface{}{
				map[string]interface{}{"role": "user", "content": "classify these"},
			},
		}, body)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Complete(context.Background(), "classify these")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestOpenRouterClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "unexpected status 401"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"error body", http.StatusOK, `{"error":{"message":"model overloaded"}}`, "model overloaded"},
		{"garbage", http.StatusOK, `not json`, "decode chat completion"},
		{"server error after retry", http.StatusBadGateway, ``, "unexpected status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Complete(context.Background(), "x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type fakeGenerator struct {
	reply *schema.Message
	err   error
	got   []*schema.Message
}

func (f *fakeGenerator) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = input
	return f.reply, f.err
}

func TestEinoClient_Complete(t *testing.T) {
	gen := &fakeGenerator{reply: schema.AssistantMessage(`[{"company":"Apple","category":"Tech"}]`, nil)}
	client := &EinoClient{model: gen}

	out, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `[{"company":"Apple","category":"Tech"}]`, out)

	require.Len(t, gen.got, 1)
	assert.Equal(t, schema.User, gen.got[0].Role)
	assert.Equal(t, "prompt", gen.got[0].Content)
}

func TestEinoClient_Errors(t *testing.T) {
	_, err := (&EinoClient{model: &fakeGenerator{err: errors.New("429 too many requests")}}).Complete(context.Background(), "p")
	assert.ErrorContains(t, err, "429")

	_, err = (&EinoClient{model: &fakeGenerator{}}).Complete(context.Background(), "p")
	assert.ErrorContains(t, err, "no message")
}

func TestNew_SelectsProvider(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{Provider: config.ProviderOpenRouter, BaseURL: "http://x"}}
	c, err := New(context.Background(), cfg, nil, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &OpenRouterClient{}, c)

	cfg.LLM.Provider = "bogus"
	_, err = New(context.Background(), cfg, nil, logger.Nop())
	assert.Error(t, err)
}
