package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/httputil"
	"github.com/wonny/stockgame/pkg/logger"
)

const pageOne = `{
  "items": [
    {"ticker":"AAPL","company":"Apple Inc","action":"upgraded by","brokerage":"Goldman Sachs",
     "rating_from":"Neutral","rating_to":"Buy","target_from":"$180.00","target_to":"$210.00",
     "time":"2025-01-13T00:30:05.813548892Z"},
    {"ticker":"","company":"Nameless","target_from":"$1.00","target_to":"$2.00","time":"2025-01-13T00:30:05Z"}
  ],
  "next_page": "JPM"
}`

const pageTwo = `{
  "items": [
    {"ticker":"JPM","company":"JPMorgan Chase","action":"target raised by","brokerage":"Barclays",
     "rating_from":"Overweight","rating_to":"Overweight","target_from":"$240.00","target_to":"$260.00",
     "time":"2025-01-14T00:30:05Z"}
  ],
  "next_page": null
}`

func newClient(serverURL, token string) *Client {
	cfg := config.FeedConfig{URL: serverURL, Token: token}
	return NewClient(cfg, httputil.New(logger.Nop()), logger.Nop())
}

func TestFetch_Pagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("next_page") {
		case "":
			_, _ = w.Write([]byte(pageOne))
		case "JPM":
			_, _ = w.Write([]byte(pageTwo))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newClient(server.URL, "secret")

	first, err := client.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "AAPL", first.Items[0].Ticker)
	assert.Equal(t, "$210.00", first.Items[0].TargetTo)
	assert.Equal(t, 2025, first.Items[0].Time.Year())
	assert.Equal(t, 1, first.Dropped)
	assert.True(t, first.HasNext())
	assert.Equal(t, "JPM", first.Cursor())

	second, err := client.Fetch(context.Background(), first.Cursor())
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "JPMorgan Chase", second.Items[0].Company)
	assert.False(t, second.HasNext())
}

func TestFetch_KeepsExistingQuery(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"items":[],"next_page":""}`))
	}))
	defer server.Close()

	page, err := newClient(server.URL+"/list?region=us", "secret").Fetch(context.Background(), "abc 1")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNext())
	assert.Equal(t, "next_page=abc+1&region=us", gotQuery)
}

func TestFetch_MissingToken(t *testing.T) {
	_, err := newClient("http://unused.invalid", "").Fetch(context.Background(), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfig))
	assert.Contains(t, err.Error(), "API_TOKEN")
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, `invalid token`, "unexpected status 401"},
		{"server error", http.StatusInternalServerError, ``, "unexpected status 500"},
		{"bad json", http.StatusOK, `{"items": [`, "decode page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newClient(server.URL, "secret").Fetch(context.Background(), "")

			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrFetch))
			assert.Contains(t, err.Error(), "failed to fetch stock data")
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "feed client must not retry")
		})
	}
}

func TestFetch_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newClient(url, "secret").Fetch(context.Background(), "")

	require.Error(t, err)
	assert.Equal(t, contracts.KindFetch, contracts.KindOf(err))
}
