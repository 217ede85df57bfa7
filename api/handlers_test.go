package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-prices/models"
	"github.com/aluiziolira/go-scrape-prices/pipeline"
	"github.com/aluiziolira/go-scrape-prices/scraper"
	"github.com/aluiziolira/go-scrape-prices/sources"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, keyword string) (*models.SearchResult, error) {
	args := m.Called(ctx, keyword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SearchResult), args.Error(1)
}

func (m *MockSearcher) ProductPage(ctx context.Context, store, url string) (models.ProductPage, error) {
	args := m.Called(ctx, store, url)
	return args.Get(0).(models.ProductPage), args.Error(1)
}

func (m *MockSearcher) Sources() []string {
	return m.Called().Get(0).([]string)
}

func newTestServer(t *testing.T, searcher Searcher) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHandlers(searcher, nil), scraper.NewMetrics(), 5*time.Second))
	t.Cleanup(srv.Close)
	return srv
}

func postSearch(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/search", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestSearch(t *testing.T) {
	t.Run("returns ranked results", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("Search", mock.Anything, "iphone").Return(&models.SearchResult{
			ID:       "r1",
			Keyword:  "iphone",
			Origin:   pipeline.OriginLive,
			Listings: []models.Listing{{Name: "iPhone 15", Price: 245000, Source: "Daraz"}},
			Groups:   []models.ProductGroup{{Name: "iPhone 15", BestPrice: 245000, BestSource: "Daraz"}},
			Failures: []models.SourceFailure{{Source: "Mega", Error: "timeout"}},
		}, nil)

		resp, body := postSearch(t, newTestServer(t, searcher), `{"keyword":"iphone"}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "live", body["source"])
		assert.Equal(t, float64(1), body["count"])
		assert.Len(t, body["results"], 1)
		assert.Len(t, body["groups"], 1)
		assert.Len(t, body["failures"], 1)
		searcher.AssertExpectations(t)
	})

	t.Run("empty keyword", func(t *testing.T) {
		searcher := new(MockSearcher)
		resp, body := postSearch(t, newTestServer(t, searcher), `{"keyword":"  "}`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "keyword is required", body["error"])
		searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("invalid body", func(t *testing.T) {
		resp, _ := postSearch(t, newTestServer(t, new(MockSearcher)), `{`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("all stores failed", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("Search", mock.Anything, "iphone").
			Return(nil, fmt.Errorf("%w: %w", pipeline.ErrAllSourcesFailed, errors.New("Daraz: blocked")))

		resp, body := postSearch(t, newTestServer(t, searcher), `{"keyword":"iphone"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Contains(t, body["error"], "no store")
	})

	t.Run("unexpected error", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("Search", mock.Anything, "iphone").Return(nil, errors.New("boom"))

		resp, _ := postSearch(t, newTestServer(t, searcher), `{"keyword":"iphone"}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestProductPage(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(*MockSearcher)
		wantStatus int
	}{
		{
			name:  "ok",
			query: "?store=daraz&url=https://www.daraz.pk/products/i15.html",
			setup: func(m *MockSearcher) {
				m.On("ProductPage", mock.Anything, "daraz", "https://www.daraz.pk/products/i15.html").
					Return(models.ProductPage{Price: 245000, InStock: true}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing url",
			query:      "?store=daraz",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "unknown store",
			query: "?store=amazon&url=https://amazon.test/x",
			setup: func(m *MockSearcher) {
				m.On("ProductPage", mock.Anything, "amazon", "https://amazon.test/x").
					Return(models.ProductPage{}, fmt.Errorf("%w: %q", sources.ErrUnknownSource, "amazon"))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "store failure",
			query: "?store=mega&url=https://www.mega.pk/x",
			setup: func(m *MockSearcher) {
				m.On("ProductPage", mock.Anything, "mega", "https://www.mega.pk/x").
					Return(models.ProductPage{}, errors.New("fetch failed"))
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := new(MockSearcher)
			if tt.setup != nil {
				tt.setup(searcher)
			}
			srv := newTestServer(t, searcher)

			resp, err := http.Get(srv.URL + "/api/product" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusOK {
				var page models.ProductPage
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
				assert.Equal(t, models.ProductPage{Price: 245000, InStock: true}, page)
			}
			searcher.AssertExpectations(t)
		})
	}
}

func TestStoresHealthAndMetrics(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("Sources").Return([]string{"Daraz", "Mega"})
	srv := newTestServer(t, searcher)

	resp, err := http.Get(srv.URL + "/api/stores")
	require.NoError(t, err)
	var stores map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stores))
	resp.Body.Close()
	assert.Equal(t, []string{"Daraz", "Mega"}, stores["stores"])

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
