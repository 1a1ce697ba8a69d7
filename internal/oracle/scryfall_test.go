package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries int) *Client {
	return NewClient(ClientConfig{
		BaseURL:        url,
		RateLimit:      time.Millisecond,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
	})
}

// collectionServer answers collection requests with a card per identifier,
// reporting the names in missing as not found.
func collectionServer(t *testing.T, batches *[]int, missing ...string) *httptest.Server {
	t.Helper()
	skip := make(map[string]bool)
	for _, m := range missing {
		skip[m] = true
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cards/collection", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req collectionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if batches != nil {
			*batches = append(*batches, len(req.Identifiers))
		}

		resp := collectionResponse{Object: "list", NotFound: []cardIdentifier{}}
		for _, id := range req.Identifiers {
			if skip[id.Name] {
				resp.NotFound = append(resp.NotFound, id)
				continue
			}
			resp.Data = append(resp.Data, ScryfallCard{Name: id.Name, TypeLine: "Instant", Rarity: "common"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{})
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultUserAgent, c.userAgent)
	assert.Equal(t, maxRetries, c.maxRetries)
	assert.NotNil(t, c.rateLimiter)

	c = NewClient(ClientConfig{MaxRetries: -1})
	assert.Zero(t, c.maxRetries)
}

func TestClient_CardNamed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cards/named", r.URL.Path)
		assert.Equal(t, "Lightning Bolt", r.URL.Query().Get("exact"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc","name":"Lightning Bolt","mana_cost":"{R}","cmc":1.0,"type_line":"Instant","colors":["R"],"rarity":"common"}`))
	}))
	defer server.Close()

	card, err := newTestClient(server.URL, 0).CardNamed(context.Background(), "Lightning Bolt")
	require.NoError(t, err)
	assert.Equal(t, "Lightning Bolt", card.Name)
	assert.Equal(t, "{R}", card.ManaCost)
	assert.Equal(t, []string{"R"}, card.Colors)
}

func TestClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"object":"error","code":"not_found","status":404,"details":"No card found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 0).CardNamed(context.Background(), "Nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","code":"bad_request","status":400,"details":"Bad query"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 0).CardNamed(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "Bad query")
	assert.False(t, IsNotFound(err))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"name":"Island"}`))
	}))
	defer server.Close()

	card, err := newTestClient(server.URL, 2).CardNamed(context.Background(), "Island")
	require.NoError(t, err)
	assert.Equal(t, "Island", card.Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 1).CardNamed(context.Background(), "Island")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(server.URL, 3).CardNamed(ctx, "Island")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_CardsByNamesBatches(t *testing.T) {
	var batches []int
	server := collectionServer(t, &batches, "Missing")
	defer server.Close()

	names := make([]string, 0, 80)
	for i := 0; i < 79; i++ {
		names = append(names, "Card "+string(rune('A'+i%26))+string(rune('a'+i/26)))
	}
	names = append(names, "Missing")

	cards, notFound, err := newTestClient(server.URL, 0).CardsByNames(context.Background(), names)
	require.NoError(t, err)
	assert.Equal(t, []int{75, 5}, batches)
	assert.Len(t, cards, 79)
	assert.Equal(t, []string{"Missing"}, notFound)
}

func TestScryfallCard_ModelMergesFaces(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	card := ScryfallCard{
		Name:     "Fire // Ice",
		CMC:      4,
		TypeLine: "Instant // Instant",
		Rarity:   "uncommon",
		CardFaces: []CardFace{
			{Name: "Fire", ManaCost: "{1}{R}", OracleText: "Fire deals 2 damage.", Colors: []string{"R"}},
			{Name: "Ice", ManaCost: "{1}{U}", OracleText: "Tap target permanent.", Colors: []string{"U"}},
		},
	}

	m := card.Model(now)
	assert.Equal(t, "Fire // Ice", m.Name)
	assert.Equal(t, "{1}{R} // {1}{U}", m.ManaCost)
	assert.Equal(t, "UR", m.Colors)
	assert.Equal(t, "Fire deals 2 damage.\n//\nTap target permanent.", m.OracleText)
	assert.Equal(t, now, m.UpdatedAt)
}
