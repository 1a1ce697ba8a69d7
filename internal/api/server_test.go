package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/oracle"
	"github.com/ramonehamilton/deckstats/internal/people"
	"github.com/ramonehamilton/deckstats/internal/stats"
	"github.com/ramonehamilton/deckstats/internal/storage/storagetest"
)

type fakeImporter struct {
	calls int
}

func (f *fakeImporter) ImportMissing(ctx context.Context) (*oracle.ImportResult, error) {
	f.calls++
	return &oracle.ImportResult{Requested: 2, Imported: 2, NotFound: []string{}}, nil
}

type testServer struct {
	*storagetest.Fixture
	server   *Server
	loader   *aggregate.Loader
	importer *fakeImporter
	control  int64
	alice    int64
}

// newTestServer seeds two Control decks (alice's plays Counterspell and
// Island, the other Island only) and one Aggro deck playing Mountain.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	f := storagetest.NewFixture(t)
	db := f.Svc.DB().Conn()

	engine, err := aggregate.NewEngine(aggregate.EngineConfig{DB: db})
	require.NoError(t, err)
	loader, err := aggregate.NewLoader(aggregate.LoaderConfig{Engine: engine})
	require.NoError(t, err)
	svc, err := stats.NewService(stats.ServiceConfig{DB: db, Loader: loader})
	require.NoError(t, err)

	f.Season("S1", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	control := f.Archetype("Control")
	aggro := f.Archetype("Aggro")
	alice := f.Person("alice")

	a := f.Deck(storagetest.DeckSpec{PersonID: alice, ArchetypeID: control, Maindeck: []string{"Counterspell", "Island"}})
	b := f.Deck(storagetest.DeckSpec{ArchetypeID: control, Maindeck: []string{"Island"}})
	c := f.Deck(storagetest.DeckSpec{ArchetypeID: aggro, Maindeck: []string{"Mountain"}})
	f.Match(a, 2, c, 0)
	f.Match(b, 1, c, 2)

	importer := &fakeImporter{}
	server, err := NewServer(&Config{Port: 0}, &Services{
		Stats:    svc,
		Loader:   loader,
		People:   people.NewAliasService(f.Svc.People(), nil),
		Importer: importer,
	})
	require.NoError(t, err)

	return &testServer{Fixture: f, server: server, loader: loader, importer: importer, control: control, alice: alice}
}

func (ts *testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Data       T   `json:"data"`
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Data
}

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
	_, err = NewServer(nil, &Services{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestGetCards(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/cards")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cards := decode[[]stats.CardStats](t, rec)
	require.Len(t, cards, 3)
	assert.Equal(t, "Island", cards[0].Name)
	assert.Equal(t, 2, cards[0].NumDecks)

	rec = ts.do(t, http.MethodGet, "/api/v1/cards?limit=1&sort=name")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data       []stats.CardStats `json:"data"`
		TotalCount int               `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Counterspell", list.Data[0].Name)
	assert.Equal(t, 3, list.TotalCount)

	rec = ts.do(t, http.MethodGet, "/api/v1/cards?person=alice")
	require.Equal(t, http.StatusOK, rec.Code)
	cards = decode[[]stats.CardStats](t, rec)
	assert.Len(t, cards, 2)

	rec = ts.do(t, http.MethodGet, "/api/v1/cards?name=spell")
	cards = decode[[]stats.CardStats](t, rec)
	require.Len(t, cards, 1)
	assert.Equal(t, "Counterspell", cards[0].Name)
}

func TestGetCards_CSV(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/cards?format=csv&sort=name")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "name,num_decks,wins,losses,draws"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Counterspell,1,1,0,0,"), lines[1])

	rec = ts.do(t, http.MethodGet, "/api/v1/cards?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCards_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	for _, target := range []string{
		"/api/v1/cards?archetype_id=1&person=alice",
		"/api/v1/cards?sort=name%3B%20DROP%20TABLE%20deck",
		"/api/v1/cards?season_id=abc",
		"/api/v1/cards?tournament_only=maybe",
		"/api/v1/cards?limit=5000",
	} {
		rec := ts.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/cards?person=nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCard(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/cards/Counterspell")
	require.Equal(t, http.StatusOK, rec.Code)
	card := decode[stats.CardStats](t, rec)
	assert.Equal(t, 1, card.NumDecks)
	assert.Equal(t, 1, card.Wins)
	assert.Equal(t, "100.0", card.WinPercent.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/cards/Black%20Lotus")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersonCards(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/people/alice/unique-cards")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Counterspell"}, decode[[]string](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/people/alice/trailblazer-cards")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Counterspell", "Island"}, decode[[]string](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/people/nobody/unique-cards")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlayabilityRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/playability")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[map[string]float64](t, rec)
	assert.InDelta(t, 2.0/3.0, p["Island"], 1e-5)

	rec = ts.do(t, http.MethodGet, "/api/v1/playability/key-cards")
	require.Equal(t, http.StatusOK, rec.Code)
	keyCards := decode[[]stats.KeyCard](t, rec)
	require.Len(t, keyCards, 2)
	assert.Equal(t, "Counterspell", keyCards[0].Name)

	rec = ts.do(t, http.MethodGet, "/api/v1/archetypes/deck-counts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]stats.ArchetypeDeckCount](t, rec), 2)

	rec = ts.do(t, http.MethodGet, "/api/v1/seasons/1/deck-count")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"num_decks": 3}, decode[map[string]int](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/seasons/0/playability")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchetypeChart(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/archetypes/"+itoa(ts.control)+"/playability/chart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Counterspell")

	rec = ts.do(t, http.MethodGet, "/api/v1/archetypes/999/playability/chart")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshFailureIsServiceUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.Deck(storagetest.DeckSpec{ArchetypeID: 999, Maindeck: []string{"Island"}})

	rec := ts.do(t, http.MethodGet, "/api/v1/cards")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "temporarily unavailable")
	assert.NotContains(t, rec.Body.String(), "FOREIGN KEY")
}

func TestSystemFamilies(t *testing.T) {
	ts := newTestServer(t)

	type status struct {
		Name    string   `json:"name"`
		Fresh   bool     `json:"fresh"`
		Missing []string `json:"missing"`
	}
	families := func() map[string]status {
		rec := ts.do(t, http.MethodGet, "/api/v1/system/families")
		require.Equal(t, http.StatusOK, rec.Code)
		out := make(map[string]status)
		for _, s := range decode[[]status](t, rec) {
			out[s.Name] = s
		}
		return out
	}
	assert.False(t, families()[aggregate.FamilyCard].Fresh)

	rec := ts.do(t, http.MethodPost, "/api/v1/system/families/card/refresh")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[aggregate.FamilyResult](t, rec)
	assert.Len(t, res.Tables, 5)
	assert.True(t, families()[aggregate.FamilyCard].Fresh)

	rec = ts.do(t, http.MethodPost, "/api/v1/system/families/card/invalidate")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, families()[aggregate.FamilyCard].Missing, 5)

	rec = ts.do(t, http.MethodPost, "/api/v1/system/families/decks/invalidate")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/system/families/invalidate")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/system/refresh-metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"families_rebuilt":1`)
}

func TestSystemImportAndVersion(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/system/cards/import")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.importer.calls)

	rec = ts.do(t, http.MethodGet, "/api/v1/system/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}

func TestJSONContentTypeRequired(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/system/families/invalidate", strings.NewReader("all"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, ":0", ts.server.Addr())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
