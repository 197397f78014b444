package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"flat_bot/internal/fetcher"
	"flat_bot/internal/filter"
	"flat_bot/internal/model"
	"flat_bot/internal/storage"
)

const (
	pageURL  = "https://www.inberlinwohnen.de/wohnungsfinder/"
	linkBase = "https://www.inberlinwohnen.de/wohnungsfinder/?oID="
)

var defaultCriteria = filter.Criteria{
	RentCeiling: 1000,
	Districts:   []string{"Kreuzberg", "Friedrichshain", "Pankow", "Neukölln", "Mitte", "Tempelhof", "Schöneberg"},
}

type mockHTTP struct {
	body       string
	statusCode int
	err        error
}

func (m *mockHTTP) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	code := m.statusCode
	if code == 0 {
		code = http.StatusOK
	}
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

// memStore is a SeenStore that records how often it was written.
type memStore struct {
	seen    model.IDSet
	loadErr error
	saves   int
}

func (m *memStore) LoadSeen(_ context.Context) (model.IDSet, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.seen.Clone(), nil
}

func (m *memStore) SaveSeen(_ context.Context, seen model.IDSet) error {
	m.saves++
	m.seen = seen.Clone()
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/" + name)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func newPipeline(client fetcher.HTTPClient, store SeenStore, criteria filter.Criteria) *Pipeline {
	f := fetcher.New(client, fetcher.Request{URL: pageURL})
	return New(f, store, criteria, linkBase, testLogger())
}

func offerIDs(offers []model.Offer) []string {
	var ids []string
	for _, o := range offers {
		ids = append(ids, o.ListingID)
	}
	return ids
}

func TestRunOnceEndToEnd(t *testing.T) {
	store := &memStore{seen: model.NewIDSet()}
	p := newPipeline(&mockHTTP{body: loadFixture(t, "e2e.html")}, store, defaultCriteria)

	offers, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	want := []model.Offer{{
		ListingID:    "21001",
		IDSource:     model.IDStructured,
		Address:      "Bergmannstraße 5, 10961 Kreuzberg",
		Rooms:        model.KnownMeasure(2),
		AreaSqm:      model.KnownMeasure(50),
		ColdRent:     950,
		ColdRentText: "950,00",
		DetailLink:   linkBase + "21001",
	}}
	if diff := cmp.Diff(want, offers); diff != "" {
		t.Errorf("offers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"21001"}, store.seen.Sorted()); diff != "" {
		t.Errorf("seen set mismatch (-want +got):\n%s", diff)
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	store := &memStore{seen: model.NewIDSet()}
	p := newPipeline(&mockHTTP{body: loadFixture(t, "component_state.html")}, store, defaultCriteria)
	ctx := context.Background()

	first, err := p.RunOnce(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("first run found no offers")
	}

	second, err := p.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second run returned %d offers, want 0: %v", len(second), offerIDs(second))
	}
	if store.saves != 2 {
		t.Errorf("saves = %d, want one per run", store.saves)
	}
}

func TestRunOnceComponentStatePage(t *testing.T) {
	store := &memStore{seen: model.NewIDSet()}
	p := newPipeline(&mockHTTP{body: loadFixture(t, "component_state.html")}, store, defaultCriteria)

	offers, report, err := p.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantReport := Report{Strategy: "component-state", Candidates: 4, Malformed: 1, Filtered: 1, New: 2}
	if diff := cmp.Diff(wantReport, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"11001", "11002"}, offerIDs(offers)); diff != "" {
		t.Errorf("offer ids mismatch (-want +got):\n%s", diff)
	}
	links := []string{offers[0].DetailLink, offers[1].DetailLink}
	wantLinks := []string{
		"https://www.inberlinwohnen.de/wohnungsfinder/wohnung/11001",
		"https://www.howoge.de/wohnungen/11002.html",
	}
	if diff := cmp.Diff(wantLinks, links); diff != "" {
		t.Errorf("detail links mismatch (-want +got):\n%s", diff)
	}
	// Filtered listings are not recorded, so they are reconsidered if
	// the rent drops later.
	if diff := cmp.Diff([]string{"11001", "11002"}, store.seen.Sorted()); diff != "" {
		t.Errorf("seen set mismatch (-want +got):\n%s", diff)
	}
}

func TestRunOnceLogsMalformedListingAtDefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	f := fetcher.New(&mockHTTP{body: loadFixture(t, "component_state.html")}, fetcher.Request{URL: pageURL})
	p := New(f, &memStore{seen: model.NewIDSet()}, defaultCriteria, linkBase, log)

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"level=WARN", "skip malformed listing", "strategy=component-state", "apartment-11004"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	// Filtered listings stay quiet at info level.
	if strings.Contains(out, "listing filtered") {
		t.Errorf("filtered listing logged at info level:\n%s", out)
	}
}

func TestRunOnceFallsBackToKeywordContainers(t *testing.T) {
	store := &memStore{seen: model.NewIDSet()}
	p := newPipeline(&mockHTTP{body: loadFixture(t, "legacy_merkflat.html")}, store, filter.Criteria{RentCeiling: 1100})

	offers, report, err := p.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Strategy != "keyword-container" {
		t.Errorf("strategy = %q, want keyword-container", report.Strategy)
	}

	want := []model.Offer{
		{
			ListingID:    "6751",
			IDSource:     model.IDElement,
			Address:      "Hermannstraße 120, 12051 Neukölln",
			Rooms:        model.KnownMeasure(2.5),
			AreaSqm:      model.KnownMeasure(67.43),
			ColdRent:     1012.30,
			ColdRentText: "1.012,30",
			DetailLink:   "https://www.degewo.de/immosuche/details/6751",
		},
		{
			ListingID:    "6752",
			IDSource:     model.IDElement,
			Address:      "Wiclefstraße 5, 10551 Moabit",
			Rooms:        model.KnownMeasure(1),
			AreaSqm:      model.KnownMeasure(32),
			ColdRent:     389,
			ColdRentText: "389,00",
			DetailLink:   "https://www.gesobau.de/wohnung/6752",
		},
	}
	if diff := cmp.Diff(want, offers); diff != "" {
		t.Errorf("offers mismatch (-want +got):\n%s", diff)
	}
}

func TestRunOnceDeduplicatesWithinBatch(t *testing.T) {
	block := `<div class="offer">2 Zimmer | 55 m² | 640,00 € | Boxhagener Str. 3, 10245 Friedrichshain</div>`
	page := `<html><body>` + block + block + `</body></html>`
	store := &memStore{seen: model.NewIDSet()}
	p := newPipeline(&mockHTTP{body: page}, store, defaultCriteria)

	offers, report, err := p.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("got %d offers, want 1", len(offers))
	}
	if offers[0].IDSource != model.IDHash {
		t.Errorf("id source = %q, want %q", offers[0].IDSource, model.IDHash)
	}
	if report.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", report.Duplicates)
	}
	if diff := cmp.Diff([]string{offers[0].ListingID}, store.seen.Sorted()); diff != "" {
		t.Errorf("seen set mismatch (-want +got):\n%s", diff)
	}
}

func TestRunOnceFetchFailureLeavesStoreUntouched(t *testing.T) {
	tests := []struct {
		name   string
		client *mockHTTP
		check  func(t *testing.T, err error)
	}{
		{
			name:   "service unavailable",
			client: &mockHTTP{statusCode: http.StatusServiceUnavailable},
			check: func(t *testing.T, err error) {
				var he *fetcher.HTTPError
				if !errors.As(err, &he) || he.StatusCode != http.StatusServiceUnavailable {
					t.Errorf("error = %v, want HTTPError 503", err)
				}
			},
		},
		{
			name:   "connection refused",
			client: &mockHTTP{err: errors.New("connection refused")},
			check: func(t *testing.T, err error) {
				var te *fetcher.TransportError
				if !errors.As(err, &te) {
					t.Errorf("error = %v, want TransportError", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{seen: model.NewIDSet("11001")}
			p := newPipeline(tt.client, store, defaultCriteria)

			offers, err := p.RunOnce(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
			if !fetcher.IsFetchError(err) {
				t.Errorf("IsFetchError(%v) = false", err)
			}
			if len(offers) != 0 {
				t.Errorf("got %d offers on failure", len(offers))
			}
			if store.saves != 0 {
				t.Errorf("store written %d times on failure", store.saves)
			}
			if diff := cmp.Diff([]string{"11001"}, store.seen.Sorted()); diff != "" {
				t.Errorf("seen set mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunOnceSeenLoadFailure(t *testing.T) {
	store := &memStore{loadErr: errors.New("disk on fire")}
	p := newPipeline(&mockHTTP{body: loadFixture(t, "e2e.html")}, store, defaultCriteria)

	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if store.saves != 0 {
		t.Errorf("store written %d times after load failure", store.saves)
	}
}

func TestRunOnceEmptyPageStillSaves(t *testing.T) {
	store := &memStore{seen: model.NewIDSet("old")}
	p := newPipeline(&mockHTTP{body: `<html><body><p>Keine Angebote</p></body></html>`}, store, defaultCriteria)

	offers, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(offers) != 0 {
		t.Errorf("got %d offers", len(offers))
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	if diff := cmp.Diff([]string{"old"}, store.seen.Sorted()); diff != "" {
		t.Errorf("seen set mismatch (-want +got):\n%s", diff)
	}
}

func TestRunOnceWithSQLite(t *testing.T) {
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	p := newPipeline(&mockHTTP{body: loadFixture(t, "e2e.html")}, store, defaultCriteria)

	offers, err := p.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if diff := cmp.Diff([]string{"21001"}, offerIDs(offers)); diff != "" {
		t.Errorf("offer ids mismatch (-want +got):\n%s", diff)
	}
	seen, err := store.LoadSeen(ctx)
	if err != nil {
		t.Fatalf("load seen: %v", err)
	}
	if diff := cmp.Diff([]string{"21001"}, seen.Sorted()); diff != "" {
		t.Errorf("stored seen set mismatch (-want +got):\n%s", diff)
	}
}
