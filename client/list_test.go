package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// pageServer serves canned list pages keyed by path; addPage publishes more
// pages while the server runs.
func pageServer(t *testing.T, pages map[string]AssetPage) (*httptest.Server, func(path string, page AssetPage)) {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}
		mu.Lock()
		page, ok := pages[path]
		mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "no such page"})
			return
		}
		json.NewEncoder(w).Encode(page)
	}))
	addPage := func(path string, page AssetPage) {
		mu.Lock()
		defer mu.Unlock()
		pages[path] = page
	}
	return srv, addPage
}

func asset(id string, difficulty float64) Asset {
	return Asset{ID: id, Status: "not_started", Difficulty: difficulty, Sent: time.Now().UTC()}
}

func newListFixture(t *testing.T, pages map[string]AssetPage, opts ...ListControllerOption) (*ListController, func(path string, page AssetPage), func()) {
	t.Helper()
	srv, addPage := pageServer(t, pages)
	c := New(srv.URL, WithSessionToken("my-token"))
	engine := NewSyncEngine(c, nil)
	ctrl := NewListController(engine, c, nil, opts...)
	return ctrl, addPage, srv.Close
}

func TestListController_PaginatesAndDedupes(t *testing.T) {
	next := "/api/v1/assets?skip=4"
	pages := map[string]AssetPage{
		"/api/v1/assets": {
			Objects:    []Asset{asset("a1", 0), asset("a2", 0), asset("a3", 0), asset("a4", 0)},
			Pagination: Pagination{Next: &next},
			Sent:       time.Now().UTC(),
		},
		// a3 and a4 shifted into the second page while we were fetching
		next: {
			Objects: []Asset{asset("a3", 0), asset("a4", 0), asset("a5", 0), asset("a6", 0)},
			Sent:    time.Now().UTC(),
		},
	}
	ctrl, _, done := newListFixture(t, pages)
	defer done()

	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ctrl.HasMore() {
		t.Error("exhausted list still reports more pages")
	}

	visible := ctrl.Visible()
	if len(visible) != 6 {
		t.Fatalf("expected 6 unique assets across overlapping pages, got %d", len(visible))
	}
	for i, want := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		if visible[i].ID != want {
			t.Fatalf("insertion order broken at %d: got %s, want %s", i, visible[i].ID, want)
		}
	}
}

func TestListController_LoadFloorAndSentinel(t *testing.T) {
	next := "/api/v1/assets?skip=4"
	pages := map[string]AssetPage{
		"/api/v1/assets": {
			Objects:    []Asset{asset("a1", 0), asset("a2", 0), asset("a3", 0), asset("a4", 0)},
			Pagination: Pagination{Next: &next},
			Sent:       time.Now().UTC(),
		},
		next: {
			Objects: []Asset{asset("a5", 0), asset("a6", 0)},
			Sent:    time.Now().UTC(),
		},
	}
	ctrl, _, done := newListFixture(t, pages, WithLoadFloor(3))
	defer done()

	ctx := context.Background()
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// the first page already satisfies the floor, the second stays queued
	if got := len(ctrl.Visible()); got != 4 {
		t.Fatalf("expected 4 loaded, got %d", got)
	}
	if !ctrl.HasMore() {
		t.Fatal("queued page lost")
	}

	if err := ctrl.SentinelVisible(ctx); err != nil {
		t.Fatalf("sentinel fetch failed: %v", err)
	}
	if got := len(ctrl.Visible()); got != 6 {
		t.Fatalf("expected 6 after sentinel, got %d", got)
	}
	if ctrl.HasMore() {
		t.Error("exhausted list still reports more pages")
	}
}

func TestListController_FailedPageIsRetryable(t *testing.T) {
	// "next" points at a page the server does not serve yet
	next := "/api/v1/assets?skip=2"
	pages := map[string]AssetPage{
		"/api/v1/assets": {
			Objects:    []Asset{asset("a1", 0), asset("a2", 0)},
			Pagination: Pagination{Next: &next},
			Sent:       time.Now().UTC(),
		},
	}
	ctrl, addPage, done := newListFixture(t, pages, WithLoadFloor(1))
	defer done()

	ctx := context.Background()
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if _, err := ctrl.LoadMore(ctx); err == nil {
		t.Fatal("fetch of missing page succeeded")
	}
	// the URL went back on the queue, nothing was lost
	if !ctrl.HasMore() {
		t.Fatal("failed page dropped from the queue")
	}

	addPage(next, AssetPage{
		Objects: []Asset{asset("a3", 0)},
		Sent:    time.Now().UTC(),
	})
	added, err := ctrl.LoadMore(ctx)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if added != 1 {
		t.Fatalf("retry added %d assets", added)
	}
}

func TestListController_SortByDifficulty(t *testing.T) {
	pages := map[string]AssetPage{
		"/api/v1/assets": {
			Objects: []Asset{
				asset("a1", 0.3), asset("a2", 0.9), asset("a3", 0.1),
				asset("a4", 0.7), asset("a5", 0.5),
			},
			Sent: time.Now().UTC(),
		},
	}
	ctrl, _, done := newListFixture(t, pages)
	defer done()

	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	ctrl.SetSort(SortHardest)
	got := ctrl.Visible()
	for i, want := range []string{"a2", "a4", "a5", "a1", "a3"} {
		if got[i].ID != want {
			t.Fatalf("hardest order broken at %d: got %s, want %s", i, got[i].ID, want)
		}
	}

	ctrl.SetSort(SortEasiest)
	got = ctrl.Visible()
	for i, want := range []string{"a3", "a1", "a5", "a4", "a2"} {
		if got[i].ID != want {
			t.Fatalf("easiest order broken at %d: got %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestListController_CampaignSortAndFilter(t *testing.T) {
	withRefs := func(id, campaignID, campaignTitle, projectTitle, itemTitle string) Asset {
		a := asset(id, 0)
		a.Campaign = &Ref{ID: campaignID, Title: campaignTitle}
		a.Project = &Ref{ID: campaignID + "-p", Title: projectTitle}
		a.Item = &Ref{ID: campaignID + "-i", Title: itemTitle}
		return a
	}
	pages := map[string]AssetPage{
		"/api/v1/assets": {
			Objects: []Asset{
				withRefs("a1", "c2", "Suffrage", "Petitions", "Box 2"),
				withRefs("a2", "c1", "Civil War", "Letters", "Folder 1"),
				withRefs("a3", "c1", "Civil War", "Diaries", "Folder 3"),
			},
			Sent: time.Now().UTC(),
		},
	}
	ctrl, _, done := newListFixture(t, pages)
	defer done()

	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	ctrl.SetSort(SortCampaign)
	got := ctrl.Visible()
	for i, want := range []string{"a3", "a2", "a1"} {
		if got[i].ID != want {
			t.Fatalf("campaign order broken at %d: got %s, want %s", i, got[i].ID, want)
		}
	}

	ctrl.SetFilter("c1")
	got = ctrl.Visible()
	if len(got) != 2 {
		t.Fatalf("filter kept %d assets", len(got))
	}
	for _, rec := range got {
		if rec.Campaign.ID != "c1" {
			t.Errorf("filter leaked asset %s from campaign %s", rec.ID, rec.Campaign.ID)
		}
	}

	ctrl.SetFilter("")
	if got := ctrl.Visible(); len(got) != 3 {
		t.Fatalf("clearing the filter shows %d assets", len(got))
	}
}

func TestListController_ImageAttachIsOneShot(t *testing.T) {
	pages := map[string]AssetPage{
		"/api/v1/assets": {
			Objects: []Asset{asset("a1", 0)},
			Sent:    time.Now().UTC(),
		},
	}
	var attached []string
	ctrl, _, done := newListFixture(t, pages, WithAttachImage(func(id string) {
		attached = append(attached, id)
	}))
	defer done()

	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	ctrl.ElementVisible("a1")
	ctrl.ElementVisible("a1") // scrolled away and back
	ctrl.ElementVisible("missing")

	if len(attached) != 1 || attached[0] != "a1" {
		t.Fatalf("attach calls: %v", attached)
	}
	el, ok := ctrl.Element("a1")
	if !ok || !el.ImageAttached {
		t.Error("element does not remember its image")
	}
}

func TestListController_AvailabilityFollowsReservations(t *testing.T) {
	pages := map[string]AssetPage{
		"/api/v1/assets": {
			Objects: []Asset{asset("a1", 0)},
			Sent:    time.Now().UTC(),
		},
	}
	var gateCalls []bool
	ctrl, _, done := newListFixture(t, pages, WithEditorGate(func(enabled bool, reason string) {
		gateCalls = append(gateCalls, enabled)
	}))
	defer done()

	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	ctrl.OpenEditor("a1")

	now := time.Now().UTC()
	// someone else claims the page
	ctrl.HandleEvent(Envelope{Sent: now, Message: Message{
		Type: TypeReservationObtained, AssetID: "a1", Holder: "someone-else",
	}})
	el, _ := ctrl.Element("a1")
	if !el.Unavailable || el.Reason == "" {
		t.Fatalf("foreign reservation did not mark the asset: %+v", el)
	}

	ctrl.HandleEvent(Envelope{Sent: now, Message: Message{
		Type: TypeReservationReleased, AssetID: "a1",
	}})
	el, _ = ctrl.Element("a1")
	if el.Unavailable {
		t.Fatal("release did not restore availability")
	}

	// our own claim must not mark anything
	ctrl.HandleEvent(Envelope{Sent: now, Message: Message{
		Type: TypeReservationObtained, AssetID: "a1", Holder: "my-token",
	}})
	el, _ = ctrl.Element("a1")
	if el.Unavailable {
		t.Fatal("own reservation marked the asset unavailable")
	}

	if len(gateCalls) != 2 || gateCalls[0] || !gateCalls[1] {
		t.Errorf("editor gate calls: %v", gateCalls)
	}
}
