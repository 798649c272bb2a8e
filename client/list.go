package client

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

type SortMode int

const (
	// SortInsertion keeps assets in the order pages delivered them.
	SortInsertion SortMode = iota
	// SortHardest orders by difficulty descending.
	SortHardest
	// SortEasiest orders by difficulty ascending.
	SortEasiest
	// SortCampaign orders by campaign title, then project title, then item
	// title, then id, all ascending. The id tiebreak keeps it total.
	SortCampaign
	// SortItemID groups pages of the same item together.
	SortItemID
)

// Keep at least this many assets loaded while pages remain, so the list
// scrolls without the user repeatedly asking for more.
const defaultLoadFloor = 300

// Element is the per-asset view state the controller owns: advisory
// availability and the one-shot lazy image flag. Authoritative asset state
// lives in the sync engine; this is strictly a projection.
type Element struct {
	ID            string
	Unavailable   bool
	Reason        string
	ImageAttached bool
}

// ListControllerOption configures a ListController.
type ListControllerOption func(*ListController)

// WithLoadFloor overrides the auto-fill threshold.
func WithLoadFloor(n int) ListControllerOption {
	return func(c *ListController) { c.loadFloor = n }
}

// WithAttachImage sets the callback fired once per element when it first
// becomes visible; the view attaches the real image there.
func WithAttachImage(fn func(assetID string)) ListControllerOption {
	return func(c *ListController) { c.attachImage = fn }
}

// WithEditorGate sets the callback toggling editor controls when the asset
// open in the editor changes availability.
func WithEditorGate(fn func(enabled bool, reason string)) ListControllerOption {
	return func(c *ListController) { c.editorGate = fn }
}

// ListController maintains the loaded, filterable, sortable subset of the
// asset list, a queue of unfetched next-page URLs and the advisory
// availability state driven by reservation events.
type ListController struct {
	engine *SyncEngine
	client *Client
	logger *slog.Logger

	mu       sync.Mutex
	order    []string
	elements map[string]*Element
	filter   string
	sortMode SortMode

	nextPages  []string
	firstFetch bool
	loadFloor  int

	openAsset   string
	attachImage func(assetID string)
	editorGate  func(enabled bool, reason string)
}

func NewListController(engine *SyncEngine, c *Client, logger *slog.Logger, opts ...ListControllerOption) *ListController {
	if logger == nil {
		logger = slog.Default()
	}
	ctrl := &ListController{
		engine:    engine,
		client:    c,
		logger:    logger,
		elements:  make(map[string]*Element),
		loadFloor: defaultLoadFloor,
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	engine.OnEvent(ctrl.HandleEvent)
	return ctrl
}

// Load fetches the first page and then fills up to the load floor.
func (c *ListController) Load(ctx context.Context) error {
	c.mu.Lock()
	c.order = nil
	c.elements = make(map[string]*Element)
	c.nextPages = []string{""}
	c.firstFetch = true
	c.mu.Unlock()

	if _, err := c.LoadMore(ctx); err != nil {
		return err
	}
	return c.fill(ctx)
}

// LoadMore fetches the next queued page, merges it into the sync engine and
// appends assets not already loaded. Returns how many new assets appeared.
func (c *ListController) LoadMore(ctx context.Context) (int, error) {
	c.mu.Lock()
	if len(c.nextPages) == 0 {
		c.mu.Unlock()
		return 0, nil
	}
	pageURL := c.nextPages[0]
	c.nextPages = c.nextPages[1:]
	c.mu.Unlock()

	page, err := c.client.FetchAssetPage(ctx, pageURL)
	if err != nil {
		// The page URL goes back on the queue; a failed fetch loses
		// nothing, the user can retry.
		c.mu.Lock()
		c.nextPages = append([]string{pageURL}, c.nextPages...)
		c.mu.Unlock()
		return 0, err
	}

	merged := c.engine.MergePage(page)

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, rec := range merged {
		if _, ok := c.elements[rec.ID]; ok {
			continue
		}
		c.elements[rec.ID] = &Element{ID: rec.ID}
		c.order = append(c.order, rec.ID)
		added++
	}
	if page.Pagination.Next != nil {
		c.nextPages = append(c.nextPages, *page.Pagination.Next)
	}
	return added, nil
}

// fill keeps fetching while below the load floor and pages remain.
func (c *ListController) fill(ctx context.Context) error {
	for {
		c.mu.Lock()
		needMore := len(c.order) < c.loadFloor && len(c.nextPages) > 0
		c.mu.Unlock()
		if !needMore {
			return nil
		}
		if _, err := c.LoadMore(ctx); err != nil {
			return err
		}
	}
}

// SentinelVisible is the trailing-sentinel trigger: the view calls it when
// the end-of-list marker scrolls into the viewport.
func (c *ListController) SentinelVisible(ctx context.Context) error {
	_, err := c.LoadMore(ctx)
	return err
}

// HasMore reports whether unfetched pages remain.
func (c *ListController) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nextPages) > 0
}

// SetFilter restricts the visible set to one campaign; empty shows all.
// Filtering recomputes over loaded assets only.
func (c *ListController) SetFilter(campaignID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = campaignID
}

func (c *ListController) SetSort(mode SortMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sortMode = mode
}

// Visible returns the loaded assets under the current filter and sort. It
// never fetches.
func (c *ListController) Visible() []AssetRecord {
	c.mu.Lock()
	order := make([]string, len(c.order))
	copy(order, c.order)
	filter := c.filter
	mode := c.sortMode
	c.mu.Unlock()

	records := make([]AssetRecord, 0, len(order))
	for _, id := range order {
		rec, ok := c.engine.AssetByID(id)
		if !ok {
			continue
		}
		if filter != "" && (rec.Campaign == nil || rec.Campaign.ID != filter) {
			continue
		}
		records = append(records, rec)
	}

	sortRecords(records, mode)
	return records
}

func refTitle(r *Ref) string {
	if r == nil {
		return ""
	}
	return r.Title
}

func refID(r *Ref) string {
	if r == nil {
		return ""
	}
	return r.ID
}

func sortRecords(records []AssetRecord, mode SortMode) {
	switch mode {
	case SortInsertion:
		// already in insertion order
	case SortHardest:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Difficulty > records[j].Difficulty
		})
	case SortEasiest:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Difficulty < records[j].Difficulty
		})
	case SortCampaign:
		sort.SliceStable(records, func(i, j int) bool {
			a, b := records[i], records[j]
			if c1, c2 := refTitle(a.Campaign), refTitle(b.Campaign); c1 != c2 {
				return c1 < c2
			}
			if p1, p2 := refTitle(a.Project), refTitle(b.Project); p1 != p2 {
				return p1 < p2
			}
			if i1, i2 := refTitle(a.Item), refTitle(b.Item); i1 != i2 {
				return i1 < i2
			}
			return a.ID < b.ID
		})
	case SortItemID:
		sort.SliceStable(records, func(i, j int) bool {
			if i1, i2 := refID(records[i].Item), refID(records[j].Item); i1 != i2 {
				return i1 < i2
			}
			return records[i].Sequence < records[j].Sequence
		})
	}
}

// ElementVisible is the viewport-intersection callback: the first sighting
// attaches the real image, then the element is no longer watched.
func (c *ListController) ElementVisible(assetID string) {
	c.mu.Lock()
	el, ok := c.elements[assetID]
	if !ok || el.ImageAttached {
		c.mu.Unlock()
		return
	}
	el.ImageAttached = true
	attach := c.attachImage
	c.mu.Unlock()

	if attach != nil {
		attach(assetID)
	}
}

// OpenEditor records which asset the editor has open, so availability
// changes for it can gate the editor controls.
func (c *ListController) OpenEditor(assetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openAsset = assetID
}

func (c *ListController) CloseEditor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openAsset = ""
}

// Element returns a copy of the element state for an asset.
func (c *ListController) Element(assetID string) (Element, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[assetID]
	if !ok {
		return Element{}, false
	}
	return *el, true
}

// HandleEvent reflects reservation events into advisory availability. The
// server re-validates every write regardless of what this state says.
func (c *ListController) HandleEvent(env Envelope) {
	m := env.Message
	switch m.Type {
	case TypeReservationObtained:
		if m.Holder == c.client.SessionToken() {
			return
		}
		c.setAvailability(m.AssetID, false, "Another volunteer is transcribing this page")
	case TypeReservationReleased:
		c.setAvailability(m.AssetID, true, "")
	}
}

func (c *ListController) setAvailability(assetID string, available bool, reason string) {
	c.mu.Lock()
	el, ok := c.elements[assetID]
	if ok {
		el.Unavailable = !available
		el.Reason = reason
	}
	gate := c.editorGate
	gateIt := c.openAsset == assetID && gate != nil
	c.mu.Unlock()

	if gateIt {
		gate(available, reason)
	}
}
