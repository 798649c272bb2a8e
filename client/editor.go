package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrUnsavedChanges blocks submitting a draft edited since its last
	// successful save.
	ErrUnsavedChanges = errors.New("draft has unsaved changes")
	// ErrDraftNotEmpty asks for explicit confirmation before discarding
	// draft text on the nothing-to-transcribe path.
	ErrDraftNotEmpty = errors.New("existing draft text would be discarded")
)

// Reservation renewal cadence; comfortably under the server's 5 minute
// lease so an active editor never lapses.
const renewInterval = 2 * time.Minute

// EditorSession drives one asset through the transcription workflow from
// the client side: it holds the reservation, tracks draft dirtiness for the
// clean-submit precondition, and renews the lease on a heartbeat.
type EditorSession struct {
	client *Client
	logger *slog.Logger

	assetID string

	mu        sync.Mutex
	draft     string
	savedText string
	saved     bool
	released  bool

	cancelRenew context.CancelFunc
}

// OpenEditor acquires the reservation for the asset and starts the renewal
// heartbeat. A conflict surfaces as ErrConflict: the asset stays read-only
// until a reservation_released event or a manual refresh.
func OpenEditor(ctx context.Context, c *Client, assetID string, logger *slog.Logger) (*EditorSession, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := c.Reserve(ctx, assetID); err != nil {
		return nil, err
	}

	s := &EditorSession{
		client:  c,
		logger:  logger,
		assetID: assetID,
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	s.cancelRenew = cancel
	go s.renewLoop(renewCtx)

	return s, nil
}

func (s *EditorSession) renewLoop(ctx context.Context) {
	t := time.NewTicker(renewInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.client.Reserve(ctx, s.assetID); err != nil {
				s.logger.Warn("editor: lease renewal failed",
					slog.String("asset_id", s.assetID),
					slog.String("err", err.Error()))
			}
		}
	}
}

// SetDraft records the in-editor text. It never touches the network.
func (s *EditorSession) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Dirty reports whether the draft differs from the last saved text.
func (s *EditorSession) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.saved || s.draft != s.savedText
}

// Save persists the draft as a new transcription version.
func (s *EditorSession) Save(ctx context.Context) (Transcription, error) {
	s.mu.Lock()
	text := s.draft
	s.mu.Unlock()

	tr, _, err := s.client.Save(ctx, s.assetID, text, false)
	if err != nil {
		return Transcription{}, err
	}

	s.mu.Lock()
	s.savedText = text
	s.saved = true
	s.mu.Unlock()
	return tr, nil
}

// Submit moves the asset to submitted. It refuses locally when the draft
// has unseen edits; the server would accept the stale saved text otherwise.
func (s *EditorSession) Submit(ctx context.Context) (Asset, error) {
	if s.Dirty() {
		return Asset{}, ErrUnsavedChanges
	}
	return s.client.Submit(ctx, s.assetID)
}

// NothingToTranscribe saves empty text. With a non-empty draft present it
// refuses unless confirm is set, then submits.
func (s *EditorSession) NothingToTranscribe(ctx context.Context, confirm bool) (Asset, error) {
	s.mu.Lock()
	hasDraft := s.draft != "" || (s.saved && s.savedText != "")
	s.mu.Unlock()

	if hasDraft && !confirm {
		return Asset{}, ErrDraftNotEmpty
	}

	if _, _, err := s.client.Save(ctx, s.assetID, "", true); err != nil {
		return Asset{}, err
	}

	s.mu.Lock()
	s.draft = ""
	s.savedText = ""
	s.saved = true
	s.mu.Unlock()

	return s.client.Submit(ctx, s.assetID)
}

// Close releases the reservation and stops the heartbeat. Safe to call more
// than once.
func (s *EditorSession) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.mu.Unlock()

	s.cancelRenew()
	if err := s.client.Release(ctx, s.assetID); err != nil {
		return fmt.Errorf("release %s: %w", s.assetID, err)
	}
	return nil
}
