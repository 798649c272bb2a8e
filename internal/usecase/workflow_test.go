package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scriptorium-app/scriptorium/internal/hub"
)

func TestSaveTranscription_RequiresReservation(t *testing.T) {
	uc, repo, _ := newTestUsecase(time.Minute)
	assetID := repo.addAsset(StatusNotStarted)
	ctx := context.Background()

	_, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "first pass",
	})
	if err != ErrReservationConflict {
		t.Fatalf("save without reservation: expected ErrReservationConflict, got %v", err)
	}

	// a reservation held by someone else is just as bad
	if _, err := uc.AcquireReservation(ctx, assetID, "volunteer-y"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	_, _, err = uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "first pass",
	})
	if err != ErrReservationConflict {
		t.Fatalf("save against foreign reservation: expected ErrReservationConflict, got %v", err)
	}
}

func TestSaveTranscription_MovesToInProgress(t *testing.T) {
	uc, repo, events := newTestUsecase(time.Minute)
	assetID := repo.addAsset(StatusNotStarted)
	ctx := context.Background()

	if _, err := uc.AcquireReservation(ctx, assetID, "volunteer-x"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	tr, asset, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "first pass",
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if asset.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", asset.Status)
	}
	if asset.LatestTranscriptionID == nil || *asset.LatestTranscriptionID != tr.ID {
		t.Errorf("latest transcription not pointed at the saved one")
	}
	if tr.Author != "volunteer-x" {
		t.Errorf("author = %s", tr.Author)
	}
	if tr.SupersedesID != nil {
		t.Errorf("first save supersedes %v", tr.SupersedesID)
	}

	updates := events.byType(hub.TypeAssetUpdate)
	if len(updates) != 1 {
		t.Fatalf("expected 1 asset_update, got %d", len(updates))
	}
	m := updates[0].Message
	if m.AssetID != assetID.String() || m.Status != string(StatusInProgress) {
		t.Errorf("asset_update carries %s/%s", m.AssetID, m.Status)
	}
	if m.LatestTranscription == nil || m.LatestTranscription.ID != tr.ID.String() {
		t.Errorf("asset_update missing latest transcription ref")
	}
}

func TestSaveTranscription_SupersedesPrevious(t *testing.T) {
	uc, repo, _ := newTestUsecase(time.Minute)
	assetID := repo.addAsset(StatusNotStarted)
	ctx := context.Background()

	if _, err := uc.AcquireReservation(ctx, assetID, "volunteer-x"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	first, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "first pass",
	})
	if err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	second, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "second pass",
	})
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if second.SupersedesID == nil || *second.SupersedesID != first.ID {
		t.Errorf("second save does not supersede the first")
	}
}

func TestSaveTranscription_EmptyOverDraftNeedsConfirm(t *testing.T) {
	uc, repo, _ := newTestUsecase(time.Minute)
	assetID := repo.addAsset(StatusNotStarted)
	ctx := context.Background()

	if _, err := uc.AcquireReservation(ctx, assetID, "volunteer-x"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// an empty save over no draft at all is fine without confirmation
	if _, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "",
	}); err != nil {
		t.Fatalf("empty save over blank asset failed: %v", err)
	}

	if _, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "some words",
	}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	_, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "",
	})
	if err != ErrConfirmRequired {
		t.Fatalf("expected ErrConfirmRequired, got %v", err)
	}

	if _, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "", Confirm: true,
	}); err != nil {
		t.Fatalf("confirmed empty save failed: %v", err)
	}
}

func TestSubmitAsset_NeedsSavedTranscription(t *testing.T) {
	uc, repo, _ := newTestUsecase(time.Minute)
	assetID := repo.addAsset(StatusNotStarted)
	ctx := context.Background()

	if _, err := uc.AcquireReservation(ctx, assetID, "volunteer-x"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	if _, err := uc.SubmitAsset(ctx, SubmitAssetOption{AssetID: assetID, Holder: "volunteer-x"}); err != ErrInvalidTransition {
		t.Fatalf("submit of not_started asset: expected ErrInvalidTransition, got %v", err)
	}

	if _, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-x", Text: "done",
	}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	asset, err := uc.SubmitAsset(ctx, SubmitAssetOption{AssetID: assetID, Holder: "volunteer-x"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if asset.Status != StatusSubmitted {
		t.Errorf("expected submitted, got %s", asset.Status)
	}
	if asset.SubmittedBy == nil || *asset.SubmittedBy != "volunteer-x" {
		t.Errorf("submitted_by not recorded")
	}

	// submitting twice is an illegal edge
	if _, err := uc.SubmitAsset(ctx, SubmitAssetOption{AssetID: assetID, Holder: "volunteer-x"}); err != ErrInvalidTransition {
		t.Fatalf("double submit: expected ErrInvalidTransition, got %v", err)
	}
}

// submitForReview walks an asset to submitted and hands the reservation to
// the reviewer.
func submitForReview(t *testing.T, uc Usecase, id uuid.UUID, author, reviewer string) Transcription {
	t.Helper()
	ctx := context.Background()

	if _, err := uc.AcquireReservation(ctx, id, author); err != nil {
		t.Fatalf("author acquire failed: %v", err)
	}
	tr, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{AssetID: id, Holder: author, Text: "submitted text"})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := uc.SubmitAsset(ctx, SubmitAssetOption{AssetID: id, Holder: author}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := uc.ReleaseReservation(ctx, id, author); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if reviewer != "" {
		if _, err := uc.AcquireReservation(ctx, id, reviewer); err != nil {
			t.Fatalf("reviewer acquire failed: %v", err)
		}
	}
	return tr
}

func TestReviewTranscription_Accept(t *testing.T) {
	uc, repo, _ := newTestUsecase(time.Minute)
	assetID := repo.addAsset(StatusNotStarted)
	ctx := context.Background()

	tr := submitForReview(t, uc, assetID, "volunteer-x", "volunteer-y")

	asset, err := uc.ReviewTranscription(ctx, ReviewTranscriptionOption{
		TranscriptionID: tr.ID, Reviewer: "volunteer-y", Accept: true,
	})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if asset.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", asset.Status)
	}

	// completed is terminal
	_, _, err = uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-y", Text: "late edit",
	})
	if err != ErrInvalidTransition {
		t.Fatalf("save on completed asset: expected ErrInvalidTransition, got %v", err)
	}
}

func TestReviewTranscription_SelfAcceptForbidden(t *testing.T) {
	uc, repo, _ := newTestUsecase(time.Minute)
	assetID := repo.addAsset(StatusNotStarted)
	ctx := context.Background()

	tr := submitForReview(t, uc, assetID, "volunteer-x", "volunteer-x")

	_, err := uc.ReviewTranscription(ctx, ReviewTranscriptionOption{
		TranscriptionID: tr.ID, Reviewer: "volunteer-x", Accept: true,
	})
	if err != ErrSelfReview {
		t.Fatalf("expected ErrSelfReview, got %v", err)
	}

	// rejecting your own work is allowed, it just reopens the asset
	asset, err := uc.ReviewTranscription(ctx, ReviewTranscriptionOption{
		TranscriptionID: tr.ID, Reviewer: "volunteer-x", Accept: false, Feedback: "needs another pass",
	})
	if err != nil {
		t.Fatalf("self reject failed: %v", err)
	}
	if asset.Status != StatusInProgress {
		t.Errorf("expected in_progress after reject, got %s", asset.Status)
	}
}

func TestReviewTranscription_RejectReopens(t *testing.T) {
	uc, repo, events := newTestUsecase(time.Minute)
	assetID := repo.addAsset(StatusNotStarted)
	ctx := context.Background()

	tr := submitForReview(t, uc, assetID, "volunteer-x", "volunteer-y")

	asset, err := uc.ReviewTranscription(ctx, ReviewTranscriptionOption{
		TranscriptionID: tr.ID, Reviewer: "volunteer-y", Accept: false, Feedback: "line 3 is wrong",
	})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if asset.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", asset.Status)
	}
	if asset.SubmittedBy != nil {
		t.Errorf("submitted_by not cleared on reject")
	}

	// the rejected asset can be edited and resubmitted by the new holder
	if _, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{
		AssetID: assetID, Holder: "volunteer-y", Text: "line 3 fixed",
	}); err != nil {
		t.Fatalf("save after reject failed: %v", err)
	}
	if _, err := uc.SubmitAsset(ctx, SubmitAssetOption{AssetID: assetID, Holder: "volunteer-y"}); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}

	// save+submit before review, reject, save+submit again: 4 updates plus
	// the reject itself
	if got := len(events.byType(hub.TypeAssetUpdate)); got != 5 {
		t.Errorf("expected 5 asset_update events, got %d", got)
	}
}

func TestReviewTranscription_StaleTranscription(t *testing.T) {
	uc, repo, _ := newTestUsecase(time.Minute)
	assetID := repo.addAsset(StatusNotStarted)
	ctx := context.Background()

	if _, err := uc.AcquireReservation(ctx, assetID, "volunteer-x"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	stale, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{AssetID: assetID, Holder: "volunteer-x", Text: "v1"})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, _, err := uc.SaveTranscription(ctx, SaveTranscriptionOption{AssetID: assetID, Holder: "volunteer-x", Text: "v2"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := uc.SubmitAsset(ctx, SubmitAssetOption{AssetID: assetID, Holder: "volunteer-x"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := uc.ReleaseReservation(ctx, assetID, "volunteer-x"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := uc.AcquireReservation(ctx, assetID, "volunteer-y"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// only the latest transcription is reviewable
	_, err = uc.ReviewTranscription(ctx, ReviewTranscriptionOption{
		TranscriptionID: stale.ID, Reviewer: "volunteer-y", Accept: true,
	})
	if err != ErrInvalidTransition {
		t.Fatalf("review of superseded transcription: expected ErrInvalidTransition, got %v", err)
	}
}
