package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/scriptorium-app/scriptorium/internal/hub"
)

// The workflow graph:
//
//	not_started --save--> in_progress --save--> in_progress
//	in_progress --submit--> submitted
//	submitted --accept--> completed (terminal)
//	submitted --reject--> in_progress
//
// Every edge requires a live reservation held by the caller. Illegal edges
// fail with ErrInvalidTransition; the database layer enforces them with
// guarded updates, so concurrent writers cannot race past the checks here.

type SaveTranscriptionOption struct {
	AssetID uuid.UUID
	Holder  string
	Text    string
	// Confirm acknowledges discarding a non-empty draft with empty text,
	// the "nothing to transcribe" path.
	Confirm bool
}

func (u Usecase) SaveTranscription(ctx context.Context, opt SaveTranscriptionOption) (Transcription, Asset, error) {
	if err := u.requireReservation(ctx, opt.AssetID, opt.Holder); err != nil {
		return Transcription{}, Asset{}, err
	}

	asset, err := u.repo.GetAssetByID(ctx, opt.AssetID)
	if err != nil {
		return Transcription{}, Asset{}, err
	}
	if asset.Status != StatusNotStarted && asset.Status != StatusInProgress {
		return Transcription{}, Asset{}, ErrInvalidTransition
	}
	if opt.Text == "" && !opt.Confirm &&
		asset.LatestTranscription != nil && asset.LatestTranscription.Text != "" {
		return Transcription{}, Asset{}, ErrConfirmRequired
	}

	tr := Transcription{
		ID:           uuid.New(),
		AssetID:      opt.AssetID,
		Text:         opt.Text,
		Author:       opt.Holder,
		SupersedesID: asset.LatestTranscriptionID,
	}
	saved, updated, err := u.repo.SaveTranscription(ctx, tr)
	if err != nil {
		return Transcription{}, Asset{}, fmt.Errorf("save transcription: %w", err)
	}

	u.publishAssetUpdate(ctx, updated)
	return saved, updated, nil
}

type SubmitAssetOption struct {
	AssetID uuid.UUID
	Holder  string
}

// SubmitAsset moves an in-progress asset to submitted. The clean-draft
// precondition (no unsaved edits) is the client's job; the server only sees
// saved text.
func (u Usecase) SubmitAsset(ctx context.Context, opt SubmitAssetOption) (Asset, error) {
	if err := u.requireReservation(ctx, opt.AssetID, opt.Holder); err != nil {
		return Asset{}, err
	}
	asset, err := u.repo.SubmitAsset(ctx, opt.AssetID, opt.Holder)
	if err != nil {
		return Asset{}, err
	}
	u.publishAssetUpdate(ctx, asset)
	return asset, nil
}

type ReviewTranscriptionOption struct {
	TranscriptionID uuid.UUID
	Reviewer        string
	Accept          bool
	Feedback        string
}

// ReviewTranscription accepts or rejects a submitted transcription.
// Acceptance by the transcription's own author is rejected here regardless
// of any client-side gating.
func (u Usecase) ReviewTranscription(ctx context.Context, opt ReviewTranscriptionOption) (Asset, error) {
	tr, err := u.repo.GetTranscriptionByID(ctx, opt.TranscriptionID)
	if err != nil {
		return Asset{}, err
	}
	if err := u.requireReservation(ctx, tr.AssetID, opt.Reviewer); err != nil {
		return Asset{}, err
	}

	var asset Asset
	if opt.Accept {
		if tr.Author == opt.Reviewer {
			return Asset{}, ErrSelfReview
		}
		asset, err = u.repo.AcceptTranscription(ctx, opt.TranscriptionID, opt.Reviewer)
	} else {
		asset, err = u.repo.RejectTranscription(ctx, opt.TranscriptionID, opt.Reviewer, opt.Feedback)
	}
	if err != nil {
		return Asset{}, err
	}
	u.publishAssetUpdate(ctx, asset)
	return asset, nil
}

func (u Usecase) publishAssetUpdate(ctx context.Context, asset Asset) {
	difficulty := asset.Difficulty
	m := hub.Message{
		Type:        hub.TypeAssetUpdate,
		AssetID:     asset.ID.String(),
		Status:      string(asset.Status),
		Difficulty:  &difficulty,
		SubmittedBy: asset.SubmittedBy,
	}
	if asset.LatestTranscriptionID != nil {
		m.LatestTranscription = &hub.TranscriptionRef{
			ID:  asset.LatestTranscriptionID.String(),
			URL: fmt.Sprintf("/api/v1/transcriptions/%s", asset.LatestTranscriptionID),
		}
	}
	u.publish(ctx, m)
}
