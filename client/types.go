// Package client is the Go client for the scriptorium API: a reconciling
// cache of assets fed by paginated list fetches and the websocket event
// stream, plus the reservation and workflow calls an editor frontend needs.
package client

import (
	"encoding/json"
	"time"
)

// Event message types, mirroring the server's asset updates topic.
const (
	TypeAssetUpdate         = "asset_update"
	TypeReservationObtained = "reservation_obtained"
	TypeReservationReleased = "reservation_released"
)

type Ref struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type TranscriptionRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Asset struct {
	ID                  string            `json:"id"`
	Sequence            int               `json:"sequence"`
	Title               string            `json:"title"`
	Status              string            `json:"status"`
	Difficulty          float64           `json:"difficulty"`
	Item                *Ref              `json:"item,omitempty"`
	Project             *Ref              `json:"project,omitempty"`
	Campaign            *Ref              `json:"campaign,omitempty"`
	LatestTranscription *TranscriptionRef `json:"latest_transcription,omitempty"`
	SubmittedBy         *string           `json:"submitted_by,omitempty"`
	ImageURL            string            `json:"image_url"`
	ThumbnailURL        string            `json:"thumbnail_url"`
	ResourceURL         string            `json:"resource_url"`
	Sent                time.Time         `json:"sent"`
}

type Pagination struct {
	Next *string `json:"next"`
}

type AssetPage struct {
	Objects    []Asset    `json:"objects"`
	Pagination Pagination `json:"pagination"`
	Sent       time.Time  `json:"sent"`
}

type Campaign struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Slug       string          `json:"slug"`
	AssetStats json.RawMessage `json:"asset_stats,omitempty"`
}

type Transcription struct {
	ID         string  `json:"id"`
	AssetID    string  `json:"asset_id"`
	Text       string  `json:"text"`
	Author     string  `json:"author"`
	Supersedes *string `json:"supersedes,omitempty"`
	Accepted   bool    `json:"accepted"`
	ReviewedBy *string `json:"reviewed_by,omitempty"`
	Feedback   *string `json:"feedback,omitempty"`
}

type Reservation struct {
	AssetID    string    `json:"asset_id"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Message is the inner payload of a streamed event frame.
type Message struct {
	Type                string            `json:"type"`
	AssetID             string            `json:"asset_id"`
	Holder              string            `json:"holder,omitempty"`
	Status              string            `json:"status,omitempty"`
	Difficulty          *float64          `json:"difficulty,omitempty"`
	SubmittedBy         *string           `json:"submitted_by,omitempty"`
	LatestTranscription *TranscriptionRef `json:"latest_transcription,omitempty"`
}

// Envelope is one frame on the stream. Sent is producer-assigned: the only
// ordering that matters, since arrival order guarantees nothing across
// sources or reconnects.
type Envelope struct {
	Sent    time.Time `json:"sent"`
	Message Message   `json:"message"`
}
