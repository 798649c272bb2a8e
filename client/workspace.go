package client

import (
	"context"
	"log/slog"
)

// Workspace ties the client, sync engine, stream and list controller into
// one explicitly managed lifecycle: create on mount, Start once, Close on
// navigate-away. Nothing here is package-global state.
type Workspace struct {
	Client *Client
	Engine *SyncEngine
	Stream *Stream
	List   *ListController

	cancel context.CancelFunc
}

func NewWorkspace(baseURL, streamURL string, logger *slog.Logger, clientOpts []Option, listOpts ...ListControllerOption) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}

	c := New(baseURL, clientOpts...)
	engine := NewSyncEngine(c, logger)
	stream := NewStream(streamURL, engine, logger)
	list := NewListController(engine, c, logger, listOpts...)

	return &Workspace{
		Client: c,
		Engine: engine,
		Stream: stream,
		List:   list,
	}
}

// Start launches the event-processing and stream goroutines and loads the
// first pages of the asset list.
func (w *Workspace) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.Engine.Run(runCtx)
	go w.Stream.Run(runCtx)

	return w.List.Load(runCtx)
}

// Close tears the workspace down; the stream disconnects and the goroutines
// exit.
func (w *Workspace) Close() {
	if w.cancel != nil {
		w.cancel()
	}
}
