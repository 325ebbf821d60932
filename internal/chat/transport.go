package chat

import (
	"context"

	"npkchat/internal/blockkit"
)

// Transport is the chat platform seen from the workflow side: it renders
// whatever block tree it is given and delivers typed interaction callbacks.
// Implementations must be safe for concurrent use.
type Transport interface {
	// OpenForm opens a new form synchronously against the interaction's
	// trigger and returns the transport-assigned form id. The open handshake
	// expires quickly; callers open a placeholder first and update in place.
	OpenForm(ctx context.Context, triggerID string, view *blockkit.View) (string, error)

	// UpdateForm applies the mutator to the current state of an open form and
	// re-renders it. The mutator sees the live view (blocks + metadata).
	UpdateForm(ctx context.Context, formID string, mutate func(*blockkit.View) error) error

	// PushView overlays a view on top of an open form; dismissing it returns
	// the user to the form underneath, which is left untouched.
	PushView(ctx context.Context, formID string, view *blockkit.View) error

	// PostMessage posts into a channel (threaded when thread is non-empty)
	// and returns the message timestamp used for later in-place updates.
	PostMessage(ctx context.Context, msg Message, text string, blocks ...*blockkit.Block) (string, error)

	// UpdateMessage rewrites a previously posted message in place.
	UpdateMessage(ctx context.Context, msg Message, ts, text string, blocks ...*blockkit.Block) error

	// PostError reports a user-facing failure into the originating thread.
	PostError(ctx context.Context, msg Message, text string) error

	// UploadFile attaches a downloadable file to the originating thread.
	UploadFile(ctx context.Context, msg Message, filename string, content []byte) error

	// DownloadFile fetches the content of a shared file by id.
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)

	// StoreOptions and GetOptions stash a static option set with the session
	// (used for the statically known hash-type list).
	StoreOptions(ctx context.Context, key string, options []*blockkit.Option) error
	GetOptions(ctx context.Context, key string) ([]*blockkit.Option, error)
}
