package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"npkchat/internal/blockkit"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	callTimeout = 15 * time.Second
)

type envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	ReplyTo string          `json:"reply_to,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SocketClient is the socket-mode chat transport: one websocket connection
// over which the platform delivers events and interaction callbacks and
// accepts view/message operations. It implements Transport.
type SocketClient struct {
	log      *slog.Logger
	endpoint string
	token    string

	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *envelope

	viewMu sync.Mutex
	views  map[string]*blockkit.View

	router *Router
}

func NewSocketClient(log *slog.Logger, endpoint, token string) *SocketClient {
	if log == nil {
		log = slog.Default()
	}
	return &SocketClient{
		log:      log,
		endpoint: endpoint,
		token:    token,
		pending:  make(map[string]chan *envelope),
		views:    make(map[string]*blockkit.View),
	}
}

// SetRouter installs the dispatch router. Must be called before Run.
func (c *SocketClient) SetRouter(r *Router) {
	c.router = r
}

// Run connects and serves the read loop until the context is cancelled or the
// connection drops.
func (c *SocketClient) Run(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return fmt.Errorf("dial chat transport: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	c.conn = conn
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go c.pingLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("read chat transport: %w", err)
		}
		c.handle(ctx, &env)
	}
}

func (c *SocketClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *SocketClient) handle(ctx context.Context, env *envelope) {
	if env.ReplyTo != "" {
		c.pendingMu.Lock()
		ch, ok := c.pending[env.ReplyTo]
		if ok {
			delete(c.pending, env.ReplyTo)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- env
		}
		return
	}
	if c.router == nil {
		return
	}

	// Each delivery is dispatched on its own goroutine; callbacks for one
	// form arrive in event order but their bodies may interleave.
	switch env.Type {
	case "dot_command":
		var ev DotCommandEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			c.log.Error("bad dot_command payload", "err", err)
			return
		}
		go c.router.DispatchDotCommand(ctx, &ev)
	case "file_shared":
		var ev FileSharedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			c.log.Error("bad file_shared payload", "err", err)
			return
		}
		go c.router.DispatchFileShared(ctx, &ev)
	case "block_actions":
		var p ActionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Error("bad block_actions payload", "err", err)
			return
		}
		go c.router.DispatchAction(ctx, &p)
	case "options_request":
		var p OptionsPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Error("bad options_request payload", "err", err)
			return
		}
		id := env.ID
		go func() {
			opts := c.router.DispatchOptions(ctx, &p)
			if opts == nil {
				opts = []*blockkit.Option{}
			}
			if err := c.reply(id, map[string]any{"options": opts}); err != nil {
				c.log.Error("options reply failed", "err", err)
			}
		}()
	case "view_submission":
		var p struct {
			CallbackID string `json:"callback_id"`
			ViewSubmission
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.log.Error("bad view_submission payload", "err", err)
			return
		}
		// The form is not necessarily closed by a submission: on a failed
		// validation it stays open under a pushed error overlay, and the
		// submit handler keeps mutating it. The cached view is dropped only
		// on the view_closed the platform sends when the form actually goes
		// away.
		go c.router.DispatchViewSubmission(ctx, p.CallbackID, &p.ViewSubmission)
	case "view_closed":
		var p struct {
			FormID string `json:"form_id"`
		}
		if err := json.Unmarshal(env.Payload, &p); err == nil {
			c.forgetView(p.FormID)
		}
	default:
		c.log.Debug("unhandled frame", "type", env.Type)
	}
}

func (c *SocketClient) send(env *envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("transport not connected")
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *SocketClient) reply(replyTo string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	return c.send(&envelope{ID: uuid.NewString(), Type: "reply", ReplyTo: replyTo, OK: true, Payload: raw})
}

// call sends a request frame and waits for the correlated reply.
func (c *SocketClient) call(ctx context.Context, frameType string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", frameType, err)
	}
	id := uuid.NewString()
	ch := make(chan *envelope, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.send(&envelope{ID: id, Type: frameType, Payload: raw}); err != nil {
		return err
	}

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%s: transport reply timeout", frameType)
	case reply := <-ch:
		if !reply.OK {
			return fmt.Errorf("%s: %s", frameType, reply.Error)
		}
		if out != nil && len(reply.Payload) > 0 {
			if err := json.Unmarshal(reply.Payload, out); err != nil {
				return fmt.Errorf("decode %s reply: %w", frameType, err)
			}
		}
		return nil
	}
}

func (c *SocketClient) rememberView(formID string, view *blockkit.View) {
	c.viewMu.Lock()
	c.views[formID] = view
	c.viewMu.Unlock()
}

func (c *SocketClient) forgetView(formID string) {
	c.viewMu.Lock()
	delete(c.views, formID)
	c.viewMu.Unlock()
}

// OpenForm implements Transport.
func (c *SocketClient) OpenForm(ctx context.Context, triggerID string, view *blockkit.View) (string, error) {
	var out struct {
		FormID string `json:"form_id"`
	}
	err := c.call(ctx, "open_form", map[string]any{"trigger_id": triggerID, "view": view}, &out)
	if err != nil {
		return "", err
	}
	c.rememberView(out.FormID, view)
	return out.FormID, nil
}

// UpdateForm implements Transport. The mutator runs against the cached live
// view under the view lock, then the whole view is re-rendered.
func (c *SocketClient) UpdateForm(ctx context.Context, formID string, mutate func(*blockkit.View) error) error {
	c.viewMu.Lock()
	view, ok := c.views[formID]
	if !ok {
		c.viewMu.Unlock()
		return fmt.Errorf("form %s is not open", formID)
	}
	if err := mutate(view); err != nil {
		c.viewMu.Unlock()
		return err
	}
	c.viewMu.Unlock()
	return c.call(ctx, "update_form", map[string]any{"form_id": formID, "view": view}, nil)
}

// PushView implements Transport.
func (c *SocketClient) PushView(ctx context.Context, formID string, view *blockkit.View) error {
	return c.call(ctx, "push_view", map[string]any{"form_id": formID, "view": view}, nil)
}

// PostMessage implements Transport.
func (c *SocketClient) PostMessage(ctx context.Context, msg Message, text string, blocks ...*blockkit.Block) (string, error) {
	var out struct {
		TS string `json:"ts"`
	}
	err := c.call(ctx, "post_message", map[string]any{"message": msg, "text": text, "blocks": blocks}, &out)
	if err != nil {
		return "", err
	}
	return out.TS, nil
}

// UpdateMessage implements Transport.
func (c *SocketClient) UpdateMessage(ctx context.Context, msg Message, ts, text string, blocks ...*blockkit.Block) error {
	return c.call(ctx, "update_message", map[string]any{"message": msg, "ts": ts, "text": text, "blocks": blocks}, nil)
}

// PostError implements Transport.
func (c *SocketClient) PostError(ctx context.Context, msg Message, text string) error {
	return c.call(ctx, "post_error", map[string]any{"message": msg, "text": text}, nil)
}

// UploadFile implements Transport.
func (c *SocketClient) UploadFile(ctx context.Context, msg Message, filename string, content []byte) error {
	payload := map[string]any{
		"message":  msg,
		"filename": filename,
		"content":  base64.StdEncoding.EncodeToString(content),
	}
	return c.call(ctx, "upload_file", payload, nil)
}

// DownloadFile implements Transport.
func (c *SocketClient) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	var out struct {
		Content string `json:"content"`
	}
	if err := c.call(ctx, "download_file", map[string]any{"file_id": fileID}, &out); err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(out.Content)
	if err != nil {
		return nil, fmt.Errorf("decode file content: %w", err)
	}
	return raw, nil
}

// StoreOptions implements Transport.
func (c *SocketClient) StoreOptions(ctx context.Context, key string, options []*blockkit.Option) error {
	return c.call(ctx, "store_options", map[string]any{"key": key, "options": options}, nil)
}

// GetOptions implements Transport.
func (c *SocketClient) GetOptions(ctx context.Context, key string) ([]*blockkit.Option, error) {
	var out struct {
		Options []*blockkit.Option `json:"options"`
	}
	if err := c.call(ctx, "get_options", map[string]any{"key": key}, &out); err != nil {
		return nil, err
	}
	return out.Options, nil
}
