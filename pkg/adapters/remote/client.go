// Package remote implements core.RemoteService over HTTP.
//
// Direct calls are plain JSON requests against the /notes resource. Each push
// stream is a websocket on /notes/events/{type} carrying one JSON event per
// text message. Handler serves the same protocol on top of any
// core.RemoteService, so a directory or an in-memory store can be shared with
// other clients.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/aretw0/notetaker/pkg/core"
)

const (
	notesPath  = "notes"
	eventsPath = "events"
)

// Config holds the configuration for the HTTP client.
type Config struct {
	Endpoint   string       // base URL of the note service, e.g. http://localhost:8080
	Token      string       // optional bearer token
	HTTPClient *http.Client // base transport; defaults to http.DefaultClient
	Dialer     *websocket.Dialer
	Logger     *slog.Logger
}

// Client implements core.RemoteService against a remote note service.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens oauth2.TokenSource
	dialer *websocket.Dialer
	logger *slog.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

// NewClient validates the endpoint and prepares the transport.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New("remote endpoint is required")
	}
	base, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint scheme: %q", base.Scheme)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Dialer == nil {
		config.Dialer = websocket.DefaultDialer
	}

	c := &Client{
		base:   base,
		http:   config.HTTPClient,
		dialer: config.Dialer,
		logger: config.Logger,
		subs:   make(map[*subscription]struct{}),
	}
	if config.Token != "" {
		c.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token, TokenType: "Bearer"})
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, config.HTTPClient)
		c.http = oauth2.NewClient(ctx, c.tokens)
	}
	return c, nil
}

type textBody struct {
	Text string `json:"note"`
}

type deletedBody struct {
	ID string `json:"id"`
}

type errorBody struct {
	Error string `json:"error"`
}

// List implements core.RemoteService.
func (c *Client) List(ctx context.Context) ([]core.Note, error) {
	var notes []core.Note
	if err := c.do(ctx, http.MethodGet, c.base.JoinPath(notesPath), nil, &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []core.Note{}
	}
	return notes, nil
}

// Create implements core.RemoteService.
func (c *Client) Create(ctx context.Context, text string) (core.Note, error) {
	var n core.Note
	err := c.do(ctx, http.MethodPost, c.base.JoinPath(notesPath), textBody{Text: text}, &n)
	return n, err
}

// Update implements core.RemoteService.
func (c *Client) Update(ctx context.Context, id, text string) (core.Note, error) {
	if id == "" {
		return core.Note{}, core.ErrEmptyID
	}
	var n core.Note
	err := c.do(ctx, http.MethodPut, c.base.JoinPath(notesPath, id), textBody{Text: text}, &n)
	return n, err
}

// Delete implements core.RemoteService.
func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", core.ErrEmptyID
	}
	var body deletedBody
	if err := c.do(ctx, http.MethodDelete, c.base.JoinPath(notesPath, id), nil, &body); err != nil {
		return "", err
	}
	return body.ID, nil
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call", "method", method, "path", u.Path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError maps a failed response back onto the core error values.
func statusError(resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", core.ErrNotFound, body.Error)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", core.ErrClosed, body.Error)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body.Error)
}

// Subscribe implements core.RemoteService. The stream stays open until
// Close, cancellation of ctx, or the server going away.
func (c *Client) Subscribe(ctx context.Context, t core.EventType) (core.Subscription, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedEvent, t)
	}

	u := c.base.JoinPath(notesPath, eventsPath, string(t))
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to obtain token: %w", err)
		}
		header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("failed to dial %s: %w", t, statusError(resp))
		}
		return nil, fmt.Errorf("failed to dial %s: %w", t, err)
	}

	s := &subscription{
		client: c,
		typ:    t,
		conn:   conn,
		out:    make(chan core.Event),
		done:   make(chan struct{}),
	}
	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		return s.read(ctx)
	}, lifecycle.WithErrorHandler(func(err error) {
		c.logger.Error("push stream failed", "type", t, "error", err)
	}))
	c.logger.Debug("subscribed", "type", t, "url", u.String())
	return s, nil
}

// ClientState exposes internal state for observability.
type ClientState struct {
	Endpoint      string `json:"endpoint"`
	Authenticated bool   `json:"authenticated"`
	Subscriptions int    `json:"subscriptions"`
}

// State implements introspection.Introspectable.
func (c *Client) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientState{
		Endpoint:      c.base.String(),
		Authenticated: c.tokens != nil,
		Subscriptions: len(c.subs),
	}
}

// ComponentType implements introspection.Component.
func (c *Client) ComponentType() string {
	return "remote"
}

var _ introspection.Introspectable = (*Client)(nil)
var _ introspection.Component = (*Client)(nil)

// subscription is one websocket push stream.
type subscription struct {
	client *Client
	typ    core.EventType
	conn   *websocket.Conn
	out    chan core.Event
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan core.Event {
	return s.out
}

// Close releases the stream. It is safe to call more than once.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = s.conn.Close()

		s.client.mu.Lock()
		delete(s.client.subs, s)
		s.client.mu.Unlock()
	})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// read forwards decoded events until the connection ends. A connection that
// ends without Close or cancellation is reported as an error.
func (s *subscription) read(ctx context.Context) error {
	defer close(s.out)

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		var e core.Event
		if err := s.conn.ReadJSON(&e); err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%s stream: %w", s.typ, err)
		}
		if e.Type != s.typ {
			s.client.logger.Warn("dropping event of unexpected type", "stream", s.typ, "type", e.Type, "id", e.ID)
			continue
		}

		select {
		case s.out <- e:
		case <-s.done:
			return nil
		}
	}
}
