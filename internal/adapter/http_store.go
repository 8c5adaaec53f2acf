package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/quire-dev/quire/internal/model"
)

// watchEvent is the wire shape of one change notification on the watch
// socket. An empty page id is the subscription acknowledgement.
type watchEvent struct {
	Page model.PageID `json:"page"`
}

// HTTPStore speaks to a PageServer over its REST surface: GET/PUT
// /pages/{id} for content, POST /pages/{id}/rename, GET /pages for the
// listing, and a websocket /watch stream of changed page ids.
type HTTPStore struct {
	base   string
	client *http.Client
	dialer *websocket.Dialer
}

// NewHTTPStore returns a store for the server at base, e.g.
// "http://127.0.0.1:7070".
func NewHTTPStore(base string) *HTTPStore {
	return &HTTPStore{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
		dialer: websocket.DefaultDialer,
	}
}

func (s *HTTPStore) pageURL(page model.PageID) string {
	return s.base + "/pages/" + url.PathEscape(string(page))
}

// GetSource fetches the page body. A 404 maps onto ErrPageNotFound.
func (s *HTTPStore) GetSource(ctx context.Context, page model.PageID) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL(page), nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}

		return string(data), nil
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrPageNotFound, page)
	default:
		return "", fmt.Errorf("adapter: get %s: %s", page, resp.Status)
	}
}

// SaveSource uploads source as the page's new content.
func (s *HTTPStore) SaveSource(ctx context.Context, page model.PageID, source string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.pageURL(page), strings.NewReader(source))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("adapter: save %s: %s", page, resp.Status)
	}

	return nil
}

// Rename asks the server to move a page to a new id.
func (s *HTTPStore) Rename(ctx context.Context, page, to model.PageID) error {
	body, err := json.Marshal(struct {
		To model.PageID `json:"to"`
	}{To: to})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pageURL(page)+"/rename", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrPageNotFound, page)
	case http.StatusConflict:
		return fmt.Errorf("adapter: page %q already exists", to)
	default:
		return fmt.Errorf("adapter: rename %s: %s", page, resp.Status)
	}
}

// List fetches the ids of all stored pages.
func (s *HTTPStore) List(ctx context.Context) ([]model.PageID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/pages", nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("adapter: list pages: %s", resp.Status)
	}

	var ids []model.PageID
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, err
	}

	return ids, nil
}

// Watch opens the server's websocket change feed. It returns once the
// server has acknowledged the subscription, so a change saved after Watch
// returns is guaranteed to surface on the channel. The channel closes
// when the context is cancelled or the connection drops.
func (s *HTTPStore) Watch(ctx context.Context) (<-chan model.PageID, error) {
	wsURL := "ws" + strings.TrimPrefix(s.base, "http") + "/watch"

	conn, resp, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("adapter: watch dial: %w", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}

	// The server registers the subscriber, then sends an empty hello
	// event. Waiting for it here removes the race between subscribing
	// and the first save the caller makes.
	if err := conn.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
		_ = conn.Close()

		return nil, err
	}

	var hello watchEvent
	if err := conn.ReadJSON(&hello); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("adapter: watch handshake: %w", err)
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()

		return nil, err
	}

	glog.V(1).Infof("[watch]subscribed to %s", wsURL)

	ch := make(chan model.PageID, 8)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer close(ch)

		for {
			var ev watchEvent
			if err := conn.ReadJSON(&ev); err != nil {
				glog.V(2).Infof("[watch]read closed: %v", err)

				return
			}

			if ev.Page == "" {
				continue
			}

			select {
			case ch <- ev.Page:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
