package net

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bowarena/client/internal/net/proto"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsURL rewrites an http(s) base URL to ws(s).
func wsURL(base, path string) (string, error) {
	u, err := url.Parse(base + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// SubscribeRun opens the duel push feed for runID. Every RunState the
// server pushes is posted to q and handed to fn on the loop goroutine. The
// feed stops when ctx or q is cancelled, or the server closes the socket;
// onClose (if set) is then posted with the terminating error.
func (c *Client) SubscribeRun(ctx context.Context, q *Queue, runID string, fn func(*proto.RunState), onClose func(error)) error {
	target, err := wsURL(c.baseURL, "/pvp/run/"+url.PathEscape(runID)+"/ws")
	if err != nil {
		return fmt.Errorf("feed url: %w", err)
	}
	hdr := http.Header{}
	if c.token != "" {
		hdr.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, hdr)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial feed: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial feed: %w", err)
	}

	log := c.log.With(zap.String("run", runID))
	go func() {
		<-mergeDone(ctx, q.Context())
		conn.Close()
	}()
	go func() {
		defer conn.Close()
		for {
			var st proto.RunState
			if err := conn.ReadJSON(&st); err != nil {
				if !strings.Contains(err.Error(), "use of closed network connection") {
					log.Debug("duel feed closed", zap.Error(err))
				}
				if onClose != nil {
					q.Post("feed-closed", func() { onClose(err) })
				}
				return
			}
			snapshot := st
			q.Post("feed", func() { fn(&snapshot) })
		}
	}()
	return nil
}

func mergeDone(a, b context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		select {
		case <-a.Done():
		case <-b.Done():
		}
		close(out)
	}()
	return out
}
