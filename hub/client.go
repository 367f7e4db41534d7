package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/tofu/geom"
)

// Frame is one decoded publication.
type Frame struct {
	Info    ShapeInfo
	Targets []geom.Point
}

// Client reads publications from a hub's /ws endpoint.
type Client struct {
	ws   *websocket.Conn
	info *ShapeInfo
}

// Dial connects to url, e.g. "ws://127.0.0.1:8765/ws".
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &Client{ws: ws}, nil
}

// Next blocks until a complete publication (metadata plus targets) has
// been received. A binary frame without preceding metadata is an error.
func (c *Client) Next() (*Frame, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}

		switch kind {
		case websocket.TextMessage:
			var info ShapeInfo
			if err := json.Unmarshal(data, &info); err != nil {
				return nil, fmt.Errorf("decoding shape info: %w", err)
			}
			if info.Type != MsgShapeInfo {
				continue
			}
			c.info = &info

		case websocket.BinaryMessage:
			if c.info == nil {
				return nil, fmt.Errorf("target frame without shape info")
			}
			flat, err := DecodeTargets(data)
			if err != nil {
				return nil, err
			}
			info := *c.info
			c.info = nil
			if n := len(flat) / 2; n != info.Count {
				return nil, fmt.Errorf("shape %q: got %d targets, header says %d", info.Name, n, info.Count)
			}
			return &Frame{Info: info, Targets: geom.Unflatten(flat)}, nil
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}
