// Package ws is the host link: a websocket client that joins a match,
// surfaces decoded snapshots in tick order and sends action batches back.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/protocol"
)

const (
	writeTimeout      = 5 * time.Second
	readTimeout       = 60 * time.Second
	pingInterval      = 30 * time.Second
	handshakeTimeout  = 5 * time.Second
	snapshotQueueSize = 8
)

// Client wraps one live match connection. Snapshots arrive on Snapshots()
// in the order the host sent them; Send is called by the single agent
// loop. Run owns the reader until the context ends or the host hangs up.
type Client struct {
	conn *websocket.Conn
	log  *log.Logger

	welcome protocol.WelcomeMsg

	mu        sync.Mutex // guards writes
	snapshots chan *game.Snapshot

	closeOnce sync.Once
}

// Dial connects, sends JOIN and waits for WELCOME. A host speaking another
// protocol version or answering with ERROR fails the dial.
func Dial(ctx context.Context, url, name string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	c := &Client{
		conn:      conn,
		log:       logger,
		snapshots: make(chan *game.Snapshot, snapshotQueueSize),
	}
	if err := c.handshake(name); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake(name string) error {
	join := protocol.JoinMsg{
		Type:            protocol.TypeJoin,
		ProtocolVersion: protocol.Version,
		AgentName:       name,
	}
	if err := c.write(join); err != nil {
		return fmt.Errorf("ws: send JOIN: %w", err)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("ws: await WELCOME: %w", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return fmt.Errorf("ws: decode: %w", err)
	}
	switch base.Type {
	case protocol.TypeWelcome:
	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return fmt.Errorf("ws: decode ERROR: %w", err)
		}
		return fmt.Errorf("ws: join rejected: %s %s", e.Code, e.Message)
	default:
		return fmt.Errorf("ws: expected WELCOME, got %s", base.Type)
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &w); err != nil {
		return fmt.Errorf("ws: decode WELCOME: %w", err)
	}
	if w.ProtocolVersion != protocol.Version {
		return fmt.Errorf("ws: protocol version %q, want %q", w.ProtocolVersion, protocol.Version)
	}
	if w.MapSize <= 0 {
		return fmt.Errorf("ws: bad map size %d", w.MapSize)
	}
	c.welcome = w
	return nil
}

func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }

// Snapshots delivers decoded ticks. The channel closes when Run returns.
func (c *Client) Snapshots() <-chan *game.Snapshot { return c.snapshots }

// Run reads until the context ends or the connection drops. Pings ride on
// a control frame every half read-deadline; pongs push the deadline out.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.snapshots)

	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stopPing:
		}
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ws: read: %w", err)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		base, err := protocol.DecodeBase(msg)
		if err != nil {
			c.log.Printf("ws: undecodable message dropped: %v", err)
			continue
		}
		switch base.Type {
		case protocol.TypeSnapshot:
			var sm protocol.SnapshotMsg
			if err := json.Unmarshal(msg, &sm); err != nil {
				c.log.Printf("ws: bad SNAPSHOT dropped: %v", err)
				continue
			}
			snap := &game.Snapshot{
				Tick:     sm.Tick,
				MyID:     c.welcome.PlayerID,
				MapSize:  c.welcome.MapSize,
				FogOfWar: c.welcome.FogOfWar,
				Players:  sm.Players,
				Entities: sm.Entities,
			}
			select {
			case c.snapshots <- snap:
			case <-ctx.Done():
				return ctx.Err()
			}
		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			if !protocol.KnownCode(e.Code) {
				c.log.Printf("ws: host error with unknown code %q: %s", e.Code, e.Message)
				continue
			}
			c.log.Printf("ws: host error %s: %s", e.Code, e.Message)
		default:
			// Unknown types are forward-compatible noise.
		}
	}
}

// Send ships one action batch. Callers serialize; the agent loop is the
// only sender.
func (c *Client) Send(act protocol.ActMsg) error {
	if err := c.write(act); err != nil {
		return fmt.Errorf("ws: send ACT tick %d: %w", act.Tick, err)
	}
	return nil
}

func (c *Client) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
