package audio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

var errMPVClosed = errors.New("mpv connection closed")

// mpvEvent is an asynchronous message from mpv, e.g. file-loaded or end-file
type mpvEvent struct {
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	FileError string `json:"file_error,omitempty"`
}

type mpvRequest struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

type mpvResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int64           `json:"request_id"`
}

// mpvMessage is either a response or an event; mpv puts both on one stream
type mpvMessage struct {
	mpvResponse
	mpvEvent
}

// mpvClient speaks mpv's JSON IPC protocol: one JSON object per line,
// replies matched to requests by request_id.
type mpvClient struct {
	conn    net.Conn
	log     *zap.Logger
	onEvent func(mpvEvent)

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan mpvResponse
	closed  bool
	done    chan struct{}
}

func newMPVClient(conn net.Conn, onEvent func(mpvEvent), log *zap.Logger) *mpvClient {
	c := &mpvClient{
		conn:    conn,
		log:     log,
		onEvent: onEvent,
		pending: make(map[int64]chan mpvResponse),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *mpvClient) readLoop() {
	defer c.shutdown()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg mpvMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			c.log.Debug("mpv: unreadable message", zap.ByteString("line", scanner.Bytes()), zap.Error(err))
			continue
		}
		if msg.Event != "" {
			if c.onEvent != nil {
				c.onEvent(msg.mpvEvent)
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg.mpvResponse
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.Debug("mpv: read loop ended", zap.Error(err))
	}
}

func (c *mpvClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// command sends one command and waits for its reply
func (c *mpvClient) command(ctx context.Context, args ...interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errMPVClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan mpvResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	line, err := json.Marshal(mpvRequest{Command: args, RequestID: id})
	if err != nil {
		c.forget(id)
		return nil, err
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	}
	_, err = c.conn.Write(line)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("mpv write: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errMPVClosed
		}
		if resp.Error != "" && resp.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], resp.Error)
		}
		return resp.Data, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *mpvClient) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *mpvClient) set(ctx context.Context, property string, value interface{}) error {
	_, err := c.command(ctx, "set_property", property, value)
	return err
}

func (c *mpvClient) getFloat(ctx context.Context, property string) (float64, error) {
	data, err := c.command(ctx, "get_property", property)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("mpv %s: %w", property, err)
	}
	return v, nil
}

func (c *mpvClient) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}
