package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
)

// wsEmitter adapts a WebSocket connection to the [Emitter] interface. A
// mutex serialises writes because session callbacks emit from timer and
// request goroutines concurrently with the reader.
type wsEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ Emitter = (*wsEmitter)(nil)

// Emit marshals f and writes it as a text WebSocket message.
func (e *wsEmitter) Emit(ctx context.Context, f ServerFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("gateway: marshal frame: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.Write(ctx, websocket.MessageText, data)
}
