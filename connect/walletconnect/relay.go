package walletconnect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Relay is the pub/sub transport pairing messages travel over.
type Relay interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Publish(ctx context.Context, topic, message string) error
}

// Subscription delivers the messages published to one topic.
type Subscription interface {
	Messages() <-chan string
	Close() error
}

// ErrRelayClosed is returned once the websocket relay connection is gone.
var ErrRelayClosed = errors.New("walletconnect: relay closed")

type rpcMessage struct {
	ID      uint64          `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("relay error %d: %s", e.Code, e.Message) }

type subscriptionParams struct {
	ID   string `json:"id"`
	Data struct {
		Topic   string `json:"topic"`
		Message string `json:"message"`
	} `json:"data"`
}

// WSRelay speaks the irn JSON-RPC dialect over a websocket.
type WSRelay struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan rpcMessage
	subs    map[string]*wsSubscription
	closed  bool
	done    chan struct{}
}

// DialRelay connects to a relay endpoint such as wss://relay.example/?projectId=...
func DialRelay(ctx context.Context, url string) (*WSRelay, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("walletconnect: dial relay: %w", err)
	}
	r := &WSRelay{
		conn:    conn,
		pending: make(map[uint64]chan rpcMessage),
		subs:    make(map[string]*wsSubscription),
		done:    make(chan struct{}),
	}
	r.nextID.Store(uint64(time.Now().UnixMilli()) * 1000)
	go r.readLoop()
	return r, nil
}

// Close tears down the connection and every subscription.
func (r *WSRelay) Close() error {
	r.shutdown()
	return r.conn.Close()
}

func (r *WSRelay) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
	for id, ch := range r.pending {
		close(ch)
		delete(r.pending, id)
	}
	for id, s := range r.subs {
		s.closeLocked()
		delete(r.subs, id)
	}
}

func (r *WSRelay) readLoop() {
	defer r.shutdown()
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Method == "" {
			r.mu.Lock()
			ch, ok := r.pending[msg.ID]
			delete(r.pending, msg.ID)
			r.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}
		if msg.Method == "irn_subscription" {
			r.deliver(msg)
		}
	}
}

func (r *WSRelay) deliver(msg rpcMessage) {
	var p subscriptionParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return
	}
	r.mu.Lock()
	s, ok := r.subs[p.ID]
	if ok {
		s.push(p.Data.Message)
	}
	r.mu.Unlock()
	_ = r.write(rpcMessage{ID: msg.ID, JSONRPC: "2.0", Result: json.RawMessage("true")})
}

func (r *WSRelay) write(msg rpcMessage) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(msg)
}

func (r *WSRelay) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	id := r.nextID.Add(1)
	ch := make(chan rpcMessage, 1)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRelayClosed
	}
	r.pending[id] = ch
	r.mu.Unlock()

	if err := r.write(rpcMessage{ID: id, JSONRPC: "2.0", Method: method, Params: raw}); err != nil {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		return nil, err
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrRelayClosed
		}
		if msg.Error != nil {
			return nil, msg.Error
		}
		return msg.Result, nil
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Subscribe issues irn_subscribe for topic.
func (r *WSRelay) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	res, err := r.call(ctx, "irn_subscribe", map[string]string{"topic": topic})
	if err != nil {
		return nil, err
	}
	var id string
	if err := json.Unmarshal(res, &id); err != nil {
		return nil, fmt.Errorf("walletconnect: subscribe result: %w", err)
	}

	s := &wsSubscription{relay: r, id: id, topic: topic, ch: make(chan string, 16)}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRelayClosed
	}
	r.subs[id] = s
	r.mu.Unlock()
	return s, nil
}

// Publish issues irn_publish.
func (r *WSRelay) Publish(ctx context.Context, topic, message string) error {
	_, err := r.call(ctx, "irn_publish", map[string]any{
		"topic":   topic,
		"message": message,
		"ttl":     300,
		"tag":     1100,
	})
	return err
}

type wsSubscription struct {
	relay  *WSRelay
	id     string
	topic  string
	ch     chan string
	closed bool
}

func (s *wsSubscription) Messages() <-chan string { return s.ch }

// push and closeLocked run under relay.mu.
func (s *wsSubscription) push(m string) {
	if s.closed {
		return
	}
	select {
	case s.ch <- m:
	default:
	}
}

func (s *wsSubscription) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Close unsubscribes. The irn_unsubscribe call is sent in the background.
func (s *wsSubscription) Close() error {
	r := s.relay
	r.mu.Lock()
	if s.closed {
		r.mu.Unlock()
		return nil
	}
	s.closeLocked()
	delete(r.subs, s.id)
	r.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = r.call(ctx, "irn_unsubscribe", map[string]string{"topic": s.topic, "id": s.id})
	}()
	return nil
}
