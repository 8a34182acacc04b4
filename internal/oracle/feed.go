package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Feed is a PriceSource backed by a WebSocket price stream. The server pushes
// tick messages; the feed keeps the last quote per pair and fans updates out
// to subscribers. When a caller asks for a pair the feed has no quote for, it
// sends a subscribe message upstream, throttled so a burst of cold lookups
// cannot flood the endpoint.
type Feed struct {
	mu   sync.RWMutex
	conn *websocket.Conn
	url  string

	quotes map[string]Quote
	subs   map[string][]func(Quote)
	wanted map[string]bool // pairs we have asked the feed for

	limiter *rate.Limiter
	onError func(error)

	done   chan struct{}
	closed bool
}

// tickMessage is the wire format of a single price update
type tickMessage struct {
	Pair      string `json:"pair"`
	Price     int64  `json:"price"` // 8-decimal fixed point
	Timestamp int64  `json:"ts"`    // Unix seconds
}

// subscribeMessage asks the feed server to start streaming a pair
type subscribeMessage struct {
	Op   string `json:"op"`
	Pair string `json:"pair"`
}

// NewFeed creates a feed client for the given WebSocket URL
func NewFeed(url string) *Feed {
	return &Feed{
		url:     url,
		quotes:  make(map[string]Quote),
		subs:    make(map[string][]func(Quote)),
		wanted:  make(map[string]bool),
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read loop
func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		return nil // Already connected
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	f.conn = conn
	f.closed = false

	go f.readLoop()

	return nil
}

// CurrentPrice returns the last quote seen for the pair. If the feed is not
// streaming the pair yet it requests it and reports ErrNoQuote; the caller
// retries once ticks arrive.
func (f *Feed) CurrentPrice(ctx context.Context, pair string) (Quote, error) {
	f.mu.RLock()
	q, ok := f.quotes[pair]
	f.mu.RUnlock()
	if ok {
		return q, nil
	}

	if err := f.requestPair(ctx, pair); err != nil {
		return Quote{}, err
	}
	return Quote{}, ErrNoQuote
}

// Subscribe registers a callback for subsequent quotes on the pair
func (f *Feed) Subscribe(pair string, fn func(Quote)) {
	f.mu.Lock()
	f.subs[pair] = append(f.subs[pair], fn)
	f.mu.Unlock()

	// Best effort: make sure the feed is streaming the pair.
	if err := f.requestPair(context.Background(), pair); err != nil {
		log.Printf("Subscribe request for %s failed: %v", pair, err)
	}
}

// requestPair sends a subscribe message for the pair, at most once
func (f *Feed) requestPair(ctx context.Context, pair string) error {
	f.mu.Lock()
	if f.conn == nil || f.wanted[pair] {
		f.mu.Unlock()
		return nil
	}
	f.wanted[pair] = true
	conn := f.conn
	f.mu.Unlock()

	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(subscribeMessage{Op: "subscribe", Pair: pair})
	if err != nil {
		return err
	}

	f.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	f.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send subscribe: %w", err)
	}
	return nil
}

// readLoop reads tick messages from the WebSocket
func (f *Feed) readLoop() {
	defer func() {
		f.mu.Lock()
		f.closed = true
		if f.conn != nil {
			f.conn.Close()
		}
		f.mu.Unlock()
	}()

	for {
		select {
		case <-f.done:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				if f.onError != nil {
					f.onError(err)
				}
			}
			return
		}

		var tick tickMessage
		if err := json.Unmarshal(message, &tick); err != nil {
			log.Printf("Failed to parse tick: %v", err)
			continue
		}
		if tick.Pair == "" || tick.Price < 0 {
			continue
		}

		f.dispatch(Quote{
			Pair:  tick.Pair,
			Price: tick.Price,
			At:    time.Unix(tick.Timestamp, 0),
		})
	}
}

// dispatch stores the quote and notifies subscribers
func (f *Feed) dispatch(q Quote) {
	f.mu.Lock()
	f.quotes[q.Pair] = q
	subs := append([]func(Quote){}, f.subs[q.Pair]...)
	f.mu.Unlock()

	for _, fn := range subs {
		fn(q)
	}
}

// SetErrorHandler sets the callback for connection errors
func (f *Feed) SetErrorHandler(fn func(error)) {
	f.onError = fn
}

// Close closes the connection
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	close(f.done)
	f.closed = true

	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
