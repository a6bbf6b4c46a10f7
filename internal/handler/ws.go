package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/marketdata"
	"github.com/efreitasn/tradecore/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is the envelope for every outbound websocket message.
type wsMessage struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// wsSubscribeRequest is the inbound subscribe/unsubscribe message.
// Channels take the forms "book:SYMBOL", "candles:SYMBOL:TIMEFRAME",
// and "fills".
type wsSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// Hub maintains active websocket connections and fans market data
// events out to clients by channel. Channel feeds are bridged lazily:
// the first subscriber to a channel starts a goroutine consuming the
// corresponding feed subscription.
type Hub struct {
	feed   *marketdata.Feed
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]bool
	bridges map[string]bool
}

// NewHub creates a websocket hub on top of the market data feed.
func NewHub(feed *marketdata.Feed, logger *slog.Logger) *Hub {
	return &Hub{
		feed:    feed,
		logger:  logger,
		clients: make(map[*wsClient]bool),
		bridges: make(map[string]bool),
	}
}

// ServeHTTP handles GET /ws: upgrades the connection and starts the
// client's read and write pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &wsClient{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(total))
	h.logger.Debug("ws client connected", slog.String("remote", conn.RemoteAddr().String()), slog.Int("total", total))

	go client.writePump()
	go client.readPump()
}

// Deliver broadcasts a fill on the "fills" channel. Implements
// engine.FillSink so the hub can be fanned in alongside the ledger.
func (h *Hub) Deliver(f *domain.Fill) {
	h.Broadcast("fills", map[string]any{
		"fill_id":     f.FillID,
		"order_id":    f.OrderID,
		"account":     f.Account,
		"symbol":      f.Symbol,
		"side":        string(f.Side),
		"price":       domain.CentsToDollars(f.Price),
		"quantity":    f.Quantity,
		"executed_at": f.ExecutedAt.UTC().Format(time.RFC3339),
	})
}

// Broadcast sends data to every client subscribed to the channel. Slow
// clients are skipped, never blocked on.
func (h *Hub) Broadcast(channel string, data any) {
	message, err := json.Marshal(wsMessage{Channel: channel, Data: data})
	if err != nil {
		h.logger.Warn("ws marshal failed", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.isSubscribed(channel) {
			continue
		}
		select {
		case client.send <- message:
		default:
			metrics.WSMessagesDropped.Inc()
		}
	}
}

func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	var total int
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total = len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(total))
}

// ensureBridge starts the feed-to-hub goroutine for a channel if one is
// not already running. Returns an error for malformed channel names and
// unknown symbols or timeframes.
func (h *Hub) ensureBridge(channel string) error {
	h.mu.Lock()
	if h.bridges[channel] {
		h.mu.Unlock()
		return nil
	}
	h.bridges[channel] = true
	h.mu.Unlock()

	started, err := h.startBridge(channel)
	if err != nil || !started {
		h.mu.Lock()
		delete(h.bridges, channel)
		h.mu.Unlock()
	}
	return err
}

func (h *Hub) startBridge(channel string) (bool, error) {
	parts := strings.Split(channel, ":")
	switch {
	case channel == "fills":
		// Fills are pushed straight from the engine; no feed bridge.
		return false, nil
	case len(parts) == 2 && parts[0] == "book":
		sub, err := h.feed.SubscribeBookTop(parts[1])
		if err != nil {
			return false, err
		}
		go h.pumpBookTops(channel, sub)
		return true, nil
	case len(parts) == 3 && parts[0] == "candles":
		tf, err := domain.ParseTimeframe(parts[2])
		if err != nil {
			return false, err
		}
		sub, err := h.feed.SubscribeCandles(parts[1], tf)
		if err != nil {
			return false, err
		}
		go h.pumpCandles(channel, sub)
		return true, nil
	}
	return false, &domain.ValidationError{Message: fmt.Sprintf("unknown channel: %s", channel)}
}

// clearBridge removes a channel's bridge entry so the next subscriber
// restarts the feed subscription. Called when a pump's subscription
// ends, including a slow-consumer drop by the feed.
func (h *Hub) clearBridge(channel string) {
	h.mu.Lock()
	delete(h.bridges, channel)
	h.mu.Unlock()
}

func (h *Hub) pumpBookTops(channel string, sub *marketdata.Subscription[domain.BookTop]) {
	defer h.clearBridge(channel)
	for top := range sub.C() {
		data := map[string]any{"symbol": top.Symbol}
		if top.Bid != nil {
			data["bid"] = map[string]any{"price": domain.CentsToDollars(top.Bid.Price), "quantity": top.Bid.Quantity}
		}
		if top.Ask != nil {
			data["ask"] = map[string]any{"price": domain.CentsToDollars(top.Ask.Price), "quantity": top.Ask.Quantity}
		}
		h.Broadcast(channel, data)
	}
}

func (h *Hub) pumpCandles(channel string, sub *marketdata.Subscription[domain.Candle]) {
	defer h.clearBridge(channel)
	for c := range sub.C() {
		h.Broadcast(channel, map[string]any{
			"symbol":    c.Symbol,
			"timeframe": string(c.Timeframe),
			"starts_at": c.StartsAt.UTC().Format(time.RFC3339),
			"open":      domain.CentsToDollars(c.Open),
			"high":      domain.CentsToDollars(c.High),
			"low":       domain.CentsToDollars(c.Low),
			"close":     domain.CentsToDollars(c.Close),
			"volume":    c.Volume,
		})
	}
}

// wsClient represents one websocket connection.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subsMu        sync.RWMutex
	subscriptions map[string]bool
}

func (c *wsClient) isSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

func (c *wsClient) subscribe(channel string) error {
	if channel != "fills" {
		if err := c.hub.ensureBridge(channel); err != nil {
			return err
		}
	}
	c.subsMu.Lock()
	c.subscriptions[channel] = true
	c.subsMu.Unlock()
	return nil
}

func (c *wsClient) unsubscribe(channel string) {
	c.subsMu.Lock()
	delete(c.subscriptions, channel)
	c.subsMu.Unlock()
}

// readPump consumes subscribe/unsubscribe messages until the connection
// closes.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req wsSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}

		switch req.Op {
		case "subscribe":
			for _, channel := range req.Channels {
				if err := c.subscribe(channel); err != nil {
					c.sendError(channel, err)
				}
			}
		case "unsubscribe":
			for _, channel := range req.Channels {
				c.unsubscribe(channel)
			}
		}
	}
}

func (c *wsClient) sendError(channel string, err error) {
	message, merr := json.Marshal(wsMessage{
		Channel: channel,
		Data:    map[string]string{"error": err.Error()},
	})
	if merr != nil {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}

// writePump writes outbound messages and keeps the connection alive
// with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
