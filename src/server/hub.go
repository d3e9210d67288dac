package server

import (
	"encoding/json"
	"net/http"

	"market-analytics/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// directMessage is a reply addressed to a single client. It goes through the
// hub so that it never races with the hub closing the client's channel.
type directMessage struct {
	client *Client
	msg    models.MStreamMessage
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *APIServer) handleWebsockets() {
	defer s.wg.Done()
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Add(1)
			s.Logger.Debug("Client %s connected", client.ID)
			if st := s.latest(); st != nil {
				s.deliver(client, models.MStreamMessage{Type: models.StreamInitial, State: st})
			}

		case client := <-s.unregister:
			s.drop(client)

		case dm := <-s.direct:
			if _, ok := s.clients[dm.client]; ok {
				s.deliver(dm.client, dm.msg)
			}

		case st := <-s.broadcast:
			s.stateMutex.Lock()
			s.latestState = st
			s.stateMutex.Unlock()

			msg := models.MStreamMessage{Type: models.StreamUpdate, State: st}
			for client := range s.clients {
				s.deliver(client, msg)
			}

		case <-s.done:
			for client := range s.clients {
				s.drop(client)
			}
			return
		}
	}
}

// -----------------------------------------------------------------------------

// deliver queues msg for client; a client whose buffer is full is too slow
// and gets disconnected so the hub never blocks.
func (s *APIServer) deliver(client *Client, msg models.MStreamMessage) {
	select {
	case client.send <- msg:
	default:
		s.Logger.Warning("Client %s too slow, disconnecting", client.ID)
		s.drop(client)
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) drop(client *Client) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.send)
	s.connections.Add(-1)
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a market state snapshot for every client. Payloads of any
// other type are ignored.
func (s *APIServer) Broadcast(payload interface{}) {
	st, ok := payload.(*models.MMarketState)
	if !ok || st == nil {
		s.Logger.Warning("Broadcast expected *models.MMarketState, got %T", payload)
		return
	}
	select {
	case s.broadcast <- st:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) reply(client *Client, msg models.MStreamMessage) {
	select {
	case s.direct <- directMessage{client: client, msg: msg}:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan models.MStreamMessage, 64),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage executes a client command and answers with the current
// state as seen by that client.
func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	md := s.Services.MarketData
	switch cmd.Command {
	case "subscribe":
		for _, sym := range cmd.Symbols {
			md.Subscribe(sym)
		}
	case "unsubscribe":
		for _, sym := range cmd.Symbols {
			md.Unsubscribe(sym)
		}
	case "watch":
		client.Watch(cmd.Symbols)
	case "reconnect":
		md.Reconnect()
	case "theme":
		if cmd.Theme != models.ThemeLight && cmd.Theme != models.ThemeDark {
			s.reply(client, models.MStreamMessage{Type: models.StreamError, Message: "unknown theme " + cmd.Theme})
			return
		}
		s.pushTheme(cmd.Theme)
	default:
		s.reply(client, models.MStreamMessage{Type: models.StreamError, Message: "unknown command " + cmd.Command})
		return
	}

	s.reply(client, models.MStreamMessage{Type: models.StreamInitial, State: md.GetState()})
}

// -----------------------------------------------------------------------------

// pushTheme hands a preference to the theme watcher. A full queue drops it.
func (s *APIServer) pushTheme(theme string) {
	select {
	case s.themes <- theme:
	case <-s.done:
	default:
		s.Logger.Warning("Theme preference %s dropped, watcher is behind", theme)
	}
}

// -----------------------------------------------------------------------------
// Response Filtering
// -----------------------------------------------------------------------------

// filterState returns a view of st restricted to symbols. News and the
// subscription list are kept whole.
func filterState(st *models.MMarketState, symbols map[string]struct{}) *models.MMarketState {
	if st == nil || len(symbols) == 0 {
		return st
	}

	view := *st
	view.Quotes = make(map[string]models.MRealTimeQuote)
	view.Historical = make(map[string]models.MHistoricalSeries)
	view.Technical = make(map[string]models.MTechnicalIndicatorSet)
	view.Fundamentals = make(map[string]models.MFundamentalSnapshot)

	for sym := range symbols {
		if q, ok := st.Quotes[sym]; ok {
			view.Quotes[sym] = q
		}
		if h, ok := st.Historical[sym]; ok {
			view.Historical[sym] = h
		}
		if t, ok := st.Technical[sym]; ok {
			view.Technical[sym] = t
		}
		if f, ok := st.Fundamentals[sym]; ok {
			view.Fundamentals[sym] = f
		}
	}
	return &view
}
