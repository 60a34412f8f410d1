package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/itiky/collaborate-board/model"
)

const (
	// QueryName is the display name query parameter of the play endpoint.
	QueryName = "name"
	// QuerySession is the previous session id query parameter used to reconnect.
	QuerySession = "session"

	maxMessageSize = 64 << 10
)

// Handler serves the session over HTTP: /play websocket endpoint and /health probe.
type Handler struct {
	session  *Session
	hub      *Hub
	players  *Participants
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// Router builds the HTTP router.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.serveHealth).Methods(http.MethodGet)
	r.HandleFunc("/play", h.servePlay).Methods(http.MethodGet)

	return r
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// servePlay upgrades the connection, joins (or reconnects) the participant and runs the read loop.
func (h *Handler) servePlay(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("Handler: upgrade: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	var player model.Participant
	reconnected := false
	if prevId := r.URL.Query().Get(QuerySession); prevId != "" {
		player, reconnected = h.players.Reconnect(model.ParticipantId(prevId))
	}
	if !reconnected {
		player = h.players.Join(model.ParticipantId(uuid.New().String()), r.URL.Query().Get(QueryName))
	}
	id := player.Id

	welcome := func() (model.Message, error) {
		fullState := h.session.Storage().Snapshot()
		fullState.SessionId = id
		fullState.Players = h.players.List()
		return model.NewMessage(model.FullStateMessageType, fullState)
	}
	if err := h.hub.Subscribe(id, conn, welcome); err != nil {
		h.logger.Printf("Handler: %s: subscribe: %v", id, err)
		h.hub.Unsubscribe(id, conn)
		h.players.Leave(id)
		conn.Close()
		return
	}
	h.logger.Printf("Handler: %s (%s) joined (reconnect: %v)", id, player.Name, reconnected)

	if msg, err := model.NewMessage(model.PlayerJoinedMessageType, player); err == nil {
		h.hub.Broadcast(msg)
	}

	h.readLoop(id, conn)

	conn.Close()
	// A replaced connection must not mark the reconnected participant as left
	if h.hub.Unsubscribe(id, conn) && h.players.Leave(id) {
		h.logger.Printf("Handler: %s left", id)
		if msg, err := model.NewMessage(model.PlayerLeftMessageType, model.PlayerLeft{Id: id}); err == nil {
			h.hub.Broadcast(msg)
		}
	}
}

// readLoop dispatches inbound messages until the connection fails.
func (h *Handler) readLoop(id model.ParticipantId, conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Printf("Handler: %s: read: %v", id, err)
			}
			return
		}

		var msg model.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("Handler: %s: discarding malformed message: %v", id, err)
			continue
		}

		switch msg.Op {
		case model.ActionMessageType:
			// A type mismatch still leaves the other fields decoded, clientSeq included
			var actionMsg model.ActionMessage
			if err := msg.Decode(&actionMsg); err != nil {
				if actionMsg.ClientSeq == 0 {
					h.logger.Printf("Handler: %s: discarding malformed action: %v", id, err)
					continue
				}
				if err := h.session.Reject(id, actionMsg.ClientSeq, fmt.Errorf("%w: %v", model.ErrMalformedAction, err)); err != nil {
					h.logger.Printf("Handler: %s: action #%d: %v", id, actionMsg.ClientSeq, err)
					return
				}
				continue
			}

			action, err := model.DecodeAction(actionMsg)
			if err != nil {
				err = h.session.Reject(id, actionMsg.ClientSeq, err)
			} else {
				err = h.session.Submit(id, action)
			}
			if err != nil {
				h.logger.Printf("Handler: %s: action #%d: %v", id, actionMsg.ClientSeq, err)
				return
			}
		case model.PingMessageType:
			if ping, err := model.NewMessage(model.PingMessageType, model.Ping{From: id}); err == nil {
				h.hub.Broadcast(ping)
			}
		default:
			h.logger.Printf("Handler: %s: unknown message type %q", id, msg.Op)
		}
	}
}

// NewHandler creates a new Handler object, logger is optional.
func NewHandler(session *Session, hub *Hub, players *Participants, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		session: session,
		hub:     hub,
		players: players,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}
