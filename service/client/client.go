package client

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itiky/collaborate-board/model"
)

const (
	writeTimeout = 5 * time.Second

	defaultReconnectAttempts = 5
	defaultReconnectDelay    = 1 * time.Second
)

// Client connects the Store to the board server: inbound messages are dispatched to the Store,
// submitted actions are applied optimistically and sent.
// An abnormally closed connection is reestablished with the same session id.
type Client struct {
	// Config
	name              string
	serverUrl         string
	reconnectAttempts int
	reconnectDelay    time.Duration // grows linearly with the attempt number
	// State
	store       *Store
	monitor     *Monitor
	submitMu    sync.Mutex // keeps the wire order equal to the clientSeq order
	writeMu     sync.Mutex // guards conn writes and swaps
	conn        *websocket.Conn
	submittedMu sync.Mutex
	submittedAt map[model.Seq]time.Time
	//
	logger *log.Logger
	stopCh chan interface{}
	doneCh chan interface{}
}

// String implements the stringer interface.
func (c *Client) String() string {
	return fmt.Sprintf("Client (%s)", c.name)
}

// Store returns the local mirror.
func (c *Client) Store() *Store {
	return c.store
}

// Start starts the Client reader.
func (c *Client) Start() {
	if c.doneCh != nil {
		return
	}
	c.doneCh = make(chan interface{})

	go c.reader()
}

// Stop closes the connection and waits for the reader to exit.
func (c *Client) Stop() {
	select {
	case <-c.stopCh:
		return
	default:
	}
	close(c.stopCh)

	c.writeMu.Lock()
	conn := c.conn
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout),
	)
	c.writeMu.Unlock()
	conn.Close()

	if c.doneCh != nil {
		<-c.doneCh
	}
}

// Done returns a channel closed once the connection is lost and can't be reestablished.
func (c *Client) Done() <-chan interface{} {
	return c.doneCh
}

// Submit applies the draft action to the local mirror and sends it to the server.
// The returned action carries the assigned clientSeq.
// Store listeners are notified while the submission is in progress and must not call Submit.
func (c *Client) Submit(draft model.Action) (model.Action, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	action, err := c.store.Submit(draft)
	if err != nil {
		return nil, err
	}
	clientSeq := action.Header().ClientSeq

	c.submittedMu.Lock()
	c.submittedAt[clientSeq] = time.Now()
	c.submittedMu.Unlock()

	if err := c.send(model.ActionMessageType, model.EncodeAction(action)); err != nil {
		return action, fmt.Errorf("action #%d: %w", clientSeq, err)
	}
	if c.monitor != nil {
		c.monitor.ActionSent()
	}

	return action, nil
}

// Ping sends the ping message (echoed by the server to all participants).
func (c *Client) Ping() error {
	return c.send(model.PingMessageType, nil)
}

func (c *Client) send(op string, payload interface{}) error {
	msg, err := model.NewMessage(op, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%s: write: %w", op, err)
	}

	return nil
}

// reader dispatches inbound messages until the Client is stopped or the connection is lost for good.
func (c *Client) reader() {
	defer close(c.doneCh)

	for {
		c.writeMu.Lock()
		conn := c.conn
		c.writeMu.Unlock()

		err := c.readLoop(conn)
		if c.stopped() {
			return
		}

		closeErr := &websocket.CloseError{}
		if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
			c.logger.Printf("%s: connection closed by server", c.String())
			return
		}
		c.logger.Printf("%s: read: %v: reconnecting", c.String(), err)

		if !c.reconnect() {
			return
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		msg := model.Message{}
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		if err := c.dispatch(msg); err != nil {
			c.logger.Printf("%s: %v", c.String(), err)
		}
	}
}

// reconnect redials the server with the known session id, the delay grows with every attempt.
// Pending actions are dropped: their acknowledgments went to the lost connection,
// the full state sent on rejoin carries every accepted one.
func (c *Client) reconnect() bool {
	for attempt := 1; attempt <= c.reconnectAttempts; attempt++ {
		select {
		case <-c.stopCh:
			return false
		case <-time.After(time.Duration(attempt) * c.reconnectDelay):
		}

		conn, err := c.dial(c.store.SelfId(), 1)
		if err != nil {
			c.logger.Printf("%s: reconnect attempt %d/%d: %v", c.String(), attempt, c.reconnectAttempts, err)
			continue
		}

		c.writeMu.Lock()
		select {
		case <-c.stopCh:
			c.writeMu.Unlock()
			conn.Close()
			return false
		default:
		}
		c.conn.Close()
		c.conn = conn
		c.writeMu.Unlock()

		c.submittedMu.Lock()
		c.submittedAt = make(map[model.Seq]time.Time)
		c.submittedMu.Unlock()
		dropped := c.store.DropPending()

		c.logger.Printf("%s: reconnected (attempt %d, %d pending actions dropped)", c.String(), attempt, len(dropped))

		return true
	}

	c.logger.Printf("%s: reconnect failed after %d attempts", c.String(), c.reconnectAttempts)

	return false
}

func (c *Client) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Client) dispatch(msg model.Message) error {
	switch msg.Op {
	case model.StatePatchMessageType:
		patch := model.StatePatch{}
		if err := msg.Decode(&patch); err != nil {
			return err
		}
		c.store.OnPatch(patch)
		if c.monitor != nil {
			c.monitor.PatchReceived()
		}
	case model.AckMessageType:
		ack := model.Acknowledgment{}
		if err := msg.Decode(&ack); err != nil {
			return err
		}
		c.store.OnAcknowledgment(ack)
		c.ackReceived(ack)
	case model.FullStateMessageType:
		state := model.FullState{}
		if err := msg.Decode(&state); err != nil {
			return err
		}
		c.store.OnFullState(state)
		c.logger.Printf("%s: full state v%d received: %d cards, %d players", c.String(), state.ServerSeq, len(state.Cards), len(state.Players))
	case model.PlayerJoinedMessageType:
		player := model.Participant{}
		if err := msg.Decode(&player); err != nil {
			return err
		}
		c.store.OnPlayerJoined(player)
	case model.PlayerLeftMessageType:
		left := model.PlayerLeft{}
		if err := msg.Decode(&left); err != nil {
			return err
		}
		c.store.OnPlayerLeft(left.Id)
	case model.PingMessageType:
	default:
		return fmt.Errorf("unknown message type %q", msg.Op)
	}

	return nil
}

func (c *Client) ackReceived(ack model.Acknowledgment) {
	c.submittedMu.Lock()
	sentAt, found := c.submittedAt[ack.ClientSeq]
	delete(c.submittedAt, ack.ClientSeq)
	c.submittedMu.Unlock()

	if !ack.Success {
		c.logger.Printf("%s: action #%d rejected: %s", c.String(), ack.ClientSeq, ack.Error)
	}
	if found && c.monitor != nil {
		c.monitor.AckReceived(ack.Success, time.Since(sentAt))
	}
}

// dial connects to the play endpoint retrying while the server refuses connections.
func (c *Client) dial(sessionId model.ParticipantId, numOfRetries int) (*websocket.Conn, error) {
	const retryFallbackDur = 500 * time.Millisecond

	query := url.Values{}
	query.Set("name", c.name)
	if sessionId != "" {
		query.Set("session", string(sessionId))
	}
	playUrl := url.URL{Scheme: "ws", Host: c.serverUrl, Path: "/play", RawQuery: query.Encode()}

	for retry := 0; retry < numOfRetries; retry++ {
		conn, _, err := websocket.DefaultDialer.Dial(playUrl.String(), nil)
		if err == nil {
			return conn, nil
		}

		if errors.Is(err, syscall.ECONNREFUSED) {
			if retry < numOfRetries-1 {
				time.Sleep(retryFallbackDur)
			}
			continue
		}

		return nil, fmt.Errorf("websocket.Dial(%s): %w", playUrl.String(), err)
	}

	return nil, fmt.Errorf("websocket connection failed after %d retries with %v fallback", numOfRetries, retryFallbackDur)
}

// NewClient creates a new Client object connected to the server play endpoint.
// sessionId is optional: set to reconnect as a previously known participant.
// store, monitor and logger are optional.
func NewClient(serverUrl, name string, sessionId model.ParticipantId, store *Store, monitor *Monitor, logger *log.Logger) (*Client, error) {
	const numOfRetries = 120

	if serverUrl == "" {
		return nil, fmt.Errorf("%s: empty", "serverUrl")
	}
	if store == nil {
		store = NewStore(nil)
	}
	if logger == nil {
		logger = log.Default()
	}

	c := Client{
		name:              name,
		serverUrl:         serverUrl,
		reconnectAttempts: defaultReconnectAttempts,
		reconnectDelay:    defaultReconnectDelay,
		store:             store,
		monitor:           monitor,
		submittedAt:       make(map[model.Seq]time.Time),
		logger:            logger,
		stopCh:            make(chan interface{}),
	}

	conn, err := c.dial(sessionId, numOfRetries)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	return &c, nil
}
