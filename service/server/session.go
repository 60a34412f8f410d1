package server

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itiky/collaborate-board/model"
	"github.com/itiky/collaborate-board/storage"
)

// ErrSessionStopped is returned when an action is submitted to a stopped Session.
var ErrSessionStopped = errors.New("session stopped")

type (
	// Session processes participant actions against the authoritative Storage strictly one at a time,
	// in arrival order, and disseminates the results.
	Session struct {
		// State
		storage     *storage.Storage
		broadcaster Broadcaster
		monitor     *Monitor
		actionsCh   chan actionRequest
		//
		logger *log.Logger
		stopCh chan interface{}
		doneCh chan interface{}
	}

	actionRequest struct {
		from model.ParticipantId
		// Either action or rejection is set
		action    model.Action
		clientSeq model.Seq
		rejection error
	}
)

// Storage returns the authoritative state.
func (s *Session) Storage() *storage.Storage {
	return s.storage
}

// Submit pushes the action to the processing queue.
func (s *Session) Submit(from model.ParticipantId, a model.Action) error {
	return s.enqueue(actionRequest{from: from, action: a, clientSeq: a.Header().ClientSeq})
}

// Reject queues a negative acknowledgment for an action that failed to decode.
func (s *Session) Reject(from model.ParticipantId, clientSeq model.Seq, err error) error {
	return s.enqueue(actionRequest{from: from, clientSeq: clientSeq, rejection: err})
}

func (s *Session) enqueue(req actionRequest) error {
	if s.stopCh == nil {
		return fmt.Errorf("%w: not started", ErrSessionStopped)
	}

	select {
	case <-s.stopCh:
		return ErrSessionStopped
	default:
	}

	select {
	case s.actionsCh <- req:
		return nil
	case <-s.stopCh:
		return ErrSessionStopped
	}
}

// Start starts the session worker.
func (s *Session) Start() {
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan interface{})
	s.doneCh = make(chan interface{})

	go s.worker()
}

// Stop stops the session worker and waits for it to exit.
func (s *Session) Stop() {
	if s.stopCh == nil {
		return
	}

	close(s.stopCh)
	<-s.doneCh
}

// worker does the actual job.
func (s *Session) worker() {
	s.logger.Println("Session: start")
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			// Session stop
			s.logger.Printf("Session: stop (serverSeq %d)", s.storage.ServerSeq())
			return
		case req := <-s.actionsCh:
			s.handle(req)
		}
	}
}

// handle applies a single action: on success the patch is broadcasted to everyone
// and then the acknowledgment is sent to the originator.
func (s *Session) handle(req actionRequest) {
	start := time.Now()

	var patch model.StatePatch
	err := req.rejection
	if err == nil {
		patch, err = s.storage.ApplyAction(req.action)
	}
	if s.monitor != nil {
		s.monitor.ActionHandled(err == nil, time.Since(start))
	}

	if err != nil {
		s.logger.Printf("Session: action #%d from %s rejected: %v", req.clientSeq, req.from, err)
		s.send(req.from, model.AckMessageType, model.Acknowledgment{
			ClientSeq: req.clientSeq,
			ServerSeq: s.storage.ServerSeq(),
			Success:   false,
			Error:     err.Error(),
		})
		return
	}

	patch.Origin = req.from
	patchMsg, err := model.NewMessage(model.StatePatchMessageType, patch)
	if err != nil {
		s.logger.Printf("Session: %v", err)
		return
	}
	s.broadcaster.Broadcast(patchMsg)

	s.send(req.from, model.AckMessageType, model.Acknowledgment{
		ClientSeq: req.clientSeq,
		ServerSeq: patch.ServerSeq,
		Success:   true,
	})
}

func (s *Session) send(to model.ParticipantId, op string, payload interface{}) {
	msg, err := model.NewMessage(op, payload)
	if err != nil {
		s.logger.Printf("Session: %v", err)
		return
	}

	s.broadcaster.Send(to, msg)
}

// NewSession creates a new Session object, monitor and logger are optional.
func NewSession(st *storage.Storage, broadcaster Broadcaster, chSize int, monitor *Monitor, logger *log.Logger) (*Session, error) {
	if st == nil {
		return nil, fmt.Errorf("%s: nil", "storage")
	}
	if broadcaster == nil {
		return nil, fmt.Errorf("%s: nil", "broadcaster")
	}
	if chSize < 0 {
		return nil, fmt.Errorf("%s: must be GTE 0", "chSize")
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Session{
		storage:     st,
		broadcaster: broadcaster,
		monitor:     monitor,
		actionsCh:   make(chan actionRequest, chSize),
		logger:      logger,
	}, nil
}
