package server

import (
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itiky/collaborate-board/model"
	"github.com/itiky/collaborate-board/storage"
)

// broadcastTarget marks a recorded message sent to everyone.
const broadcastTarget = model.ParticipantId("*")

type (
	recordedMessage struct {
		to  model.ParticipantId
		msg model.Message
	}

	recordingBroadcaster struct {
		sync.Mutex
		msgs []recordedMessage
	}
)

func (b *recordingBroadcaster) Broadcast(msg model.Message) {
	b.Lock()
	defer b.Unlock()
	b.msgs = append(b.msgs, recordedMessage{to: broadcastTarget, msg: msg})
}

func (b *recordingBroadcaster) Send(to model.ParticipantId, msg model.Message) {
	b.Lock()
	defer b.Unlock()
	b.msgs = append(b.msgs, recordedMessage{to: to, msg: msg})
}

func (b *recordingBroadcaster) Messages() []recordedMessage {
	b.Lock()
	defer b.Unlock()
	out := make([]recordedMessage, len(b.msgs))
	copy(out, b.msgs)
	return out
}

func newTestLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestSession(t *testing.T) (*Session, *recordingBroadcaster) {
	st := storage.NewStorage(
		model.Card{Id: "card-1", Name: "Forest", Zone: model.ZoneBattlefield},
		model.Card{Id: "card-2", Name: "Island", Zone: model.ZoneHand},
		model.Card{Id: "card-3", Name: "Mountain", Zone: model.ZoneHand},
	)
	b := &recordingBroadcaster{}
	s, err := NewSession(st, b, 10, NewMonitor(0, newTestLogger()), newTestLogger())
	require.NoError(t, err)

	return s, b
}

func decodePatch(t *testing.T, msg model.Message) model.StatePatch {
	require.Equal(t, model.StatePatchMessageType, msg.Op)
	patch := model.StatePatch{}
	require.NoError(t, msg.Decode(&patch))
	return patch
}

func decodeAck(t *testing.T, msg model.Message) model.Acknowledgment {
	require.Equal(t, model.AckMessageType, msg.Op)
	ack := model.Acknowledgment{}
	require.NoError(t, msg.Decode(&ack))
	return ack
}

// Test handles an accepted action: the patch goes to everyone first, then the ack to the originator.
func Test_Session_Accepted(t *testing.T) {
	s, b := newTestSession(t)

	s.handle(actionRequest{
		from:      "p1",
		action:    model.TapAction{ActionHeader: model.ActionHeader{CardId: "card-1", ClientSeq: 3}, Tapped: true},
		clientSeq: 3,
	})

	msgs := b.Messages()
	require.Len(t, msgs, 2)

	require.Equal(t, broadcastTarget, msgs[0].to)
	patch := decodePatch(t, msgs[0].msg)
	require.EqualValues(t, 1, patch.ServerSeq)
	require.EqualValues(t, 3, patch.ClientSeq)
	require.EqualValues(t, "p1", patch.Origin)
	require.Len(t, patch.Changes, 1)
	require.NotNil(t, patch.Changes[0].Tapped)
	require.Nil(t, patch.Changes[0].Name)
	require.Nil(t, patch.Changes[0].Zone)

	require.EqualValues(t, "p1", msgs[1].to)
	ack := decodeAck(t, msgs[1].msg)
	require.Equal(t, model.Acknowledgment{ClientSeq: 3, ServerSeq: 1, Success: true}, ack)

	accepted, rejected := s.monitor.Stats()
	require.Equal(t, 1, accepted)
	require.Equal(t, 0, rejected)
}

// Test handles a rejected action: only a negative ack to the originator, serverSeq untouched.
func Test_Session_Rejected(t *testing.T) {
	s, b := newTestSession(t)

	s.handle(actionRequest{
		from:      "p1",
		action:    model.MoveAction{ActionHeader: model.ActionHeader{CardId: "card-0", ClientSeq: 1}, X: 150, Y: 200},
		clientSeq: 1,
	})
	s.handle(actionRequest{
		from:      "p2",
		clientSeq: 4,
		rejection: fmt.Errorf("%w: MOVE: y: missing", model.ErrMalformedAction),
	})

	msgs := b.Messages()
	require.Len(t, msgs, 2)

	require.EqualValues(t, "p1", msgs[0].to)
	ack := decodeAck(t, msgs[0].msg)
	require.False(t, ack.Success)
	require.EqualValues(t, 1, ack.ClientSeq)
	require.EqualValues(t, 0, ack.ServerSeq)
	require.Contains(t, ack.Error, "object not found")

	require.EqualValues(t, "p2", msgs[1].to)
	ack = decodeAck(t, msgs[1].msg)
	require.False(t, ack.Success)
	require.EqualValues(t, 4, ack.ClientSeq)
	require.Contains(t, ack.Error, "malformed action")

	require.EqualValues(t, 0, s.Storage().ServerSeq())
}

// Test submits actions from two participants through the worker and checks the patch order.
func Test_Session_Worker(t *testing.T) {
	s, b := newTestSession(t)

	require.ErrorIs(t, s.Submit("p1", model.TapAction{ActionHeader: model.ActionHeader{CardId: "card-1", ClientSeq: 1}}), ErrSessionStopped)

	s.Start()
	require.NoError(t, s.Submit("p1", model.ZoneAction{ActionHeader: model.ActionHeader{CardId: "card-2", ClientSeq: 1}, Zone: model.ZoneGraveyard}))
	require.NoError(t, s.Submit("p2", model.ZoneAction{ActionHeader: model.ActionHeader{CardId: "card-3", ClientSeq: 1}, Zone: model.ZoneGraveyard}))

	require.Eventually(t, func() bool {
		return len(b.Messages()) == 4
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	require.ErrorIs(t, s.Submit("p1", model.TapAction{ActionHeader: model.ActionHeader{CardId: "card-1", ClientSeq: 2}}), ErrSessionStopped)

	msgs := b.Messages()
	patch1 := decodePatch(t, msgs[0].msg)
	require.EqualValues(t, 1, patch1.ServerSeq)
	require.Equal(t, "card-2", patch1.Changes[0].Id)
	require.EqualValues(t, "p1", msgs[1].to)

	patch2 := decodePatch(t, msgs[2].msg)
	require.EqualValues(t, 2, patch2.ServerSeq)
	require.Equal(t, "card-3", patch2.Changes[0].Id)
	require.EqualValues(t, "p2", msgs[3].to)

	require.Equal(t, []string{"card-2", "card-3"}, s.Storage().Zones()[model.ZoneGraveyard])
}

func Test_Session_New(t *testing.T) {
	st := storage.NewStorage()

	_, err := NewSession(nil, &recordingBroadcaster{}, 1, nil, nil)
	require.Error(t, err)
	_, err = NewSession(st, nil, 1, nil, nil)
	require.Error(t, err)
	_, err = NewSession(st, &recordingBroadcaster{}, -1, nil, nil)
	require.Error(t, err)
}
