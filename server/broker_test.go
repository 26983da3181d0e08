package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gameroom/activity"
)

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// recorder 记录推送给某条连接的全部消息
type recorder struct {
	mu   sync.Mutex
	msgs []received
	full bool
}

func (r *recorder) Enqueue(b []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	var m received
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	r.msgs = append(r.msgs, m)
	return true
}

// drain 取出并清空已记录的消息
func (r *recorder) drain() []received {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

func types(msgs []received) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func decode[T any](t *testing.T, m received) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(m.Data, &v))
	return v
}

type harness struct {
	t      *testing.T
	broker *Broker
	conns  map[PlayerID]*recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	engines, err := activity.NewDefaultRegistry(activity.NewSeededSource(42))
	require.NoError(t, err)
	rooms := NewRegistry(activity.NewSeededSource(42), activity.KindTicTacToe)
	return &harness{
		t:      t,
		broker: NewBroker(rooms, engines, zap.NewNop().Sugar(), 16),
		conns:  make(map[PlayerID]*recorder),
	}
}

func (h *harness) connect(id PlayerID) *recorder {
	rec := &recorder{}
	h.conns[id] = rec
	h.broker.dispatch(command{kind: cmdConnect, player: id, sender: rec})
	require.Equal(h.t, []string{MsgWelcome}, types(rec.drain()))
	return rec
}

func (h *harness) do(id PlayerID, im InputMessage) {
	h.broker.dispatch(command{kind: cmdInput, player: id, input: im})
}

func (h *harness) drainAll() {
	for _, rec := range h.conns {
		rec.drain()
	}
}

// seatedPair alice 建房、bob 用小写房间码加入、双方准备，尚未开局
func (h *harness) seatedPair() (code string) {
	alice := h.connect("alice")
	h.connect("bob")

	h.do("alice", InputMessage{Type: CmdCreateRoom, Name: "Alice"})
	msgs := alice.drain()
	require.Len(h.t, msgs, 1)
	require.Equal(h.t, MsgRoomCreated, msgs[0].Type)
	code = decode[RoomSummary](h.t, msgs[0]).Code

	h.do("bob", InputMessage{Type: CmdJoinRoom, Code: lower(code), Name: "Bob"})
	h.do("alice", InputMessage{Type: CmdToggleReady, Code: code})
	h.do("bob", InputMessage{Type: CmdToggleReady, Code: code})
	h.drainAll()
	return code
}

// startedPair 在 seatedPair 基础上以指定玩法开局（缺省为井字棋）
func (h *harness) startedPair(kind ...activity.Kind) (code string) {
	code = h.seatedPair()
	if len(kind) > 0 {
		h.do("alice", InputMessage{Type: CmdSetActivityKind, Code: code, Kind: string(kind[0])})
		h.drainAll()
	}
	h.do("alice", InputMessage{Type: CmdStartGame, Code: code})
	return code
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func TestBroker_CreateAndJoinLowercase(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")

	h.do("alice", InputMessage{Type: CmdCreateRoom, Name: "Alice"})
	created := alice.drain()
	require.Equal(t, []string{MsgRoomCreated}, types(created))
	summary := decode[RoomSummary](t, created[0])
	assert.Equal(t, PlayerID("alice"), summary.LeaderID)
	assert.Equal(t, activity.KindTicTacToe, summary.Kind)

	h.do("bob", InputMessage{Type: CmdJoinRoom, Code: lower(summary.Code), Name: "Bob"})
	joined := bob.drain()
	require.Equal(t, []string{MsgRoomJoined}, types(joined))
	s := decode[RoomSummary](t, joined[0])
	assert.Equal(t, summary.Code, s.Code)
	require.Len(t, s.Players, 2)
	assert.Equal(t, "Bob", s.Players[1].Name)

	notice := alice.drain()
	require.Equal(t, []string{MsgParticipantJoined}, types(notice))
	assert.Equal(t, PlayerID("bob"), decode[Player](t, notice[0]).ID)
}

func TestBroker_JoinErrorsGoToSenderOnly(t *testing.T) {
	h := newHarness(t)
	h.connect("alice")
	carol := h.connect("carol")

	h.do("carol", InputMessage{Type: CmdJoinRoom, Code: "ZZZZ", Name: "Carol"})
	msgs := carol.drain()
	require.Equal(t, []string{MsgError}, types(msgs))
	assert.Equal(t, ErrNotFound.Error(), decode[ErrorData](t, msgs[0]).Message)

	h.do("carol", InputMessage{Type: CmdCreateRoom, Name: "C"})
	msgs = carol.drain()
	require.Equal(t, []string{MsgError}, types(msgs))
	assert.Contains(t, decode[ErrorData](t, msgs[0]).Message, "display name")
	assert.Empty(t, h.conns["alice"].drain())
}

func TestBroker_RoomFull(t *testing.T) {
	h := newHarness(t)
	code := h.startedPair()
	carol := h.connect("carol")

	h.do("carol", InputMessage{Type: CmdJoinRoom, Code: code, Name: "Carol"})
	msgs := carol.drain()
	require.Equal(t, []string{MsgError}, types(msgs))
	assert.Equal(t, ErrRoomFull.Error(), decode[ErrorData](t, msgs[0]).Message)
}

func TestBroker_GameStartedPerParticipant(t *testing.T) {
	h := newHarness(t)
	h.startedPair()

	for id, want := range map[PlayerID]activity.Role{"alice": activity.RoleX, "bob": activity.RoleO} {
		msgs := h.conns[id].drain()
		require.Equal(t, []string{MsgGameStarted}, types(msgs), id)
		var data struct {
			State activity.TicTacToeState `json:"gameState"`
			Role  activity.Role           `json:"playerSymbol"`
		}
		require.NoError(t, json.Unmarshal(msgs[0].Data, &data))
		assert.Equal(t, want, data.Role)
		assert.Equal(t, [9]activity.Role{}, data.State.Board)
		assert.Equal(t, activity.RoleX, data.State.CurrentTurn)
	}
}

func TestBroker_InvalidMoveOnlyToSender(t *testing.T) {
	h := newHarness(t)
	code := h.startedPair()
	h.drainAll()

	h.do("alice", InputMessage{Type: CmdSubmitMove, Code: code, Move: json.RawMessage(`{"position":4}`)})
	for _, id := range []PlayerID{"alice", "bob"} {
		assert.Equal(t, []string{MsgStateUpdated}, types(h.conns[id].drain()))
	}

	h.do("bob", InputMessage{Type: CmdSubmitMove, Code: code, Move: json.RawMessage(`{"position":4}`)})
	msgs := h.conns["bob"].drain()
	require.Equal(t, []string{MsgError}, types(msgs))
	assert.Equal(t, ErrInvalidMove.Error(), decode[ErrorData](t, msgs[0]).Message)
	assert.Empty(t, h.conns["alice"].drain())
	assert.EqualValues(t, 1, h.broker.Metrics().MovesRejected)
}

func TestBroker_WinBroadcastsSingleGameOver(t *testing.T) {
	h := newHarness(t)
	code := h.startedPair()
	h.drainAll()

	moves := []struct {
		id  PlayerID
		pos string
	}{{"alice", "0"}, {"bob", "3"}, {"alice", "1"}, {"bob", "4"}, {"alice", "2"}}
	for _, m := range moves {
		h.do(m.id, InputMessage{Type: CmdSubmitMove, Code: code, Move: json.RawMessage(`{"position":` + m.pos + `}`)})
	}

	for _, id := range []PlayerID{"alice", "bob"} {
		msgs := h.conns[id].drain()
		want := []string{MsgStateUpdated, MsgStateUpdated, MsgStateUpdated, MsgStateUpdated, MsgStateUpdated, MsgGameOver}
		require.Equal(t, want, types(msgs), id)
		over := decode[GameOverData](t, msgs[len(msgs)-1])
		assert.Equal(t, activity.RoleX, over.WinnerRole)
		assert.Equal(t, PlayerID("alice"), over.WinnerID)
		assert.False(t, over.IsDraw)
	}

	room, ok := h.broker.rooms.Lookup(code)
	require.True(t, ok)
	assert.Equal(t, StatusConcluded, room.Status)
}

func TestBroker_RematchFlow(t *testing.T) {
	h := newHarness(t)
	code := h.startedPair()
	for i, pos := range []string{"0", "3", "1", "4", "2"} {
		id := PlayerID("alice")
		if i%2 == 1 {
			id = "bob"
		}
		h.do(id, InputMessage{Type: CmdSubmitMove, Code: code, Move: json.RawMessage(`{"position":` + pos + `}`)})
	}
	room, _ := h.broker.rooms.Lookup(code)
	require.Equal(t, StatusConcluded, room.Status)
	h.drainAll()

	h.do("alice", InputMessage{Type: CmdRequestRematch, Code: code})
	for _, id := range []PlayerID{"alice", "bob"} {
		msgs := h.conns[id].drain()
		require.Equal(t, []string{MsgRematchVoted}, types(msgs))
		assert.Equal(t, PlayerID("alice"), decode[PlayerRef](t, msgs[0]).PlayerID)
	}

	h.do("bob", InputMessage{Type: CmdRequestRematch, Code: code})
	msgs := h.conns["alice"].drain()
	require.Equal(t, []string{MsgGameStarted}, types(msgs))
	assert.Equal(t, activity.RoleO, decode[GameStartedData](t, msgs[0]).Role)
}

func TestBroker_LeaderOnlyActions(t *testing.T) {
	h := newHarness(t)
	code := h.seatedPair()
	room, _ := h.broker.rooms.Lookup(code)
	require.Equal(t, StatusWaiting, room.Status)
	require.Nil(t, room.State)

	h.do("bob", InputMessage{Type: CmdSetActivityKind, Code: code, Kind: string(activity.KindChess)})
	assert.Empty(t, h.conns["bob"].drain())
	assert.Equal(t, activity.KindTicTacToe, room.Kind)

	h.do("alice", InputMessage{Type: CmdSetActivityKind, Code: code, Kind: "checkers"})
	assert.Equal(t, activity.KindTicTacToe, room.Kind)

	h.do("alice", InputMessage{Type: CmdSetActivityKind, Code: code, Kind: string(activity.KindChess)})
	msgs := h.conns["bob"].drain()
	require.Equal(t, []string{MsgActivityKindChanged}, types(msgs))
	assert.Equal(t, activity.KindChess, decode[activity.Kind](t, msgs[0]))
}

func TestBroker_DisconnectForfeitsAndPromotes(t *testing.T) {
	h := newHarness(t)
	code := h.startedPair()
	h.drainAll()

	h.broker.dispatch(command{kind: cmdDisconnect, player: "alice"})
	msgs := h.conns["bob"].drain()
	require.Equal(t, []string{MsgParticipantLeft, MsgOpponentDisconnected, MsgLeaderChanged}, types(msgs))
	assert.Equal(t, PlayerID("bob"), decode[PlayerRef](t, msgs[2]).PlayerID)

	room, ok := h.broker.rooms.Lookup(code)
	require.True(t, ok)
	assert.Equal(t, StatusConcluded, room.Status)
	assert.Equal(t, PlayerID("bob"), room.LeaderID)

	h.do("bob", InputMessage{Type: CmdLeaveRoom})
	_, ok = h.broker.rooms.Lookup(code)
	assert.False(t, ok, "empty room is deleted")
	assert.EqualValues(t, 1, h.broker.Metrics().RoomsDeleted)
}

func TestBroker_CreateWhileSeatedLeavesOldRoom(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")

	h.do("alice", InputMessage{Type: CmdCreateRoom, Name: "Alice"})
	first := decode[RoomSummary](t, alice.drain()[0]).Code
	h.do("alice", InputMessage{Type: CmdCreateRoom, Name: "Alice"})
	second := decode[RoomSummary](t, alice.drain()[0]).Code

	assert.NotEqual(t, first, second)
	_, ok := h.broker.rooms.Lookup(first)
	assert.False(t, ok)
	assert.Equal(t, 1, h.broker.rooms.Len())
}

func TestBroker_HiddenInformationProjection(t *testing.T) {
	h := newHarness(t)
	code := h.startedPair(activity.KindHangman)

	var picker, guesser received
	for _, id := range []PlayerID{"alice", "bob"} {
		msgs := h.conns[id].drain()
		last := msgs[len(msgs)-1]
		require.Equal(t, MsgGameStarted, last.Type)
		if decode[GameStartedData](t, last).Role == activity.RolePicker {
			picker = last
		} else {
			guesser = last
		}
	}
	type view struct {
		State activity.HangmanState `json:"gameState"`
	}
	assert.NotEmpty(t, decode[view](t, picker).State.Word)
	assert.Empty(t, decode[view](t, guesser).State.Word)

	h.do("bob", InputMessage{Type: CmdSyncState, Code: code})
	msgs := h.conns["bob"].drain()
	require.Equal(t, []string{MsgStateUpdated}, types(msgs))
}

func TestBroker_ForfeitRevealsHiddenWord(t *testing.T) {
	h := newHarness(t)
	code := h.startedPair(activity.KindHangman)
	room, _ := h.broker.rooms.Lookup(code)
	require.Equal(t, activity.RoleGuesser, room.Roles["bob"])
	word := room.State.(activity.HangmanState).Word
	h.drainAll()

	h.do("alice", InputMessage{Type: CmdLeaveRoom, Code: code})
	require.Equal(t, StatusConcluded, room.Status)
	h.conns["bob"].drain()

	h.do("bob", InputMessage{Type: CmdSyncState, Code: code})
	msgs := h.conns["bob"].drain()
	require.Equal(t, []string{MsgStateUpdated}, types(msgs))
	view := decode[activity.HangmanState](t, msgs[0])
	assert.Equal(t, word, view.Word)
	assert.True(t, view.Abandoned)
	assert.Empty(t, view.Winner)
}

func TestBroker_DroppedMessagesCounted(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	alice.full = true

	h.do("alice", InputMessage{Type: CmdCreateRoom, Name: "Alice"})
	assert.EqualValues(t, 1, h.broker.Metrics().MessagesDropped)
}

func TestBroker_RunLoop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	go h.broker.Run(ctx)

	rec := &recorder{}
	require.True(t, h.broker.Connect("alice", rec))
	require.True(t, h.broker.Submit("alice", InputMessage{Type: CmdCreateRoom, Name: "Alice"}))

	var rooms []RoomSummary
	require.NoError(t, h.broker.Do(ctx, func(reg *Registry) {
		for _, r := range reg.Rooms() {
			rooms = append(rooms, r.Summary())
		}
	}))
	require.Len(t, rooms, 1)
	assert.Equal(t, []string{MsgWelcome, MsgRoomCreated}, types(rec.drain()))

	h.broker.Disconnect("alice")
	require.NoError(t, h.broker.Do(ctx, func(reg *Registry) {
		assert.Equal(t, 0, reg.Len())
	}))

	cancel()
	require.Eventually(t, func() bool {
		return h.broker.Do(context.Background(), func(*Registry) {}) == ErrStopped
	}, time.Second, 10*time.Millisecond)
	assert.False(t, h.broker.Submit("alice", InputMessage{Type: CmdSyncState}))
}
