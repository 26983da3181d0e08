package server

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"gameroom/activity"
)

// Sender 连接的发送端。Enqueue 非阻塞，返回 false 表示消息被丢弃。
type Sender interface {
	Enqueue(b []byte) bool
}

// seat 一条连接：发送端与当前所在房间（至多一个）
type seat struct {
	send Sender
	code string
}

// Broker 连接网关的路由层：把入站命令映射到房间操作，并把结果按玩家定向推送。
// 除 Submit/Connect/Disconnect/Do 外的方法只能在 Run 所在的 goroutine 调用。
type Broker struct {
	rooms   *Registry
	engines *activity.Registry
	log     *zap.SugaredLogger
	metrics *Metrics

	seats map[PlayerID]*seat

	cmds chan command
	done chan struct{}
}

// NewBroker 创建 Broker；registry 与 engines 由调用方显式传入
func NewBroker(rooms *Registry, engines *activity.Registry, log *zap.SugaredLogger, commandBuffer int) *Broker {
	return &Broker{
		rooms:   rooms,
		engines: engines,
		log:     log,
		metrics: &Metrics{},
		seats:   make(map[PlayerID]*seat),
		cmds:    make(chan command, commandBuffer),
		done:    make(chan struct{}),
	}
}

func (b *Broker) Metrics() *Metrics { return b.metrics }

func (b *Broker) attach(id PlayerID, s Sender) {
	b.seats[id] = &seat{send: s}
	b.metrics.AddConnections(1)
	b.send(id, MsgWelcome, WelcomeData{PlayerID: id})
}

// detach 连接断开等同于离开房间
func (b *Broker) detach(id PlayerID) {
	st, ok := b.seats[id]
	if !ok {
		return
	}
	if st.code != "" {
		b.leave(id, st.code)
	}
	delete(b.seats, id)
	b.metrics.AddConnections(-1)
}

func (b *Broker) handle(id PlayerID, im InputMessage) {
	if _, ok := b.seats[id]; !ok {
		b.log.Debugf("command from unknown connection: player=%s type=%s", id, im.Type)
		return
	}
	switch im.Type {
	case CmdCreateRoom:
		b.createRoom(id, im.Name)
	case CmdJoinRoom:
		b.joinRoom(id, im.Code, im.Name)
	case CmdToggleReady:
		b.toggleReady(id, im.Code)
	case CmdSetActivityKind:
		b.setActivityKind(id, im.Code, activity.Kind(im.Kind))
	case CmdStartGame:
		b.startGame(id, im.Code)
	case CmdSubmitMove:
		b.submitMove(id, im.Code, im.Move)
	case CmdRequestRematch:
		b.requestRematch(id, im.Code)
	case CmdLeaveRoom:
		code := im.Code
		if code == "" {
			code = b.seats[id].code
		}
		b.leave(id, code)
	case CmdSyncState:
		b.syncState(id, im.Code)
	default:
		b.log.Debugf("unknown command: player=%s type=%s", id, im.Type)
	}
}

func (b *Broker) createRoom(id PlayerID, name string) {
	name, err := ValidateName(name)
	if err != nil {
		b.sendError(id, err)
		return
	}
	if cur := b.seats[id].code; cur != "" {
		b.leave(id, cur)
	}
	room, err := b.rooms.Create(id, name)
	if err != nil {
		b.log.Errorf("create room failed: player=%s err=%v", id, err)
		b.sendError(id, err)
		return
	}
	b.seats[id].code = room.Code
	b.metrics.IncRoomsCreated()
	b.send(id, MsgRoomCreated, room.Summary())
	b.log.Infof("room %s created by %s", room.Code, name)
}

func (b *Broker) joinRoom(id PlayerID, rawCode, name string) {
	name, err := ValidateName(name)
	if err != nil {
		b.sendError(id, err)
		return
	}
	code, err := ValidateCode(rawCode)
	if err != nil {
		b.sendError(id, err)
		return
	}
	room, ok := b.rooms.Lookup(code)
	if !ok {
		b.sendError(id, ErrNotFound)
		return
	}
	_, already := room.Player(id)
	p, err := room.Join(id, name)
	if err != nil {
		b.sendError(id, err)
		return
	}
	if cur := b.seats[id].code; cur != "" && cur != room.Code {
		b.leave(id, cur)
	}
	b.seats[id].code = room.Code
	b.send(id, MsgRoomJoined, room.Summary())
	if already {
		return
	}
	b.broadcastExcept(room, id, MsgParticipantJoined, *p)
	b.log.Infof("%s joined %s", name, room.Code)
}

func (b *Broker) toggleReady(id PlayerID, code string) {
	room, ok := b.rooms.Lookup(code)
	if !ok {
		return
	}
	ready, ok := room.ToggleReady(id)
	if !ok {
		return
	}
	b.broadcast(room, MsgReadyChanged, ReadyChangedData{PlayerID: id, Ready: ready})
}

func (b *Broker) setActivityKind(id PlayerID, code string, kind activity.Kind) {
	room, ok := b.rooms.Lookup(code)
	if !ok {
		return
	}
	if _, known := b.engines.Lookup(kind); !known {
		b.log.Debugf("ignoring unknown activity kind %q in %s", kind, room.Code)
		return
	}
	if !room.SetKind(id, kind) {
		b.log.Debugf("ignoring activity change by %s in %s", id, room.Code)
		return
	}
	b.broadcast(room, MsgActivityKindChanged, kind)
}

func (b *Broker) startGame(id PlayerID, code string) {
	room, ok := b.rooms.Lookup(code)
	if !ok {
		return
	}
	eng, ok := b.engines.Lookup(room.Kind)
	if !ok {
		return
	}
	if !room.Start(id, eng) {
		b.log.Debugf("start ignored: room=%s player=%s", room.Code, id)
		return
	}
	b.sendStarted(room, eng)
	b.log.Infof("%s started in %s", room.Kind, room.Code)
}

// sendStarted 每位玩家单独收到自己的投影与角色
func (b *Broker) sendStarted(room *Room, eng activity.Engine) {
	for _, p := range room.Players {
		role := room.Roles[p.ID]
		b.send(p.ID, MsgGameStarted, GameStartedData{
			State: eng.Project(room.State, role),
			Role:  role,
		})
	}
}

func (b *Broker) submitMove(id PlayerID, code string, move json.RawMessage) {
	room, ok := b.rooms.Lookup(code)
	if !ok {
		return
	}
	eng, ok := b.engines.Lookup(room.Kind)
	if !ok {
		return
	}
	out, err := room.ApplyMove(id, eng, move)
	if err != nil {
		b.metrics.IncRejected()
		b.log.Debugf("move rejected: room=%s player=%s err=%v", room.Code, id, err)
		if errors.Is(err, ErrInvalidMove) {
			err = ErrInvalidMove
		}
		b.sendError(id, err)
		return
	}
	if out == nil {
		return
	}
	b.metrics.IncAccepted()
	for _, p := range room.Players {
		b.send(p.ID, MsgStateUpdated, eng.Project(out.State, room.Roles[p.ID]))
	}
	if out.Result == nil {
		return
	}
	over := GameOverData{
		WinnerRole: out.Result.Winner,
		IsDraw:     out.Result.IsDraw,
		Details:    out.Result.Details,
	}
	for pid, role := range room.Roles {
		if role == out.Result.Winner && out.Result.Winner != "" {
			over.WinnerID = pid
		}
	}
	b.broadcast(room, MsgGameOver, over)
	b.log.Infof("game over in %s: winner=%s draw=%t", room.Code, out.Result.Winner, out.Result.IsDraw)
}

func (b *Broker) requestRematch(id PlayerID, code string) {
	room, ok := b.rooms.Lookup(code)
	if !ok {
		return
	}
	eng, ok := b.engines.Lookup(room.Kind)
	if !ok {
		return
	}
	started, ok := room.RequestRematch(id, eng)
	switch {
	case !ok:
		return
	case started:
		b.sendStarted(room, eng)
		b.log.Infof("rematch in %s", room.Code)
	default:
		b.broadcast(room, MsgRematchVoted, PlayerRef{PlayerID: id})
	}
}

func (b *Broker) leave(id PlayerID, code string) {
	room, ok := b.rooms.Lookup(code)
	if !ok {
		return
	}
	if st, ok := b.seats[id]; ok && st.code == room.Code {
		st.code = ""
	}
	res := room.Leave(id)
	if !res.Removed {
		return
	}
	if res.Empty {
		b.rooms.Delete(room.Code)
		b.metrics.IncRoomsDeleted()
		b.log.Infof("room %s deleted", room.Code)
		return
	}
	b.broadcast(room, MsgParticipantLeft, PlayerRef{PlayerID: id})
	b.broadcast(room, MsgOpponentDisconnected, nil)
	if res.LeaderChanged {
		b.broadcast(room, MsgLeaderChanged, PlayerRef{PlayerID: room.LeaderID})
	}
	if res.Forfeited {
		if eng, ok := b.engines.Lookup(room.Kind); ok {
			room.Abandon(eng)
		}
		b.log.Infof("game in %s forfeited after %s left", room.Code, id)
	}
}

// syncState 由 (state, role) 重新推导调用者的视图
func (b *Broker) syncState(id PlayerID, code string) {
	room, ok := b.rooms.Lookup(code)
	if !ok || room.State == nil {
		return
	}
	role, ok := room.RoleOf(id)
	if !ok {
		return
	}
	eng, ok := b.engines.Lookup(room.Kind)
	if !ok {
		return
	}
	b.send(id, MsgStateUpdated, eng.Project(room.State, role))
}

func encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(OutboundMessage{Type: msgType, Data: data})
}

func (b *Broker) deliver(id PlayerID, payload []byte) {
	st, ok := b.seats[id]
	if !ok {
		return
	}
	if !st.send.Enqueue(payload) {
		b.metrics.IncDropped()
		b.log.Warnf("outbound queue full, message dropped: player=%s", id)
	}
}

func (b *Broker) send(id PlayerID, msgType string, data any) {
	payload, err := encode(msgType, data)
	if err != nil {
		b.log.Errorf("encode %s failed: %v", msgType, err)
		return
	}
	b.deliver(id, payload)
}

func (b *Broker) sendError(id PlayerID, err error) {
	b.send(id, MsgError, ErrorData{Message: err.Error()})
}

// broadcast 同一份载荷只序列化一次
func (b *Broker) broadcast(room *Room, msgType string, data any) {
	b.broadcastExcept(room, "", msgType, data)
}

func (b *Broker) broadcastExcept(room *Room, skip PlayerID, msgType string, data any) {
	payload, err := encode(msgType, data)
	if err != nil {
		b.log.Errorf("encode %s failed: %v", msgType, err)
		return
	}
	for _, p := range room.Players {
		if p.ID != skip {
			b.deliver(p.ID, payload)
		}
	}
}
