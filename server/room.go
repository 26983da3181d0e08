package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"gameroom/activity"
)

// Status 房间生命周期
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusConcluded Status = "concluded"
)

// MaxPlayers 每个房间最多两人
const MaxPlayers = 2

// Room 一局双人对局的聚合：成员、所选玩法、状态、角色分配与对局状态。
// 只允许在 Broker 的命令循环中访问，不加锁。
type Room struct {
	Code     string
	Players  []*Player // 加入顺序
	Kind     activity.Kind
	Status   Status
	LeaderID PlayerID

	State        activity.State
	Roles        map[PlayerID]activity.Role
	RematchVotes map[PlayerID]bool
	CarriedScore *activity.Scores
}

// NewRoom 创建只有房主一人的等待中房间
func NewRoom(code string, leader *Player, kind activity.Kind) *Room {
	return &Room{
		Code:         code,
		Players:      []*Player{leader},
		Kind:         kind,
		Status:       StatusWaiting,
		LeaderID:     leader.ID,
		Roles:        make(map[PlayerID]activity.Role),
		RematchVotes: make(map[PlayerID]bool),
	}
}

// Player 按 ID 查找成员
func (r *Room) Player(id PlayerID) (*Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// RoleOf 返回成员在当前对局中的角色
func (r *Room) RoleOf(id PlayerID) (activity.Role, bool) {
	role, ok := r.Roles[id]
	return role, ok
}

// Join 追加一名未准备的成员。已在房间内则原样返回。
func (r *Room) Join(id PlayerID, name string) (*Player, error) {
	if p, ok := r.Player(id); ok {
		return p, nil
	}
	if len(r.Players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	if r.Status == StatusActive {
		return nil, ErrAlreadyStarted
	}
	p := &Player{ID: id, Name: name}
	r.Players = append(r.Players, p)
	return p, nil
}

// LeaveResult 离开后的房间变化
type LeaveResult struct {
	Removed       bool
	Empty         bool
	Forfeited     bool
	LeaderChanged bool
}

// Leave 移除成员。进行中的对局被强制结束（弃局，不判胜负）；
// 房主离开时由加入最早的剩余成员接任。
func (r *Room) Leave(id PlayerID) LeaveResult {
	idx := -1
	for i, p := range r.Players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return LeaveResult{}
	}
	players := make([]*Player, 0, len(r.Players)-1)
	players = append(players, r.Players[:idx]...)
	r.Players = append(players, r.Players[idx+1:]...)
	delete(r.Roles, id)
	delete(r.RematchVotes, id)

	res := LeaveResult{Removed: true}
	if len(r.Players) == 0 {
		res.Empty = true
		return res
	}
	if r.Status == StatusActive {
		r.Status = StatusConcluded
		r.RematchVotes = make(map[PlayerID]bool)
		res.Forfeited = true
	}
	if r.LeaderID == id {
		r.LeaderID = r.Players[0].ID
		res.LeaderChanged = true
	}
	return res
}

// Abandon 弃局后交给引擎调整状态；只在 Leave 报告 Forfeited 后调用
func (r *Room) Abandon(eng activity.Engine) {
	r.State = activity.Abandon(eng, r.State)
}

// ToggleReady 切换准备状态；成员不存在返回 ok=false
func (r *Room) ToggleReady(id PlayerID) (ready bool, ok bool) {
	p, found := r.Player(id)
	if !found {
		return false, false
	}
	p.Ready = !p.Ready
	return p.Ready, true
}

// SetKind 仅房主、仅等待中可改玩法；否则静默忽略
func (r *Room) SetKind(id PlayerID, kind activity.Kind) bool {
	if id != r.LeaderID || r.Status != StatusWaiting {
		return false
	}
	r.Kind = kind
	return true
}

// CanStart 房主发起、满员、全部准备、当前不在对局中
func (r *Room) CanStart(id PlayerID) bool {
	if id != r.LeaderID || len(r.Players) != MaxPlayers || r.Status == StatusActive {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Start 条件不满足时为幂等的空操作
func (r *Room) Start(id PlayerID, eng activity.Engine) bool {
	if !r.CanStart(id) {
		return false
	}
	r.begin(eng, false)
	return true
}

// rolesCoverRoster 当前每位成员都有上一局的角色（即同一对玩家）
func (r *Room) rolesCoverRoster() bool {
	if len(r.Players) != MaxPlayers {
		return false
	}
	for _, p := range r.Players {
		if _, ok := r.Roles[p.ID]; !ok {
			return false
		}
	}
	return true
}

// begin 开局：新状态、分配角色、带入累计比分、进入 active
func (r *Room) begin(eng activity.Engine, rematch bool) {
	canon := eng.Roles()
	roles := make(map[PlayerID]activity.Role, len(r.Players))
	carried := r.CarriedScore

	if rematch && r.rolesCoverRoster() {
		swap := eng.SwapRoles()
		for _, p := range r.Players {
			role := r.Roles[p.ID]
			if swap {
				role = activity.Complement(eng, role)
			}
			roles[p.ID] = role
		}
		if swap && carried != nil {
			sw := carried.Swapped(canon[0], canon[1])
			carried = &sw
		}
	} else {
		for i, p := range r.Players {
			roles[p.ID] = canon[i]
		}
	}

	state := eng.NewState()
	if carried != nil {
		state = eng.WithScores(state, *carried)
	}
	r.CarriedScore = nil
	r.State = state
	r.Roles = roles
	r.Status = StatusActive
	r.RematchVotes = make(map[PlayerID]bool)
}

// MoveOutcome 被接受的走法产生的新状态，以及终局摘要（未结束为 nil）
type MoveOutcome struct {
	State  activity.State
	Result *activity.Result
}

// ApplyMove 回合校验状态机。
//
// 返回 (nil, nil) 表示静默忽略（无对局、非 active、调用者无角色）；
// 引擎拒绝时返回包装了 ErrInvalidMove 的错误，状态不变；
// 接受时整体替换 State，若到达终局则进入 concluded。
func (r *Room) ApplyMove(id PlayerID, eng activity.Engine, move json.RawMessage) (*MoveOutcome, error) {
	if r.State == nil || r.Status != StatusActive {
		return nil, nil
	}
	role, ok := r.Roles[id]
	if !ok {
		return nil, nil
	}
	next, err := eng.Transition(r.State, role, move)
	if err != nil {
		if errors.Is(err, activity.ErrRejected) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMove, err)
		}
		return nil, err
	}
	r.State = next
	out := &MoveOutcome{State: next}
	if res := eng.Terminal(next); res != nil {
		r.Status = StatusConcluded
		r.RematchVotes = make(map[PlayerID]bool)
		out.Result = res
	}
	return out, nil
}

// RequestRematch 记录再来一局的投票；满员且全票时以换边规则重新开局。
// ok=false 表示被忽略（非 concluded 或非成员）。
func (r *Room) RequestRematch(id PlayerID, eng activity.Engine) (started bool, ok bool) {
	if r.Status != StatusConcluded {
		return false, false
	}
	if _, member := r.Player(id); !member {
		return false, false
	}
	r.RematchVotes[id] = true
	if len(r.Players) < MaxPlayers || len(r.RematchVotes) < MaxPlayers {
		return false, true
	}
	if r.State != nil && r.rolesCoverRoster() {
		sc := eng.Scores(r.State)
		r.CarriedScore = &sc
	}
	r.begin(eng, true)
	return true, true
}

// RoomSummary 房间的公开描述，用于 roomCreated/roomJoined 与管理接口
type RoomSummary struct {
	Code     string        `json:"code"`
	Players  []Player      `json:"players"`
	Kind     activity.Kind `json:"gameType"`
	Status   Status        `json:"status"`
	LeaderID PlayerID      `json:"hostId"`
}

func (r *Room) Summary() RoomSummary {
	players := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, *p)
	}
	return RoomSummary{
		Code:     r.Code,
		Players:  players,
		Kind:     r.Kind,
		Status:   r.Status,
		LeaderID: r.LeaderID,
	}
}
