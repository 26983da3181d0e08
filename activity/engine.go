// Package activity 定义可插拔的对局引擎（纯函数式状态转移）以及按种类索引的注册表。
package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Kind 对局种类标识，例如 "tic-tac-toe"
type Kind string

const (
	KindTicTacToe   Kind = "tic-tac-toe"
	KindConnectFour Kind = "connect-four"
	KindBattleship  Kind = "battleship"
	KindChess       Kind = "chess"
	KindHangman     Kind = "hangman"
)

// Role 对局内角色（符号/颜色/阵营），与连接身份无关
type Role string

// State 引擎私有的对局状态。核心层只负责保存与替换，不解释其内容。
type State any

// ErrRejected 引擎拒绝该走法（轮次不对、位置非法、对局已结束等）
var ErrRejected = errors.New("move rejected")

// rejectf 包装 ErrRejected，附带原因便于调试日志
func rejectf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrRejected}, args...)...)
}

// Result 终局摘要：胜者角色或平局，外加引擎特定的元数据
type Result struct {
	Winner  Role           `json:"winnerRole,omitempty"`
	IsDraw  bool           `json:"isDraw"`
	Details map[string]any `json:"details,omitempty"`
}

// Info 对局目录元数据
type Info struct {
	Kind        Kind   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MinPlayers  int    `json:"minPlayers"`
	MaxPlayers  int    `json:"maxPlayers"`
}

// Engine 单一对局种类的规则实现。
//
// 约定：Transition 与 WithScores 永远返回新值，不得修改传入的 State；
// Project 必须是无副作用的纯函数，可随时由 (state, role) 重新推导。
type Engine interface {
	Info() Info
	// Roles 规范顺序，先加入者获得 Roles()[0]
	Roles() [2]Role
	// SwapRoles 再来一局时是否互换角色
	SwapRoles() bool
	NewState() State
	Transition(s State, role Role, move json.RawMessage) (State, error)
	// Terminal 未结束时返回 nil
	Terminal(s State) *Result
	Project(s State, role Role) any
	Scores(s State) Scores
	WithScores(s State, sc Scores) State
}

// Complement 返回两人对局中的另一个角色
func Complement(e Engine, r Role) Role {
	roles := e.Roles()
	if r == roles[0] {
		return roles[1]
	}
	return roles[0]
}

// Abandoner 可选接口：对局因有人离开而被弃时，引擎据此调整状态（例如公开隐藏信息）
type Abandoner interface {
	Abandon(s State) State
}

// Abandon 引擎未实现 Abandoner 时原样返回
func Abandon(e Engine, s State) State {
	if a, ok := e.(Abandoner); ok && s != nil {
		return a.Abandon(s)
	}
	return s
}

// Registry 按种类索引引擎，核心层通过它分发而不是 switch kind
type Registry struct {
	engines map[Kind]Engine
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[Kind]Engine)}
}

// Register 注册引擎；重复注册同一种类返回错误
func (r *Registry) Register(e Engine) error {
	k := e.Info().Kind
	if k == "" {
		return errors.New("activity: engine kind must not be empty")
	}
	if _, exists := r.engines[k]; exists {
		return fmt.Errorf("activity: kind %q already registered", k)
	}
	r.engines[k] = e
	return nil
}

func (r *Registry) Lookup(k Kind) (Engine, bool) {
	e, ok := r.engines[k]
	return e, ok
}

// Catalog 返回按种类排序的目录
func (r *Registry) Catalog() []Info {
	out := make([]Info, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// NewDefaultRegistry 注册全部内置引擎
func NewDefaultRegistry(src Source) (*Registry, error) {
	words, err := LoadWords()
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, e := range []Engine{
		NewTicTacToe(),
		NewConnectFour(),
		NewBattleship(src),
		NewChess(),
		NewHangman(src, words),
	} {
		if err := reg.Register(e); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// decodeMove 解析走法载荷，失败视为非法走法
func decodeMove(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return rejectf("empty move")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return rejectf("malformed move: %v", err)
	}
	return nil
}
