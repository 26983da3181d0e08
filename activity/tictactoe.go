package activity

import "encoding/json"

const (
	RoleX Role = "X"
	RoleO Role = "O"
)

var ticTacToeLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // 行
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // 列
	{0, 4, 8}, {2, 4, 6}, // 对角线
}

// TicTacToeState 井字棋状态；棋盘为定长数组，按值复制
type TicTacToeState struct {
	Board       [9]Role `json:"board"`
	CurrentTurn Role    `json:"currentTurn"`
	Winner      Role    `json:"winner,omitempty"`
	IsDraw      bool    `json:"isDraw"`
	WinningLine []int   `json:"winningLine,omitempty"`
	Scores      Scores  `json:"scores"`
}

// TicTacToeMove 示例：{"position":4}；player 可选，若给出须与调用者角色一致
type TicTacToeMove struct {
	Position *int `json:"position"`
	Player   Role `json:"player,omitempty"`
}

type ticTacToe struct{}

func NewTicTacToe() Engine { return ticTacToe{} }

func (ticTacToe) Info() Info {
	return Info{
		Kind:        KindTicTacToe,
		Name:        "Tic-Tac-Toe",
		Description: "Three in a row wins.",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

func (ticTacToe) Roles() [2]Role  { return [2]Role{RoleX, RoleO} }
func (ticTacToe) SwapRoles() bool { return true }

func (t ticTacToe) NewState() State {
	return TicTacToeState{CurrentTurn: RoleX, Scores: NewScores(t.Roles())}
}

func (ticTacToe) Transition(s State, role Role, raw json.RawMessage) (State, error) {
	st := s.(TicTacToeState)
	var mv TicTacToeMove
	if err := decodeMove(raw, &mv); err != nil {
		return nil, err
	}
	if st.Winner != "" || st.IsDraw {
		return nil, rejectf("game is over")
	}
	if mv.Player != "" && mv.Player != role {
		return nil, rejectf("player %q does not match role %q", mv.Player, role)
	}
	if st.CurrentTurn != role {
		return nil, rejectf("not %s's turn", role)
	}
	if mv.Position == nil || *mv.Position < 0 || *mv.Position > 8 {
		return nil, rejectf("position out of range")
	}
	pos := *mv.Position
	if st.Board[pos] != "" {
		return nil, rejectf("cell %d occupied", pos)
	}

	next := st // 数组按值复制
	next.Board[pos] = role
	next.CurrentTurn = RoleO
	if role == RoleO {
		next.CurrentTurn = RoleX
	}
	for _, line := range ticTacToeLines {
		a, b, c := next.Board[line[0]], next.Board[line[1]], next.Board[line[2]]
		if a != "" && a == b && a == c {
			next.Winner = a
			next.WinningLine = []int{line[0], line[1], line[2]}
			next.Scores = st.Scores.withWin(a)
			return next, nil
		}
	}
	full := true
	for _, c := range next.Board {
		if c == "" {
			full = false
			break
		}
	}
	if full {
		next.IsDraw = true
		next.Scores = st.Scores.withDraw()
	}
	return next, nil
}

func (ticTacToe) Terminal(s State) *Result {
	st := s.(TicTacToeState)
	if st.Winner == "" && !st.IsDraw {
		return nil
	}
	res := &Result{Winner: st.Winner, IsDraw: st.IsDraw}
	if st.WinningLine != nil {
		res.Details = map[string]any{"winningLine": st.WinningLine}
	}
	return res
}

func (ticTacToe) Project(s State, _ Role) any { return s }

func (ticTacToe) Scores(s State) Scores { return s.(TicTacToeState).Scores.clone() }

func (ticTacToe) WithScores(s State, sc Scores) State {
	st := s.(TicTacToeState)
	st.Scores = sc.clone()
	return st
}
