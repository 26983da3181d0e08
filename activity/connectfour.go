package activity

import "encoding/json"

const (
	RoleRed    Role = "red"
	RoleYellow Role = "yellow"

	connectFourRows = 6
	connectFourCols = 7
)

// Cell 棋盘坐标
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ConnectFourState 四子棋状态，第 0 行为顶部
type ConnectFourState struct {
	Board       [connectFourRows][connectFourCols]Role `json:"board"`
	CurrentTurn Role                                   `json:"currentTurn"`
	Winner      Role                                   `json:"winner,omitempty"`
	IsDraw      bool                                   `json:"isDraw"`
	WinningLine []Cell                                 `json:"winningLine,omitempty"`
	LastMove    *Cell                                  `json:"lastMove,omitempty"`
	Scores      Scores                                 `json:"scores"`
}

type ConnectFourMove struct {
	Col    *int `json:"col"`
	Player Role `json:"player,omitempty"`
}

type connectFour struct{}

func NewConnectFour() Engine { return connectFour{} }

func (connectFour) Info() Info {
	return Info{
		Kind:        KindConnectFour,
		Name:        "Connect Four",
		Description: "Drop discs and connect four in a row.",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

func (connectFour) Roles() [2]Role  { return [2]Role{RoleRed, RoleYellow} }
func (connectFour) SwapRoles() bool { return true }

func (c connectFour) NewState() State {
	return ConnectFourState{CurrentTurn: RoleRed, Scores: NewScores(c.Roles())}
}

func (connectFour) Transition(s State, role Role, raw json.RawMessage) (State, error) {
	st := s.(ConnectFourState)
	var mv ConnectFourMove
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
	if mv.Col == nil || *mv.Col < 0 || *mv.Col >= connectFourCols {
		return nil, rejectf("column out of range")
	}
	col := *mv.Col
	row := -1
	for r := connectFourRows - 1; r >= 0; r-- {
		if st.Board[r][col] == "" {
			row = r
			break
		}
	}
	if row < 0 {
		return nil, rejectf("column %d is full", col)
	}

	next := st
	next.Board[row][col] = role
	next.LastMove = &Cell{Row: row, Col: col}
	next.CurrentTurn = RoleYellow
	if role == RoleYellow {
		next.CurrentTurn = RoleRed
	}
	if line := connectFourLine(next.Board, row, col, role); line != nil {
		next.Winner = role
		next.WinningLine = line
		next.Scores = st.Scores.withWin(role)
		return next, nil
	}
	full := true
	for _, cell := range next.Board[0] {
		if cell == "" {
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

// connectFourLine 以刚落下的棋子为中心向四个方向延伸，连成 4 个及以上返回该线
func connectFourLine(b [connectFourRows][connectFourCols]Role, row, col int, p Role) []Cell {
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	in := func(r, c int) bool { return r >= 0 && r < connectFourRows && c >= 0 && c < connectFourCols }
	for _, d := range dirs {
		line := []Cell{{Row: row, Col: col}}
		for i := 1; i < 4; i++ {
			r, c := row+d[0]*i, col+d[1]*i
			if !in(r, c) || b[r][c] != p {
				break
			}
			line = append(line, Cell{Row: r, Col: c})
		}
		for i := 1; i < 4; i++ {
			r, c := row-d[0]*i, col-d[1]*i
			if !in(r, c) || b[r][c] != p {
				break
			}
			line = append(line, Cell{Row: r, Col: c})
		}
		if len(line) >= 4 {
			return line
		}
	}
	return nil
}

func (connectFour) Terminal(s State) *Result {
	st := s.(ConnectFourState)
	if st.Winner == "" && !st.IsDraw {
		return nil
	}
	res := &Result{Winner: st.Winner, IsDraw: st.IsDraw, Details: map[string]any{}}
	if st.WinningLine != nil {
		res.Details["winningLine"] = st.WinningLine
	}
	if st.LastMove != nil {
		res.Details["lastMove"] = *st.LastMove
	}
	return res
}

func (connectFour) Project(s State, _ Role) any { return s }

func (connectFour) Scores(s State) Scores { return s.(ConnectFourState).Scores.clone() }

func (connectFour) WithScores(s State, sc Scores) State {
	st := s.(ConnectFourState)
	st.Scores = sc.clone()
	return st
}
