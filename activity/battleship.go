package activity

import "encoding/json"

const (
	RolePlayer1 Role = "player1"
	RolePlayer2 Role = "player2"

	battleshipGrid = 10
	// 自动布阵时每艘船的随机尝试次数，超过后退化为顺序扫描
	autoPlaceAttempts = 200

	PhasePlacing  = "placing"
	PhasePlaying  = "playing"
	PhaseFinished = "finished"

	ShotHit  = "hit"
	ShotMiss = "miss"

	noShip int8 = -1
)

// Ship 舰船类型
type Ship struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Fleet 每位玩家需要布置的舰队，下标即 shipIndex
var Fleet = []Ship{
	{Name: "Carrier", Size: 5},
	{Name: "Battleship", Size: 4},
	{Name: "Cruiser", Size: 3},
	{Name: "Submarine", Size: 3},
	{Name: "Destroyer", Size: 2},
}

// Grid 海域网格
type Grid[T any] [battleshipGrid][battleshipGrid]T

// BattleshipBoard 单个玩家的海域：Ships 为自己的布阵（-1 为空，否则为 shipIndex），
// Shots 为该玩家向对手开火的记录
type BattleshipBoard struct {
	Ships       Grid[int8]   `json:"ships"`
	Shots       Grid[string] `json:"shots"`
	ShipsPlaced []int        `json:"shipsPlaced"`
}

// ShotRecord 最近一次开火
type ShotRecord struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Result  string `json:"result"`
	Shooter Role   `json:"shooter"`
}

type BattleshipState struct {
	Phase       string                   `json:"phase"`
	CurrentTurn Role                     `json:"currentTurn"`
	Winner      Role                     `json:"winner,omitempty"`
	Boards      map[Role]BattleshipBoard `json:"boards"`
	LastShot    *ShotRecord              `json:"lastShot,omitempty"`
	Scores      Scores                   `json:"scores"`
}

// BattleshipMove 三种走法：
//
//	{"type":"place-ship","shipIndex":0,"row":0,"col":0,"horizontal":true}
//	{"type":"auto-place"}
//	{"type":"shoot","row":3,"col":7}
type BattleshipMove struct {
	Type       string `json:"type"`
	ShipIndex  int    `json:"shipIndex"`
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	Horizontal bool   `json:"horizontal"`
}

// OpponentBoard 对手海域的公开部分：只有对手向我开火的结果，不含布阵
type OpponentBoard struct {
	Shots       Grid[string] `json:"shots"`
	ShipsPlaced int          `json:"shipsPlaced"`
}

// BattleshipView 按角色投影后的视图
type BattleshipView struct {
	Phase       string          `json:"phase"`
	CurrentTurn Role            `json:"currentTurn"`
	Winner      Role            `json:"winner,omitempty"`
	Mine        BattleshipBoard `json:"mine"`
	Opponent    OpponentBoard   `json:"opponent"`
	LastShot    *ShotRecord     `json:"lastShot,omitempty"`
	Scores      Scores          `json:"scores"`
}

type battleship struct {
	src Source
}

func NewBattleship(src Source) Engine { return battleship{src: src} }

func (battleship) Info() Info {
	return Info{
		Kind:        KindBattleship,
		Name:        "Battleship",
		Description: "Sink the opposing fleet before yours goes down.",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

func (battleship) Roles() [2]Role { return [2]Role{RolePlayer1, RolePlayer2} }

// SwapRoles 双方对称，不换边
func (battleship) SwapRoles() bool { return false }

func emptyBoard() BattleshipBoard {
	var b BattleshipBoard
	for r := range b.Ships {
		for c := range b.Ships[r] {
			b.Ships[r][c] = noShip
		}
	}
	b.ShipsPlaced = []int{}
	return b
}

func (e battleship) NewState() State {
	return BattleshipState{
		Phase:       PhasePlacing,
		CurrentTurn: RolePlayer1,
		Boards: map[Role]BattleshipBoard{
			RolePlayer1: emptyBoard(),
			RolePlayer2: emptyBoard(),
		},
		Scores: NewScores(e.Roles()),
	}
}

func (e battleship) Transition(s State, role Role, raw json.RawMessage) (State, error) {
	st := s.(BattleshipState)
	if _, ok := st.Boards[role]; !ok {
		return nil, rejectf("unknown role %q", role)
	}
	var mv BattleshipMove
	if err := decodeMove(raw, &mv); err != nil {
		return nil, err
	}
	switch mv.Type {
	case "place-ship":
		return e.placeShip(st, role, mv)
	case "auto-place":
		return e.autoPlace(st, role)
	case "shoot":
		return e.shoot(st, role, mv.Row, mv.Col)
	default:
		return nil, rejectf("unknown move type %q", mv.Type)
	}
}

func canPlace(ships *Grid[int8], row, col, size int, horizontal bool) bool {
	for i := 0; i < size; i++ {
		r, c := row, col+i
		if !horizontal {
			r, c = row+i, col
		}
		if r < 0 || r >= battleshipGrid || c < 0 || c >= battleshipGrid {
			return false
		}
		if ships[r][c] != noShip {
			return false
		}
	}
	return true
}

func put(ships *Grid[int8], idx, row, col int, horizontal bool) {
	for i := 0; i < Fleet[idx].Size; i++ {
		if horizontal {
			ships[row][col+i] = int8(idx)
		} else {
			ships[row+i][col] = int8(idx)
		}
	}
}

func placed(b BattleshipBoard, idx int) bool {
	for _, p := range b.ShipsPlaced {
		if p == idx {
			return true
		}
	}
	return false
}

func (e battleship) placeShip(st BattleshipState, role Role, mv BattleshipMove) (State, error) {
	if st.Phase != PhasePlacing {
		return nil, rejectf("not in placing phase")
	}
	if mv.ShipIndex < 0 || mv.ShipIndex >= len(Fleet) {
		return nil, rejectf("unknown ship %d", mv.ShipIndex)
	}
	board := st.Boards[role]
	if placed(board, mv.ShipIndex) {
		return nil, rejectf("ship %d already placed", mv.ShipIndex)
	}
	if !canPlace(&board.Ships, mv.Row, mv.Col, Fleet[mv.ShipIndex].Size, mv.Horizontal) {
		return nil, rejectf("ship %d does not fit at (%d,%d)", mv.ShipIndex, mv.Row, mv.Col)
	}
	put(&board.Ships, mv.ShipIndex, mv.Row, mv.Col, mv.Horizontal)
	board.ShipsPlaced = append(append([]int{}, board.ShipsPlaced...), mv.ShipIndex)
	return withBoard(st, role, board), nil
}

func (e battleship) autoPlace(st BattleshipState, role Role) (State, error) {
	if st.Phase != PhasePlacing {
		return nil, rejectf("not in placing phase")
	}
	board := st.Boards[role]
	done := append([]int{}, board.ShipsPlaced...)
	for idx, ship := range Fleet {
		if placed(board, idx) {
			continue
		}
		if row, col, horiz, ok := e.findSpot(&board.Ships, ship.Size); ok {
			put(&board.Ships, idx, row, col, horiz)
			done = append(done, idx)
		}
	}
	if len(done) == len(board.ShipsPlaced) {
		return nil, rejectf("nothing left to place")
	}
	board.ShipsPlaced = done
	return withBoard(st, role, board), nil
}

// findSpot 先随机尝试，失败后顺序扫描，保证只要有空位就能放下
func (e battleship) findSpot(ships *Grid[int8], size int) (int, int, bool, bool) {
	for i := 0; i < autoPlaceAttempts; i++ {
		horiz := e.src.Intn(2) == 0
		row, col := e.src.Intn(battleshipGrid), e.src.Intn(battleshipGrid)
		if canPlace(ships, row, col, size, horiz) {
			return row, col, horiz, true
		}
	}
	for row := 0; row < battleshipGrid; row++ {
		for col := 0; col < battleshipGrid; col++ {
			for _, horiz := range []bool{true, false} {
				if canPlace(ships, row, col, size, horiz) {
					return row, col, horiz, true
				}
			}
		}
	}
	return 0, 0, false, false
}

// withBoard 复制 Boards 映射后替换一方海域，并在双方布阵完成时进入开火阶段
func withBoard(st BattleshipState, role Role, b BattleshipBoard) BattleshipState {
	boards := make(map[Role]BattleshipBoard, len(st.Boards))
	for r, v := range st.Boards {
		boards[r] = v
	}
	boards[role] = b
	st.Boards = boards
	if len(boards[RolePlayer1].ShipsPlaced) == len(Fleet) && len(boards[RolePlayer2].ShipsPlaced) == len(Fleet) {
		st.Phase = PhasePlaying
	}
	return st
}

func (e battleship) shoot(st BattleshipState, shooter Role, row, col int) (State, error) {
	if st.Phase != PhasePlaying || st.Winner != "" {
		return nil, rejectf("not in playing phase")
	}
	if st.CurrentTurn != shooter {
		return nil, rejectf("not %s's turn", shooter)
	}
	if row < 0 || row >= battleshipGrid || col < 0 || col >= battleshipGrid {
		return nil, rejectf("target (%d,%d) out of range", row, col)
	}
	target := Complement(e, shooter)
	own := st.Boards[shooter]
	if own.Shots[row][col] != "" {
		return nil, rejectf("already fired at (%d,%d)", row, col)
	}
	enemy := st.Boards[target]
	hit := enemy.Ships[row][col] != noShip
	own.Shots[row][col] = ShotMiss
	if hit {
		own.Shots[row][col] = ShotHit
	}

	next := withBoard(st, shooter, own)
	next.LastShot = &ShotRecord{Row: row, Col: col, Result: own.Shots[row][col], Shooter: shooter}
	// 命中可以继续开火
	next.CurrentTurn = target
	if hit {
		next.CurrentTurn = shooter
	}
	if fleetSunk(enemy.Ships, own.Shots) {
		next.Winner = shooter
		next.Phase = PhaseFinished
		next.Scores = st.Scores.withWin(shooter)
	}
	return next, nil
}

func fleetSunk(ships Grid[int8], shots Grid[string]) bool {
	for r := range ships {
		for c := range ships[r] {
			if ships[r][c] != noShip && shots[r][c] != ShotHit {
				return false
			}
		}
	}
	return true
}

func (battleship) Terminal(s State) *Result {
	st := s.(BattleshipState)
	if st.Winner == "" {
		return nil
	}
	res := &Result{Winner: st.Winner}
	if st.LastShot != nil {
		res.Details = map[string]any{"lastShot": *st.LastShot}
	}
	return res
}

// Project 隐藏对手布阵，只暴露对手向我开火的结果
func (e battleship) Project(s State, role Role) any {
	st := s.(BattleshipState)
	opp := st.Boards[Complement(e, role)]
	mine := st.Boards[role]
	mine.ShipsPlaced = append([]int{}, mine.ShipsPlaced...)
	return BattleshipView{
		Phase:       st.Phase,
		CurrentTurn: st.CurrentTurn,
		Winner:      st.Winner,
		Mine:        mine,
		Opponent:    OpponentBoard{Shots: opp.Shots, ShipsPlaced: len(opp.ShipsPlaced)},
		LastShot:    st.LastShot,
		Scores:      st.Scores.clone(),
	}
}

func (battleship) Scores(s State) Scores { return s.(BattleshipState).Scores.clone() }

func (battleship) WithScores(s State, sc Scores) State {
	st := s.(BattleshipState)
	st.Scores = sc.clone()
	return st
}
