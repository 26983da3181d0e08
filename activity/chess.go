package activity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

const (
	RoleWhite Role = "white"
	RoleBlack Role = "black"
)

// ChessLastMove 最近一步
type ChessLastMove struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Piece string `json:"piece"`
	SAN   string `json:"san"`
}

// ChessState 保存起始局面与 UCI 着法序列，每次转移都从头重放，
// 因此重复局面与五十步规则可以判定；FEN 是重放结果的快照
type ChessState struct {
	StartFEN       string            `json:"startFen"`
	FEN            string            `json:"fen"`
	CurrentTurn    Role              `json:"currentTurn"`
	Winner         Role              `json:"winner,omitempty"`
	IsDraw         bool              `json:"isDraw"`
	IsCheck        bool              `json:"isCheck"`
	IsCheckmate    bool              `json:"isCheckmate"`
	IsStalemate    bool              `json:"isStalemate"`
	Method         string            `json:"method,omitempty"`
	LastMove       *ChessLastMove    `json:"lastMove,omitempty"`
	CapturedPieces map[Role][]string `json:"capturedPieces"`
	MoveHistory    []string          `json:"moveHistory"`
	UCIHistory     []string          `json:"uciHistory"`
	Scores         Scores            `json:"scores"`
}

// ChessMove 示例：{"from":"e7","to":"e8","promotion":"q"}，升变缺省为后
type ChessMove struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type chessEngine struct{}

func NewChess() Engine { return chessEngine{} }

func (chessEngine) Info() Info {
	return Info{
		Kind:        KindChess,
		Name:        "Chess",
		Description: "The classic strategy game.",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

func (chessEngine) Roles() [2]Role  { return [2]Role{RoleWhite, RoleBlack} }
func (chessEngine) SwapRoles() bool { return true }

func (c chessEngine) NewState() State {
	st, _ := c.stateFromFEN(chess.NewGame().Position().String())
	return st
}

// stateFromFEN 从任意合法局面开局
func (c chessEngine) stateFromFEN(fen string) (ChessState, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return ChessState{}, err
	}
	pos := chess.NewGame(opt).Position()
	return ChessState{
		StartFEN:       pos.String(),
		FEN:            pos.String(),
		CurrentTurn:    colorRole(pos.Turn()),
		CapturedPieces: map[Role][]string{RoleWhite: {}, RoleBlack: {}},
		MoveHistory:    []string{},
		UCIHistory:     []string{},
		Scores:         NewScores(c.Roles()),
	}, nil
}

// replay 从起始局面重放全部着法，恢复局面历史
func replay(st ChessState) (*chess.Game, error) {
	opt, err := chess.FEN(st.StartFEN)
	if err != nil {
		return nil, err
	}
	game := chess.NewGame(opt)
	for _, s := range st.UCIHistory {
		m, err := chess.UCINotation{}.Decode(game.Position(), s)
		if err != nil {
			return nil, err
		}
		if err := game.Move(m); err != nil {
			return nil, err
		}
	}
	if game.Position().String() != st.FEN {
		return nil, fmt.Errorf("replayed position %q does not match %q", game.Position().String(), st.FEN)
	}
	return game, nil
}

// claimableDraw 三次重复与五十步规则在库中需要声明，这里自动判和
func claimableDraw(game *chess.Game) (chess.Method, bool) {
	for _, m := range game.EligibleDraws() {
		if m == chess.ThreefoldRepetition || m == chess.FiftyMoveRule {
			return m, true
		}
	}
	return chess.NoMethod, false
}

func colorRole(c chess.Color) Role {
	if c == chess.Black {
		return RoleBlack
	}
	return RoleWhite
}

func (chessEngine) Transition(s State, role Role, raw json.RawMessage) (State, error) {
	st := s.(ChessState)
	var mv ChessMove
	if err := decodeMove(raw, &mv); err != nil {
		return nil, err
	}
	if st.Winner != "" || st.IsDraw {
		return nil, rejectf("game is over")
	}
	game, err := replay(st)
	if err != nil {
		return nil, rejectf("corrupt position: %v", err)
	}
	pos := game.Position()
	if colorRole(pos.Turn()) != role || st.CurrentTurn != role {
		return nil, rejectf("not %s's turn", role)
	}

	from, to := strings.ToLower(mv.From), strings.ToLower(mv.To)
	promo := strings.ToLower(mv.Promotion)
	if promo == "" {
		promo = "q"
	}
	var chosen *chess.Move
	for _, m := range game.ValidMoves() {
		if m.S1().String() != from || m.S2().String() != to {
			continue
		}
		if m.Promo() != chess.NoPieceType && m.Promo().String() != promo {
			continue
		}
		chosen = m
		break
	}
	if chosen == nil {
		return nil, rejectf("illegal move %s-%s", from, to)
	}

	moved := pos.Board().Piece(chosen.S1()).Type().String()
	captured := ""
	switch {
	case chosen.HasTag(chess.EnPassant):
		captured = chess.Pawn.String()
	case chosen.HasTag(chess.Capture):
		captured = pos.Board().Piece(chosen.S2()).Type().String()
	}
	san := chess.AlgebraicNotation{}.Encode(pos, chosen)
	uci := chess.UCINotation{}.Encode(pos, chosen)
	if err := game.Move(chosen); err != nil {
		return nil, rejectf("illegal move %s-%s: %v", from, to, err)
	}

	next := st
	next.FEN = game.Position().String()
	next.CurrentTurn = colorRole(game.Position().Turn())
	next.IsCheck = chosen.HasTag(chess.Check)
	next.LastMove = &ChessLastMove{From: from, To: to, Piece: moved, SAN: san}
	next.MoveHistory = append(append([]string{}, st.MoveHistory...), san)
	next.UCIHistory = append(append([]string{}, st.UCIHistory...), uci)
	next.CapturedPieces = map[Role][]string{
		RoleWhite: append([]string{}, st.CapturedPieces[RoleWhite]...),
		RoleBlack: append([]string{}, st.CapturedPieces[RoleBlack]...),
	}
	if captured != "" {
		next.CapturedPieces[role] = append(next.CapturedPieces[role], captured)
	}

	switch game.Outcome() {
	case chess.WhiteWon, chess.BlackWon:
		next.Winner = role
		next.IsCheckmate = game.Method() == chess.Checkmate
		next.Method = game.Method().String()
		next.Scores = st.Scores.withWin(role)
	case chess.Draw:
		next.IsDraw = true
		next.IsStalemate = game.Method() == chess.Stalemate
		next.Method = game.Method().String()
		next.Scores = st.Scores.withDraw()
	case chess.NoOutcome:
		if method, ok := claimableDraw(game); ok {
			next.IsDraw = true
			next.Method = method.String()
			next.Scores = st.Scores.withDraw()
		}
	}
	return next, nil
}

func (chessEngine) Terminal(s State) *Result {
	st := s.(ChessState)
	if st.Winner == "" && !st.IsDraw {
		return nil
	}
	return &Result{
		Winner: st.Winner,
		IsDraw: st.IsDraw,
		Details: map[string]any{
			"isCheckmate": st.IsCheckmate,
			"isStalemate": st.IsStalemate,
			"method":      st.Method,
		},
	}
}

func (chessEngine) Project(s State, _ Role) any { return s }

func (chessEngine) Scores(s State) Scores { return s.(ChessState).Scores.clone() }

func (chessEngine) WithScores(s State, sc Scores) State {
	st := s.(ChessState)
	st.Scores = sc.clone()
	return st
}
