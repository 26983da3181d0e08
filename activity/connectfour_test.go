package activity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func dropAll(t *testing.T, e Engine, s State, cols ...int) State {
	t.Helper()
	roles := e.Roles()
	for i, c := range cols {
		s = apply(t, e, s, roles[i%2], fmt.Sprintf(`{"col":%d}`, c))
	}
	return s
}

func TestConnectFour_GravityAndTurn(t *testing.T) {
	e := NewConnectFour()
	s := dropAll(t, e, e.NewState(), 3, 3)
	st := s.(ConnectFourState)
	assert.Equal(t, RoleRed, st.Board[5][3])
	assert.Equal(t, RoleYellow, st.Board[4][3])
	assert.Equal(t, &Cell{Row: 4, Col: 3}, st.LastMove)
	assert.Equal(t, RoleRed, st.CurrentTurn)
}

func TestConnectFour_VerticalWin(t *testing.T) {
	e := NewConnectFour()
	s := dropAll(t, e, e.NewState(), 0, 1, 0, 1, 0, 1, 0)
	res := e.Terminal(s)
	require.NotNil(t, res)
	assert.Equal(t, RoleRed, res.Winner)
	assert.Len(t, res.Details["winningLine"], 4)
	assert.Equal(t, 1, e.Scores(s).Wins[RoleRed])
}

func TestConnectFour_DiagonalWin(t *testing.T) {
	e := NewConnectFour()
	// 红方沿 (5,0) (4,1) (3,2) (2,3) 连成对角线
	s := dropAll(t, e, e.NewState(), 0, 1, 1, 2, 2, 3, 2, 3, 3, 6, 3)
	res := e.Terminal(s)
	require.NotNil(t, res)
	assert.Equal(t, RoleRed, res.Winner)
}

func TestConnectFour_FullColumnRejected(t *testing.T) {
	e := NewConnectFour()
	s := dropAll(t, e, e.NewState(), 0, 0, 0, 0, 0, 0)
	before := snapshot(t, s)
	_, err := e.Transition(s, RoleRed, move(`{"col":0}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "full")
	assert.Equal(t, before, snapshot(t, s))
	assert.Nil(t, e.Terminal(s))
}

func TestConnectFour_Rejections(t *testing.T) {
	e := NewConnectFour()
	s := e.NewState()
	for _, m := range []struct {
		role Role
		move string
	}{
		{RoleYellow, `{"col":0}`},
		{RoleRed, `{"col":7}`},
		{RoleRed, `{"col":-1}`},
		{RoleRed, `{}`},
	} {
		_, err := e.Transition(s, m.role, move(m.move))
		assert.True(t, errors.Is(err, ErrRejected), "%s %s", m.role, m.move)
	}
}

func TestConnectFour_PlayerMismatchRejected(t *testing.T) {
	e := NewConnectFour()
	s := e.NewState()
	_, err := e.Transition(s, RoleRed, move(`{"col":3,"player":"yellow"}`))
	assert.True(t, errors.Is(err, ErrRejected))

	s = apply(t, e, s, RoleRed, `{"col":3,"player":"red"}`)
	assert.Equal(t, RoleYellow, s.(ConnectFourState).CurrentTurn)
}

func TestConnectFour_TransitionNeverMutatesInput(t *testing.T) {
	e := NewConnectFour()
	rapid.Check(t, func(rt *rapid.T) {
		s := e.NewState()
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			role := rapid.SampledFrom([]Role{RoleRed, RoleYellow}).Draw(rt, "role")
			col := rapid.IntRange(-1, connectFourCols).Draw(rt, "col")
			s, _ = transitionPure(rt, e, s, role, move(fmt.Sprintf(`{"col":%d}`, col)))
		}
	})
}
