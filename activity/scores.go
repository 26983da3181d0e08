package activity

// Scores 跨局累计比分。所有方法返回副本，便于在不可变状态之间传递。
type Scores struct {
	Wins  map[Role]int `json:"wins"`
	Draws int          `json:"draws"`
}

func NewScores(roles [2]Role) Scores {
	return Scores{Wins: map[Role]int{roles[0]: 0, roles[1]: 0}}
}

func (s Scores) clone() Scores {
	out := Scores{Wins: make(map[Role]int, len(s.Wins)), Draws: s.Draws}
	for r, n := range s.Wins {
		out.Wins[r] = n
	}
	return out
}

func (s Scores) withWin(r Role) Scores {
	out := s.clone()
	out.Wins[r]++
	return out
}

func (s Scores) withDraw() Scores {
	out := s.clone()
	out.Draws++
	return out
}

// Swapped 交换两个角色的胜场，用于换边后让比分仍跟随同一位玩家
func (s Scores) Swapped(a, b Role) Scores {
	out := s.clone()
	out.Wins[a], out.Wins[b] = s.Wins[b], s.Wins[a]
	return out
}
