package server

// PlayerID 连接级玩家标识（每条 WebSocket 连接一个 UUID，重连后不同）
type PlayerID string

// Player 房间内的参与者
type Player struct {
	ID    PlayerID `json:"id"`
	Name  string   `json:"name"`
	Ready bool     `json:"isReady"`
}
