package server

import "gameroom/activity"

// 出站通知类型
const (
	MsgWelcome              = "welcome"
	MsgRoomCreated          = "roomCreated"
	MsgRoomJoined           = "roomJoined"
	MsgParticipantJoined    = "participantJoined"
	MsgParticipantLeft      = "participantLeft"
	MsgReadyChanged         = "readyChanged"
	MsgActivityKindChanged  = "activityKindChanged"
	MsgLeaderChanged        = "leaderChanged"
	MsgGameStarted          = "gameStarted"
	MsgStateUpdated         = "stateUpdated"
	MsgGameOver             = "gameOver"
	MsgRematchVoted         = "rematchVoted"
	MsgOpponentDisconnected = "opponentDisconnected"
	MsgError                = "errorMessage"
)

// OutboundMessage 出站 JSON 信封
type OutboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type WelcomeData struct {
	PlayerID PlayerID `json:"playerId"`
}

type ReadyChangedData struct {
	PlayerID PlayerID `json:"playerId"`
	Ready    bool     `json:"isReady"`
}

type PlayerRef struct {
	PlayerID PlayerID `json:"playerId"`
}

// GameStartedData 只携带接收者自己的投影视图与角色，从不携带原始共享状态
type GameStartedData struct {
	State any           `json:"gameState"`
	Role  activity.Role `json:"playerSymbol"`
}

// GameOverData 终局摘要广播
type GameOverData struct {
	WinnerRole activity.Role  `json:"winnerRole,omitempty"`
	WinnerID   PlayerID       `json:"winnerId,omitempty"`
	IsDraw     bool           `json:"isDraw"`
	Details    map[string]any `json:"details,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
}
