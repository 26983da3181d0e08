package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// 入站命令类型
const (
	CmdCreateRoom      = "createRoom"
	CmdJoinRoom        = "joinRoom"
	CmdToggleReady     = "toggleReady"
	CmdSetActivityKind = "setActivityKind"
	CmdStartGame       = "startGame"
	CmdSubmitMove      = "submitMove"
	CmdRequestRematch  = "requestRematch"
	CmdLeaveRoom       = "leaveRoom"
	CmdSyncState       = "syncState"
)

// 显示名长度（按字符计，去掉首尾空白后）
const (
	minNameLen = 2
	maxNameLen = 15
)

// InputMessage 入站 JSON 文本消息
// 示例：{"type":"joinRoom","code":"k4f9","name":"alice"}
//
//	{"type":"submitMove","code":"K4F9","move":{"position":4}}
type InputMessage struct {
	Type string          `json:"type"`
	Code string          `json:"code,omitempty"`
	Name string          `json:"name,omitempty"`
	Kind string          `json:"kind,omitempty"`
	Move json.RawMessage `json:"move,omitempty"`
}

// ParseInput 解码一帧入站消息
func ParseInput(payload []byte) (InputMessage, error) {
	var im InputMessage
	if err := json.Unmarshal(payload, &im); err != nil {
		return InputMessage{}, fmt.Errorf("decoding input: %w", err)
	}
	if im.Type == "" {
		return InputMessage{}, fmt.Errorf("decoding input: missing type")
	}
	return im, nil
}

// ValidateName 边界层校验显示名
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	if n < minNameLen || n > maxNameLen {
		return "", fmt.Errorf("%w: display name must be %d-%d characters", ErrValidation, minNameLen, maxNameLen)
	}
	return trimmed, nil
}

// ValidateCode 房间码规范化并校验长度与字母表
func ValidateCode(code string) (string, error) {
	c := NormalizeCode(code)
	if len(c) != CodeLength || strings.Trim(c, CodeAlphabet) != "" {
		return "", fmt.Errorf("%w: room code must be %d characters", ErrValidation, CodeLength)
	}
	return c, nil
}
