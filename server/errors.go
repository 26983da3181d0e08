package server

import "errors"

// 面向客户端的可恢复错误，只发送给发起请求的连接
var (
	ErrNotFound       = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyStarted = errors.New("game already started")
	ErrInvalidMove    = errors.New("invalid move")
	ErrValidation     = errors.New("validation failed")
)

// ErrNoFreeCode 所有房间码都被占用
var ErrNoFreeCode = errors.New("no free room code")

// ErrStopped 命令循环已退出
var ErrStopped = errors.New("broker stopped")
