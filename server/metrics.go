package server

import (
	"sync/atomic"
)

// Metrics 记录 Broker 运行期的关键指标（用于监控与调试）
type Metrics struct {
	CommandsHandled int64 // 处理的命令数
	MovesAccepted   int64 // 被接受的走法
	MovesRejected   int64 // 被引擎拒绝的走法
	RoomsCreated    int64
	RoomsDeleted    int64
	MessagesDropped int64 // 因发送队列满被丢弃的出站消息
	Connections     int64 // 当前连接数
	TotalCommandNs  int64 // 命令累计耗时（纳秒）
}

func (m *Metrics) IncAccepted()     { atomic.AddInt64(&m.MovesAccepted, 1) }
func (m *Metrics) IncRejected()     { atomic.AddInt64(&m.MovesRejected, 1) }
func (m *Metrics) IncRoomsCreated() { atomic.AddInt64(&m.RoomsCreated, 1) }
func (m *Metrics) IncRoomsDeleted() { atomic.AddInt64(&m.RoomsDeleted, 1) }
func (m *Metrics) IncDropped()      { atomic.AddInt64(&m.MessagesDropped, 1) }
func (m *Metrics) AddConnections(delta int64) {
	atomic.AddInt64(&m.Connections, delta)
}
func (m *Metrics) AddCommand(ns int64) {
	atomic.AddInt64(&m.CommandsHandled, 1)
	atomic.AddInt64(&m.TotalCommandNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	cmds := atomic.LoadInt64(&m.CommandsHandled)
	total := atomic.LoadInt64(&m.TotalCommandNs)
	var avgMs float64
	if cmds > 0 {
		avgMs = float64(total) / float64(cmds) / 1e6
	}
	return map[string]any{
		"commands_handled": cmds,
		"moves_accepted":   atomic.LoadInt64(&m.MovesAccepted),
		"moves_rejected":   atomic.LoadInt64(&m.MovesRejected),
		"rooms_created":    atomic.LoadInt64(&m.RoomsCreated),
		"rooms_deleted":    atomic.LoadInt64(&m.RoomsDeleted),
		"messages_dropped": atomic.LoadInt64(&m.MessagesDropped),
		"connections":      atomic.LoadInt64(&m.Connections),
		"avg_command_ms":   avgMs,
	}
}
