package server

import (
	"context"
	"time"
)

type commandKind int

const (
	cmdInput commandKind = iota
	cmdConnect
	cmdDisconnect
	cmdCall
)

// command 投递到命令循环的一条指令
type command struct {
	kind   commandKind
	player PlayerID
	input  InputMessage
	sender Sender
	fn     func()
}

// Run 单线程命令循环：所有房间变更都在这里串行执行，无需加锁。
// ctx 取消后返回；排队中的命令被丢弃。
func (b *Broker) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.log.Infof("broker stopped: rooms=%d", b.rooms.Len())
			return
		case c := <-b.cmds:
			start := time.Now()
			b.dispatch(c)
			b.metrics.AddCommand(time.Since(start).Nanoseconds())
		}
	}
}

func (b *Broker) dispatch(c command) {
	switch c.kind {
	case cmdConnect:
		b.attach(c.player, c.sender)
	case cmdDisconnect:
		b.detach(c.player)
	case cmdInput:
		b.handle(c.player, c.input)
	case cmdCall:
		c.fn()
	}
}

// enqueue 循环已退出时返回 false
func (b *Broker) enqueue(c command) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.cmds <- c:
		return true
	case <-b.done:
		return false
	}
}

// Connect 登记一条新连接；循环会先向其发送 welcome
func (b *Broker) Connect(id PlayerID, s Sender) bool {
	return b.enqueue(command{kind: cmdConnect, player: id, sender: s})
}

// Disconnect 连接关闭，等同于离开所在房间
func (b *Broker) Disconnect(id PlayerID) {
	b.enqueue(command{kind: cmdDisconnect, player: id})
}

// Submit 读泵调用：把一条入站消息交给命令循环
func (b *Broker) Submit(id PlayerID, im InputMessage) bool {
	return b.enqueue(command{kind: cmdInput, player: id, input: im})
}

// Do 在命令循环中执行 fn 并等待其完成，用于管理接口读取房间快照
func (b *Broker) Do(ctx context.Context, fn func(rooms *Registry)) error {
	select {
	case <-b.done:
		return ErrStopped
	default:
	}
	finished := make(chan struct{})
	c := command{kind: cmdCall, fn: func() {
		fn(b.rooms)
		close(finished)
	}}
	select {
	case b.cmds <- c:
	case <-b.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-b.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
