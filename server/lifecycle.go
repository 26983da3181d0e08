package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service 长期运行的组件。Start 阻塞直到被 Stop 或出错。
type Service interface {
	Start() error
	Stop()
}

// FuncService 把一对 start/stop 函数适配为 Service
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

func (f *FuncService) Start() error { return f.StartFn() }
func (f *FuncService) Stop()        { f.StopFn() }

type namedService struct {
	name    string
	service Service
}

// Lifecycle 按添加顺序启动服务，按相反顺序停止
type Lifecycle struct {
	log      *zap.Logger
	services []namedService
	signals  []os.Signal
}

func NewLifecycle(log *zap.Logger) *Lifecycle {
	return &Lifecycle{log: log, signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM}}
}

func (l *Lifecycle) Add(name string, svc Service) {
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run 启动全部服务，直到收到信号、某个服务出错或 ctx 取消；返回前停止所有服务。
// 返回第一个导致退出的服务错误。
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(l.services))
	for _, ns := range l.services {
		go func() {
			l.log.Info("starting service", zap.String("service", ns.name))
			if err := ns.service.Start(); err != nil {
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, l.signals...)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		l.log.Error("service error, shutting down", zap.Error(runErr))
	case <-ctx.Done():
		l.log.Info("context cancelled, shutting down")
	}

	for i := len(l.services) - 1; i >= 0; i-- {
		ns := l.services[i]
		ns.service.Stop()
		l.log.Info("service stopped", zap.String("service", ns.name))
	}
	l.log.Info("shutdown complete", zap.Duration("uptime", time.Since(start)))
	return runErr
}
