package activity

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// Source 随机数来源（房间码、猜词、自动布阵）。实现必须并发安全。
type Source interface {
	// Intn 返回 [0, n) 区间的随机整数，n 必须 > 0
	Intn(n int) int
}

type cryptoSource struct{}

// NewCryptoSource 基于 crypto/rand 的随机源，生产环境使用
func NewCryptoSource() Source {
	return cryptoSource{}
}

func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("activity: Intn called with n <= 0")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("activity: crypto/rand failure: " + err.Error())
	}
	return int(v.Int64())
}

// seededSource 可复现的伪随机源，测试与调试用
type seededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

func NewSeededSource(seed uint64) Source {
	return &seededSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
