package server

import (
	"sort"
	"strings"

	"gameroom/activity"
)

const (
	// CodeAlphabet 去掉了容易混淆的 I、O、0、1
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 4
	// 随机尝试次数，超过后从随机偏移顺序扫描整个码空间
	codeAttempts = 64
)

// Registry 房间码到房间的内存映射。只在 Broker 命令循环中访问。
type Registry struct {
	rooms       map[string]*Room
	src         activity.Source
	defaultKind activity.Kind
}

// NewRegistry 创建注册表，新房间的默认玩法为 defaultKind
func NewRegistry(src activity.Source, defaultKind activity.Kind) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		src:         src,
		defaultKind: defaultKind,
	}
}

// NormalizeCode 输入不区分大小写
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create 生成唯一房间码并创建只有房主的房间
func (m *Registry) Create(leaderID PlayerID, name string) (*Room, error) {
	code, err := m.freeCode()
	if err != nil {
		return nil, err
	}
	r := NewRoom(code, &Player{ID: leaderID, Name: name}, m.defaultKind)
	m.rooms[code] = r
	return r, nil
}

func encodeCode(n int) string {
	var b [CodeLength]byte
	for i := CodeLength - 1; i >= 0; i-- {
		b[i] = CodeAlphabet[n%len(CodeAlphabet)]
		n /= len(CodeAlphabet)
	}
	return string(b[:])
}

func codeSpace() int {
	n := 1
	for i := 0; i < CodeLength; i++ {
		n *= len(CodeAlphabet)
	}
	return n
}

func (m *Registry) freeCode() (string, error) {
	total := codeSpace()
	for i := 0; i < codeAttempts; i++ {
		code := encodeCode(m.src.Intn(total))
		if _, taken := m.rooms[code]; !taken {
			return code, nil
		}
	}
	start := m.src.Intn(total)
	for i := 0; i < total; i++ {
		code := encodeCode((start + i) % total)
		if _, taken := m.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrNoFreeCode
}

// Lookup 查找房间，code 会先规范化
func (m *Registry) Lookup(code string) (*Room, bool) {
	r, ok := m.rooms[NormalizeCode(code)]
	return r, ok
}

// Delete 幂等
func (m *Registry) Delete(code string) {
	delete(m.rooms, NormalizeCode(code))
}

func (m *Registry) Len() int { return len(m.rooms) }

// Rooms 按房间码排序的快照
func (m *Registry) Rooms() []*Room {
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
