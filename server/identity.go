package server

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MaxNicknameLen 昵称最大长度（按字符计）
const MaxNicknameLen = 12

const (
	guestPrefix = "Guest"
	// 每个位数下的尝试次数，用满后加一位
	attemptsPerDigit = 8
	maxSuffixDigits  = MaxNicknameLen - len(guestPrefix)
)

// NameRegistry 进程级的在用昵称集合，握手时分配，会话结束时释放
type NameRegistry struct {
	mu    sync.Mutex
	names map[string]struct{}
	rnd   *rand.Rand
}

func NewNameRegistry(seed int64) *NameRegistry {
	return &NameRegistry{
		names: make(map[string]struct{}),
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Normalize 解析客户端声明的身份：非法标识重新生成，昵称去重并登记为在用
// 总是返回可用的一对值
func (r *NameRegistry) Normalize(claimedID, claimedName string) (id, name string) {
	id, ok := CanonicalID(claimedID)
	if !ok {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	claimedName = strings.TrimSpace(claimedName)
	n := len([]rune(claimedName))
	switch {
	case n == 0 || n > MaxNicknameLen:
		for attempt := 0; ; attempt++ {
			name = guestPrefix + r.suffix(4+attempt/attemptsPerDigit)
			if !r.inUse(name) {
				break
			}
		}
	default:
		name = claimedName
		for digits := 2; r.inUse(name); digits++ {
			name = withSuffix(claimedName, r.suffix(digits))
		}
	}
	r.names[name] = struct{}{}
	return id, name
}

// CanonicalID 把 {…}、urn:uuid:、无连字符等写法统一成标准小写形式
func CanonicalID(raw string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// Release 会话结束时释放昵称
func (r *NameRegistry) Release(name string) {
	r.mu.Lock()
	delete(r.names, name)
	r.mu.Unlock()
}

func (r *NameRegistry) InUse(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inUse(name)
}

func (r *NameRegistry) inUse(name string) bool {
	_, ok := r.names[name]
	return ok
}

// suffix 生成 digits 位随机数字；冲突越多位数越长，保证循环收敛
func (r *NameRegistry) suffix(digits int) string {
	if digits > maxSuffixDigits {
		digits = maxSuffixDigits
	}
	max := 1
	for i := 0; i < digits; i++ {
		max *= 10
	}
	return strconv.Itoa(max/10 + r.rnd.Intn(max-max/10))
}

// withSuffix 截断原名以保证结果不超过长度上限
func withSuffix(base, suffix string) string {
	runes := []rune(base)
	if keep := MaxNicknameLen - len(suffix); len(runes) > keep {
		runes = runes[:keep]
	}
	return string(runes) + suffix
}
