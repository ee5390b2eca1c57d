// Package id 提供基于 ULID 的标识生成。
// 聚类任务、簇和向量记录都使用 ULID 作为主键，按生成时间有序。
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator 定义 ID 生成器接口。
type Generator interface {
	Generate() string
}

// ULIDGenerator 使用单调熵源生成 ULID，同一毫秒内生成的 ID 也保持有序。
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator 创建 ULID 生成器，使用 crypto/rand 作为随机源。
func NewULIDGenerator() *ULIDGenerator {
	return NewULIDGeneratorWithReader(rand.Reader)
}

// NewULIDGeneratorWithReader 使用指定随机源创建生成器，测试中可注入确定性随机源。
func NewULIDGeneratorWithReader(r io.Reader) *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(r, 0)}
}

// Generate 实现 Generator 接口。
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// GenerateN 批量生成 n 个 ID。
func (g *ULIDGenerator) GenerateN(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = g.Generate()
	}
	return ids
}

var defaultGenerator = NewULIDGenerator()

// New 使用默认生成器生成一个新 ID。
func New() string {
	return defaultGenerator.Generate()
}

// IsValid 检查字符串是否为合法的 ULID。
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
