package biz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/infra/pool"
	"github.com/kart-io/sentinel-cluster/pkg/llm"
)

// fakeChat 按系统提示区分浓缩、描述和标题调用。
type fakeChat struct {
	mu sync.Mutex

	failCondense    bool
	failDescription bool
	// sharedTitle 非空时所有簇得到相同标题。
	sharedTitle string

	condenseCalls    int
	descriptionCalls int
	titleCalls       int
}

var _ llm.ChatProvider = (*fakeChat)(nil)

func (f *fakeChat) Generate(_ context.Context, prompt, systemPrompt string, _ ...llm.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case systemPrompt == condenseSystemPrompt:
		f.condenseCalls++
		if f.failCondense {
			return "", fmt.Errorf("chat unavailable")
		}
		return "Sure! " + topicOf(prompt), nil
	case strings.HasPrefix(prompt, "Description of a group:"):
		f.titleCalls++
		if f.sharedTitle != "" {
			return f.sharedTitle, nil
		}
		if strings.Contains(prompt, "refund") {
			return "Title: Refund requests", nil
		}
		return "Title: Password resets", nil
	default:
		f.descriptionCalls++
		if f.failDescription {
			return "", fmt.Errorf("chat unavailable")
		}
		if strings.Contains(prompt, "refund") {
			return "Users ask for a refund of their order.", nil
		}
		return "Users cannot reset their password.", nil
	}
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	var system, prompt string
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			system = m.Content
		} else {
			prompt = m.Content
		}
	}
	return f.Generate(ctx, prompt, system, opts...)
}

func (f *fakeChat) Name() string { return "fake" }

func topicOf(text string) string {
	switch {
	case strings.Contains(text, "refund"):
		return "wants a refund"
	case strings.Contains(text, "password"):
		return "cannot reset password"
	}
	return "other question"
}

// fakeEmbedder 按主题返回固定方向的向量。
type fakeEmbedder struct {
	calls atomic.Int64
	texts atomic.Int64
	fail  bool
}

var _ llm.EmbeddingProvider = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	f.texts.Add(int64(len(texts)))
	if f.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		switch {
		case strings.Contains(t, "refund"):
			out[i] = []float32{1, 0, 0}
		case strings.Contains(t, "password"):
			out[i] = []float32{0, 1, 0}
		default:
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embedding" }
func (f *fakeEmbedder) Name() string  { return "fake" }

// recordingNotifier 记录收到的通知。
type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	delay chan struct{}
}

func (n *recordingNotifier) Notify(_ context.Context, email, subject, _ string) error {
	n.mu.Lock()
	n.sent = append(n.sent, email+"|"+subject)
	n.mu.Unlock()
	if n.delay != nil {
		close(n.delay)
	}
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool("condense-test", pool.CondensePool, &pool.Config{
		Capacity:       4,
		ExpiryDuration: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

// messages 构造 refunds 条退款消息和 passwords 条密码消息。
func messages(projectID string, refunds, passwords int) []model.Item {
	items := make([]model.Item, 0, refunds+passwords)
	for i := 0; i < refunds; i++ {
		items = append(items, &model.Message{
			Owner:     model.Owner{Project: projectID},
			ID:        fmt.Sprintf("r%02d", i),
			SessionID: fmt.Sprintf("s-r%02d", i),
			Role:      "user",
			Content:   fmt.Sprintf("I want a refund for order %d", i),
		})
	}
	for i := 0; i < passwords; i++ {
		items = append(items, &model.Message{
			Owner:     model.Owner{Project: projectID},
			ID:        fmt.Sprintf("p%02d", i),
			SessionID: fmt.Sprintf("s-p%02d", i),
			Role:      "user",
			Content:   fmt.Sprintf("my password reset link %d does not work", i),
			Previous:  []model.Turn{{Role: "assistant", Content: "How can I help?"}},
		})
	}
	return items
}
