package biz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-cluster/internal/clustering/metrics"
	"github.com/kart-io/sentinel-cluster/internal/model"
)

func TestClusterSummarizer_Sample(t *testing.T) {
	s := NewClusterSummarizer(&fakeChat{}, &SummarizerConfig{MaxSamples: 15, Seed: 42}, metrics.New())

	big := make([]string, 40)
	for i := range big {
		big[i] = fmt.Sprintf("text %d", i)
	}
	small := []string{"a", "b"}
	texts := map[string][]string{"big": big, "small": small, "empty": nil}

	clusters := []*model.Cluster{{ID: "big"}, {ID: "small"}, {ID: "empty"}}
	samples := s.Sample(clusters, func(c *model.Cluster) []string { return texts[c.ID] })
	require.Len(t, samples, 3)

	assert.Len(t, samples[0], 15)
	uniq := map[string]bool{}
	for _, txt := range samples[0] {
		assert.Contains(t, big, txt)
		uniq[txt] = true
	}
	assert.Len(t, uniq, 15, "抽样不放回")

	assert.Equal(t, small, samples[1])
	assert.Empty(t, samples[2])
}

// TestClusterSummarizer_SampleSeeded 测试相同种子得到相同样本。
func TestClusterSummarizer_SampleSeeded(t *testing.T) {
	all := make([]string, 30)
	for i := range all {
		all[i] = fmt.Sprint(i)
	}
	sample := func() []string {
		s := NewClusterSummarizer(&fakeChat{}, &SummarizerConfig{MaxSamples: 5, Seed: 9}, metrics.New())
		return s.Sample([]*model.Cluster{{ID: "c"}}, func(*model.Cluster) []string { return all })[0]
	}
	assert.Equal(t, sample(), sample())
}

func TestClusterSummarizer_Describe(t *testing.T) {
	chat := &fakeChat{}
	m := metrics.New()
	s := NewClusterSummarizer(chat, &SummarizerConfig{MaxSamples: 15, Concurrency: 2, MaxPromptChars: 12000, Seed: 1}, m)

	run := &model.Clustering{Scope: model.ScopeMessages, Instruction: "user intent", OutputFormat: model.FormatTitleDescription}
	clusters := []*model.Cluster{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}}
	samples := [][]string{{"wants a refund"}, {"cannot reset password"}, nil}

	var mu sync.Mutex
	var ticks []int
	err := s.Describe(context.Background(), run, clusters, samples, func(done int) {
		mu.Lock()
		ticks = append(ticks, done)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, "Refund requests", clusters[0].Name)
	assert.Equal(t, "Users ask for a refund of their order.", clusters[0].Description)
	assert.Equal(t, "Password resets", clusters[1].Name)
	assert.Equal(t, NoTitle, clusters[2].Name, "没有样本时使用占位文本")
	assert.Equal(t, NoDescription, clusters[2].Description)

	sort.Ints(ticks)
	assert.Equal(t, []int{1, 2, 3}, ticks)
	assert.Equal(t, 2, chat.descriptionCalls)
	assert.Equal(t, 2, chat.titleCalls)
	assert.Equal(t, uint64(4), m.GetStats().LLMCalls)
}

func TestClusterSummarizer_DescribeFailure(t *testing.T) {
	chat := &fakeChat{failDescription: true}
	m := metrics.New()
	s := NewClusterSummarizer(chat, nil, m)

	clusters := []*model.Cluster{{ID: "c1"}}
	err := s.Describe(context.Background(), &model.Clustering{}, clusters, [][]string{{"x"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, NoDescription, clusters[0].Description)
	assert.Equal(t, NoTitle, clusters[0].Name)
	assert.Equal(t, uint64(1), m.GetStats().LLMErrors)
}

func TestDescriptionPrompt(t *testing.T) {
	tests := []struct {
		format model.OutputFormat
		want   string
	}{
		{model.FormatTitleDescription, "common user intent"},
		{model.FormatUserPersona, "user persona"},
		{model.FormatQuestionAndAnswer, "Question: ..."},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			p := descriptionPrompt(tt.format, model.ScopeSessions, "user intent", []string{" one ", "two"})
			assert.Contains(t, p, "2 samples of sessions")
			assert.Contains(t, p, "1. one\n2. two\n")
			assert.Contains(t, p, tt.want)
		})
	}
}
