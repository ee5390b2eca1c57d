package clustering

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Defaults(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, 5, o.MinItems)
	assert.Equal(t, 1024, o.EmbedBatchSize)
	assert.Equal(t, 12000, o.MaxPromptChars)
	assert.InDelta(t, 0.8, o.MergeThreshold, 1e-9)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr int
	}{
		{name: "最小条目为零", mutate: func(o *Options) { o.MinItems = 0 }, wantErr: 1},
		{name: "阈值越界", mutate: func(o *Options) { o.MergeThreshold = 1.5 }, wantErr: 1},
		{name: "负并发", mutate: func(o *Options) { o.SummarizeConcurrency = -1 }, wantErr: 1},
		{name: "多个错误", mutate: func(o *Options) { o.Eps = 0; o.MaxSamples = 0; o.PCADimensions = -2 }, wantErr: 3},
		{name: "不限并发合法", mutate: func(o *Options) { o.SummarizeConcurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			assert.Len(t, o.Validate(), tt.wantErr)
		})
	}
}

func TestOptions_Flags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--clustering.eps=0.3", "--clustering.summarize-concurrency=8"}))
	assert.InDelta(t, 0.3, o.Eps, 1e-9)
	assert.Equal(t, 8, o.SummarizeConcurrency)
}
