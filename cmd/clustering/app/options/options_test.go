package options

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/errors"
)

func parse(t *testing.T, args ...string) *ServerOptions {
	t.Helper()
	o := NewServerOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	for _, f := range o.Flags().FlagSets {
		fs.AddFlagSet(f)
	}
	require.NoError(t, fs.Parse(args))
	return o
}

func TestServerOptions_Request(t *testing.T) {
	o := parse(t,
		"--request.project-id=proj",
		"--request.scope=sessions",
		"--request.nb-clusters=4",
		"--request.merge-clusters",
		"--request.filter=lang=en",
		"--request.filter=channel=web",
		"--clustering.min-items=3",
	)
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())

	cfg, err := o.Config()
	require.NoError(t, err)
	req := cfg.Request
	assert.Equal(t, "proj", req.ProjectID)
	assert.Equal(t, model.ScopeSessions, req.Scope)
	assert.Equal(t, 4, req.NbClusters)
	assert.True(t, req.MergeClusters)
	assert.Equal(t, "nomic-embed-text", req.Model, "未指定模型时沿用 embedding 默认模型")
	assert.Equal(t, model.ModeAgglomerative, req.ClusteringMode)
	assert.Equal(t, model.DefaultLimit, req.Limit)
	assert.Equal(t, map[string]any{"lang": "en", "channel": "web"}, req.Filters)
	assert.Equal(t, 3, cfg.ClusteringOptions.MinItems)
}

func TestServerOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"缺少项目", []string{"--request.scope=messages"}},
		{"非法粒度", []string{"--request.project-id=p", "--request.scope=orgs"}},
		{"非法算法", []string{"--request.project-id=p", "--request.scope=users", "--request.clustering-mode=hdbscan"}},
		{"非法邮箱", []string{"--request.project-id=p", "--request.scope=users", "--request.user-email=nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := parse(t, tt.args...)
			require.NoError(t, o.Complete())
			err := o.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), errors.ErrInvalidRequest.MessageEN)
		})
	}
}

// TestServerOptions_ConfigCopiesRequest 测试配置持有请求副本。
func TestServerOptions_ConfigCopiesRequest(t *testing.T) {
	o := parse(t, "--request.project-id=p", "--request.scope=messages")
	require.NoError(t, o.Complete())
	cfg, err := o.Config()
	require.NoError(t, err)

	cfg.Request.ProjectID = "other"
	assert.Equal(t, "p", o.RequestOptions.ProjectID)
}
