package bootstrap

import (
	"context"
	"testing"

	"github.com/OFFIS-RIT/netswatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		Port: "8080",
		Etcd: config.EtcdConfig{
			Endpoint: "http://localhost:2379",
			Timeout:  10,
		},
		NodePath:    "netswatch/network/nodes",
		SubnetPath:  "netswatch/network/subnets",
		Layout:      "flat",
		LoopSeconds: 60,
	}
}

func TestBuild_WithoutOptionalBackends(t *testing.T) {
	d, err := Build(context.Background(), baseConfig(), nil)
	require.NoError(t, err)
	defer d.Close()

	assert.NotNil(t, d.Store)
	assert.NotNil(t, d.Graph)
	assert.NotNil(t, d.Reconciler)
	assert.NotNil(t, d.Syncer)
	assert.NotNil(t, d.Metrics)
	assert.Nil(t, d.Channel)
}

func TestBuild_RejectsUnknownLayout(t *testing.T) {
	cfg := baseConfig()
	cfg.Layout = "ring"

	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}
