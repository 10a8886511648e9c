package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/netswatch/internal/util"

	"github.com/go-playground/validator"
)

type EtcdConfig struct {
	Endpoint string `validate:"required,url"`
	Username string
	Password string
	// Timeout in seconds for a single request.
	Timeout int `validate:"min=1"`
}

type RabbitConfig struct {
	User     string
	Password string
	Host     string
	Port     string `validate:"omitempty,numeric"`
}

// Enabled reports whether sync requests go through the broker.
func (r RabbitConfig) Enabled() bool {
	return r.Host != ""
}

// URL is the amqp dial string.
func (r RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.User, r.Password, r.Host, r.Port)
}

type S3Config struct {
	Region    string
	Endpoint  string `validate:"omitempty,url"`
	AccessKey string
	SecretKey string
	Bucket    string
}

// Enabled reports whether reconcile reports are archived.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

type AuthConfig struct {
	URL          string `validate:"omitempty,url"`
	MasterAPIKey string
}

// Enabled reports whether any credential can satisfy /api/sync.
func (a AuthConfig) Enabled() bool {
	return a.URL != "" || a.MasterAPIKey != ""
}

type Config struct {
	Debug bool
	Port  string `validate:"required,numeric"`

	Etcd       EtcdConfig
	NodePath   string `validate:"required"`
	SubnetPath string `validate:"required"`
	Layout     string `validate:"oneof=flat nested"`

	LoopSeconds int `validate:"min=1"`
	SyncEnabled bool

	DatabaseURL string
	Rabbit      RabbitConfig
	S3          S3Config
	Auth        AuthConfig
}

// Loop is the pause between two background reconcile passes.
func (c *Config) Loop() time.Duration {
	return time.Duration(c.LoopSeconds) * time.Second
}

func (c *Config) EtcdTimeout() time.Duration {
	return time.Duration(c.Etcd.Timeout) * time.Second
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	util.LoadEnv()
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Debug: util.GetEnvBool("DEBUG", false),
		Port:  util.GetEnvString("PORT", "8080"),
		Etcd: EtcdConfig{
			Endpoint: util.GetEnvString("ETCD_ENDPOINT", "http://localhost:2379"),
			Username: util.GetEnv("ETCD_USERNAME"),
			Password: util.GetEnv("ETCD_PASSWORD"),
			Timeout:  util.GetEnvInt("ETCD_TIMEOUT", 10),
		},
		NodePath:    strings.Trim(util.GetEnvString("NODE_PATH", "netswatch/network/nodes"), "/"),
		SubnetPath:  strings.Trim(util.GetEnvString("SUBNET_PATH", "netswatch/network/subnets"), "/"),
		Layout:      strings.ToLower(util.GetEnvString("TOPOLOGY_LAYOUT", "flat")),
		LoopSeconds: util.GetEnvInt("LOOP", 60),
		SyncEnabled: util.GetEnvBool("SYNC_ENABLED", false),
		DatabaseURL: util.GetEnv("DATABASE_URL"),
		Rabbit: RabbitConfig{
			User:     util.GetEnvString("RABBITMQ_USER", "guest"),
			Password: util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
			Host:     util.GetEnv("RABBITMQ_HOST"),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},
		S3: S3Config{
			Region:    util.GetEnvString("AWS_REGION", "us-east-1"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
			Bucket:    util.GetEnv("AWS_BUCKET"),
		},
		Auth: AuthConfig{
			URL:          strings.TrimRight(util.GetEnv("AUTH_URL"), "/"),
			MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// TopologyPath is the namespace the graph is read from: the subnet
// namespace for the flat layout, the node namespace for the nested one.
func (c *Config) TopologyPath() string {
	if c.Layout == "nested" {
		return c.NodePath
	}
	return c.SubnetPath
}
