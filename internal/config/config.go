package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	AWS        AWSConfig        `yaml:"aws"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AWSConfig struct {
	Region           string `yaml:"region"`
	ArtifactBucket   string `yaml:"artifact_bucket"`
	ExecutionRoleARN string `yaml:"execution_role_arn"`
}

type PipelineConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval"`
	MaxRuntime         time.Duration `yaml:"max_runtime"`
	EndpointWait       time.Duration `yaml:"endpoint_wait"`
	MinAccuracy        float64       `yaml:"min_accuracy"`
	MinPrecision       float64       `yaml:"min_precision"`
	MinRecall          float64       `yaml:"min_recall"`
	InstanceType       string        `yaml:"instance_type"`
	InstanceCount      int           `yaml:"instance_count"`
	VolumeSizeGB       int           `yaml:"volume_size_gb"`
	DatasetSplitSeed   int64         `yaml:"dataset_split_seed"`
	ServingInstance    string        `yaml:"serving_instance"`
	ServingMinReplicas int           `yaml:"serving_min_replicas"`
}

type MonitoringConfig struct {
	DriftThreshold float64       `yaml:"drift_threshold"`
	RecentWindow   time.Duration `yaml:"recent_window"`
	BaselineWindow time.Duration `yaml:"baseline_window"`
}

type SchedulerConfig struct {
	TickSpec string `yaml:"tick_spec"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}

	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.AWS.ArtifactBucket == "" {
		c.AWS.ArtifactBucket = "privacyguard-ml-artifacts"
	}

	if c.Pipeline.PollInterval == 0 {
		c.Pipeline.PollInterval = 30 * time.Second
	}
	if c.Pipeline.MaxRuntime == 0 {
		c.Pipeline.MaxRuntime = time.Hour
	}
	if c.Pipeline.EndpointWait == 0 {
		c.Pipeline.EndpointWait = 10 * time.Minute
	}
	if c.Pipeline.InstanceType == "" {
		c.Pipeline.InstanceType = "ml.m5.large"
	}
	if c.Pipeline.InstanceCount == 0 {
		c.Pipeline.InstanceCount = 1
	}
	if c.Pipeline.VolumeSizeGB == 0 {
		c.Pipeline.VolumeSizeGB = 30
	}
	if c.Pipeline.DatasetSplitSeed == 0 {
		c.Pipeline.DatasetSplitSeed = 42
	}
	if c.Pipeline.ServingInstance == "" {
		c.Pipeline.ServingInstance = "ml.m5.large"
	}
	if c.Pipeline.ServingMinReplicas == 0 {
		c.Pipeline.ServingMinReplicas = 1
	}

	if c.Monitoring.DriftThreshold == 0 {
		c.Monitoring.DriftThreshold = 0.05
	}
	if c.Monitoring.RecentWindow == 0 {
		c.Monitoring.RecentWindow = 24 * time.Hour
	}
	if c.Monitoring.BaselineWindow == 0 {
		c.Monitoring.BaselineWindow = 7 * 24 * time.Hour
	}

	if c.Scheduler.TickSpec == "" {
		c.Scheduler.TickSpec = "@every 5m"
	}
}
