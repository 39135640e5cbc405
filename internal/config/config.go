package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Services ServicesConfig `yaml:"services"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// gin 运行模式：debug/release/test
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	// 驱动：mysql（生产）/ sqlite（本地开发、测试）
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Charset  string `yaml:"charset"`
	// sqlite 文件路径，":memory:" 表示内存库
	Path string `yaml:"path"`
	// gorm 日志级别：silent/error/warn/info
	LogLevel string `yaml:"log_level"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// FeedbackConfig 反馈学习管线参数
type FeedbackConfig struct {
	// 内存队列容量，满了丢最旧的
	QueueCapacity int `yaml:"queue_capacity"`
	// 单次从队列取出的最大条数
	BatchSize int `yaml:"batch_size"`
	// 每轮处理后的休眠
	IdleInterval time.Duration `yaml:"idle_interval"`
	// 本轮出错后的退避
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	// 单个目标训练所需的最少样本数
	MinTrainingSamples int           `yaml:"min_training_samples"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	DispatchQueueSize  int           `yaml:"dispatch_queue_size"`
	// 随机森林/切分用的随机种子
	Seed int64 `yaml:"seed"`
}

// ServicesConfig 下游协作服务地址（接收 /adapt 调整请求）
type ServicesConfig struct {
	RecommendationEngine string        `yaml:"recommendation_engine"`
	StyleProfile         string        `yaml:"style_profile"`
	CombinationEngine    string        `yaml:"combination_engine"`
	Orchestrator         string        `yaml:"orchestrator"`
	AdaptTimeout         time.Duration `yaml:"adapt_timeout"`
}

func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
		d.Charset,
	)
}

func LoadConfig(path string) (*Config, error) {
	// .env 不存在不算错误，只用于给 ${VAR} 提供取值
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default 返回全部取默认值的配置（sqlite 内存库）
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8090
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = ":memory:"
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "warn"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	f := &c.Feedback
	if f.QueueCapacity == 0 {
		f.QueueCapacity = 10000
	}
	if f.BatchSize == 0 {
		f.BatchSize = 10
	}
	if f.IdleInterval == 0 {
		f.IdleInterval = time.Second
	}
	if f.ErrorBackoff == 0 {
		f.ErrorBackoff = 5 * time.Second
	}
	if f.MinTrainingSamples == 0 {
		f.MinTrainingSamples = 5
	}
	if f.ShutdownTimeout == 0 {
		f.ShutdownTimeout = 10 * time.Second
	}
	if f.DispatchQueueSize == 0 {
		f.DispatchQueueSize = 256
	}
	if f.Seed == 0 {
		f.Seed = 42
	}

	if c.Services.AdaptTimeout == 0 {
		c.Services.AdaptTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Feedback.QueueCapacity < 0 || c.Feedback.BatchSize < 0 || c.Feedback.DispatchQueueSize < 0 {
		return fmt.Errorf("feedback 配置不合法: 容量必须为正数")
	}
	if c.Feedback.MinTrainingSamples < 0 {
		return fmt.Errorf("feedback 配置不合法: min_training_samples 不能为负数")
	}
	return nil
}
