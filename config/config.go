package config

import (
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Data       DataConfig       `yaml:"data"`
	Generation GenerationConfig `yaml:"generation"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

type LLMConfig struct {
	Provider  string `yaml:"provider"` // openai, eino
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type DataConfig struct {
	Dir string `yaml:"dir"`
}

// GenerationConfig 课程生成流水线配置
// 大纲阶段在请求周期内同步执行，超时必须短于单元详情阶段
type GenerationConfig struct {
	OutlineTimeout  time.Duration `yaml:"outline_timeout"`
	DetailTimeout   time.Duration `yaml:"detail_timeout"`
	Workers         int           `yaml:"workers"`
	TranscriptLimit int64         `yaml:"transcript_limit"` // 字幕抓取字节上限
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func loadConfig() *Config {
	// 支持 .env 文件，缺失时忽略
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			APIURL:    "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 4096,
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Generation: GenerationConfig{
			OutlineTimeout:  60 * time.Second,
			DetailTimeout:   180 * time.Second,
			Workers:         2,
			TranscriptLimit: 256 * 1024,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// 环境变量优先级高于配置文件
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}

	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	// 数据目录环境变量
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}

	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}

	// 生成阶段超时环境变量
	if t := os.Getenv("OUTLINE_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			config.Generation.OutlineTimeout = d
		}
	}
	if t := os.Getenv("DETAIL_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			config.Generation.DetailTimeout = d
		}
	}

	return config
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func UpdateConfig(newCfg *Config) {
	cfg = newCfg
}
