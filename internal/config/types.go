// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在环境变量中（YAML 中不存储任何密码）。
//	dev/test 环境从 .env.{env} 文件加载，生产环境由部署平台注入。
//
// 配置路径确定策略：
//  1. --config 命令行参数（显式路径）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：
//     - prod → /etc/villas-admin/
//     - dev/test → ./configs/
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig 统一 YAML 配置文件结构
type YAMLConfig struct {
	APIServer APIServerConfig `yaml:"api_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"` // 可选，host/url 均为空时不启用
	MinIO     MinIOConfig     `yaml:"minio"` // 可选，endpoint 为空时不启用图片上传
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// AuthConfig 认证配置
// 注意：JWTSecret/AdminEmail/AdminPassword 只从环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret     string `yaml:"-"`           // 只从 JWT_SECRET 环境变量读取
	TokenTTL      string `yaml:"token_ttl"`   // 例如 "24h"、"7d"
	CookieName    string `yaml:"cookie_name"` // 会话 cookie 名称
	BcryptCost    int    `yaml:"bcrypt_cost"`
	AdminEmail    string `yaml:"-"` // 只从 ADMIN_EMAIL 环境变量读取
	AdminPassword string `yaml:"-"` // 只从 ADMIN_PASSWORD 环境变量读取
}

// APIServerConfig API Server 配置
type APIServerConfig struct {
	Port string `yaml:"port"` // 监听端口
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres", "sqlite", or "mongodb"（默认 mongodb）
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从环境变量读取（DB_PASSWORD）
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port，如 mongodb://localhost:27017）
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`   // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"` // 直接指定 URL（优先于 host/port/db）
}

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`   // 例如 localhost:9000
	AccessKey string `yaml:"-"`          // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`          // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`    // 是否使用 HTTPS
	Bucket    string `yaml:"bucket"`     // 默认 bucket 名称
	PublicURL string `yaml:"public_url"` // 图片对外访问前缀，为空时由 endpoint 拼接
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Origin string `yaml:"origin"` // 允许的前端来源
}

// RateLimitConfig /api 限流配置（按客户端 IP）
type RateLimitConfig struct {
	Window     time.Duration `yaml:"window"`
	Max        int           `yaml:"max"`
	TrustProxy bool          `yaml:"trust_proxy"` // 部署在反向代理之后时才开启，否则按连接对端计数
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string // "postgres", "sqlite", or "mongodb"
	DatabaseURL    string
	DatabaseDBName string // MongoDB 数据库名称
	RedisURL       string // 为空表示不启用 Redis
	APIPort        string
	Auth           AuthConfig
	TokenTTL       time.Duration
	MinIO          MinIOConfig
	CORS           CORSConfig
	RateLimit      RateLimitConfig
	Log            LogConfig
	ConfigFilePath string // 实际加载的配置文件路径
}

// yamlConfigInternal 内部包装，记录配置文件来源（不参与 YAML 序列化）
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}
