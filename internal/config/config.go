package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// devJWTSecret 非生产环境缺省签名密钥
const devJWTSecret = "villas-admin-dev-secret"

// defaultYAMLConfig 代码内置默认值
func defaultYAMLConfig() YAMLConfig {
	return YAMLConfig{
		APIServer: APIServerConfig{Port: "5001"},
		Database: DatabaseConfig{
			Driver:  "mongodb",
			Host:    "localhost",
			Port:    27017,
			Name:    "villasDB",
			SSLMode: "disable",
		},
		Redis: RedisConfig{Port: 6379},
		MinIO: MinIOConfig{Bucket: "villas"},
		Auth: AuthConfig{
			TokenTTL:   "24h",
			CookieName: "token",
			BcryptCost: 12,
		},
		CORS:      CORSConfig{Origin: "http://localhost:3000"},
		RateLimit: RateLimitConfig{Window: 15 * time.Minute, Max: 100},
		Log:       LogConfig{Level: "info", Format: "text", Output: "stdout"},
	}
}

// Load 加载配置
//  1. 根据 APP_ENV 加载 .env.{env}（非生产环境）
//  2. 加载 {env}.yaml
//  3. 环境变量覆盖并注入凭据
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", getEnv("NODE_ENV", "dev")))
	loadEnvFiles(env)
	// .env 文件中也可以声明 APP_ENV
	env = parseEnv(getEnv("APP_ENV", getEnv("NODE_ENV", string(env))))

	y, err := loadYAMLConfig(env)
	if err != nil {
		return nil, err
	}

	// 凭据只来自环境变量
	y.Database.Password = getEnv("DB_PASSWORD", "")
	y.Redis.Password = getEnv("REDIS_PASSWORD", "")
	y.MinIO.AccessKey = firstEnv("MINIO_ROOT_USER", "MINIO_ACCESS_KEY")
	y.MinIO.SecretKey = firstEnv("MINIO_ROOT_PASSWORD", "MINIO_SECRET_KEY")
	y.Auth.JWTSecret = getEnv("JWT_SECRET", "")
	y.Auth.AdminEmail = getEnv("ADMIN_EMAIL", "")
	y.Auth.AdminPassword = getEnv("ADMIN_PASSWORD", "")

	// 环境变量覆盖
	if v := getEnv("JWT_EXPIRES_IN", ""); v != "" {
		y.Auth.TokenTTL = v
	}
	if v := getEnv("CORS_ORIGIN", ""); v != "" {
		y.CORS.Origin = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		y.Log.Level = v
	}
	if v := getEnv("LOG_FORMAT", ""); v != "" {
		y.Log.Format = v
	}
	if v := getEnv("REDIS_URL", ""); v != "" {
		y.Redis.URL = v
	}
	if v := getEnv("MINIO_ENDPOINT", ""); v != "" {
		y.MinIO.Endpoint = v
	}
	if v := getEnv("TRUST_PROXY", ""); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TRUST_PROXY: %w", err)
		}
		y.RateLimit.TrustProxy = trust
	}

	// 只给了 DATABASE_URL 时以 URL 前缀为准，YAML driver 不参与判断
	databaseURL := firstEnv("DATABASE_URL", "MONGODB_URI")
	driverHint := getEnv("DATABASE_DRIVER", "")
	if driverHint == "" && databaseURL == "" {
		driverHint = y.Database.Driver
	}
	driver := detectDatabaseDriver(driverHint, databaseURL)
	y.Database.Driver = driver
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(y.Database, y.Database.Password)
	}

	ttl, err := parseTTL(y.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth.token_ttl: %w", err)
	}

	cfg := &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		DatabaseDBName: y.Database.Name,
		RedisURL:       buildRedisURL(y.Redis),
		APIPort:        getEnv("PORT", y.APIServer.Port),
		Auth:           y.Auth,
		TokenTTL:       ttl,
		MinIO:          y.MinIO,
		CORS:           y.CORS,
		RateLimit:      y.RateLimit,
		Log:            y.Log,
		ConfigFilePath: y.loadedFrom,
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finalize 校验配置并填充缺省值
func (c *Config) finalize() error {
	if c.Auth.JWTSecret == "" {
		if c.Hardened() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = devJWTSecret
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "token"
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 12
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.TokenTTL)
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = 15 * time.Minute
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = 100
	}
	if _, err := strconv.Atoi(strings.TrimPrefix(c.APIPort, ":")); err != nil {
		return fmt.Errorf("invalid port %q", c.APIPort)
	}
	return nil
}

// Addr 监听地址
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.APIPort, ":")
}
