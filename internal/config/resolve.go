package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configDir 由外部通过 SetConfigDir 指定，优先级最高
var configDir string

// envSearchDirs .env 文件搜索目录（仅 dev/test 使用，生产环境由部署平台注入）
var envSearchDirs = []string{
	".",
	"..",
}

// SetConfigDir 设置配置文件目录（用于 --config 命令行参数）
// 调用后 Load 将优先从该目录加载配置文件
func SetConfigDir(dir string) {
	configDir = dir
}

// configPathsForEnv 根据环境返回配置文件搜索路径
func configPathsForEnv(env Environment) []string {
	if env == EnvProduction {
		return []string{"/etc/villas-admin", "configs"}
	}
	// dev/test: 项目根目录的 configs/
	return []string{"configs", "../configs", "../../configs"}
}

// effectiveConfigPaths 返回实际搜索路径
//
// 优先级：
//  1. --config 命令行参数（SetConfigDir）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径
func effectiveConfigPaths(env Environment) []string {
	if configDir != "" {
		return []string{configDir}
	}
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return []string{dir}
	}
	return configPathsForEnv(env)
}

// findConfigFile 在搜索路径中查找第一个存在的 {env}.yaml
func findConfigFile(env Environment) string {
	name := fmt.Sprintf("%s.yaml", env)
	for _, base := range effectiveConfigPaths(env) {
		p := filepath.Join(base, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadYAMLConfig 在默认值之上叠加 {env}.yaml
func loadYAMLConfig(env Environment) (*yamlConfigInternal, error) {
	cfg := &yamlConfigInternal{YAMLConfig: defaultYAMLConfig()}

	path := findConfigFile(env)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg.YAMLConfig); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.loadedFrom = path
	return cfg, nil
}

// loadEnvFiles 加载 .env 文件
//
// 生产环境不搜索 .env 文件（密码由部署平台注入）。
// dev/test 环境加载 .env.{env} 文件，再回退到 .env。
func loadEnvFiles(env Environment) {
	// 生产环境：不搜索 .env 文件
	if env == EnvProduction {
		return
	}

	// godotenv.Load 不覆盖已有环境变量，优先级低于 shell 环境变量
	for _, name := range []string{fmt.Sprintf(".env.%s", env), ".env"} {
		for _, dir := range envSearchDirs {
			if err := godotenv.Load(filepath.Join(dir, name)); err == nil {
				return
			}
		}
	}
}
