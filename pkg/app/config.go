package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，XDOORIA_STORAGE_DRIVER 对应 storage.driver
const EnvPrefix = "XDOORIA"

var (
	configPath string
	logPath    string
)

// LoadConfig 加载进程配置到 target
// 优先级：命令行 > 环境变量 > 配置文件 > 默认值
// 配置文件路径：--config/-c > XDOORIA_CONFIG > 可执行文件目录下的 config.yaml
func LoadConfig(target any, opts ...config.Option) error {
	execDir, err := GetExecDir()
	if err != nil {
		return fmt.Errorf("failed to get executable directory: %w", err)
	}
	defaultConfig := filepath.Join(execDir, "config.yaml")
	defaultLog := filepath.Join(execDir, "logs", "encounter.log")

	if pflag.Lookup("config") == nil {
		pflag.StringVarP(&configPath, "config", "c", defaultConfig, "path to config file")
	}
	if pflag.Lookup("log.path") == nil {
		pflag.StringVar(&logPath, "log.path", "", "override log output path")
	}
	if !pflag.Parsed() {
		pflag.Parse()
	}

	path := configPath
	if !pflag.CommandLine.Changed("config") {
		if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
			path = env
		}
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file not found at %s: %w", path, err)
	}
	configPath = path

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetDefault("log.output_path", defaultLog)
	if pflag.CommandLine.Changed("log.path") {
		v.Set("log.output_path", logPath)
		v.Set("log.enable_file", true)
	}

	mgr := config.NewManager(append(opts, config.WithViper(v))...)
	if err := mgr.LoadFile(configPath); err != nil {
		return err
	}
	if err := mgr.Unmarshal(target); err != nil {
		return err
	}

	if v.GetBool("log.enable_file") {
		logPath = v.GetString("log.output_path")
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	return nil
}

// GetExecDir 可执行文件所在目录（解析符号链接）
func GetExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return filepath.Dir(execPath), nil
	}
	return filepath.Dir(realPath), nil
}

// GetConfigPath 最终使用的配置文件路径
func GetConfigPath() string {
	return configPath
}
