package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odvcencio/confedit/logging"
	"github.com/odvcencio/confedit/server"
)

const envPrefix = "CONFEDIT"

// configDirs are tried in order when the configured directory is missing.
var configDirs = []string{"/config", "/homeassistant"}

// Config is the merged result of flags, environment and the optional
// config file, in that order of precedence.
type Config struct {
	Log   logging.Config `mapstructure:"log"`
	Serve ServeConfig    `mapstructure:"serve"`
	Edit  EditConfig     `mapstructure:"edit"`
}

type ServeConfig struct {
	Addr      string        `mapstructure:"addr"`
	ConfigDir string        `mapstructure:"config-dir"`
	HAURL     string        `mapstructure:"ha-url"`
	StaticDir string        `mapstructure:"static-dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type EditConfig struct {
	Addr      string `mapstructure:"addr"`
	API       string `mapstructure:"api"`
	StateFile string `mapstructure:"state-file"`
	StaticDir string `mapstructure:"static-dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.outputpath", "stderr")

	v.SetDefault("serve.addr", ":8099")
	v.SetDefault("serve.config-dir", "/config")
	v.SetDefault("serve.ha-url", server.DefaultHAURL)
	v.SetDefault("serve.timeout", 10*time.Second)

	v.SetDefault("edit.addr", ":8080")
	v.SetDefault("edit.api", "http://localhost:8099/")
	v.SetDefault("edit.state-file", "confedit-state.yaml")
}

// initConfig reads the config file, if any, and turns on environment
// lookups such as CONFEDIT_SERVE_CONFIG_DIR.
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("confedit")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// The add-on runtime sets CONFIG_DIR; the prefixed name wins.
	if err := v.BindEnv("serve.config-dir", envPrefix+"_SERVE_CONFIG_DIR", "CONFIG_DIR"); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// resolveConfigDir returns dir when it exists, otherwise the first of
// fallbacks that does. With none present dir is returned unchanged.
func resolveConfigDir(dir string, fallbacks ...string) string {
	for _, d := range append([]string{dir}, fallbacks...) {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			return d
		}
	}
	return dir
}

// bindFlag ties a local or persistent flag of cmd to a viper key.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(flag)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
