package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "v0.1.0"

var cf string

var rootCmd = &cobra.Command{
	Use:     "geotiler",
	Short:   "Render map tiles from vector shapes and keep a render queue",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConf(cf)
		return initLog()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cf, "config", "c", "conf.toml", "set config `file`")
	//InitLog 初始化日志
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		FieldsOrder:     []string{"component", "daemon", "tile"},
	})
	// then wrap the log output with it
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
	log.SetLevel(log.InfoLevel)
}

// initConf 初始化配置
func initConf(cfgFile string) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		log.Warnf("config file(%s) not exist", cfgFile)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.SetEnvPrefix("geotiler")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
	err := viper.ReadInConfig()
	if err != nil {
		log.Warnf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	setDefaults()
}

func setDefaults() {
	viper.SetDefault("log.level", "info")

	viper.SetDefault("queue.driver", "sqlite")
	viper.SetDefault("queue.dsn", "queue.db")

	viper.SetDefault("render.tile_size", 256)
	viper.SetDefault("render.format", "gif")
	viper.SetDefault("render.background", "#FFFFFF")
	viper.SetDefault("render.line_thickness", 3)
	viper.SetDefault("render.point_diameter", 5)
	viper.SetDefault("render.debug", false)
	viper.SetDefault("render.cache", true)
	viper.SetDefault("render.cache_dir", "cache")
	viper.SetDefault("render.empty_tile", "")

	viper.SetDefault("source.driver", "geojson")
	viper.SetDefault("source.path", "")
	viper.SetDefault("source.table", "shapes")
	viper.SetDefault("source.cache_size", 1024)

	viper.SetDefault("enqueue.min_zoom", 1)
	viper.SetDefault("enqueue.max_zoom", 18)

	viper.SetDefault("daemon.memory_limit", "1GiB")
	viper.SetDefault("daemon.idle_interval", "300s")
	viper.SetDefault("daemon.busy_interval", "1s")
	viper.SetDefault("daemon.batch_size", 1)
	viper.SetDefault("daemon.render_timeout", "2m")
	viper.SetDefault("daemon.renderer", "local")
	viper.SetDefault("daemon.render_url", "http://localhost:8080/generatetile")

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("metrics.address", "")
}

func initLog() error {
	lvl, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(lvl)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
