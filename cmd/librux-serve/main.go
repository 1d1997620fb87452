// Command librux-serve is the external collaborator spec.md places CLI
// argument parsing and configuration loading outside of core scope: a
// thin cobra command that loads a librux.Config via viper and runs the
// echo example handler. It contains no core logic.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ernestrc/librux"
)

func main() {
	if err := newServeCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "librux-serve",
		Short: "Run a librux echo server configured from flags, env vars or a config file",
		RunE:  runServe,
	}

	flags := cmd.Flags()
	flags.String("addr", "127.0.0.1:10003", "bind address")
	flags.Int("io-threads", 0, "number of worker reactors (0 = default: ncpu-1)")
	flags.Int("max-conn", 0, "slot table capacity per worker (0 = default: 5000*ncpu)")
	flags.Int("loop-ms", -1, "epoll_wait timeout in milliseconds (-1 = block indefinitely)")
	flags.String("metrics-addr", "", "address to serve /metrics on (empty disables)")
	flags.String("config", "", "path to a config file (yaml/json/toml)")

	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("LIBRUX")
	viper.AutomaticEnv()

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := librux.DefaultConfig(viper.GetString("addr"))
	if n := viper.GetInt("io-threads"); n > 0 {
		cfg.IOThreads = n
	}
	if n := viper.GetInt("max-conn"); n > 0 {
		cfg.MaxConn = n
	}
	if n := viper.GetInt("loop-ms"); n != 0 {
		cfg.LoopMS = n
	}
	cfg.MetricsAddr = viper.GetString("metrics-addr")

	logger, err := librux.NewProductionLogger()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()
	librux.SetLogger(logger)

	reg := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr, reg, logger)
	}

	srv := librux.NewServer[*echoHandler](cfg, echoHandlerFactory{}, logger, reg)
	daemon := librux.NewDaemon[*echoHandler](srv, nil, nil, logger)

	logger.Info("starting librux-serve",
		zap.String("addr", cfg.Addr),
		zap.Int("io_threads", cfg.IOThreads),
		zap.Int("max_conn", cfg.MaxConn),
	)

	return daemon.Run()
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
