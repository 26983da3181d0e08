package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gameroom/activity"
	"gameroom/config"
	"gameroom/server"
)

var (
	configPath string
	addrFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "gameroom",
	Short: "Two-player game room server over WebSocket",
	Long: `gameroom hosts short-code rooms in which two participants play
tic-tac-toe, connect four, battleship, chess or hangman over a WebSocket.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP + WebSocket server",
	RunE:  runServe,
}

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List the available game kinds",
	RunE: func(cmd *cobra.Command, args []string) error {
		engines, err := activity.NewDefaultRegistry(activity.NewCryptoSource())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tNAME\tDESCRIPTION")
		for _, info := range engines.Catalog() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Kind, info.Name, info.Description)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "server listen address, e.g. :8080 (overrides config)")
	rootCmd.AddCommand(serveCmd, gamesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServe 组装配置、日志、引擎、Broker 与 HTTP 服务，并交给 Lifecycle 管理
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}

	logger, err := server.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	src := activity.NewCryptoSource()
	engines, err := activity.NewDefaultRegistry(src)
	if err != nil {
		return fmt.Errorf("registering engines: %w", err)
	}
	defaultKind := activity.Kind(cfg.Broker.DefaultActivity)
	if _, ok := engines.Lookup(defaultKind); !ok {
		return fmt.Errorf("broker.default_activity %q is not a registered game", defaultKind)
	}

	broker := server.NewBroker(server.NewRegistry(src, defaultKind), engines, log, cfg.Broker.CommandBuffer)
	gateway := server.NewGateway(broker, cfg.Gateway, cfg.Server.AllowedOrigins, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	mux.HandleFunc("/games", server.HandleGames(engines))
	mux.HandleFunc("/admin/rooms", broker.HandleAdminRooms)
	mux.HandleFunc("/metrics", broker.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	brokerCtx, stopBroker := context.WithCancel(context.Background())
	lc := server.NewLifecycle(logger)
	lc.Add("broker", &server.FuncService{
		StartFn: func() error {
			broker.Run(brokerCtx)
			return nil
		},
		StopFn: stopBroker,
	})
	lc.Add("http", &server.FuncService{
		StartFn: func() error {
			log.Infof("gameroom listening on %s; open http://localhost%v/", cfg.Server.Addr, cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})
	return lc.Run(cmd.Context())
}
