package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wardenhq/warden/pkg/api"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/dapi"
	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/master"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/session"
	"github.com/wardenhq/warden/pkg/wire"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wardend",
	Short: "wardend - cluster-sync master daemon",
	Long: `wardend accepts worker connections, serves the master half of the
cluster-sync wire protocol (hello, integrity check/sync, agent-info sync,
DAPI forwarding), and publishes the cluster's file-tree snapshot on a
recurring cycle.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"wardend version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(masterCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Run the cluster-sync master daemon",
	RunE:  runMaster,
}

func init() {
	masterCmd.Flags().String("config", "", "Path to wardend YAML config (defaults built in if omitted)")
	masterCmd.Flags().String("listen", "0.0.0.0:1516", "Address the worker protocol listener binds to")
	masterCmd.Flags().String("http-addr", "127.0.0.1:9090", "Address the health/metrics HTTP server binds to")
}

func runMaster(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	listenAddr, _ := cmd.Flags().GetString("listen")
	httpAddr, _ := cmd.Flags().GetString("http-addr")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	srv := master.New(master.Deps{
		Config:        cfg,
		AgentDB:       noopAgentDB{},
		LocalAPI:      &memoryLocalAPI{},
		Unmerger:      tarUnmerger,
		Merger:        tarMerger,
		LocalDispatch: localDispatch,
	})
	srv.Start()
	log.Info("master state initialized")

	metricsCollector := metrics.NewCollector(srv)
	metricsCollector.Start()
	metrics.SetVersion(Version)
	log.Info("metrics collector started")

	healthServer := api.NewHealthServer(srv, Version)
	go func() {
		if err := healthServer.Start(httpAddr); err != nil {
			log.Errorf("health/metrics server error", err)
		}
	}()
	log.Info(fmt.Sprintf("health/metrics endpoint listening on http://%s", httpAddr))

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	metrics.RegisterComponent("wire_listener", true, "listening on "+listenAddr)
	log.Info(fmt.Sprintf("worker protocol listening on %s", listenAddr))

	acceptErrCh := make(chan error, 1)
	go acceptLoop(listener, srv, acceptErrCh)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-acceptErrCh:
		metrics.UpdateComponent("wire_listener", false, err.Error())
		log.Errorf("listener error", err)
	}

	_ = listener.Close()
	metricsCollector.Stop()
	srv.Stop()
	return nil
}

// acceptLoop accepts inbound worker connections and spawns one
// WorkerSession per connection (§3 "one goroutine per session").
func acceptLoop(listener net.Listener, srv *master.Server, errCh chan<- error) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			errCh <- err
			return
		}

		wireConn := wire.NewConnection(conn)
		go func() {
			sess := session.New(wireConn, srv)
			if err := sess.Run(); err != nil {
				log.Errorf("session ended", err)
			}
		}()
	}
}

// localDispatch executes a command against wardend's own synchronous local
// command table (§4.5 "otherwise -> dispatches locally"). wardend names no
// local commands of its own yet, so every call reports unknown.
func localDispatch(command string, data []byte) ([]byte, error) {
	return nil, fmt.Errorf("unknown local command %q", command)
}

var _ dapi.LocalDispatch = localDispatch
