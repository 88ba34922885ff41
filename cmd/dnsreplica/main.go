package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/meidoworks/nekoq-dnsreplica/config"
	"github.com/meidoworks/nekoq-dnsreplica/internal/service"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

type serveOptions struct {
	configFile string
	role       string
	address    string
	gops       bool
}

func main() {
	root := &cobra.Command{
		Use:   "dnsreplica",
		Short: "Replicated DNS record server",
		Long: `Replicated DNS record server.

Runs as the primary or the secondary of a pair. Records are kept
in a local store, served through a redis cache and replicated to
the peer by publish/subscribe plus a pending update backlog.
`,
		SilenceUsage: true,
	}

	opts := new(serveOptions)
	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Start a primary or secondary server",
		Example: `  dnsreplica serve --config primary.toml
  dnsreplica serve --role secondary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveNode(opts)
		},
		SilenceUsage: true,
	}
	serve.Flags().StringVarP(&opts.configFile, "config", "c", "", "TOML config file, defaults are used when empty")
	serve.Flags().StringVar(&opts.role, "role", "", "override main.role (primary or secondary)")
	serve.Flags().StringVar(&opts.address, "address", "", "override listener.address")
	serve.Flags().BoolVar(&opts.gops, "gops", true, "start the gops diagnostics agent")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(opts *serveOptions) (*config.Config, error) {
	cfg := config.NewDefault()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Load(opts.configFile); err != nil {
			return nil, err
		}
	}
	if opts.role != "" {
		cfg.Main.Role = opts.role
	}
	if opts.address != "" {
		cfg.Listener.Address = opts.address
	}
	return cfg, cfg.Validate()
}

func serveNode(opts *serveOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Main.LogLevel, cfg.Main.LogFile); err != nil {
		return err
	}
	if cfg.Main.Debug {
		logging.Log.SetLevel(logrus.DebugLevel)
	}

	// init gops
	if opts.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return err
		}
		defer agent.Close()
	}

	node, err := service.NewReplicaNode(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := node.Startup(ctx); err != nil {
		_ = node.Stop()
		return err
	}
	logging.Log.Info("[INFO] ", cfg.Role().String(), " server started on ", node.TextService().Addr().String())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	logging.Log.Info("[INFO] Signal received: ", sig, ", shutting down")
	cancel()
	return node.Stop()
}
