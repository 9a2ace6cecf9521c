package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/autodiscovery"
	"github.com/openskies-io/alpacahub/internal/config"
	"github.com/openskies-io/alpacahub/internal/discovery"
	"github.com/openskies-io/alpacahub/internal/logging"
	"github.com/openskies-io/alpacahub/internal/registry"
	"github.com/openskies-io/alpacahub/internal/resolve"
	"github.com/openskies-io/alpacahub/internal/server"
	"github.com/openskies-io/alpacahub/internal/tui"
)

// Command flags
var (
	configPath  string
	listenHost  string
	listenPort  int
	logLevel    string
	scanTimeout int
	saveManual  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: platform config dir)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(tuiCmd)
}

// loadConfig loads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// components bundles everything the gateway and TUI share.
type components struct {
	cfg          *config.Config
	registry     *registry.Registry
	discoverer   *discovery.Discoverer
	orchestrator *autodiscovery.Orchestrator
}

// buildComponents constructs the discovery/registry pipeline from config.
func buildComponents() (*components, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	disc := discovery.NewDiscoverer()
	disc.Port = cfg.Discovery.Port
	disc.Window = cfg.DiscoveryWindow()

	connector := resolve.NewAlpacaConnector(cfg.AlpacaTimeout())
	reg := registry.New(connector)
	resolver := resolve.NewResolver(cfg.Alpaca.SupportedTypes, cfg.AlpacaTimeout())
	orch := autodiscovery.New(disc, resolver, reg)

	return &components{
		cfg:          cfg,
		registry:     reg,
		discoverer:   disc,
		orchestrator: orch,
	}, nil
}

// registerManualServers resolves the configured manual servers. Failures are
// logged and skipped so one unreachable server does not block startup.
func registerManualServers(ctx context.Context, c *components) {
	for _, ms := range c.cfg.ManualServers {
		devices, err := c.orchestrator.AddManualDevice(ctx, ms.Address, ms.Port)
		if err != nil {
			logging.Warn("Skipping configured manual server",
				zap.String("address", ms.Address),
				zap.Int("port", ms.Port),
				zap.Error(err),
			)
			continue
		}
		logging.Info("Registered configured manual server",
			zap.String("address", ms.Address),
			zap.Int("port", ms.Port),
			zap.Int("devices", len(devices)),
		)
	}
}

// serveCmd starts the gateway server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discovery gateway server",
	Long: `Start the alpacahub gateway server.

The server discovers Alpaca servers on the local network, maintains the
device registry, and exposes the REST API, reverse proxy, and websocket
event stream on a single HTTP listener.

Manual servers listed in the config file are resolved and registered at
startup. If mDNS is enabled in the config, the gateway also browses for
_alpaca._tcp services alongside UDP broadcast discovery.`,
	Example: `  # Start with config file defaults (127.0.0.1:8750)
  alpacahub serve

  # Listen on all interfaces with debug logging
  alpacahub serve --host "" --port 8750 --log-level debug

  # Use an alternate config file
  alpacahub serve --config ./alpacahub.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenHost, "host", "", "Listen host (overrides config)")
	serveCmd.Flags().IntVar(&listenPort, "port", 0, "Listen port (overrides config)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := buildComponents()
	if err != nil {
		return err
	}

	host := c.cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host = listenHost
	}
	port := c.cfg.Server.Port
	if listenPort != 0 {
		port = listenPort
	}

	srv, err := server.New(&server.Config{
		Host:     host,
		Port:     port,
		LogLevel: logLevel,
	}, server.Deps{
		Registry:     c.registry,
		Discoverer:   c.discoverer,
		Orchestrator: c.orchestrator,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Register configured manual servers before accepting traffic.
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	registerManualServers(startupCtx, c)
	cancel()

	if c.cfg.Discovery.EnableMDNS {
		browser := discovery.NewMDNSBrowser(c.discoverer)
		go func() {
			if err := browser.Browse(context.Background()); err != nil {
				logging.Warn("mDNS browsing unavailable", zap.Error(err))
			}
		}()
	}

	return srv.Start()
}

// scanCmd performs a one-shot discovery sweep
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Alpaca servers on the network",
	Long: `Scan for Alpaca servers using UDP broadcast discovery.

This command broadcasts an Alpaca discovery request, collects replies for
the scan window, resolves each responding server's configured devices, and
prints the results.`,
	Example: `  # Scan with the default 2-second window
  alpacahub scan

  # Longer window for slow networks
  alpacahub scan --timeout 5`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan window in seconds (overrides config)")
}

func runScan(cmd *cobra.Command, args []string) error {
	c, err := buildComponents()
	if err != nil {
		return err
	}
	defer c.discoverer.Close()

	if scanTimeout > 0 {
		c.discoverer.Window = time.Duration(scanTimeout) * time.Second
	}

	fmt.Printf("Scanning for Alpaca servers (window: %s)...\n\n", c.discoverer.Window)

	result, err := c.orchestrator.DiscoverAndRegister(context.Background())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	servers := c.discoverer.Servers()
	if len(servers) == 0 {
		fmt.Println("No Alpaca servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the Alpaca server is running and on the same subnet")
		fmt.Println("  - Check that UDP port 32227 is not blocked by a firewall")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use 'alpacahub add <address> <port>' for servers on other subnets")
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(servers))
	for i, srv := range servers {
		name := srv.ServerName
		if name == "" {
			name = srv.Key()
		}
		fmt.Printf("%d. %s\n", i+1, name)
		fmt.Printf("   Address: %s:%d\n", srv.Address, srv.Port)
		if srv.Manufacturer != "" {
			fmt.Printf("   Vendor:  %s %s\n", srv.Manufacturer, srv.ManufacturerVersion)
		}
		if srv.Location != "" {
			fmt.Printf("   Location: %s\n", srv.Location)
		}
		fmt.Println()
	}

	devices := c.registry.List()
	fmt.Printf("Resolved %d device(s):\n\n", len(devices))
	for _, d := range devices {
		fmt.Printf("  %-32s %s\n", d.ID, d.Name)
	}

	if len(result.Failures) > 0 {
		fmt.Printf("\n%d server(s) could not be resolved:\n", len(result.Failures))
		for key, ferr := range result.Failures {
			fmt.Printf("  %s: %v\n", key, ferr)
		}
	}

	return nil
}

// addCmd verifies and registers a manual server
var addCmd = &cobra.Command{
	Use:   "add <address> <port>",
	Short: "Add an Alpaca server by address",
	Long: `Verify an Alpaca server at the given address and list its devices.

The server's management API is queried first; unreachable or non-Alpaca
endpoints are rejected. With --save the server is appended to the config
file's manual server list so 'alpacahub serve' registers it at startup.`,
	Example: `  # Verify a server on another subnet
  alpacahub add 10.0.0.5 11111

  # Verify and persist it to the config file
  alpacahub add 10.0.0.5 11111 --save`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().BoolVar(&saveManual, "save", false, "Persist the server to the config file")
}

func runAdd(cmd *cobra.Command, args []string) error {
	address := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid port value: %w", err)
	}

	c, err := buildComponents()
	if err != nil {
		return err
	}
	defer c.discoverer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("Verifying Alpaca server at %s:%d...\n\n", address, port)

	devices, err := c.orchestrator.AddManualDevice(ctx, address, port)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Server verified, %d device(s) found:\n\n", len(devices))
	for _, d := range devices {
		fmt.Printf("  %-32s %s\n", d.ID, d.Name)
	}

	if !saveManual {
		fmt.Println("\nUse --save to persist this server to the config file")
		return nil
	}

	for _, ms := range c.cfg.ManualServers {
		if ms.Address == address && ms.Port == port {
			fmt.Println("\nServer is already in the config file")
			return nil
		}
	}

	c.cfg.ManualServers = append(c.cfg.ManualServers, &config.ManualServer{
		Address: address,
		Port:    port,
	})
	if configPath != "" {
		err = c.cfg.SaveFile(configPath)
	} else {
		err = c.cfg.Save()
	}
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println("\n✓ Server saved to config file")
	return nil
}

// tuiCmd launches the interactive dashboard
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive device dashboard",
	Long: `Launch an interactive terminal dashboard.

The dashboard shows discovered devices live, lets you trigger discovery
sweeps, and connects or disconnects devices without leaving the terminal.`,
	Example: `  # Launch the dashboard
  alpacahub tui

  # Dashboard with an alternate config file
  alpacahub tui --config ./alpacahub.yaml`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	c, err := buildComponents()
	if err != nil {
		return err
	}
	defer c.discoverer.Close()

	model := tui.New(c.registry, c.orchestrator)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}

	return nil
}
