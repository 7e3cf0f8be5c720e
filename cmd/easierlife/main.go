package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/saltyorg/easierlife/internal/activity"
	"github.com/saltyorg/easierlife/internal/auth"
	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/database"
	"github.com/saltyorg/easierlife/internal/events"
	"github.com/saltyorg/easierlife/internal/jellyfin"
	"github.com/saltyorg/easierlife/internal/logging"
	"github.com/saltyorg/easierlife/internal/metadata"
	"github.com/saltyorg/easierlife/internal/scanhook"
	"github.com/saltyorg/easierlife/internal/scheduler"
	"github.com/saltyorg/easierlife/internal/seasons"
	"github.com/saltyorg/easierlife/internal/web"
	"github.com/saltyorg/easierlife/internal/web/handlers"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultDBPath = "./easierlife.db"

// CLI flags
var (
	port        int
	bind        string
	allowSubnet string
	dbPath      string
	verbosity   int

	jellyfinURL    string
	jellyfinAPIKey string

	// Timeout flags (advanced)
	httpTimeout    time.Duration
	websocketPing  time.Duration
	refreshTimeout time.Duration
)

// service is a long-running component started by serve
type service interface {
	Name() string
	Run(ctx context.Context) error
}

type serverService struct {
	*web.Server
}

func (serverService) Name() string { return "http" }

func (s serverService) Run(ctx context.Context) error { return s.Start(ctx) }

func main() {
	rootCmd := &cobra.Command{
		Use:   "easierlife",
		Short: "Jellyfin Easier Life - metadata replacement and season combining for Jellyfin",
		Long: `Jellyfin Easier Life forces full metadata replacement on Jellyfin library refreshes
and merges every season of a series into a single season.`,
		SilenceUsage: true,
		RunE:         serve,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&dbPath, "db", "d", defaultDBPath, "SQLite database path (or set DB_PATH env var)")
	pf.StringVar(&jellyfinURL, "jellyfin-url", "", "Jellyfin server URL (or set JELLYFIN_URL env var)")
	pf.StringVar(&jellyfinAPIKey, "jellyfin-api-key", "", "Jellyfin API key (or set JELLYFIN_API_KEY env var)")
	pf.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	pf.DurationVar(&httpTimeout, "http-timeout", 30*time.Second, "Timeout for HTTP requests to Jellyfin")
	pf.DurationVar(&websocketPing, "websocket-ping", 30*time.Second, "Interval between Jellyfin WebSocket keepalive messages")
	pf.DurationVar(&refreshTimeout, "refresh-timeout", 5*time.Minute, "Timeout for a single metadata replacement triggered by the scan hook")

	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (required, or set PORT env var)")
	rootCmd.Flags().StringVarP(&bind, "bind", "b", "", "IP address to bind to (e.g., 127.0.0.1, 0.0.0.0)")
	rootCmd.Flags().StringVarP(&allowSubnet, "allow-subnet", "a", "", "CIDR subnet allowed to connect (e.g., 192.168.1.0/24)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("easierlife %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})
	rootCmd.AddCommand(replaceMetadataCmd(), combineSeasonsCmd(), librariesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyEnv fills unset flags from the environment
func applyEnv() error {
	if port == 0 {
		if envPort := os.Getenv("PORT"); envPort != "" {
			if _, err := fmt.Sscanf(envPort, "%d", &port); err != nil {
				return fmt.Errorf("invalid PORT environment variable %q: %w", envPort, err)
			}
		}
	}
	if dbPath == defaultDBPath {
		if envDB := os.Getenv("DB_PATH"); envDB != "" {
			dbPath = envDB
		}
	}
	if jellyfinURL == "" {
		jellyfinURL = os.Getenv("JELLYFIN_URL")
	}
	if jellyfinAPIKey == "" {
		jellyfinAPIKey = os.Getenv("JELLYFIN_API_KEY")
	}

	if jellyfinURL == "" {
		return fmt.Errorf("--jellyfin-url flag or JELLYFIN_URL environment variable is required")
	}
	if jellyfinAPIKey == "" {
		return fmt.Errorf("--jellyfin-api-key flag or JELLYFIN_API_KEY environment variable is required")
	}

	config.SetGlobalTimeouts(&config.TimeoutConfig{
		HTTPClient:    httpTimeout,
		WebSocketPing: websocketPing,
		Refresh:       refreshTimeout,
	})
	return nil
}

func levelFor(verbosity int) string {
	switch verbosity {
	case 0:
		return "info"
	case 1:
		return "debug"
	default:
		return "trace"
	}
}

// openDatabase opens and migrates the database, then configures logging from its settings
func openDatabase() (*database.Manager, error) {
	db, err := database.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	if err := db.InitializeDefaults(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to write default settings: %w", err)
	}

	logging.Apply(levelFor(verbosity), config.NewLoader(db), logging.FilePathForDB(dbPath))
	return db, nil
}

func serve(cmd *cobra.Command, args []string) error {
	if err := applyEnv(); err != nil {
		return err
	}
	if port == 0 {
		return fmt.Errorf("--port flag or PORT environment variable is required")
	}
	if bind != "" {
		if ip := net.ParseIP(bind); ip == nil {
			return fmt.Errorf("invalid bind address: %s", bind)
		}
	}
	var allowedNet *net.IPNet
	if allowSubnet != "" {
		_, parsedNet, err := net.ParseCIDR(allowSubnet)
		if err != nil {
			return fmt.Errorf("invalid allow-subnet CIDR: %s", allowSubnet)
		}
		allowedNet = parsedNet
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if (bind == "" || bind == "0.0.0.0" || bind == "::") && allowSubnet == "" {
		log.Warn().Msg("Server is accessible from all interfaces without subnet restrictions. Consider using --bind or --allow-subnet for security.")
	}

	log.Info().
		Str("version", version).
		Str("plugin_id", handlers.PluginID).
		Int("port", port).
		Str("bind", bind).
		Str("allow_subnet", allowSubnet).
		Str("database", dbPath).
		Str("jellyfin", jellyfinURL).
		Msg("Starting Jellyfin Easier Life")

	key, created, err := auth.EnsureAPIKey(db)
	if err != nil {
		return fmt.Errorf("failed to prepare API key: %w", err)
	}
	if created {
		log.Warn().Str("api_key", key).Msg("Generated local API key; it is shown only once")
	}

	client := jellyfin.New(jellyfinURL, jellyfinAPIKey)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if info, err := client.SystemInfo(ctx); err != nil {
		log.Warn().Err(err).Msg("Jellyfin is not reachable yet; continuing")
	} else {
		log.Info().Str("server", info.ServerName).Str("version", info.Version).Msg("Connected to Jellyfin")
	}

	bus := events.NewBus()
	defer bus.Close()

	tracker := activity.New()
	replacer := metadata.NewReplacer(client, client, tracker)
	combiner := seasons.NewCombiner(client, db)
	loader := config.NewLoader(db)

	server := web.NewServer(web.Config{Port: port, Bind: bind, AllowedNet: allowedNet}, handlers.Deps{
		Settings:  db,
		Items:     client,
		Libraries: client,
		Replacer:  replacer,
		Combiner:  combiner,
		Tracker:   tracker,
		Journal:   db,
		Events:    bus,
		Version:   version,
	}, auth.NewAuthenticator(db, client))

	services := []service{
		serverService{server},
		jellyfin.NewSocketWatcher(client, bus),
		scanhook.New(bus, loader, client, replacer),
		scheduler.New(db, client, replacer, combiner, db),
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		group.Go(func() error {
			log.Debug().Str("service", svc.Name()).Msg("Starting service")
			if err := svc.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", svc.Name(), err)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("Service failed")
		return err
	}

	log.Info().Msg("Jellyfin Easier Life stopped")
	return nil
}
