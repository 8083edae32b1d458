package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"watch-reward-system/config"
	"watch-reward-system/handlers"
	"watch-reward-system/middleware"
	"watch-reward-system/services"
	"watch-reward-system/utils"
	"watch-reward-system/workers"
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides LISTEN_ADDR)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "Run schema migration before serving")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveAddr    string
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the watch reward API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.ListenAddr = serveAddr
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if serveMigrate {
		if err := Migrate(db); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var media utils.MediaResolver = utils.PassthroughResolver{}
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("failed to initialize R2 client: %w", err)
		}
		media = r2
	}

	clock := clockwork.NewRealClock()
	ledger := services.NewLedgerService(db, policy, clock)
	catalog := services.NewCatalogService(db, policy, clock, media)

	var auth middleware.TokenValidator
	if cfg.Auth.BaseURL != "" {
		auth = services.NewAuthServiceClient(cfg.Auth.BaseURL, cfg.Auth.Token)
	}

	if _, err := catalog.StartPublishScheduler(ctx); err != nil {
		return fmt.Errorf("failed to start publish scheduler: %w", err)
	}

	if cfg.Sync.BaseURL != "" {
		workers.NewVideoSyncWorker(db, cfg.Sync, cfg.ServiceToken).Start(ctx)
	}

	app := handlers.NewApp(handlers.AppDeps{
		Config:  cfg,
		Ledger:  ledger,
		Catalog: catalog,
		Stream:  services.NewBalanceStream(ledger),
		Auth:    auth,
	})

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Printf("Server error: %v", err)
			stop()
		}
	}()

	log.Printf("✅ Server running on %s", cfg.ListenAddr)
	log.Printf("✅ Eligibility window %s (%s)", policy.Length, policy.Location)
	log.Printf("✅ CORS configured for origins: %v", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}
