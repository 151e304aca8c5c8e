package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/pccr10001/mbpd/internal/api"
	"github.com/pccr10001/mbpd/internal/auth"
	"github.com/pccr10001/mbpd/internal/config"
	"github.com/pccr10001/mbpd/internal/i18n"
	"github.com/pccr10001/mbpd/internal/mcp"
	"github.com/pccr10001/mbpd/internal/modem"
	"github.com/pccr10001/mbpd/internal/providers"
	"github.com/pccr10001/mbpd/internal/repository"
	"github.com/pccr10001/mbpd/internal/worker"
	"github.com/pccr10001/mbpd/pkg/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const version = "0.1.0"

func main() {
	configPath := pflag.String("config", "", "path to config file (default ./config.yaml)")
	dump := pflag.Bool("dump", false, "print every provider and exit")
	lookup := pflag.String("lookup", "", "resolve an MCC/MNC and exit")
	issueToken := pflag.String("issue-token", "", "print an API token for `subject` and exit")
	pflag.String("country-codes", "", "path to iso_3166.xml")
	pflag.String("service-providers", "", "path to serviceproviders.xml")
	pflag.Parse()

	if err := config.BindFlags(viper.GetViper(), pflag.CommandLine); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	// 1. Load Config
	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	// 2. Init Logger
	logger.InitLogger(cfg.Log.Level)

	if *issueToken != "" {
		token, err := auth.GenerateToken(cfg.Auth.Secret, *issueToken, cfg.Auth.TokenTTL)
		if err != nil {
			logger.Log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	// 3. Load provider database
	catalog := i18n.NewCatalog(cfg.Providers.LocaleDir, i18n.ISO3166Domain, cfg.Providers.Language)
	reload := func() (*providers.Database, error) {
		return providers.Open(providers.Options{
			CountryCodes:     cfg.Providers.CountryCodes,
			ServiceProviders: cfg.Providers.ServiceProviders,
			Translator:       catalog,
		})
	}
	db, err := reload()
	if err != nil {
		logger.Log.Warnf("Provider database loaded with errors: %v", err)
	}

	if *dump {
		db.Dump(os.Stdout)
		db.Close()
		return
	}
	if *lookup != "" {
		os.Exit(runLookup(db, *lookup))
	}

	logger.Log.Info("Starting provider database service...")

	// 4. Snapshot database
	snapshots := initSnapshots(cfg.Database)
	if snapshots != nil {
		if err := snapshots.Replace(db.Countries()); err != nil {
			logger.Log.Errorf("Failed to write snapshot: %v", err)
		}
	}

	// 5. Init Router
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	store := api.NewStore(db)
	opts := api.RouterOptions{Config: cfg, Reload: reload, Snapshots: snapshots}
	if cfg.MCP.Enabled {
		opts.MCP = mcp.NewServer(store, version).HTTPHandler()
	}
	// 6. Start Modem Watcher
	if cfg.Serial.ScanInterval > 0 {
		wm := worker.NewManager(func() worker.Detector {
			return modem.NewDetector(store.Get(), cfg.Serial.BaudRate, cfg.Serial.CommandTimeout, cfg.Serial.ExcludePorts)
		}, cfg.Serial.ScanInterval)
		wm.Start()
		defer wm.Stop()
		opts.Watcher = wm
	}
	if cfg.Auth.Secret == "" {
		logger.Log.Warn("auth.secret is empty; modem and reload routes are disabled")
	}
	api.SetupRouter(r, store, opts)

	// 7. Start Server
	port := cfg.Server.Port
	logger.Log.Infof("Server listening on %s", port)
	if err := r.Run(port); err != nil {
		logger.Log.Fatalf("Server failed to start: %v", err)
	}
}

func runLookup(db *providers.Database, code string) int {
	mcc, mnc, ok := providers.SplitMCCMNC(code)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: MCC/MNC must be 5 or 6 digits\n", code)
		return 2
	}
	p := db.LookupMCCMNC(code)
	if p == nil {
		fmt.Fprintf(os.Stderr, "No provider for MCC %s MNC %s\n", mcc, mnc)
		return 1
	}
	fmt.Printf("%s\n", p.Name)
	for _, m := range p.MethodsOf(providers.FamilyGSM) {
		fmt.Printf("  APN: %s (%s)\n", m.APN, m.Name)
	}
	for _, m := range p.MethodsOf(providers.FamilyCDMA) {
		fmt.Printf("  CDMA: %s\n", m.Name)
	}
	return 0
}

func initSnapshots(dbCfg config.DatabaseConfig) *repository.SnapshotRepository {
	var db *gorm.DB
	var err error

	switch dbCfg.Driver {
	case "":
		return nil
	case "mysql":
		db, err = gorm.Open(mysql.Open(dbCfg.DSN), &gorm.Config{})
	case "sqlite":
		// Pure Go SQLite
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = "mbpd.db"
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		logger.Log.Fatalf("Unknown database driver %q", dbCfg.Driver)
	}

	if err != nil {
		logger.Log.Fatalf("Failed to connect database (%s): %v", dbCfg.Driver, err)
	}

	repo := repository.NewSnapshotRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.Fatalf("Failed to migrate database: %v", err)
	}
	return repo
}
