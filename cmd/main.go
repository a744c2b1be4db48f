package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"treasury-dao/budget"
	"treasury-dao/db"
	"treasury-dao/governance"
	"treasury-dao/handlers"
	"treasury-dao/logger"
	"treasury-dao/repository"
	"treasury-dao/routers"
	"treasury-dao/token"
	"treasury-dao/treasury"
)

func main() {
	// Load config
	viper.SetConfigFile("config/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	appLogFile := viper.GetString("log.app_log_file")
	logLevel := viper.GetString("log.level")

	if err := logger.InitLogger(appLogFile, logLevel); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}

	logger.Logger.Info("Starting treasury governance server...")

	owner := viper.GetString("governance.owner")
	treasuryAddr := viper.GetString("treasury.address")
	if !common.IsHexAddress(owner) || !common.IsHexAddress(treasuryAddr) {
		logger.Logger.Fatal("Invalid owner or treasury address in config",
			zap.String("owner", owner), zap.String("treasury", treasuryAddr))
	}

	// Connect to LevelDB
	leveldbPath := viper.GetString("leveldb.path")
	ldb, err := db.NewLevelDB(leveldbPath)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	// Initialize repository
	repo := repository.NewLedgerRepository(ldb)

	// Wire the governance services: the treasury is an authorized minter so
	// deposits can mint voting rights, and the budget tracker listens for
	// proposal executions to fund linked initiatives.
	ownerAddr := common.HexToAddress(owner)
	tok := token.NewLedger(repo, ownerAddr)
	tre := treasury.NewTreasury(repo, tok, common.HexToAddress(treasuryAddr),
		viper.GetInt64("treasury.exchange_rate"))
	if err := tok.SetAuthorizedMinter(ownerAddr, tre.Address(), true); err != nil {
		logger.Logger.Fatal("Failed to authorize treasury minter", zap.Error(err))
	}

	eng := governance.NewEngine(repo, tok, tre)
	bud := budget.NewTracker(repo, ownerAddr)
	eng.SetListener(bud)
	if err := bud.InitDefaultCategories(); err != nil {
		logger.Logger.Fatal("Failed to load default budget categories", zap.Error(err))
	}

	// Initialize HTTP handlers
	h := handlers.NewHandler(tok, tre, eng, bud, repo)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("server.port")),
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", viper.GetInt("server.port")))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	srv.Close()
}
