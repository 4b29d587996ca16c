package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fincore-service/internal/database"
	"fincore-service/internal/handlers"
	"fincore-service/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}

	database.Connect()
	database.Migrate()
	db := database.DB

	redisAddr := os.Getenv("REDIS_URL")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer asynqClient.Close()

	ledgerService := services.NewLedgerService(db)
	walletService := services.NewWalletService(db, ledgerService)
	commissionService := services.NewCommissionService(db, ledgerService)
	transactionService := services.NewTransactionService(db, ledgerService, commissionService, asynqClient)
	refundService := services.NewRefundService(db, ledgerService)
	reconciliationService := services.NewReconciliationService(db, asynqClient)

	walletHandler := handlers.NewWalletHandler(walletService, ledgerService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, refundService)

	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "fincore service up"})
	})

	r.POST("/wallets", walletHandler.CreateWallet)
	r.GET("/wallets/:id/balance", walletHandler.GetBalance)
	r.GET("/wallets/:id/ledger", walletHandler.GetLedgerHistory)
	r.POST("/wallets/:id/hold", walletHandler.HoldFunds)
	r.POST("/wallets/:id/release", walletHandler.ReleaseHold)
	r.POST("/wallets/:id/settle", walletHandler.SettleHold)
	r.POST("/wallets/:id/deactivate", walletHandler.Deactivate)

	r.POST("/transactions", transactionHandler.PostTransaction)
	r.GET("/transactions/:reference", transactionHandler.Get)
	r.POST("/transactions/:reference/settle", transactionHandler.Settle)
	r.POST("/transactions/:reference/fail", transactionHandler.Fail)
	r.POST("/transactions/:reference/cancel", transactionHandler.Cancel)
	r.POST("/transactions/:reference/reverse", transactionHandler.Reverse)
	r.POST("/transactions/:reference/refund", transactionHandler.Refund)
	r.GET("/transactions/:reference/refunds", transactionHandler.ListRefunds)

	reconciliationService.StartScheduler()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info().Str("port", port).Msg("HTTP server starting")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
