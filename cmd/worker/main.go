package main

import (
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"fincore-service/internal/database"
	"fincore-service/internal/services"
	"fincore-service/internal/worker"
)

func main() {
	if err := godotenv.Load("../../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Info().Msg("No .env file found, using system env")
		}
	}

	database.Connect()
	db := database.DB

	ledgerService := services.NewLedgerService(db)
	commissionService := services.NewCommissionService(db, ledgerService)
	reconciliationService := services.NewReconciliationService(db, nil)

	redisAddr := os.Getenv("REDIS_URL")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	log.Info().Msg("Starting asynq worker")
	worker.StartWorker(redisOpt, commissionService, reconciliationService)
}
