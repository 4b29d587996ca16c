package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"fincore-service/internal/database"
)

func main() {
	if err := godotenv.Load("../../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Info().Msg("No .env file found, using system env")
		}
	}

	database.Connect()
	database.Migrate()
	log.Info().Msg("Migration finished")
}
