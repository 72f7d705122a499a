package main

import (
	"log"

	"github.com/joho/godotenv"

	"bankingservice/internal/app"
)

func main() {
	// .env не обязателен - в проде всё приходит из окружения
	_ = godotenv.Load()

	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
