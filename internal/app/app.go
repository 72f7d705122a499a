package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"bankingservice/internal/config"
	"bankingservice/internal/handlers"
	"bankingservice/internal/logger"
	"bankingservice/internal/money"
	"bankingservice/internal/repositories"
	"bankingservice/internal/routes"
	"bankingservice/internal/scheduler"
	"bankingservice/internal/services"
	"bankingservice/migrations"
)

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl, err := logger.New()
	if err != nil {
		return err
	}
	defer zl.Sync()
	log := zl.Sugar()

	// === Хранилище ===
	var repo repositories.ClientRepository
	if cfg.DSN != "" {
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return fmt.Errorf("открытие БД: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Errorw("закрытие БД", "err", err)
			}
		}()
		if err := runMigrations(db); err != nil {
			return err
		}
		repo = repositories.NewClientRepository(db)
	} else {
		log.Warnw("DATABASE_URL не задан, работаем на хранилище в памяти")
		repo = repositories.NewMemoryClientRepository()
	}

	// === Сервисы: строим в порядке зависимостей ===
	rate, err := money.ParseFactor(cfg.Rate)
	if err != nil {
		return fmt.Errorf("ACCRUAL_RATE: %w", err)
	}
	capFactor, err := money.ParseFactor(cfg.CapFactor)
	if err != nil {
		return fmt.Errorf("ACCRUAL_CAP_FACTOR: %w", err)
	}
	initialBalance, err := money.Parse(cfg.InitialBalance)
	if err != nil {
		return fmt.Errorf("INITIAL_BALANCE: %w", err)
	}

	authService := services.NewAuthService(repo, cfg.BcryptCost)
	tokenService := services.NewTokenService(
		cfg.JWTSecret,
		cfg.JWTIssuer,
		time.Duration(cfg.TokenTTLSeconds)*time.Second,
	)
	clientService := services.NewClientService(
		repo,
		authService,
		services.AccrualConfig{Rate: rate, CapFactor: capFactor},
		services.PageConfig{DefaultSize: cfg.PageSizeDefault, MaxSize: cfg.PageSizeMax},
		initialBalance,
		log,
	)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(clientService, authService, tokenService, log)
	clientHandler := handlers.NewClientHandler(clientService, log)

	// === Начисление по таймеру ===
	accrual := scheduler.NewAccrualRunner(clientService, cfg.Period, cfg.StartDelay, log)
	if err := accrual.Start(); err != nil {
		return fmt.Errorf("запуск планировщика: %w", err)
	}
	defer accrual.Stop()

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	routes.SetupRoutes(router, authHandler, clientHandler, tokenService)

	listenAddr := fmt.Sprintf(":%d", cfg.Port)
	log.Infow("сервер запущен", "addr", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		return fmt.Errorf("запуск сервера: %w", err)
	}
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
