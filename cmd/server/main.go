package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/my-roadmap/roadmap-api/internal/config"
	"github.com/my-roadmap/roadmap-api/internal/database"
	"github.com/my-roadmap/roadmap-api/internal/generator"
	"github.com/my-roadmap/roadmap-api/internal/handler"
	"github.com/my-roadmap/roadmap-api/internal/queue"
	"github.com/my-roadmap/roadmap-api/internal/repository"
	"github.com/my-roadmap/roadmap-api/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is absent; middleware degrades

	users := repository.NewUserRepo(db)
	transactions := repository.NewTransactionRepo(db, users)
	roadmaps := repository.NewRoadmapRepo(db, users)

	gen := generator.New(cfg.GeneratorBaseURL, cfg.GeneratorAPIKey, cfg.GeneratorModel)
	consumer := &queue.Consumer{Roadmaps: roadmaps, Gen: gen}
	go func() {
		if err := consumer.StartRoadmapConsumer(); err != nil {
			log.Printf("roadmap consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Cfg:      cfg,
		Redis:    rdb,
		Users:    users,
		Auth:     handler.NewAuthHandler(cfg, users),
		Roadmaps: handler.NewRoadmapHandler(cfg, roadmaps),
		Payments: handler.NewPaymentHandler(cfg, transactions),
		Admin:    handler.NewAdminHandler(users),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
