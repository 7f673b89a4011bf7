package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"wall/api/middleware"
	"wall/api/routes"
	"wall/config"
	"wall/db"
	"wall/services"

	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	log.Println("Starting wall server...")

	err = db.ConnectDB()
	if err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis: кеш счетчиков реакций и кеш одобренной ленты
	if err := services.InitRedis(); err != nil {
		log.Printf("Warning: Redis unavailable, falling back to DB aggregates: %v", err)
	} else {
		defer services.CloseRedis()
		services.InitQueueService()
		services.QueueServiceInstance.StartWorkers(ctx)
	}

	// RabbitMQ: фан-аут событий стены между инстансами API
	if err := services.InitRabbitMQ(); err != nil {
		log.Printf("Warning: RabbitMQ unavailable, wall events will use direct WS only: %v", err)
	} else {
		defer services.CloseRabbitMQ()
		if err := services.StartWallEventConsumer(ctx, "wall_events_push"); err != nil {
			log.Printf("Warning: failed to start wall event consumer: %v", err)
		}
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware("wall-api"))

	routes.PublicApi(router)

	addr := ":8080"
	if config.AppConfig.Backend.Port != 0 {
		addr = fmt.Sprintf(":%d", config.AppConfig.Backend.Port)
	}
	if err := router.Run(addr); err != nil {
		panic(err)
	}
}
