package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"sefazdae/config"
	"sefazdae/controllers"
	"sefazdae/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	guard := middleware.NewRunGuard()
	batchController := controllers.NewBatchController(cfg, guard)
	screenshotController := controllers.NewScreenshotController(cfg)

	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/api/health", batchController.Health)
	r.POST("/api/sheet/parse", middleware.MaxRequestSize(20*1024*1024), batchController.ParseSheet)
	r.POST("/api/batch/run", guard.Limit(), batchController.RunBatch)
	r.GET("/api/screenshots/url", screenshotController.GetScreenshotURL)

	log.Printf("Listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
