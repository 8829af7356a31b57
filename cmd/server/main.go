package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Rokibul1022/video-gen-using-llms-api/internal/auth"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/config"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/database"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/handlers"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/middleware"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/pipeline"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/storage"
	"github.com/Rokibul1022/video-gen-using-llms-api/pkg/ffmpeg"
	"github.com/Rokibul1022/video-gen-using-llms-api/pkg/imagegen"
	"github.com/Rokibul1022/video-gen-using-llms-api/pkg/llm"
	"github.com/Rokibul1022/video-gen-using-llms-api/pkg/tts"
)

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	db, err := database.InitDB(cfg.DSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := database.MigrateDB(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Object storage is optional; without an endpoint the finished videos
	// are only served from the local output directory.
	var minioClient *storage.MinIOClient
	if cfg.MinIOEndpoint != "" {
		minioClient, err = storage.NewMinIOClient(storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			logger.Fatal("Failed to initialize MinIO client", zap.Error(err))
		}
	}

	ttsClient, err := tts.NewClient(tts.Config{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
	})
	if err != nil {
		logger.Fatal("Failed to initialize TTS client", zap.Error(err))
	}

	pipe := pipeline.New(
		llm.NewClient(llm.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
		}),
		imagegen.NewClient(imagegen.Config{
			APIKey:  cfg.ImageAPIKey,
			BaseURL: cfg.ImageBaseURL,
			Engine:  cfg.ImageModel,
		}),
		ttsClient,
		ffmpeg.NewAssembler(cfg.FFmpegPath),
		cfg.OutputDir,
		cfg.VideoDuration,
		logger,
	)

	tm := auth.NewTokenManager(cfg.JWTSecret)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	// Finished artifacts are served straight from the job directories.
	r.Static("/videos", cfg.OutputDir)

	public := r.Group("/api")
	{
		public.POST("/register", handlers.Register(db, tm))
		public.POST("/login", handlers.Login(db, tm))
		public.POST("/logout", handlers.Logout)
	}

	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(tm))
	{
		protected.GET("/profile", handlers.GetProfile(db))
		protected.POST("/generate-video", handlers.GenerateVideo(db, pipe, minioClient, cfg.DefaultVoice, logger))
		protected.GET("/videos/:id/status", handlers.GetVideoStatus(db, minioClient))
		protected.GET("/users/:id/videos", handlers.ListUserVideos(db))
	}

	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
