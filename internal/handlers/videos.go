package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rokibul1022/video-gen-using-llms-api/internal/models"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/pipeline"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/storage"
)

var ErrQuotaExhausted = errors.New("video quota exhausted")

type GenerateVideoRequest struct {
	Text      string `json:"text" binding:"required"`
	Template  string `json:"template" binding:"required"`
	VoiceType string `json:"voice_type"`
	Title     string `json:"title"`
}

// reserveVideo decrements the owner's quota and creates the video row in
// one transaction.
func reserveVideo(db *gorm.DB, userID uint, req GenerateVideoRequest) (*models.Video, error) {
	video := &models.Video{
		UserID:       userID,
		Title:        req.Title,
		OriginalText: req.Text,
		Template:     req.Template,
		Status:       models.StatusProcessing,
	}
	if video.Title == "" {
		video.Title = "Untitled video"
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		// Guarded decrement so two concurrent requests cannot both spend
		// the last quota unit.
		res := tx.Model(&models.User{}).
			Where("id = ? AND video_quota > 0", userID).
			UpdateColumn("video_quota", gorm.Expr("video_quota - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var user models.User
			if err := tx.First(&user, userID).Error; err != nil {
				return err
			}
			return ErrQuotaExhausted
		}
		return tx.Create(video).Error
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

func GenerateVideo(db *gorm.DB, pipe *pipeline.Pipeline, minioClient *storage.MinIOClient, defaultVoice string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userID")

		var req GenerateVideoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.VoiceType == "" {
			req.VoiceType = defaultVoice
		}

		video, err := reserveVideo(db, userID, req)
		if err != nil {
			if errors.Is(err, ErrQuotaExhausted) {
				c.JSON(http.StatusForbidden, gin.H{"error": "Video quota exhausted"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create video record"})
			return
		}

		if c.Query("sync") == "true" {
			result := runPipeline(c.Request.Context(), db, video, pipe, minioClient, req.VoiceType, log)
			if result == nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":    video.ErrorMessage,
					"video_id": video.ID,
					"status":   video.Status,
				})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"video_id":      video.ID,
				"status":        video.Status,
				"job_id":        result.JobID,
				"video_path":    result.VideoPath,
				"image_paths":   result.ImagePaths,
				"audio_path":    result.AudioPath,
				"prompts":       result.Prompts,
				"enhanced_text": result.EnhancedText,
			})
			return
		}

		// Snapshot before handing the row to the goroutine; it owns the
		// struct from here and writes status on completion.
		videoID := video.ID

		// Process in goroutine
		go runPipeline(context.Background(), db, video, pipe, minioClient, req.VoiceType, log)

		c.JSON(http.StatusOK, gin.H{
			"message":  "Video generation started",
			"video_id": videoID,
			"status":   models.StatusProcessing,
		})
	}
}

// runPipeline executes one generation job and writes the outcome back to
// the video row. Returns nil when the job failed.
func runPipeline(ctx context.Context, db *gorm.DB, video *models.Video, pipe *pipeline.Pipeline, minioClient *storage.MinIOClient, voice string, log *zap.Logger) *pipeline.Result {
	result, err := pipe.Run(ctx, video.OriginalText, video.Template, voice)
	if err != nil {
		log.Error("pipeline failed", zap.Uint("video_id", video.ID), zap.Error(err))
		video.Status = models.StatusFailed
		video.ErrorMessage = err.Error()
		db.Save(video)
		return nil
	}

	video.JobID = result.JobID
	video.VideoURL = fmt.Sprintf("/videos/%s/video.mp4", result.JobID)
	video.Status = models.StatusCompleted
	db.Save(video)

	if minioClient != nil {
		objectName := storage.VideoObjectName(video.UserID, result.JobID)
		if _, err := minioClient.UploadFile(ctx, objectName, result.VideoPath, "video/mp4"); err != nil {
			log.Warn("failed to mirror video to object storage", zap.Uint("video_id", video.ID), zap.Error(err))
		}
	}

	return result
}

func GetVideoStatus(db *gorm.DB, minioClient *storage.MinIOClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		videoID := c.Param("id")
		userID := c.GetUint("userID")

		var video models.Video
		if err := db.Where("id = ? AND user_id = ?", videoID, userID).First(&video).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}

		response := gin.H{
			"video_id":   video.ID,
			"job_id":     video.JobID,
			"status":     video.Status,
			"created_at": video.CreatedAt,
			"updated_at": video.UpdatedAt,
		}

		if video.Status == models.StatusCompleted {
			response["video_url"] = video.VideoURL

			if minioClient != nil {
				url, err := minioClient.GetPresignedURL(c.Request.Context(), storage.VideoObjectName(video.UserID, video.JobID))
				if err == nil {
					response["download_url"] = url
				}
			}
		}

		if video.Status == models.StatusFailed {
			response["error"] = video.ErrorMessage
		}

		c.JSON(http.StatusOK, response)
	}
}

func ListUserVideos(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userID")

		pathID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}
		if uint(pathID) != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Cannot list another user's videos"})
			return
		}

		skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if limit <= 0 {
			limit = 10
		}

		var videos []models.Video
		if err := db.Where("user_id = ?", userID).Order("created_at DESC").Offset(skip).Limit(limit).Find(&videos).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch videos"})
			return
		}

		c.JSON(http.StatusOK, videos)
	}
}
