package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Rokibul1022/video-gen-using-llms-api/internal/auth"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/middleware"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/models"
	"github.com/Rokibul1022/video-gen-using-llms-api/internal/pipeline"
)

type fakeEnhancer struct{ err error }

func (f *fakeEnhancer) Enhance(ctx context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "Enhanced " + text + ". More detail.", nil
}

type fakeImages struct{}

func (fakeImages) Generate(ctx context.Context, prompts []string, outDir string) ([]string, error) {
	paths := make([]string, len(prompts))
	for i := range prompts {
		paths[i] = filepath.Join(outDir, fmt.Sprintf("img_%d.png", i+1))
	}
	return paths, nil
}

type fakeSpeech struct{}

func (fakeSpeech) SynthesizeToFile(ctx context.Context, text, voice, outPath string) error {
	return nil
}

type fakeAssembler struct{}

func (fakeAssembler) Assemble(ctx context.Context, imagePaths []string, audioPath, outPath string, duration int) error {
	return nil
}

type testEnv struct {
	db     *gorm.DB
	tm     *auth.TokenManager
	router *gin.Engine
}

func newTestEnv(t *testing.T, enhancer pipeline.Enhancer) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	// Each pooled connection gets its own empty in-memory database, so the
	// concurrent pipeline goroutines would otherwise see "no such table".
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Video{}))

	tm := auth.NewTokenManager("test-secret")
	pipe := pipeline.New(enhancer, fakeImages{}, fakeSpeech{}, fakeAssembler{}, t.TempDir(), 60, zap.NewNop())

	r := gin.New()
	public := r.Group("/api")
	{
		public.POST("/register", Register(db, tm))
		public.POST("/login", Login(db, tm))
	}
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(tm))
	{
		protected.GET("/profile", GetProfile(db))
		protected.POST("/generate-video", GenerateVideo(db, pipe, nil, "Rachel", zap.NewNop()))
		protected.GET("/videos/:id/status", GetVideoStatus(db, nil))
		protected.GET("/users/:id/videos", ListUserVideos(db))
	}

	return &testEnv{db: db, tm: tm, router: r}
}

func (e *testEnv) createUser(t *testing.T, email string, quota int) (*models.User, string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{Email: email, Password: string(hashed), Name: "Test"}
	require.NoError(t, e.db.Create(user).Error)
	// Set explicitly so a zero quota is not replaced by the column default.
	require.NoError(t, e.db.Model(user).Update("video_quota", quota).Error)
	user.VideoQuota = quota

	token, err := e.tm.GenerateToken(user.ID)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, &fakeEnhancer{})

	w := env.doJSON("POST", "/api/register", "", gin.H{
		"email": "a@b.com", "password": "secret1", "name": "Alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "a@b.com", resp.User.Email)

	// Duplicate email
	w = env.doJSON("POST", "/api/register", "", gin.H{
		"email": "a@b.com", "password": "secret1", "name": "Alice",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Login
	w = env.doJSON("POST", "/api/login", "", gin.H{"email": "a@b.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Wrong password
	w = env.doJSON("POST", "/api/login", "", gin.H{"email": "a@b.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, &fakeEnhancer{})

	w := env.doJSON("GET", "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.doJSON("GET", "/api/profile", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerateVideoSync(t *testing.T) {
	env := newTestEnv(t, &fakeEnhancer{})
	user, token := env.createUser(t, "gen@b.com", 10)

	w := env.doJSON("POST", "/api/generate-video?sync=true", token, gin.H{
		"text": "the water cycle", "template": "cartoon", "voice_type": "Rachel",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		VideoID      uint     `json:"video_id"`
		Status       string   `json:"status"`
		JobID        string   `json:"job_id"`
		VideoPath    string   `json:"video_path"`
		ImagePaths   []string `json:"image_paths"`
		AudioPath    string   `json:"audio_path"`
		Prompts      []string `json:"prompts"`
		EnhancedText string   `json:"enhanced_text"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, models.StatusCompleted, resp.Status)
	assert.NotEmpty(t, resp.JobID)
	assert.NotEmpty(t, resp.ImagePaths)
	assert.Contains(t, resp.EnhancedText, "Enhanced")
	assert.Contains(t, resp.Prompts[0], "cartoon educational image:")

	var video models.Video
	require.NoError(t, env.db.First(&video, resp.VideoID).Error)
	assert.Equal(t, models.StatusCompleted, video.Status)
	assert.Equal(t, resp.JobID, video.JobID)
	assert.Equal(t, "/videos/"+resp.JobID+"/video.mp4", video.VideoURL)

	var owner models.User
	require.NoError(t, env.db.First(&owner, user.ID).Error)
	assert.Equal(t, 9, owner.VideoQuota)
}

func TestAsyncGenerateAlwaysReportsProcessing(t *testing.T) {
	// An instantly-failing stage must not leak the failed status into the
	// accepted-response; the handler reports the row as it was reserved.
	env := newTestEnv(t, &fakeEnhancer{err: fmt.Errorf("model unavailable")})
	user, token := env.createUser(t, "async@b.com", 60)

	for i := 0; i < 50; i++ {
		w := env.doJSON("POST", "/api/generate-video", token, gin.H{
			"text": "x", "template": "plain",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.StatusProcessing, resp["status"])
		assert.NotZero(t, resp["video_id"])
	}

	// The background jobs settle into failed rows.
	deadline := time.Now().Add(5 * time.Second)
	var count int64
	for time.Now().Before(deadline) {
		env.db.Model(&models.Video{}).
			Where("user_id = ? AND status = ?", user.ID, models.StatusFailed).
			Count(&count)
		if count == 50 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.EqualValues(t, 50, count)
}

func TestQuotaSpendIsGuarded(t *testing.T) {
	env := newTestEnv(t, &fakeEnhancer{})
	user, token := env.createUser(t, "last@b.com", 1)

	w := env.doJSON("POST", "/api/generate-video?sync=true", token, gin.H{
		"text": "x", "template": "plain",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The last quota unit is spent; the next request is rejected and does
	// not create a row or drive the quota negative.
	w = env.doJSON("POST", "/api/generate-video?sync=true", token, gin.H{
		"text": "x", "template": "plain",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var owner models.User
	require.NoError(t, env.db.First(&owner, user.ID).Error)
	assert.Equal(t, 0, owner.VideoQuota)

	var count int64
	env.db.Model(&models.Video{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestGenerateVideoQuotaExhausted(t *testing.T) {
	env := newTestEnv(t, &fakeEnhancer{})
	user, token := env.createUser(t, "broke@b.com", 0)

	w := env.doJSON("POST", "/api/generate-video", token, gin.H{
		"text": "x", "template": "plain",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var count int64
	env.db.Model(&models.Video{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Zero(t, count)
}

func TestGenerateVideoFailureMarksRowFailed(t *testing.T) {
	env := newTestEnv(t, &fakeEnhancer{err: fmt.Errorf("model unavailable")})
	user, token := env.createUser(t, "fail@b.com", 5)

	w := env.doJSON("POST", "/api/generate-video?sync=true", token, gin.H{
		"text": "x", "template": "plain",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var video models.Video
	require.NoError(t, env.db.Where("user_id = ?", user.ID).First(&video).Error)
	assert.Equal(t, models.StatusFailed, video.Status)
	assert.Contains(t, video.ErrorMessage, "model unavailable")
}

func TestGetVideoStatus(t *testing.T) {
	env := newTestEnv(t, &fakeEnhancer{})
	user, token := env.createUser(t, "status@b.com", 5)
	_, otherToken := env.createUser(t, "other@b.com", 5)

	video := &models.Video{
		UserID:   user.ID,
		JobID:    "job-123",
		Title:    "Done",
		Status:   models.StatusCompleted,
		VideoURL: "/videos/job-123/video.mp4",
	}
	require.NoError(t, env.db.Create(video).Error)

	w := env.doJSON("GET", fmt.Sprintf("/api/videos/%d/status", video.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusCompleted, resp["status"])
	assert.Equal(t, "/videos/job-123/video.mp4", resp["video_url"])

	// Another user cannot see it
	w = env.doJSON("GET", fmt.Sprintf("/api/videos/%d/status", video.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Failed video exposes the error
	failed := &models.Video{UserID: user.ID, Status: models.StatusFailed, ErrorMessage: "TTS API error"}
	require.NoError(t, env.db.Create(failed).Error)

	w = env.doJSON("GET", fmt.Sprintf("/api/videos/%d/status", failed.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "TTS API error", resp["error"])
}

func TestListUserVideos(t *testing.T) {
	env := newTestEnv(t, &fakeEnhancer{})
	user, token := env.createUser(t, "list@b.com", 5)

	for i := 0; i < 15; i++ {
		require.NoError(t, env.db.Create(&models.Video{
			UserID: user.ID,
			Title:  fmt.Sprintf("video %d", i),
			Status: models.StatusProcessing,
		}).Error)
	}

	w := env.doJSON("GET", fmt.Sprintf("/api/users/%d/videos", user.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var videos []models.Video
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &videos))
	assert.Len(t, videos, 10) // default limit

	w = env.doJSON("GET", fmt.Sprintf("/api/users/%d/videos?skip=10&limit=10", user.ID), token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &videos))
	assert.Len(t, videos, 5)

	// Listing someone else's videos is rejected
	w = env.doJSON("GET", fmt.Sprintf("/api/users/%d/videos", user.ID+1), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
