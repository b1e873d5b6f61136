package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"assetcomposer/internal/handlers"
	"assetcomposer/internal/logger"
	"assetcomposer/internal/middleware"
	"assetcomposer/internal/models"
	"assetcomposer/internal/services"
	"assetcomposer/internal/session"
	"assetcomposer/internal/validator"
)

const (
	testOpsKey      = "integration-ops-key"
	testMaxImport   = 1 << 20
	testIdleTimeout = time.Hour
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Sessions *session.Manager
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:integrationdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	compositionService := services.NewCompositionService(db)
	sessions := session.NewManager(compositionService)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	sessionHandler := handlers.NewSessionHandler(sessions, compositionService, auditService, testMaxImport)
	compositionHandler := handlers.NewCompositionHandler(compositionService, sessions)
	opsHandler := handlers.NewOpsHandler(sessions, testIdleTimeout)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	ops := v1.Group("/ops")
	ops.Use(middleware.OpsAuthMiddleware(testOpsKey))
	ops.GET("/sessions", opsHandler.SessionStats)
	ops.POST("/sessions/prune", opsHandler.PruneSessions)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)
	protected.GET("/portfolio/default", compositionHandler.GetDefaultPortfolio)

	sessionRoutes := protected.Group("/sessions")
	sessionRoutes.POST("", sessionHandler.CreateSession)
	sessionRoutes.GET("/:id", sessionHandler.GetSession)
	sessionRoutes.PATCH("/:id", sessionHandler.RenameSession)
	sessionRoutes.DELETE("/:id", sessionHandler.CloseSession)
	sessionRoutes.POST("/:id/nodes", sessionHandler.AddNode)
	sessionRoutes.PATCH("/:id/nodes/:nodeId", sessionHandler.UpdateNode)
	sessionRoutes.PUT("/:id/nodes/:nodeId/position", sessionHandler.MoveNode)
	sessionRoutes.DELETE("/:id/nodes/:nodeId", sessionHandler.RemoveNode)
	sessionRoutes.POST("/:id/nodes/:nodeId/asset", sessionHandler.CreateAssetFromNode)
	sessionRoutes.POST("/:id/edges", sessionHandler.Connect)
	sessionRoutes.DELETE("/:id/edges/:edgeId", sessionHandler.Disconnect)
	sessionRoutes.POST("/:id/save", sessionHandler.Save)
	sessionRoutes.GET("/:id/export", sessionHandler.Export)
	sessionRoutes.POST("/:id/import", sessionHandler.Import)
	sessionRoutes.DELETE("/:id/error", sessionHandler.DismissError)

	compositions := protected.Group("/compositions")
	compositions.GET("", compositionHandler.ListCompositions)
	compositions.GET("/:id", compositionHandler.GetComposition)
	compositions.POST("/:id/open", compositionHandler.OpenComposition)

	return &testApp{DB: db, Router: router, Sessions: sessions}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// opsRequest calls an operational endpoint with the ops key and parses the
// 200 response.
func (app *testApp) opsRequest(t *testing.T, method, path string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", testOpsKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	mustStatus(t, rec, http.StatusOK)
	return parseJSON(t, rec)
}

// upload posts data as the multipart field "file".
func (app *testApp) upload(t *testing.T, path, filename string, data []byte, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// errorCode extracts error.code from an error envelope.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	result := parseJSON(t, rec)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// registerUser registers a new user and returns the access token and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access token.
func (app *testApp) loginUser(t *testing.T, email, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string)
}

// mustStatus fails the test unless rec has the wanted status.
func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
