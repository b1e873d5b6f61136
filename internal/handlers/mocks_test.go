package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"assetcomposer/internal/graph"
	"assetcomposer/internal/logger"
	"assetcomposer/internal/models"
	"assetcomposer/internal/pagination"
	"assetcomposer/internal/services"
	"assetcomposer/internal/validator"
)

// --- mock services ---

type mockUserService struct {
	createUserFn     func(email, password, firstName, lastName string) (*models.User, error)
	getUserByEmailFn func(email string) (*models.User, error)
	getUserByIDFn    func(id string) (*models.User, error)
	verifyPasswordFn func(user *models.User, password string) bool
	attemptLoginFn   func(email, password string) (*models.User, error)
}

func (m *mockUserService) CreateUser(email, password, firstName, lastName string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(email, password, firstName, lastName)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByEmail(email string) (*models.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(email)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) VerifyPassword(user *models.User, password string) bool {
	if m.verifyPasswordFn != nil {
		return m.verifyPasswordFn(user, password)
	}
	return true
}

func (m *mockUserService) AttemptLogin(email, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(email, password)
	}
	return &models.User{}, nil
}

type auditEntry struct {
	userID, action, resourceType, resourceID string
}

type mockAuditService struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (m *mockAuditService) Log(userID, action, resourceType, resourceID, _ string, _ map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{userID, action, resourceType, resourceID})
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.action)
	}
	return out
}

type mockCompositionService struct {
	hydrateFn             func(ownerID, assetID string) (*graph.Graph, error)
	saveFn                func(ownerID string, req services.SaveRequest) (*services.SaveResult, error)
	createAssetFromNodeFn func(ownerID string, node graph.Node) (string, error)
	defaultPortfolioFn    func(ownerID string) (*models.Portfolio, error)
	listFn                func(ownerID string, page pagination.PageRequest) (*pagination.PageResponse[models.Composition], error)
	getFn                 func(ownerID, id string) (*models.Composition, error)
	openFn                func(ownerID, id string) (*services.OpenedComposition, error)
}

func (m *mockCompositionService) Hydrate(ownerID, assetID string) (*graph.Graph, error) {
	if m.hydrateFn != nil {
		return m.hydrateFn(ownerID, assetID)
	}
	return &graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}, nil
}

func (m *mockCompositionService) Save(ownerID string, req services.SaveRequest) (*services.SaveResult, error) {
	if m.saveFn != nil {
		return m.saveFn(ownerID, req)
	}
	return &services.SaveResult{CompositionID: "0190a6c4-8f3e-7b6a-9c1d-000000000001", Links: []graph.RecordLink{}}, nil
}

func (m *mockCompositionService) CreateAssetFromNode(ownerID string, node graph.Node) (string, error) {
	if m.createAssetFromNodeFn != nil {
		return m.createAssetFromNodeFn(ownerID, node)
	}
	return "0190a6c4-8f3e-7b6a-9c1d-000000000002", nil
}

func (m *mockCompositionService) GetOrCreateDefaultPortfolio(ownerID string) (*models.Portfolio, error) {
	if m.defaultPortfolioFn != nil {
		return m.defaultPortfolioFn(ownerID)
	}
	return &models.Portfolio{OwnerID: ownerID, Name: models.DefaultPortfolioName, IsDefault: true}, nil
}

func (m *mockCompositionService) ListCompositions(ownerID string, page pagination.PageRequest) (*pagination.PageResponse[models.Composition], error) {
	if m.listFn != nil {
		return m.listFn(ownerID, page)
	}
	resp := pagination.NewPageResponse[models.Composition](nil, 1, 20, 0)
	return &resp, nil
}

func (m *mockCompositionService) GetComposition(ownerID, id string) (*models.Composition, error) {
	if m.getFn != nil {
		return m.getFn(ownerID, id)
	}
	return &models.Composition{Base: models.Base{ID: id}, OwnerID: ownerID}, nil
}

func (m *mockCompositionService) OpenComposition(ownerID, id string) (*services.OpenedComposition, error) {
	if m.openFn != nil {
		return m.openFn(ownerID, id)
	}
	return &services.OpenedComposition{
		Composition: &models.Composition{Base: models.Base{ID: id}, OwnerID: ownerID, Name: "Saved"},
		Graph:       graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}},
	}, nil
}

// --- test helpers ---

const testUserID = "0190a6c4-8f3e-7b6a-9c1d-2e3f4a5b6c7d"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
