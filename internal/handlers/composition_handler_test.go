package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "assetcomposer/internal/errors"
	"assetcomposer/internal/graph"
	"assetcomposer/internal/models"
	"assetcomposer/internal/pagination"
	"assetcomposer/internal/services"
	"assetcomposer/internal/session"
)

const testCompositionID = "0190a6c4-8f3e-7b6a-9c1d-0000000000ee"

func setupCompositionRouter(handler *CompositionHandler) *gin.Engine {
	r := gin.New()
	g := r.Group("/", injectUserID(testUserID))
	g.GET("/compositions", handler.ListCompositions)
	g.GET("/compositions/:id", handler.GetComposition)
	g.POST("/compositions/:id/open", handler.OpenComposition)
	g.GET("/portfolio/default", handler.GetDefaultPortfolio)
	return r
}

func TestCompositionHandler_ListCompositions(t *testing.T) {
	t.Run("returns_200_with_a_page", func(t *testing.T) {
		var gotPage pagination.PageRequest
		svc := &mockCompositionService{
			listFn: func(_ string, page pagination.PageRequest) (*pagination.PageResponse[models.Composition], error) {
				gotPage = page
				resp := pagination.NewPageResponse([]models.Composition{{Name: "A"}}, page.Page, page.PageSize, 1)
				return &resp, nil
			},
		}
		r := setupCompositionRouter(NewCompositionHandler(svc, session.NewManager(svc)))

		rec := doRequest(r, "GET", "/compositions?page=2&page_size=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotPage.Page != 2 || gotPage.PageSize != 5 {
			t.Errorf("expected page 2 size 5, got %+v", gotPage)
		}
		if data := parseJSON(t, rec)["data"].([]interface{}); len(data) != 1 {
			t.Errorf("expected 1 composition, got %d", len(data))
		}
	})

	t.Run("returns_400_on_oversized_page", func(t *testing.T) {
		svc := &mockCompositionService{}
		r := setupCompositionRouter(NewCompositionHandler(svc, session.NewManager(svc)))

		rec := doRequest(r, "GET", "/compositions?page_size=500", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCompositionHandler_GetComposition(t *testing.T) {
	t.Run("returns_200", func(t *testing.T) {
		svc := &mockCompositionService{}
		r := setupCompositionRouter(NewCompositionHandler(svc, session.NewManager(svc)))

		rec := doRequest(r, "GET", "/compositions/"+testCompositionID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		composition := parseJSON(t, rec)["composition"].(map[string]interface{})
		if composition["id"] != testCompositionID {
			t.Errorf("expected id %s, got %v", testCompositionID, composition["id"])
		}
	})

	t.Run("returns_404_on_malformed_id", func(t *testing.T) {
		svc := &mockCompositionService{}
		r := setupCompositionRouter(NewCompositionHandler(svc, session.NewManager(svc)))

		rec := doRequest(r, "GET", "/compositions/42", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "COMPOSITION_NOT_FOUND")
	})
}

func TestCompositionHandler_OpenComposition(t *testing.T) {
	t.Run("returns_201_with_a_session_bound_to_the_composition", func(t *testing.T) {
		svc := &mockCompositionService{
			openFn: func(ownerID, id string) (*services.OpenedComposition, error) {
				return &services.OpenedComposition{
					Composition: &models.Composition{Base: models.Base{ID: id}, OwnerID: ownerID, Name: "Rental", Description: "flat"},
					Graph: graph.Graph{
						Nodes: []graph.Node{{
							ID:   "0190a6c4-8f3e-7b6a-9c1d-0000000000f1",
							Type: graph.NodeTypeFormulaSet,
							Data: &graph.FormulaSetData{Label: "Yield", Formulas: []graph.Formula{}},
						}},
						Edges: []graph.Edge{},
					},
				}, nil
			},
		}
		manager := session.NewManager(svc)
		r := setupCompositionRouter(NewCompositionHandler(svc, manager))

		rec := doRequest(r, "POST", "/compositions/"+testCompositionID+"/open", "")

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		view := parseJSON(t, rec)
		if view["composition_id"] != testCompositionID || view["name"] != "Rental" {
			t.Errorf("unexpected session view %v", view)
		}
		if manager.Len() != 1 {
			t.Errorf("expected 1 open session, got %d", manager.Len())
		}
	})

	t.Run("returns_404_when_missing", func(t *testing.T) {
		svc := &mockCompositionService{
			openFn: func(_, _ string) (*services.OpenedComposition, error) {
				return nil, apperrors.ErrCompositionNotFound
			},
		}
		manager := session.NewManager(svc)
		r := setupCompositionRouter(NewCompositionHandler(svc, manager))

		rec := doRequest(r, "POST", "/compositions/"+testCompositionID+"/open", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if manager.Len() != 0 {
			t.Errorf("expected no sessions, got %d", manager.Len())
		}
	})
}

func TestCompositionHandler_GetDefaultPortfolio(t *testing.T) {
	svc := &mockCompositionService{}
	r := setupCompositionRouter(NewCompositionHandler(svc, session.NewManager(svc)))

	rec := doRequest(r, "GET", "/portfolio/default", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	portfolio := parseJSON(t, rec)["portfolio"].(map[string]interface{})
	if portfolio["is_default"] != true || portfolio["owner_id"] != testUserID {
		t.Errorf("unexpected portfolio %v", portfolio)
	}
}
