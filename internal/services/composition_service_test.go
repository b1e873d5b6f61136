package services

import (
	"encoding/json"
	"testing"

	"assetcomposer/internal/graph"
	"assetcomposer/internal/models"
	"assetcomposer/internal/pagination"
	"assetcomposer/internal/testutil"
	"assetcomposer/internal/uuid"
)

func sourceAssetNode(t *testing.T, data graph.SourceAssetData) graph.Node {
	t.Helper()
	n := testutil.NewTestNode(t, graph.NodeTypeSourceAsset)
	n.Data = &data
	return n
}

func TestValueSourceAsset(t *testing.T) {
	cases := []struct {
		name string
		data graph.SourceAssetData
		want AssetValuation
	}{
		{
			name: "zero_quantity_keeps_value_as_price",
			data: graph.SourceAssetData{Quantity: 0, CurrentValue: 500},
			want: AssetValuation{PurchasePrice: 0, CurrentPrice: 50000, TotalValue: 0},
		},
		{
			name: "per_unit_prices",
			data: graph.SourceAssetData{Quantity: 4, CostBasis: 300, CurrentValue: 500},
			want: AssetValuation{PurchasePrice: 7500, CurrentPrice: 12500, TotalValue: 50000},
		},
		{
			name: "fractional_quantity_divides_by_one",
			data: graph.SourceAssetData{Quantity: 0.5, CostBasis: 10, CurrentValue: 20},
			want: AssetValuation{PurchasePrice: 1000, CurrentPrice: 2000, TotalValue: 1000},
		},
		{
			name: "rounds_to_nearest_cent",
			data: graph.SourceAssetData{Quantity: 3, CostBasis: 10, CurrentValue: 10},
			want: AssetValuation{PurchasePrice: 333, CurrentPrice: 333, TotalValue: 999},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ValueSourceAsset(&tc.data)
			if got != tc.want {
				t.Errorf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestHydrate(t *testing.T) {
	t.Run("single_source_asset_at_origin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)

		user := testutil.CreateTestUser(t, db)
		portfolio := testutil.CreateTestPortfolio(t, db, user.ID)
		asset := testutil.CreateTestAsset(t, db, user.ID, portfolio.ID)

		g, err := svc.Hydrate(user.ID, asset.ID)
		testutil.AssertNoError(t, err)

		if len(g.Nodes) != 1 || len(g.Edges) != 0 {
			t.Fatalf("expected 1 node and 0 edges, got %d and %d", len(g.Nodes), len(g.Edges))
		}
		n := g.Nodes[0]
		if n.Type != graph.NodeTypeSourceAsset {
			t.Errorf("expected sourceAsset node, got %s", n.Type)
		}
		if n.Position != (graph.Position{}) {
			t.Errorf("expected node at origin, got %+v", n.Position)
		}
		data := n.Data.(*graph.SourceAssetData)
		if data.AssetRef != asset.ID {
			t.Errorf("expected asset ref %s, got %s", asset.ID, data.AssetRef)
		}
		if data.CurrentValue != 1000 {
			t.Errorf("expected current value 1000, got %v", data.CurrentValue)
		}
		if data.CostBasis != 900 {
			t.Errorf("expected cost basis 900, got %v", data.CostBasis)
		}
		testutil.AssertNoError(t, graph.Validate(n))
	})

	t.Run("unknown_asset_class_becomes_other", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)

		user := testutil.CreateTestUser(t, db)
		portfolio := testutil.CreateTestPortfolio(t, db, user.ID)
		asset := testutil.CreateTestAsset(t, db, user.ID, portfolio.ID)
		db.Model(asset).Update("asset_class", "vintage_wine")

		g, err := svc.Hydrate(user.ID, asset.ID)
		testutil.AssertNoError(t, err)

		if class := g.Nodes[0].Data.(*graph.SourceAssetData).AssetClass; class != "other" {
			t.Errorf("expected asset class other, got %s", class)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)

		user := testutil.CreateTestUser(t, db)
		_, err := svc.Hydrate(user.ID, uuid.New())
		testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
	})

	t.Run("other_owner", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)

		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		portfolio := testutil.CreateTestPortfolio(t, db, owner.ID)
		asset := testutil.CreateTestAsset(t, db, owner.ID, portfolio.ID)

		_, err := svc.Hydrate(other.ID, asset.ID)
		testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
	})

	t.Run("malformed_id", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)

		user := testutil.CreateTestUser(t, db)
		_, err := svc.Hydrate(user.ID, "asset-1")
		testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
	})
}

func TestGetOrCreateDefaultPortfolio(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCompositionService(db)

	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestPortfolio(t, db, user.ID)

	first, err := svc.GetOrCreateDefaultPortfolio(user.ID)
	testutil.AssertNoError(t, err)
	second, err := svc.GetOrCreateDefaultPortfolio(user.ID)
	testutil.AssertNoError(t, err)

	if first.ID != second.ID {
		t.Errorf("expected the same default portfolio, got %s and %s", first.ID, second.ID)
	}
	if !first.IsDefault || first.Name != models.DefaultPortfolioName {
		t.Errorf("unexpected default portfolio %+v", first)
	}

	var count int64
	db.Model(&models.Portfolio{}).Where("owner_id = ? AND is_default = ?", user.ID, true).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 default portfolio, got %d", count)
	}
}

func TestSave(t *testing.T) {
	t.Run("creates_rows_and_reports_links", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		asset := sourceAssetNode(t, graph.SourceAssetData{Name: "Rental", AssetClass: "real_estate", Quantity: 1, CostBasis: 200000, CurrentValue: 250000})
		flows := testutil.NewTestNode(t, graph.NodeTypeCashflowSet)
		flows.Data = &graph.CashflowSetData{Label: "Rent", Entries: []graph.CashflowEntry{
			{Date: "2024-01-01", Amount: 1500, Category: "rent"},
			{Date: "2024-02-01", Amount: 1500.25, Category: "rent"},
		}}
		formulas := testutil.NewTestNode(t, graph.NodeTypeFormulaSet)
		formulas.Data = &graph.FormulaSetData{Label: "Yield", Formulas: []graph.Formula{{Name: "gross", Expression: "rent * 12 / value"}}}
		risk := testutil.NewTestNode(t, graph.NodeTypeRiskProfile)

		g := graph.Graph{
			Nodes: []graph.Node{asset, flows, formulas, risk},
			Edges: []graph.Edge{{ID: uuid.New(), SourceNodeID: asset.ID, TargetNodeID: flows.ID}},
		}

		result, err := svc.Save(user.ID, SaveRequest{Graph: g, Name: "Rental"})
		testutil.AssertNoError(t, err)

		if result.AssetsWritten != 1 || result.CashflowsUpserted != 2 || result.FormulasUpserted != 1 {
			t.Errorf("unexpected counts %+v", result)
		}
		if len(result.Links) != 4 {
			t.Fatalf("expected 4 links, got %d", len(result.Links))
		}

		var cashflows []models.Cashflow
		db.Where("owner_id = ?", user.ID).Order("date").Find(&cashflows)
		if len(cashflows) != 2 {
			t.Fatalf("expected 2 cashflows, got %d", len(cashflows))
		}
		if cashflows[1].Amount != 150025 {
			t.Errorf("expected amount 150025, got %d", cashflows[1].Amount)
		}
		if cashflows[0].AssetID == nil || *cashflows[0].AssetID != result.Links[0].RecordID {
			t.Errorf("expected cashflow linked to saved asset %s", result.Links[0].RecordID)
		}

		var row models.Asset
		db.First(&row, "id = ?", result.Links[0].RecordID)
		if row.Provenance != models.AssetProvenanceDerived {
			t.Errorf("expected provenance derived, got %q", row.Provenance)
		}

		var composition models.Composition
		if err := db.First(&composition, "id = ?", result.CompositionID).Error; err != nil {
			t.Fatalf("composition not persisted: %v", err)
		}
		if composition.NodeCount != 4 || composition.EdgeCount != 1 {
			t.Errorf("expected 4 nodes and 1 edge, got %d and %d", composition.NodeCount, composition.EdgeCount)
		}
	})

	t.Run("zero_quantity_asset_valuation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		n := sourceAssetNode(t, graph.SourceAssetData{Name: "Cash", AssetClass: "cash", Quantity: 0, CurrentValue: 500})
		result, err := svc.Save(user.ID, SaveRequest{Graph: graph.Graph{Nodes: []graph.Node{n}, Edges: []graph.Edge{}}, Name: "Cash"})
		testutil.AssertNoError(t, err)

		var asset models.Asset
		db.First(&asset, "id = ?", result.Links[0].RecordID)
		if asset.CurrentPrice != 50000 {
			t.Errorf("expected current price 50000, got %d", asset.CurrentPrice)
		}
		if asset.TotalValue != 0 {
			t.Errorf("expected total value 0, got %d", asset.TotalValue)
		}
	})

	t.Run("resave_updates_linked_rows", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		store := graph.NewStore()
		n := sourceAssetNode(t, graph.SourceAssetData{Name: "Fund", AssetClass: "etf", Quantity: 2, CurrentValue: 100})
		testutil.AssertNoError(t, store.AddNode(n))

		saved := store.Snapshot()
		first, err := svc.Save(user.ID, SaveRequest{Graph: saved, Name: "Fund"})
		testutil.AssertNoError(t, err)
		if applied := store.ApplyRecordLinks(saved, first.Links); applied != 1 {
			t.Fatalf("expected 1 applied link, got %d", applied)
		}

		patch := map[string]json.RawMessage{"currentValue": json.RawMessage("300")}
		testutil.AssertNoError(t, store.UpdateNodeData(n.ID, patch))

		second, err := svc.Save(user.ID, SaveRequest{Graph: store.Snapshot(), Name: "Fund", CompositionID: first.CompositionID})
		testutil.AssertNoError(t, err)

		if second.CompositionID != first.CompositionID {
			t.Errorf("expected composition %s to be updated, got %s", first.CompositionID, second.CompositionID)
		}
		if len(second.Links) != 0 {
			t.Errorf("expected no new links, got %d", len(second.Links))
		}

		var assets []models.Asset
		db.Where("owner_id = ?", user.ID).Find(&assets)
		if len(assets) != 1 {
			t.Fatalf("expected 1 asset after resave, got %d", len(assets))
		}
		if assets[0].CurrentPrice != 15000 {
			t.Errorf("expected current price 15000, got %d", assets[0].CurrentPrice)
		}

		var compositions int64
		db.Model(&models.Composition{}).Where("owner_id = ?", user.ID).Count(&compositions)
		if compositions != 1 {
			t.Errorf("expected 1 composition, got %d", compositions)
		}
	})

	t.Run("missing_referenced_row_gets_fresh_id", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		ref := uuid.New()
		flows := testutil.NewTestNode(t, graph.NodeTypeCashflowSet)
		flows.Data = &graph.CashflowSetData{Label: "Dividends", Entries: []graph.CashflowEntry{{ID: ref, Date: "2024-03-01", Amount: 12, Category: "dividend"}}}

		result, err := svc.Save(user.ID, SaveRequest{Graph: graph.Graph{Nodes: []graph.Node{flows}, Edges: []graph.Edge{}}, Name: "Dividends"})
		testutil.AssertNoError(t, err)
		if len(result.Links) != 1 {
			t.Fatalf("expected 1 link relinking the entry, got %d", len(result.Links))
		}
		link := result.Links[0]
		if link.NodeID != flows.ID || link.Index != 0 || link.RecordID == ref {
			t.Errorf("unexpected link %+v", link)
		}

		var cashflow models.Cashflow
		if err := db.First(&cashflow, "id = ?", link.RecordID).Error; err != nil {
			t.Fatalf("expected cashflow %s to be created: %v", link.RecordID, err)
		}
		if cashflow.AssetID != nil {
			t.Error("expected unattached cashflow to have no asset")
		}
	})

	t.Run("other_owner_refs_get_own_rows", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)

		aliceNode := sourceAssetNode(t, graph.SourceAssetData{Name: "Gold", AssetClass: "commodity", Quantity: 2, CostBasis: 3000, CurrentValue: 4000})
		aliceFlows := testutil.NewTestNode(t, graph.NodeTypeCashflowSet)
		aliceFlows.Data = &graph.CashflowSetData{Label: "Storage", Entries: []graph.CashflowEntry{{Date: "2024-01-01", Amount: -20, Category: "fee"}}}
		aliceFormulas := testutil.NewTestNode(t, graph.NodeTypeFormulaSet)
		aliceFormulas.Data = &graph.FormulaSetData{Label: "Gain", Formulas: []graph.Formula{{Name: "gain", Expression: "value - cost"}}}
		saved, err := svc.Save(alice.ID, SaveRequest{
			Graph: graph.Graph{Nodes: []graph.Node{aliceNode, aliceFlows, aliceFormulas}, Edges: []graph.Edge{}},
			Name:  "Gold",
		})
		testutil.AssertNoError(t, err)
		aliceRows := make(map[string]bool)
		for _, l := range saved.Links {
			aliceRows[l.RecordID] = true
		}
		if len(aliceRows) != 3 {
			t.Fatalf("expected 3 rows for alice, got %d", len(aliceRows))
		}

		// The same graph, ids included, as it would arrive in an exported file.
		bobNode := aliceNode.Clone()
		bobNode.Data.(*graph.SourceAssetData).AssetRef = saved.Links[0].RecordID
		bobFlows := aliceFlows.Clone()
		bobFormulas := aliceFormulas.Clone()
		for _, l := range saved.Links[1:] {
			switch l.NodeID {
			case aliceFlows.ID:
				bobFlows.Data.(*graph.CashflowSetData).Entries[l.Index].ID = l.RecordID
			case aliceFormulas.ID:
				bobFormulas.Data.(*graph.FormulaSetData).Formulas[l.Index].ID = l.RecordID
			}
		}

		result, err := svc.Save(bob.ID, SaveRequest{
			Graph: graph.Graph{Nodes: []graph.Node{bobNode, bobFlows, bobFormulas}, Edges: []graph.Edge{}},
			Name:  "Gold",
		})
		testutil.AssertNoError(t, err)
		if len(result.Links) != 3 {
			t.Fatalf("expected 3 relinks, got %d", len(result.Links))
		}
		for _, l := range result.Links {
			if aliceRows[l.RecordID] {
				t.Errorf("bob's node %s was linked to alice's row %s", l.NodeID, l.RecordID)
			}
		}

		var aliceAsset models.Asset
		if err := db.First(&aliceAsset, "id = ?", saved.Links[0].RecordID).Error; err != nil {
			t.Fatalf("alice's asset missing: %v", err)
		}
		if aliceAsset.OwnerID != alice.ID {
			t.Errorf("expected alice's asset to stay hers, owner %s", aliceAsset.OwnerID)
		}
		var bobAssets int64
		db.Model(&models.Asset{}).Where("owner_id = ?", bob.ID).Count(&bobAssets)
		if bobAssets != 1 {
			t.Errorf("expected 1 asset for bob, got %d", bobAssets)
		}
	})

	t.Run("soft_deleted_ref_gets_fresh_row", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)
		portfolio := testutil.CreateTestPortfolio(t, db, user.ID)
		asset := testutil.CreateTestAsset(t, db, user.ID, portfolio.ID)
		if err := db.Delete(asset).Error; err != nil {
			t.Fatalf("failed to delete asset: %v", err)
		}

		n := sourceAssetNode(t, graph.SourceAssetData{AssetRef: asset.ID, Name: "Revived", AssetClass: "stock", Quantity: 1, CostBasis: 10, CurrentValue: 12})
		result, err := svc.Save(user.ID, SaveRequest{Graph: graph.Graph{Nodes: []graph.Node{n}, Edges: []graph.Edge{}}, Name: "Revived"})
		testutil.AssertNoError(t, err)
		if len(result.Links) != 1 || result.Links[0].RecordID == asset.ID {
			t.Fatalf("expected a link to a new asset row, got %+v", result.Links)
		}
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.Save(user.ID, SaveRequest{Graph: graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}, Name: "  "})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("inconsistent_graph", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		n := testutil.NewTestNode(t, graph.NodeTypeRiskProfile)
		g := graph.Graph{
			Nodes: []graph.Node{n},
			Edges: []graph.Edge{{ID: uuid.New(), SourceNodeID: n.ID, TargetNodeID: uuid.New()}},
		}
		_, err := svc.Save(user.ID, SaveRequest{Graph: g, Name: "Broken"})
		testutil.AssertAppError(t, err, "INVALID_GRAPH")
	})

	t.Run("failure_rolls_back", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		n := sourceAssetNode(t, graph.SourceAssetData{Name: "Gold", AssetClass: "commodity", Quantity: 1, CurrentValue: 10})
		g := graph.Graph{Nodes: []graph.Node{n}, Edges: []graph.Edge{}}

		_, err := svc.Save(user.ID, SaveRequest{Graph: g, Name: "Gold", CompositionID: uuid.New()})
		testutil.AssertAppError(t, err, "COMPOSITION_NOT_FOUND")

		var assets, portfolios int64
		db.Model(&models.Asset{}).Where("owner_id = ?", user.ID).Count(&assets)
		db.Model(&models.Portfolio{}).Where("owner_id = ?", user.ID).Count(&portfolios)
		if assets != 0 || portfolios != 0 {
			t.Errorf("expected rollback, found %d assets and %d portfolios", assets, portfolios)
		}
		if n.Data.(*graph.SourceAssetData).AssetRef != "" {
			t.Error("expected the caller's graph to be left untouched")
		}
	})
}

func TestCreateAssetFromNode(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		n := sourceAssetNode(t, graph.SourceAssetData{Name: "BTC", AssetClass: "crypto", Quantity: 2, CostBasis: 40000, CurrentValue: 120000, PurchaseDate: "2021-06-01"})
		id, err := svc.CreateAssetFromNode(user.ID, n)
		testutil.AssertNoError(t, err)

		var asset models.Asset
		if err := db.First(&asset, "id = ?", id).Error; err != nil {
			t.Fatalf("asset not persisted: %v", err)
		}
		if asset.CurrentPrice != 6000000 || asset.PurchasePrice != 2000000 {
			t.Errorf("unexpected prices current=%d purchase=%d", asset.CurrentPrice, asset.PurchasePrice)
		}
		if asset.PurchaseDate == nil || asset.PurchaseDate.Format("2006-01-02") != "2021-06-01" {
			t.Errorf("unexpected purchase date %v", asset.PurchaseDate)
		}
		if asset.Provenance != models.AssetProvenanceManual {
			t.Errorf("expected provenance manual, got %q", asset.Provenance)
		}
	})

	t.Run("wrong_node_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateAssetFromNode(user.ID, testutil.NewTestNode(t, graph.NodeTypeFormulaSet))
		testutil.AssertAppError(t, err, "INVALID_NODE_DATA")
	})
}

func TestListCompositions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCompositionService(db)

	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	empty := graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	for i := 0; i < 3; i++ {
		testutil.CreateTestComposition(t, db, user.ID, empty)
	}
	testutil.CreateTestComposition(t, db, other.ID, empty)

	page, err := svc.ListCompositions(user.ID, pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)

	if page.TotalItems != 3 || page.TotalPages != 2 {
		t.Errorf("expected 3 items over 2 pages, got %d over %d", page.TotalItems, page.TotalPages)
	}
	if len(page.Data) != 2 {
		t.Fatalf("expected 2 compositions on the first page, got %d", len(page.Data))
	}
	if len(page.Data[0].Graph) != 0 {
		t.Error("expected listing to omit graph blobs")
	}

	t.Run("sorted_by_name", func(t *testing.T) {
		page, err := svc.ListCompositions(user.ID, pagination.PageRequest{Sort: "name"})
		testutil.AssertNoError(t, err)
		if len(page.Data) != 3 {
			t.Fatalf("expected 3 compositions, got %d", len(page.Data))
		}
		for i := 1; i < len(page.Data); i++ {
			if page.Data[i-1].Name > page.Data[i].Name {
				t.Errorf("expected ascending names, got %q before %q", page.Data[i-1].Name, page.Data[i].Name)
			}
		}
	})

	t.Run("unknown_sort", func(t *testing.T) {
		_, err := svc.ListCompositions(user.ID, pagination.PageRequest{Sort: "graph"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestOpenComposition(t *testing.T) {
	t.Run("decodes_graph", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		user := testutil.CreateTestUser(t, db)

		a := testutil.NewTestNode(t, graph.NodeTypeSourceAsset)
		b := testutil.NewTestNode(t, graph.NodeTypeRiskProfile)
		saved := testutil.CreateTestComposition(t, db, user.ID, graph.Graph{
			Nodes: []graph.Node{a, b},
			Edges: []graph.Edge{{ID: uuid.New(), SourceNodeID: a.ID, TargetNodeID: b.ID}},
		})

		opened, err := svc.OpenComposition(user.ID, saved.ID)
		testutil.AssertNoError(t, err)

		if len(opened.Graph.Nodes) != 2 || len(opened.Graph.Edges) != 1 {
			t.Errorf("expected 2 nodes and 1 edge, got %d and %d", len(opened.Graph.Nodes), len(opened.Graph.Edges))
		}
		if opened.Composition.Name != saved.Name {
			t.Errorf("expected name %s, got %s", saved.Name, opened.Composition.Name)
		}
	})

	t.Run("other_owner", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCompositionService(db)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)

		saved := testutil.CreateTestComposition(t, db, owner.ID, graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}})
		_, err := svc.OpenComposition(other.ID, saved.ID)
		testutil.AssertAppError(t, err, "COMPOSITION_NOT_FOUND")
	})
}
