package rebalancing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equilibre/internal/database"
	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/allocation"
	"github.com/aristath/equilibre/internal/modules/order"
	"github.com/aristath/equilibre/internal/modules/orderbook"
)

func newTestService(t *testing.T) (*Service, *domain.Registry) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "portfolio.db"),
		Profile: database.ProfileCache,
		Name:    "test",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	registry := domain.NewRegistry("XLM", nil, zerolog.Nop())
	registry.Native().SetGlobalPrice(1.0)

	svc := NewService(Config{
		Registry:  registry,
		Repo:      allocation.NewRepository(db),
		OpLog:     NewOperationLog(db),
		AccountID: "GACCOUNT",
		Currency:  "USD",
		Tuning:    order.DefaultTuning(),
		Log:       zerolog.Nop(),
	})
	return svc, registry
}

// seedAsset registers an asset with one funded balance and a two-sided book.
func seedAsset(t *testing.T, r *domain.Registry, code string, held, bid, ask float64) *domain.Asset {
	t.Helper()
	asset := r.ResolveAsset(code, domain.TypeCrypto, false)
	bal := r.ResolveBalance(asset, r.ResolveAnchor("GANCHOR"+code))
	bal.Update(held, 0, 0)
	bal.Book.Ingest(orderbook.RawBook{
		Bids: []orderbook.RawOffer{{Price: bid, Amount: 1000}},
		Asks: []orderbook.RawOffer{{Price: ask, Amount: 1000}},
	})
	return asset
}

func TestEnsureLeavesAddsPortfolioAssets(t *testing.T) {
	svc, r := newTestService(t)
	seedAsset(t, r, "BTC", 1, 10, 11)

	svc.EnsureLeaves()

	assert.NotNil(t, svc.Targets().Find("BTC"))
	// The pass is idempotent.
	svc.EnsureLeaves()
	assert.Len(t, svc.Targets().Leaves(), 2) // BTC plus the native asset
}

func TestRebalanceBuildsOrders(t *testing.T) {
	svc, r := newTestService(t)
	// Held 10 at price ~10, against an even split with a second asset: BTC
	// must shed value and DOGE must gain.
	seedAsset(t, r, "BTC", 10, 10, 11)
	seedAsset(t, r, "DOGE", 2, 10, 11)

	plan, err := svc.Rebalance(context.Background())
	require.NoError(t, err)

	assert.Greater(t, plan.Total, 0.0)
	require.NotEmpty(t, plan.Orders)

	var btc, doge *OrderPlan
	for i := range plan.Orders {
		switch plan.Orders[i].Asset {
		case "BTC":
			btc = &plan.Orders[i]
		case "DOGE":
			doge = &plan.Orders[i]
		}
	}
	require.NotNil(t, btc)
	require.NotNil(t, doge)
	assert.Negative(t, btc.AmountDelta)
	assert.Positive(t, doge.AmountDelta)
	require.NotEmpty(t, btc.Operations)
	require.NotEmpty(t, doge.Operations)
}

func TestRebalanceAbortsOnFatalError(t *testing.T) {
	svc, r := newTestService(t)
	seedAsset(t, r, "BTC", 10, 10, 11)

	svc.EnsureLeaves()
	leaf := svc.Targets().Find("BTC")
	require.NotNil(t, leaf)
	leaf.SetMode(allocation.ModeWeight)
	leaf.SetSize(-50)
	allocation.NewAssetTarget(svc.Targets(), r.ResolveAsset("ETH", domain.TypeCrypto, true))

	_, err := svc.Rebalance(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rebalance aborted")
	// No order was built for any leaf.
	for _, l := range svc.Targets().Leaves() {
		assert.Nil(t, l.Order())
	}
}

func TestRebalanceSkipsNativeAsset(t *testing.T) {
	svc, r := newTestService(t)
	bal := r.ResolveBalance(r.Native(), r.ResolveAnchor("GSELF"))
	bal.Update(100, 0, 0)

	plan, err := svc.Rebalance(context.Background())
	require.NoError(t, err)

	for _, op := range plan.Orders {
		assert.NotEqual(t, "XLM", op.Asset)
	}
	native := svc.Targets().Find("XLM")
	require.NotNil(t, native)
	assert.Nil(t, native.Order())
}

func TestRebalanceDefersBusyAsset(t *testing.T) {
	svc, r := newTestService(t)
	asset := seedAsset(t, r, "BTC", 10, 10, 11)
	seedAsset(t, r, "DOGE", 2, 10, 11)
	asset.Balances()[0].Update(10, 1, 0)

	plan, err := svc.Rebalance(context.Background())
	require.NoError(t, err)

	for _, op := range plan.Orders {
		if op.Asset == "BTC" {
			assert.Empty(t, op.Operations)
			assert.Equal(t, []string{"Rebalancing..."}, op.Description)
		}
	}
}

func TestSaveAndLoadTargets(t *testing.T) {
	svc, r := newTestService(t)
	seedAsset(t, r, "BTC", 1, 10, 11)

	svc.EnsureLeaves()
	leaf := svc.Targets().Find("BTC")
	leaf.SetSize(3)

	ctx := context.Background()
	require.NoError(t, svc.SaveTargets(ctx))

	svc.SetTargets(allocation.NewRoot("portfolio"))
	require.NoError(t, svc.LoadTargets(ctx))

	restored := svc.Targets().Find("BTC")
	require.NotNil(t, restored)
	size, ok := restored.Size()
	require.True(t, ok)
	assert.Equal(t, 3.0, size)
}

func TestLoadTargetsWithoutSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.LoadTargets(context.Background()))
	assert.Empty(t, svc.Targets().Children())
}

func TestRecordPlanWritesOperationLog(t *testing.T) {
	svc, r := newTestService(t)
	seedAsset(t, r, "BTC", 10, 10, 11)
	seedAsset(t, r, "DOGE", 2, 10, 11)

	ctx := context.Background()
	plan, err := svc.Rebalance(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Orders)

	require.NoError(t, svc.RecordPlan(ctx, plan))

	logged, err := svc.opLog.Recent(ctx, "GACCOUNT", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, logged)
}
