package allocation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equilibre/internal/database"
	"github.com/aristath/equilibre/internal/domain"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "portfolio.db"),
		Profile: database.ProfileCache,
		Name:    "test",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := domain.NewRegistry("XLM", nil, zerolog.Nop())
	btc := r.ResolveAsset("BTC", domain.TypeCrypto, true)
	eur := r.ResolveAsset("EUR", domain.TypeFiat, true)

	root := NewRoot("portfolio")
	crypto := NewGroup(root, "crypto")
	crypto.SetMode(ModePercentage)
	crypto.SetSize(70)
	leaf := NewAssetTarget(crypto, btc)
	leaf.SetSize(2)
	frozen := NewAssetTarget(root, eur)
	frozen.SetMode(ModeSkip)

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "GACCOUNT", root))
	assert.False(t, root.Modified(), "saving clears the modified flag")

	restored, err := repo.Load(ctx, "GACCOUNT", r)
	require.NoError(t, err)

	require.Len(t, restored.Children(), 2)
	group := restored.Children()[0]
	assert.Equal(t, "crypto", group.Name())
	assert.Equal(t, ModePercentage, group.Mode())
	size, ok := group.Size()
	require.True(t, ok)
	assert.Equal(t, 70.0, size)

	require.Len(t, group.Children(), 1)
	restoredLeaf := group.Children()[0]
	assert.Same(t, btc, restoredLeaf.Asset())
	leafSize, ok := restoredLeaf.Size()
	require.True(t, ok)
	assert.Equal(t, 2.0, leafSize)

	assert.Equal(t, ModeSkip, restored.Children()[1].Mode())
	_, hasSize := restored.Children()[1].Size()
	assert.False(t, hasSize)
}

func TestSaveOverwritesPrevious(t *testing.T) {
	r := domain.NewRegistry("XLM", nil, zerolog.Nop())
	btc := r.ResolveAsset("BTC", domain.TypeCrypto, true)

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	root := NewRoot("portfolio")
	NewAssetTarget(root, btc)
	require.NoError(t, repo.Save(ctx, "GACCOUNT", root))

	second := NewAssetTarget(root, r.ResolveAsset("ETH", domain.TypeCrypto, true))
	second.SetSize(3)
	require.NoError(t, repo.Save(ctx, "GACCOUNT", root))

	restored, err := repo.Load(ctx, "GACCOUNT", r)
	require.NoError(t, err)
	assert.Len(t, restored.Children(), 2)
}

func TestLoadMissingSnapshot(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	r := domain.NewRegistry("XLM", nil, zerolog.Nop())

	_, err := repo.Load(context.Background(), "GNOBODY", r)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRestoreRegistersUnknownAssets(t *testing.T) {
	source := domain.NewRegistry("XLM", nil, zerolog.Nop())
	root := NewRoot("portfolio")
	NewAssetTarget(root, source.ResolveAsset("RMT", domain.TypeCrypto, false))

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "GACCOUNT", root))

	// A fresh registry has never seen RMT.
	fresh := domain.NewRegistry("XLM", nil, zerolog.Nop())
	restored, err := repo.Load(ctx, "GACCOUNT", fresh)
	require.NoError(t, err)

	leaf := restored.Children()[0]
	require.NotNil(t, leaf.Asset())
	assert.Equal(t, "RMT", leaf.Asset().Code())
	assert.Equal(t, domain.TypeUnknown, leaf.Asset().Type())
}
