package ledger

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/webledger/ledgerstore/pkg/docstore"
	"github.com/webledger/ledgerstore/pkg/hash"
	"github.com/webledger/ledgerstore/pkg/ledgererr"
)

func TestLedgerRegistryAddRejectsDuplicateLedgerID(t *testing.T) {
	store, err := docstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry, err := NewLedgerRegistry(store, hash.New(), nil, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = registry.Add(ctx, "urn:uuid:ledger-1", nil)
	require.NoError(t, err)

	_, err = registry.Add(ctx, "urn:uuid:ledger-1", nil)
	require.True(t, ledgererr.Is(err, ledgererr.KindDuplicateError))
}

func TestLedgerRegistryGetAfterAdd(t *testing.T) {
	store, err := docstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry, err := NewLedgerRegistry(store, hash.New(), nil, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	added, err := registry.Add(ctx, "urn:uuid:ledger-1", nil)
	require.NoError(t, err)

	got, err := registry.Get(ctx, "urn:uuid:ledger-1", nil)
	require.NoError(t, err)
	require.Equal(t, added.LedgerID, got.LedgerID)
	require.Equal(t, added.StorageID, got.StorageID)
}

func TestLedgerRegistryGetNotFound(t *testing.T) {
	store, err := docstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry, err := NewLedgerRegistry(store, hash.New(), nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = registry.Get(context.Background(), "urn:uuid:missing", nil)
	require.True(t, ledgererr.Is(err, ledgererr.KindNotFound))
}

func TestLedgerRegistryRemoveThenGetNotFound(t *testing.T) {
	store, err := docstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry, err := NewLedgerRegistry(store, hash.New(), nil, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = registry.Add(ctx, "urn:uuid:ledger-1", nil)
	require.NoError(t, err)

	require.NoError(t, registry.Remove(ctx, "urn:uuid:ledger-1"))

	_, err = registry.Get(ctx, "urn:uuid:ledger-1", nil)
	require.True(t, ledgererr.Is(err, ledgererr.KindNotFound))

	err = registry.Remove(ctx, "urn:uuid:ledger-1")
	require.True(t, ledgererr.Is(err, ledgererr.KindNotFound))
}

func TestLedgerRegistryIterate(t *testing.T) {
	store, err := docstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry, err := NewLedgerRegistry(store, hash.New(), nil, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = registry.Add(ctx, "urn:uuid:ledger-1", nil)
	require.NoError(t, err)
	_, err = registry.Add(ctx, "urn:uuid:ledger-2", nil)
	require.NoError(t, err)

	it, err := registry.Iterate(ctx)
	require.NoError(t, err)
	defer it.Close(ctx)

	var seen []string
	for it.Next(ctx) {
		seen = append(seen, it.Row().LedgerID)
	}
	require.NoError(t, it.Err())
	require.ElementsMatch(t, []string{"urn:uuid:ledger-1", "urn:uuid:ledger-2"}, seen)
}
