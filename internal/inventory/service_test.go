package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

type memoryStore struct {
	items      map[int64]Item
	txns       []Transaction
	nextItemID int64
	nextTxnID  int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[int64]Item)}
}

func (s *memoryStore) addItem(item Item) Item {
	s.nextItemID++
	item.ID = s.nextItemID
	s.items[item.ID] = item
	return item
}

func (s *memoryStore) GetItem(_ context.Context, _ db.Executor, itemID, orgID int64) (Item, error) {
	item, ok := s.items[itemID]
	if !ok || item.OrganizationID != orgID {
		return Item{}, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
	}
	return item, nil
}

func (s *memoryStore) GetItemForUpdate(ctx context.Context, q db.Executor, itemID, orgID int64) (Item, error) {
	return s.GetItem(ctx, q, itemID, orgID)
}

func (s *memoryStore) UpdateItem(_ context.Context, _ db.Executor, item Item, expected ItemStatus) error {
	current, ok := s.items[item.ID]
	if !ok || current.Status != expected {
		return shared.ErrInvalidState
	}
	s.items[item.ID] = item
	return nil
}

func (s *memoryStore) LockPart(context.Context, db.Executor, int64, int64) error { return nil }

func (s *memoryStore) MaxIdentifier(_ context.Context, _ db.Executor, partID int64) (int64, error) {
	var max int64
	for _, item := range s.items {
		if item.PartID == partID && item.Identifier > max {
			max = item.Identifier
		}
	}
	return max, nil
}

func (s *memoryStore) InsertItem(_ context.Context, _ db.Executor, item Item) (Item, error) {
	return s.addItem(item), nil
}

func (s *memoryStore) InsertTransaction(_ context.Context, _ db.Executor, entry Transaction) (Transaction, error) {
	s.nextTxnID++
	entry.ID = s.nextTxnID
	s.txns = append(s.txns, entry)
	return entry, nil
}

func (s *memoryStore) ListItems(_ context.Context, _ db.Executor, filter ItemFilter) ([]Item, int, error) {
	var out []Item
	for _, item := range s.items {
		if item.OrganizationID == filter.OrganizationID {
			out = append(out, item)
		}
	}
	return out, len(out), nil
}

func (s *memoryStore) ListTransactions(_ context.Context, _ db.Executor, itemID, _ int64) ([]Transaction, error) {
	var out []Transaction
	for _, txn := range s.txns {
		if txn.ItemID == itemID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (s *memoryStore) ledgerFor(itemID int64) []Transaction {
	var out []Transaction
	for _, txn := range s.txns {
		if txn.ItemID == itemID {
			out = append(out, txn)
		}
	}
	return out
}

func TestCreateItemsAssignsConsecutiveIdentifiers(t *testing.T) {
	store := newMemoryStore()
	store.addItem(Item{PartID: 1, OrganizationID: 1, Identifier: 3, Status: StatusAvailable})
	svc := NewService(store)
	ctx := context.Background()

	items, err := svc.CreateItems(ctx, nil, BatchInput{PartID: 1, OrganizationID: 1, Quantity: 2, ActorID: 9})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(4), items[0].Identifier)
	require.Equal(t, int64(5), items[1].Identifier)

	for _, item := range items {
		require.Equal(t, StatusAvailable, item.Status)
		ledger := store.ledgerFor(item.ID)
		require.Len(t, ledger, 1)
		require.Equal(t, KindEntry, ledger[0].Kind)
		require.Equal(t, "Entrada de novo item", ledger[0].Note)
	}
}

func TestCreateItemsRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(newMemoryStore())

	_, err := svc.CreateItems(context.Background(), nil, BatchInput{PartID: 1, OrganizationID: 1, Quantity: 0})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestChangeStatusInstall(t *testing.T) {
	store := newMemoryStore()
	item := store.addItem(Item{PartID: 1, OrganizationID: 1, Identifier: 1, Status: StatusAvailable})
	svc := NewService(store)

	updated, entry, changed, err := svc.ChangeStatus(context.Background(), nil, StatusChange{
		ItemID: item.ID, OrganizationID: 1, Target: StatusInUse, VehicleID: 7, ActorID: 2, Note: "install",
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusInUse, updated.Status)
	require.Equal(t, int64(7), updated.VehicleID)
	require.NotNil(t, updated.InstalledAt)
	require.Equal(t, KindInstall, entry.Kind)
	require.Equal(t, int64(7), entry.VehicleID)
}

func TestChangeStatusInstallRequiresVehicle(t *testing.T) {
	store := newMemoryStore()
	item := store.addItem(Item{PartID: 1, OrganizationID: 1, Identifier: 1, Status: StatusAvailable})
	svc := NewService(store)

	_, _, _, err := svc.ChangeStatus(context.Background(), nil, StatusChange{
		ItemID: item.ID, OrganizationID: 1, Target: StatusInUse,
	})
	require.ErrorIs(t, err, shared.ErrMissingVehicle)
	require.Empty(t, store.ledgerFor(item.ID))
}

func TestChangeStatusNoOpWritesNothing(t *testing.T) {
	store := newMemoryStore()
	item := store.addItem(Item{PartID: 1, OrganizationID: 1, Identifier: 1, Status: StatusAvailable})
	svc := NewService(store)

	updated, _, changed, err := svc.ChangeStatus(context.Background(), nil, StatusChange{
		ItemID: item.ID, OrganizationID: 1, Target: StatusAvailable,
	})
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, StatusAvailable, updated.Status)
	require.Empty(t, store.ledgerFor(item.ID))
}

func TestChangeStatusRejectsInstallFromEndOfLife(t *testing.T) {
	store := newMemoryStore()
	item := store.addItem(Item{PartID: 1, OrganizationID: 1, Identifier: 1, Status: StatusEndOfLife})
	svc := NewService(store)

	_, _, _, err := svc.ChangeStatus(context.Background(), nil, StatusChange{
		ItemID: item.ID, OrganizationID: 1, Target: StatusInUse, VehicleID: 7,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestChangeStatusDiscardStraightFromStock(t *testing.T) {
	store := newMemoryStore()
	item := store.addItem(Item{PartID: 1, OrganizationID: 1, Identifier: 1, Status: StatusAvailable})
	svc := NewService(store)

	updated, entry, changed, err := svc.ChangeStatus(context.Background(), nil, StatusChange{
		ItemID: item.ID, OrganizationID: 1, Target: StatusEndOfLife,
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusEndOfLife, updated.Status)
	require.Equal(t, KindEndOfLife, entry.Kind)
}

func TestChangeStatusReturnKeepsPriorVehicleOnLedger(t *testing.T) {
	store := newMemoryStore()
	item := store.addItem(Item{PartID: 1, OrganizationID: 1, Identifier: 1, Status: StatusInUse, VehicleID: 7})
	svc := NewService(store)

	updated, entry, changed, err := svc.ChangeStatus(context.Background(), nil, StatusChange{
		ItemID: item.ID, OrganizationID: 1, Target: StatusAvailable,
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusAvailable, updated.Status)
	require.Zero(t, updated.VehicleID)
	require.Nil(t, updated.InstalledAt)
	require.Equal(t, KindReturn, entry.Kind)
	require.Equal(t, int64(7), entry.VehicleID)
}

func TestChangeStatusReturnFromEndOfLife(t *testing.T) {
	store := newMemoryStore()
	item := store.addItem(Item{PartID: 1, OrganizationID: 1, Identifier: 1, Status: StatusEndOfLife})
	svc := NewService(store)

	updated, entry, changed, err := svc.ChangeStatus(context.Background(), nil, StatusChange{
		ItemID: item.ID, OrganizationID: 1, Target: StatusAvailable,
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusAvailable, updated.Status)
	require.Equal(t, KindReturn, entry.Kind)
}

func TestHistoryRequiresItemInScope(t *testing.T) {
	store := newMemoryStore()
	item := store.addItem(Item{PartID: 1, OrganizationID: 1, Identifier: 1, Status: StatusAvailable})
	svc := NewService(store)

	_, err := svc.History(context.Background(), nil, item.ID, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
