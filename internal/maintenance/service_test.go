package maintenance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Vitorhlem/TruCar/internal/components"
	"github.com/Vitorhlem/TruCar/internal/costs"
	"github.com/Vitorhlem/TruCar/internal/inventory"
	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

type passRunner struct{}

func (passRunner) WithTx(ctx context.Context, fn func(context.Context, db.Executor) error) error {
	return fn(ctx, nil)
}

type fakeItems struct {
	items      map[int64]inventory.Item
	nextItemID int64
	nextTxnID  int64
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: make(map[int64]inventory.Item)}
}

func (s *fakeItems) addItem(item inventory.Item) inventory.Item {
	s.nextItemID++
	item.ID = s.nextItemID
	s.items[item.ID] = item
	return item
}

func (s *fakeItems) GetItem(_ context.Context, _ db.Executor, itemID, orgID int64) (inventory.Item, error) {
	item, ok := s.items[itemID]
	if !ok || item.OrganizationID != orgID {
		return inventory.Item{}, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
	}
	return item, nil
}

func (s *fakeItems) GetItemForUpdate(ctx context.Context, q db.Executor, itemID, orgID int64) (inventory.Item, error) {
	return s.GetItem(ctx, q, itemID, orgID)
}

func (s *fakeItems) UpdateItem(_ context.Context, _ db.Executor, item inventory.Item, expected inventory.ItemStatus) error {
	current, ok := s.items[item.ID]
	if !ok || current.Status != expected {
		return shared.ErrInvalidState
	}
	s.items[item.ID] = item
	return nil
}

func (s *fakeItems) LockPart(context.Context, db.Executor, int64, int64) error { return nil }

func (s *fakeItems) MaxIdentifier(context.Context, db.Executor, int64) (int64, error) { return 0, nil }

func (s *fakeItems) InsertItem(_ context.Context, _ db.Executor, item inventory.Item) (inventory.Item, error) {
	return s.addItem(item), nil
}

func (s *fakeItems) InsertTransaction(_ context.Context, _ db.Executor, entry inventory.Transaction) (inventory.Transaction, error) {
	s.nextTxnID++
	entry.ID = s.nextTxnID
	return entry, nil
}

func (s *fakeItems) ListItems(context.Context, db.Executor, inventory.ItemFilter) ([]inventory.Item, int, error) {
	return nil, 0, nil
}

func (s *fakeItems) ListTransactions(context.Context, db.Executor, int64, int64) ([]inventory.Transaction, error) {
	return nil, nil
}

type fakeComponents struct {
	components map[int64]components.Component
	parts      map[int64]components.PartRef
	items      *fakeItems
	nextID     int64
}

func newFakeComponents(items *fakeItems) *fakeComponents {
	return &fakeComponents{
		components: make(map[int64]components.Component),
		parts:      make(map[int64]components.PartRef),
		items:      items,
	}
}

func (s *fakeComponents) enrich(c components.Component) components.Component {
	c.PartName = s.parts[c.PartID].Name
	c.ItemIdentifier = s.items.items[c.ItemID].Identifier
	return c
}

func (s *fakeComponents) Insert(_ context.Context, _ db.Executor, c components.Component) (components.Component, error) {
	s.nextID++
	c.ID = s.nextID
	c.InstalledAt = time.Now().UTC()
	s.components[c.ID] = c
	return s.enrich(c), nil
}

func (s *fakeComponents) Get(_ context.Context, _ db.Executor, componentID, orgID int64) (components.Component, error) {
	c, ok := s.components[componentID]
	if !ok || c.OrganizationID != orgID {
		return components.Component{}, fmt.Errorf("component %d: %w", componentID, shared.ErrNotFound)
	}
	return s.enrich(c), nil
}

func (s *fakeComponents) FindInactiveByItem(_ context.Context, _ db.Executor, itemID, vehicleID int64) (components.Component, error) {
	var found components.Component
	var ok bool
	for _, c := range s.components {
		if !c.IsActive && c.ItemID == itemID && c.VehicleID == vehicleID {
			found, ok = c, true
		}
	}
	if !ok {
		return components.Component{}, shared.ErrNotFound
	}
	return s.enrich(found), nil
}

func (s *fakeComponents) FindActiveByItem(_ context.Context, _ db.Executor, itemID int64) (components.Component, error) {
	for _, c := range s.components {
		if c.IsActive && c.ItemID == itemID {
			return s.enrich(c), nil
		}
	}
	return components.Component{}, shared.ErrNotFound
}

func (s *fakeComponents) Reactivate(_ context.Context, _ db.Executor, componentID, transactionID int64) error {
	c, ok := s.components[componentID]
	if !ok || c.IsActive {
		return shared.ErrInvalidState
	}
	c.IsActive = true
	c.UninstalledAt = nil
	c.InventoryTransactionID = transactionID
	s.components[componentID] = c
	return nil
}

func (s *fakeComponents) Deactivate(_ context.Context, _ db.Executor, componentID int64, at time.Time) error {
	c, ok := s.components[componentID]
	if !ok || !c.IsActive {
		return shared.ErrInvalidState
	}
	c.IsActive = false
	c.UninstalledAt = &at
	s.components[componentID] = c
	return nil
}

func (s *fakeComponents) ListActiveByVehicle(_ context.Context, _ db.Executor, vehicleID, orgID int64) ([]components.Component, error) {
	var out []components.Component
	for _, c := range s.components {
		if c.IsActive && c.VehicleID == vehicleID && c.OrganizationID == orgID {
			out = append(out, s.enrich(c))
		}
	}
	return out, nil
}

func (s *fakeComponents) PartRef(_ context.Context, _ db.Executor, partID, _ int64) (components.PartRef, error) {
	ref, ok := s.parts[partID]
	if !ok {
		return components.PartRef{}, shared.ErrNotFound
	}
	return ref, nil
}

type fakeCosts struct {
	entries []costs.Cost
}

func (l *fakeCosts) Insert(_ context.Context, _ db.Executor, c costs.Cost) (costs.Cost, error) {
	c.ID = int64(len(l.entries) + 1)
	l.entries = append(l.entries, c)
	return c, nil
}

func (l *fakeCosts) total() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range l.entries {
		sum = sum.Add(c.Amount)
	}
	return sum
}

type fakeMaintStore struct {
	requests      map[int64]Request
	comments      []Comment
	changes       map[int64]PartChange
	managers      []int64
	vehicles      map[int64]bool
	nextRequestID int64
	nextCommentID int64
	nextChangeID  int64
}

func newFakeMaintStore() *fakeMaintStore {
	return &fakeMaintStore{
		requests: make(map[int64]Request),
		changes:  make(map[int64]PartChange),
		vehicles: make(map[int64]bool),
	}
}

func (s *fakeMaintStore) addRequest(r Request) Request {
	s.nextRequestID++
	r.ID = s.nextRequestID
	s.requests[r.ID] = r
	return r
}

func (s *fakeMaintStore) InsertRequest(_ context.Context, _ db.Executor, r Request) (Request, error) {
	return s.addRequest(r), nil
}

func (s *fakeMaintStore) GetRequest(_ context.Context, _ db.Executor, requestID, orgID int64) (Request, error) {
	r, ok := s.requests[requestID]
	if !ok || r.OrganizationID != orgID {
		return Request{}, fmt.Errorf("request %d: %w", requestID, shared.ErrNotFound)
	}
	return r, nil
}

func (s *fakeMaintStore) ListRequests(_ context.Context, _ db.Executor, filter RequestFilter) ([]Request, int, error) {
	var out []Request
	for _, r := range s.requests {
		if r.OrganizationID == filter.OrganizationID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (s *fakeMaintStore) UpdateRequestStatus(_ context.Context, _ db.Executor, requestID, orgID int64, status Status, managerNotes string, approverID int64) (Request, error) {
	r, ok := s.requests[requestID]
	if !ok || r.OrganizationID != orgID {
		return Request{}, shared.ErrNotFound
	}
	r.Status = status
	r.ManagerNotes = managerNotes
	r.ApproverID = approverID
	s.requests[requestID] = r
	return r, nil
}

func (s *fakeMaintStore) DeleteRequest(_ context.Context, _ db.Executor, requestID, orgID int64) error {
	r, ok := s.requests[requestID]
	if !ok || r.OrganizationID != orgID {
		return shared.ErrNotFound
	}
	delete(s.requests, requestID)
	return nil
}

func (s *fakeMaintStore) VehicleExists(_ context.Context, _ db.Executor, vehicleID, _ int64) (bool, error) {
	return s.vehicles[vehicleID], nil
}

func (s *fakeMaintStore) InsertComment(_ context.Context, _ db.Executor, c Comment) (Comment, error) {
	s.nextCommentID++
	c.ID = s.nextCommentID
	s.comments = append(s.comments, c)
	return c, nil
}

func (s *fakeMaintStore) ListComments(_ context.Context, _ db.Executor, requestID, _ int64) ([]Comment, error) {
	var out []Comment
	for _, c := range s.comments {
		if c.RequestID == requestID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeMaintStore) InsertPartChange(_ context.Context, _ db.Executor, pc PartChange) (PartChange, error) {
	s.nextChangeID++
	pc.ID = s.nextChangeID
	s.changes[pc.ID] = pc
	return pc, nil
}

func (s *fakeMaintStore) GetPartChangeForUpdate(_ context.Context, _ db.Executor, changeID int64) (PartChange, error) {
	pc, ok := s.changes[changeID]
	if !ok {
		return PartChange{}, fmt.Errorf("change %d: %w", changeID, shared.ErrNotFound)
	}
	return pc, nil
}

func (s *fakeMaintStore) ListPartChanges(_ context.Context, _ db.Executor, requestID int64) ([]PartChange, error) {
	var out []PartChange
	for _, pc := range s.changes {
		if pc.RequestID == requestID {
			out = append(out, pc)
		}
	}
	return out, nil
}

func (s *fakeMaintStore) MarkReverted(_ context.Context, _ db.Executor, changeID int64) error {
	pc, ok := s.changes[changeID]
	if !ok {
		return shared.ErrNotFound
	}
	if pc.IsReverted {
		return shared.ErrAlreadyReverted
	}
	pc.IsReverted = true
	s.changes[changeID] = pc
	return nil
}

func (s *fakeMaintStore) ListManagerIDs(context.Context, db.Executor, int64) ([]int64, error) {
	return s.managers, nil
}

type fakeNotifier struct {
	sent []Notification
}

func (n *fakeNotifier) Notify(_ context.Context, notification Notification) error {
	n.sent = append(n.sent, notification)
	return nil
}

type harness struct {
	svc       *Service
	store     *fakeMaintStore
	items     *fakeItems
	comps     *fakeComponents
	ledger    *fakeCosts
	notifier  *fakeNotifier
	installer *components.Service
}

func newHarness() *harness {
	items := newFakeItems()
	comps := newFakeComponents(items)
	ledger := &fakeCosts{}
	store := newFakeMaintStore()
	notifier := &fakeNotifier{}
	installer := components.NewService(comps, inventory.NewService(items), ledger)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &harness{
		svc:       NewService(logger, store, installer, passRunner{}, notifier, nil),
		store:     store,
		items:     items,
		comps:     comps,
		ledger:    ledger,
		notifier:  notifier,
		installer: installer,
	}
}

// brakePadScenario sets up the canonical workshop fixture: a worn unit
// installed on vehicle 7 and a fresh 150.00 unit sitting in stock.
func brakePadScenario(t *testing.T, h *harness) (request Request, wornComponentID, freshItemID int64) {
	t.Helper()
	h.comps.parts[1] = components.PartRef{Name: "Pastilha de Freio", Value: decimal.RequireFromString("150.00")}
	h.store.vehicles[7] = true
	request = h.store.addRequest(Request{
		OrganizationID:     1,
		VehicleID:          7,
		ReportedByID:       5,
		ProblemDescription: "Freio rangendo",
		Category:           CategoryCorrective,
		Status:             StatusInProgress,
	})

	worn := h.items.addItem(inventory.Item{PartID: 1, OrganizationID: 1, Identifier: 1, Status: inventory.StatusAvailable})
	result, err := h.installer.ChangeItemStatus(context.Background(), nil, components.ChangeInput{
		ItemID: worn.ID, OrganizationID: 1, Target: inventory.StatusInUse, VehicleID: 7, ActorID: 2,
	})
	require.NoError(t, err)

	fresh := h.items.addItem(inventory.Item{PartID: 1, OrganizationID: 1, Identifier: 2, Status: inventory.StatusAvailable})
	return request, result.Component.ID, fresh.ID
}

func TestCreateRequestNotifiesManagers(t *testing.T) {
	h := newHarness()
	h.store.vehicles[7] = true
	h.store.managers = []int64{5, 10}

	request, err := h.svc.CreateRequest(context.Background(), CreateRequestInput{
		OrganizationID:     1,
		VehicleID:          7,
		ReportedByID:       5,
		ProblemDescription: "Freio rangendo",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, request.Status)
	require.Equal(t, CategoryCorrective, request.Category)

	// The reporter never gets notified about their own ticket.
	require.Len(t, h.notifier.sent, 1)
	require.Equal(t, int64(10), h.notifier.sent[0].UserID)
	require.Equal(t, fmt.Sprintf("Nova solicitação de manutenção (#%d) criada para análise.", request.ID), h.notifier.sent[0].Message)
}

func TestCreateRequestRejectsUnknownVehicle(t *testing.T) {
	h := newHarness()

	_, err := h.svc.CreateRequest(context.Background(), CreateRequestInput{
		OrganizationID:     1,
		VehicleID:          99,
		ReportedByID:       5,
		ProblemDescription: "Freio rangendo",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateStatusNotifiesReporter(t *testing.T) {
	h := newHarness()
	request := h.store.addRequest(Request{OrganizationID: 1, VehicleID: 7, ReportedByID: 5, Status: StatusPending})

	updated, err := h.svc.UpdateStatus(context.Background(), request.ID, 1, StatusApproved, "ok", 10)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, updated.Status)

	require.Len(t, h.notifier.sent, 1)
	require.Equal(t, int64(5), h.notifier.sent[0].UserID)
	require.Equal(t, fmt.Sprintf("O status da sua solicitação de manutenção (#%d) foi atualizado para: %s.", request.ID, StatusApproved), h.notifier.sent[0].Message)
}

func TestReplaceComponent(t *testing.T) {
	h := newHarness()
	request, wornComponentID, freshItemID := brakePadScenario(t, h)
	ctx := context.Background()

	change, comment, err := h.svc.ReplaceComponent(ctx, ReplaceInput{
		RequestID:           request.ID,
		OrganizationID:      1,
		ComponentToRemoveID: wornComponentID,
		NewItemID:           freshItemID,
		ActorID:             2,
		ActorName:           "Gestor Demo",
	})
	require.NoError(t, err)
	require.Equal(t, wornComponentID, change.ComponentRemovedID)
	require.False(t, change.IsReverted)

	// Old unit is dead, new unit runs on the vehicle.
	worn := h.items.items[1]
	require.Equal(t, inventory.StatusEndOfLife, worn.Status)
	fresh := h.items.items[freshItemID]
	require.Equal(t, inventory.StatusInUse, fresh.Status)
	require.Equal(t, int64(7), fresh.VehicleID)

	installed, err := h.comps.Get(ctx, nil, change.ComponentInstalledID, 1)
	require.NoError(t, err)
	require.True(t, installed.IsActive)

	// Setup install 150 + replacement install 150, discard credits nothing.
	require.True(t, h.ledger.total().Equal(decimal.RequireFromString("300.00")))

	require.Equal(t, "Substituição de componente realizada por Gestor Demo:\n- [SAIU] Pastilha de Freio (Cód. Item: 1)\n- [ENTROU] Pastilha de Freio (Cód. Item: 2)\nNota: N/A", comment.Text)
	comments, err := h.store.ListComments(ctx, nil, request.ID, 1)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	require.Len(t, h.notifier.sent, 1)
	require.Equal(t, request.ReportedByID, h.notifier.sent[0].UserID)
}

func TestReplaceComponentRequiresVehicleOnRequest(t *testing.T) {
	h := newHarness()
	request := h.store.addRequest(Request{OrganizationID: 1, ReportedByID: 5, Status: StatusInProgress})

	_, _, err := h.svc.ReplaceComponent(context.Background(), ReplaceInput{
		RequestID:           request.ID,
		OrganizationID:      1,
		ComponentToRemoveID: 1,
		NewItemID:           1,
		ActorID:             2,
	})
	require.ErrorIs(t, err, shared.ErrMissingVehicle)
}

func TestReplaceComponentRejectsInstalledNewItem(t *testing.T) {
	h := newHarness()
	request, wornComponentID, freshItemID := brakePadScenario(t, h)
	ctx := context.Background()

	// The replacement unit is already running on another vehicle.
	_, err := h.installer.ChangeItemStatus(ctx, nil, components.ChangeInput{
		ItemID: freshItemID, OrganizationID: 1, Target: inventory.StatusInUse, VehicleID: 8, ActorID: 2,
	})
	require.NoError(t, err)

	_, _, err = h.svc.ReplaceComponent(ctx, ReplaceInput{
		RequestID:           request.ID,
		OrganizationID:      1,
		ComponentToRemoveID: wornComponentID,
		NewItemID:           freshItemID,
		ActorID:             2,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRevertPartChange(t *testing.T) {
	h := newHarness()
	request, wornComponentID, freshItemID := brakePadScenario(t, h)
	ctx := context.Background()

	change, _, err := h.svc.ReplaceComponent(ctx, ReplaceInput{
		RequestID:           request.ID,
		OrganizationID:      1,
		ComponentToRemoveID: wornComponentID,
		NewItemID:           freshItemID,
		ActorID:             2,
		ActorName:           "Gestor Demo",
	})
	require.NoError(t, err)

	reverted, comment, err := h.svc.RevertPartChange(ctx, RevertInput{
		ChangeID:       change.ID,
		OrganizationID: 1,
		ActorID:        2,
		ActorName:      "Gestor Demo",
	})
	require.NoError(t, err)
	require.True(t, reverted.IsReverted)

	// New unit is back in stock, its installation cost credited.
	fresh := h.items.items[freshItemID]
	require.Equal(t, inventory.StatusAvailable, fresh.Status)
	require.Zero(t, fresh.VehicleID)

	// Worn unit runs again on its original component row, with no new charge.
	worn := h.items.items[1]
	require.Equal(t, inventory.StatusInUse, worn.Status)
	require.Equal(t, int64(7), worn.VehicleID)
	restored, err := h.comps.Get(ctx, nil, wornComponentID, 1)
	require.NoError(t, err)
	require.True(t, restored.IsActive)

	// Only the setup install remains on the books: the substitution and its
	// reversal cancel out.
	require.True(t, h.ledger.total().Equal(decimal.RequireFromString("150.00")))

	require.Equal(t, "Troca revertida por Gestor Demo:\nO item 'Pastilha de Freio' (Cód. Item: 2) foi desinstalado e retornado ao estoque como 'Disponível'.\nO item 'Pastilha de Freio' (Cód. Item: 1) foi reinstalado no veículo.", comment.Text)

	comments, err := h.store.ListComments(ctx, nil, request.ID, 1)
	require.NoError(t, err)
	require.Len(t, comments, 2)
}

func TestRevertPartChangeTwiceFails(t *testing.T) {
	h := newHarness()
	request, wornComponentID, freshItemID := brakePadScenario(t, h)
	ctx := context.Background()

	change, _, err := h.svc.ReplaceComponent(ctx, ReplaceInput{
		RequestID:           request.ID,
		OrganizationID:      1,
		ComponentToRemoveID: wornComponentID,
		NewItemID:           freshItemID,
		ActorID:             2,
	})
	require.NoError(t, err)

	_, _, err = h.svc.RevertPartChange(ctx, RevertInput{ChangeID: change.ID, OrganizationID: 1, ActorID: 2})
	require.NoError(t, err)

	ledgerBefore := len(h.ledger.entries)
	commentsBefore := len(h.store.comments)

	_, _, err = h.svc.RevertPartChange(ctx, RevertInput{ChangeID: change.ID, OrganizationID: 1, ActorID: 2})
	require.ErrorIs(t, err, shared.ErrAlreadyReverted)
	require.Len(t, h.ledger.entries, ledgerBefore)
	require.Len(t, h.store.comments, commentsBefore)
}

func TestRevertPartChangeAfterSupersedingSwapFails(t *testing.T) {
	h := newHarness()
	request, wornComponentID, freshItemID := brakePadScenario(t, h)
	ctx := context.Background()

	change, _, err := h.svc.ReplaceComponent(ctx, ReplaceInput{
		RequestID:           request.ID,
		OrganizationID:      1,
		ComponentToRemoveID: wornComponentID,
		NewItemID:           freshItemID,
		ActorID:             2,
	})
	require.NoError(t, err)

	// A later swap already removed the installed unit.
	_, err = h.installer.Discard(ctx, nil, components.DiscardInput{
		ComponentID:    change.ComponentInstalledID,
		OrganizationID: 1,
		FinalStatus:    inventory.StatusEndOfLife,
		ActorID:        2,
	})
	require.NoError(t, err)

	_, _, err = h.svc.RevertPartChange(ctx, RevertInput{ChangeID: change.ID, OrganizationID: 1, ActorID: 2})
	require.ErrorIs(t, err, shared.ErrAlreadySuperseded)
}

func TestRevertPartChangeRefusesWhenRemovedUnitRunsElsewhere(t *testing.T) {
	h := newHarness()
	request, wornComponentID, freshItemID := brakePadScenario(t, h)
	ctx := context.Background()

	change, _, err := h.svc.ReplaceComponent(ctx, ReplaceInput{
		RequestID:           request.ID,
		OrganizationID:      1,
		ComponentToRemoveID: wornComponentID,
		NewItemID:           freshItemID,
		OldItemStatus:       inventory.StatusAvailable,
		ActorID:             2,
	})
	require.NoError(t, err)

	// The removed unit found a new home in the meantime.
	_, err = h.installer.ChangeItemStatus(ctx, nil, components.ChangeInput{
		ItemID: 1, OrganizationID: 1, Target: inventory.StatusInUse, VehicleID: 9, ActorID: 2,
	})
	require.NoError(t, err)

	_, _, err = h.svc.RevertPartChange(ctx, RevertInput{ChangeID: change.ID, OrganizationID: 1, ActorID: 2})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreateCommentNotifiesReporter(t *testing.T) {
	h := newHarness()
	request := h.store.addRequest(Request{OrganizationID: 1, VehicleID: 7, ReportedByID: 5, Status: StatusPending})

	comment, err := h.svc.CreateComment(context.Background(), request.ID, 1, 10, "Peça encomendada.", "")
	require.NoError(t, err)
	require.Equal(t, "Peça encomendada.", comment.Text)

	require.Len(t, h.notifier.sent, 1)
	require.Equal(t, int64(5), h.notifier.sent[0].UserID)
}
