package returns

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sokoni/internal/modules/order"
	"sokoni/internal/types"
)

type memStore struct {
	mu       sync.Mutex
	requests map[types.ID]*ReturnRequest
}

func newMemStore() *memStore {
	return &memStore{requests: map[types.ID]*ReturnRequest{}}
}

func (m *memStore) CreateIfNoneActive(_ context.Context, r *ReturnRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.OrderID == r.OrderID && existing.Status.Active() {
			return false, nil
		}
	}
	cp := *r
	m.requests[r.ID] = &cp
	return true, nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*ReturnRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, adminNotes string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	if adminNotes != "" {
		r.AdminNotes = adminNotes
	}
	now := time.Now()
	switch to {
	case StatusApproved, StatusRejected:
		r.ResolvedAt = &now
	case StatusCompleted:
		r.CompletedAt = &now
	}
	return true, nil
}

func (m *memStore) ListByOrder(_ context.Context, orderID types.ID) ([]*ReturnRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ReturnRequest
	for _, r := range m.requests {
		if r.OrderID == orderID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeOrders struct {
	mu sync.Mutex
	m  map[types.ID]*order.Order
}

func (f *fakeOrders) Get(_ context.Context, id types.ID) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.m[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

type fakeReverser struct {
	mu       sync.Mutex
	reversed []types.ID
}

func (f *fakeReverser) Reverse(_ context.Context, orderID types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reversed = append(f.reversed, orderID)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(_ context.Context, _, event string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type fixture struct {
	svc      *Service
	orders   *fakeOrders
	reverser *fakeReverser
	notifier *fakeNotifier
}

func newFixture() *fixture {
	orders := &fakeOrders{m: map[types.ID]*order.Order{}}
	reverser := &fakeReverser{}
	notifier := &fakeNotifier{}
	svc := NewService(newMemStore(), orders, reverser, notifier, 24*time.Hour)
	return &fixture{svc: svc, orders: orders, reverser: reverser, notifier: notifier}
}

func (f *fixture) addOrder(status order.Status, deliveredAgo time.Duration) types.ID {
	id := types.NewID()
	o := &order.Order{
		ID:     id,
		Status: status,
		Items: []order.Item{
			{ProductID: "prod-1", Name: "Beans 1kg", ReturnEligible: true},
			{ProductID: "prod-2", Name: "Sukuma crate", ReturnEligible: false},
		},
	}
	if deliveredAgo >= 0 {
		at := time.Now().Add(-deliveredAgo)
		o.ActualDeliveryDate = &at
	}
	f.orders.mu.Lock()
	f.orders.m[id] = o
	f.orders.mu.Unlock()
	return id
}

func fileCmd(orderID types.ID) FileCommand {
	return FileCommand{
		OrderID:    orderID,
		Reason:     "damaged on arrival",
		Resolution: ResolutionRefund,
		Message:    "box was crushed",
	}
}

func TestFileInsideWindow(t *testing.T) {
	f := newFixture()
	orderID := f.addOrder(order.StatusDelivered, 23*time.Hour+59*time.Minute)

	r, err := f.svc.File(context.Background(), fileCmd(orderID))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.Contains(t, f.notifier.events, "return_filed")
}

func TestFileAfterWindowCloses(t *testing.T) {
	f := newFixture()
	orderID := f.addOrder(order.StatusDelivered, 24*time.Hour+time.Minute)

	_, err := f.svc.File(context.Background(), fileCmd(orderID))
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestFileBeforeDelivery(t *testing.T) {
	f := newFixture()
	orderID := f.addOrder(order.StatusShipped, -1)

	_, err := f.svc.File(context.Background(), fileCmd(orderID))
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestDuplicateReturnBlocked(t *testing.T) {
	f := newFixture()
	orderID := f.addOrder(order.StatusDelivered, time.Hour)

	_, err := f.svc.File(context.Background(), fileCmd(orderID))
	require.NoError(t, err)

	_, err = f.svc.File(context.Background(), fileCmd(orderID))
	assert.ErrorIs(t, err, ErrDuplicateReturn)
}

func TestRejectedReturnAllowsRefiling(t *testing.T) {
	f := newFixture()
	orderID := f.addOrder(order.StatusDelivered, time.Hour)

	r, err := f.svc.File(context.Background(), fileCmd(orderID))
	require.NoError(t, err)
	_, err = f.svc.Resolve(context.Background(), r.ID, false, "photos inconclusive")
	require.NoError(t, err)

	_, err = f.svc.File(context.Background(), fileCmd(orderID))
	assert.NoError(t, err, "a rejected request is no longer active")
}

func TestEligibilityAdvisories(t *testing.T) {
	f := newFixture()
	orderID := f.addOrder(order.StatusDelivered, time.Hour)

	elig, err := f.svc.Eligibility(context.Background(), orderID, time.Now())
	require.NoError(t, err)
	assert.True(t, elig.Eligible)
	require.Len(t, elig.Items, 2)
	assert.True(t, elig.Items[0].ReturnEligible)
	assert.False(t, elig.Items[1].ReturnEligible, "non-returnable item is flagged, not blocking")
	require.NotNil(t, elig.WindowEnds)
}

func TestEligibilityBoundary(t *testing.T) {
	f := newFixture()
	delivered := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orderID := f.addOrder(order.StatusDelivered, 0)
	f.orders.mu.Lock()
	f.orders.m[orderID].ActualDeliveryDate = &delivered
	f.orders.mu.Unlock()

	elig, err := f.svc.Eligibility(context.Background(), orderID, delivered.Add(23*time.Hour+59*time.Minute))
	require.NoError(t, err)
	assert.True(t, elig.Eligible)

	elig, err = f.svc.Eligibility(context.Background(), orderID, delivered.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, elig.Eligible, "exactly 24h is still inside the window")

	elig, err = f.svc.Eligibility(context.Background(), orderID, delivered.Add(24*time.Hour+time.Minute))
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
}

func TestAdminWorkflow(t *testing.T) {
	f := newFixture()
	orderID := f.addOrder(order.StatusDelivered, time.Hour)
	r, err := f.svc.File(context.Background(), fileCmd(orderID))
	require.NoError(t, err)

	r, err = f.svc.Resolve(context.Background(), r.ID, true, "approved per photos")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, r.Status)
	assert.Equal(t, "approved per photos", r.AdminNotes)
	require.NotNil(t, r.ResolvedAt)

	r, err = f.svc.Complete(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, r.Status)
	require.NotNil(t, r.CompletedAt)
	assert.Equal(t, []types.ID{orderID}, f.reverser.reversed, "completed refund reverses earnings")
}

func TestWorkflowIllegalMoves(t *testing.T) {
	f := newFixture()
	orderID := f.addOrder(order.StatusDelivered, time.Hour)
	r, err := f.svc.File(context.Background(), fileCmd(orderID))
	require.NoError(t, err)

	// pending cannot complete
	_, err = f.svc.Complete(context.Background(), r.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = f.svc.Resolve(context.Background(), r.ID, false, "")
	require.NoError(t, err)

	// rejected is terminal
	_, err = f.svc.Resolve(context.Background(), r.ID, true, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	_, err = f.svc.Complete(context.Background(), r.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestFileValidation(t *testing.T) {
	f := newFixture()
	orderID := f.addOrder(order.StatusDelivered, time.Hour)

	cmd := fileCmd(orderID)
	cmd.Resolution = "store_credit"
	_, err := f.svc.File(context.Background(), cmd)
	assert.ErrorIs(t, err, ErrBadRequest)

	cmd = fileCmd(orderID)
	cmd.Reason = ""
	_, err = f.svc.File(context.Background(), cmd)
	assert.ErrorIs(t, err, ErrBadRequest)
}
