package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-school-payments/app/entity"
	"github.com/vibast-solutions/ms-go-school-payments/app/events"
	"github.com/vibast-solutions/ms-go-school-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-school-payments/app/lock"
	"github.com/vibast-solutions/ms-go-school-payments/app/repository"
)

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*entity.Order
	seq    []string
	err    error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]*entity.Order{}}
}

func (r *memOrderRepo) Create(_ context.Context, order *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.orders[order.ID]; ok {
		return repository.ErrOrderAlreadyExists
	}
	copyItem := *order
	r.orders[order.ID] = &copyItem
	r.seq = append(r.seq, order.ID)
	return nil
}

func (r *memOrderRepo) TransitionSubmission(_ context.Context, id, from, to string, submissionErr *string, updatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.orders[id]
	if !ok || item.SubmissionState != from {
		return false, nil
	}
	item.SubmissionState = to
	item.SubmissionError = submissionErr
	item.UpdatedAt = updatedAt
	return true, nil
}

func (r *memOrderRepo) List(_ context.Context) ([]*entity.Order, error) {
	return r.filter(func(*entity.Order) bool { return true })
}

func (r *memOrderRepo) ListBySchoolID(_ context.Context, schoolID string) ([]*entity.Order, error) {
	return r.filter(func(o *entity.Order) bool { return o.SchoolID == schoolID })
}

func (r *memOrderRepo) ListStaleSubmissions(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error) {
	items, err := r.filter(func(o *entity.Order) bool {
		return o.SubmissionState == entity.SubmissionPending && !o.CreatedAt.After(cutoff)
	})
	if err != nil {
		return nil, err
	}
	if len(items) > int(limit) {
		items = items[:limit]
	}
	return items, nil
}

// filter returns matches newest first, like the SQL repository.
func (r *memOrderRepo) filter(keep func(*entity.Order) bool) ([]*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	items := make([]*entity.Order, 0)
	for i := len(r.seq) - 1; i >= 0; i-- {
		item := r.orders[r.seq[i]]
		if keep(item) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (r *memOrderRepo) get(id string) *entity.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.orders[id]
	if !ok {
		return nil
	}
	copyItem := *item
	return &copyItem
}

type memStatusRepo struct {
	mu        sync.Mutex
	statuses  map[string]*entity.OrderStatus
	nextID    uint64
	createErr error
	applyErr  error
}

func newMemStatusRepo() *memStatusRepo {
	return &memStatusRepo{statuses: map[string]*entity.OrderStatus{}, nextID: 1}
}

func (r *memStatusRepo) Create(_ context.Context, status *entity.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, item := range r.statuses {
		if item.CustomOrderID == status.CustomOrderID || item.CollectID == status.CollectID {
			return repository.ErrOrderStatusAlreadyExists
		}
	}
	copyItem := *status
	copyItem.ID = r.nextID
	r.nextID++
	r.statuses[status.CollectID] = &copyItem
	status.ID = copyItem.ID
	return nil
}

func (r *memStatusRepo) ApplyUpdate(_ context.Context, update *entity.StatusUpdate, rejectStale bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return false, r.applyErr
	}
	item, ok := r.statuses[update.CollectID]
	if !ok {
		return false, repository.ErrOrderStatusNotFound
	}
	if rejectStale && item.LastEventAt != nil && item.LastEventAt.After(update.PaymentTime) {
		return false, nil
	}
	if update.OrderAmount != nil {
		item.OrderAmount = *update.OrderAmount
	}
	paymentTime := update.PaymentTime
	item.TransactionAmount = update.TransactionAmount
	item.PaymentMode = update.PaymentMode
	item.PaymentDetails = update.PaymentDetails
	item.BankReference = update.BankReference
	item.PaymentMessage = update.PaymentMessage
	item.Status = update.Status
	item.ErrorMessage = update.ErrorMessage
	item.PaymentTime = &paymentTime
	item.LastEventAt = &paymentTime
	item.UpdatedAt = update.UpdatedAt
	return true, nil
}

func (r *memStatusRepo) FindByCollectID(_ context.Context, collectID string) (*entity.OrderStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.statuses[collectID]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *memStatusRepo) FindByCustomOrderID(_ context.Context, customOrderID string) (*entity.OrderStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.statuses {
		if item.CustomOrderID == customOrderID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *memStatusRepo) FindByCollectIDs(_ context.Context, collectIDs []string) ([]*entity.OrderStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.OrderStatus, 0, len(collectIDs))
	for _, id := range collectIDs {
		if item, ok := r.statuses[id]; ok {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

func (r *memStatusRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

type memWebhookRepo struct {
	mu   sync.Mutex
	logs []*entity.WebhookLog
	err  error
}

func (r *memWebhookRepo) Create(_ context.Context, log *entity.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	copyItem := *log
	r.logs = append(r.logs, &copyItem)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// snapshotTx restores the status store when fn fails, like a rolled back
// MySQL transaction.
type snapshotTx struct {
	statuses *memStatusRepo
}

func (t snapshotTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.statuses.mu.Lock()
	saved := make(map[string]entity.OrderStatus, len(t.statuses.statuses))
	for id, item := range t.statuses.statuses {
		saved[id] = *item
	}
	t.statuses.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.statuses.mu.Lock()
		defer t.statuses.mu.Unlock()
		t.statuses.statuses = make(map[string]*entity.OrderStatus, len(saved))
		for id, item := range saved {
			copyItem := item
			t.statuses.statuses[id] = &copyItem
		}
		return err
	}
	return nil
}

type fakeGateway struct {
	createFn func(ctx context.Context, input gateway.CollectRequest) (*gateway.CollectResponse, error)
	calls    []gateway.CollectRequest
}

func (g *fakeGateway) CreateCollectRequest(ctx context.Context, input gateway.CollectRequest) (*gateway.CollectResponse, error) {
	g.calls = append(g.calls, input)
	return g.createFn(ctx, input)
}

func linkGateway(link string) *fakeGateway {
	return &fakeGateway{createFn: func(context.Context, gateway.CollectRequest) (*gateway.CollectResponse, error) {
		return &gateway.CollectResponse{CollectRequestID: "cr_1", CollectRequestURL: link, Raw: []byte(`{"collect_request_url":"` + link + `"}`)}, nil
	}}
}

type fakeLocker struct {
	acquireFn func(ctx context.Context, key string) (lock.ReleaseFunc, error)
}

func (l *fakeLocker) Acquire(ctx context.Context, key string) (lock.ReleaseFunc, error) {
	return l.acquireFn(ctx, key)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.PaymentStatusEvent
	err    error
}

func (p *fakePublisher) PublishStatusChanged(_ context.Context, event events.PaymentStatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}
