// internal/service/order/application/mocks_test.go
package application

import (
	"context"
	"errors"
	"sync"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

var (
	errMockGateway = errors.New("mock gateway failure")
	errMockStorage = errors.New("mock storage failure")
)

// memOrderRepo 是 OrderRepository 的内存实现，带互斥锁模拟单行事务。
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *memOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *order
	r.orders[order.ID] = &clone
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

func (r *memOrderRepo) FindByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			clone := *order
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (r *memOrderRepo) UpdateInTx(ctx context.Context, id string, mutate func(*domain.Order) error) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := *order
	if err := mutate(&clone); err != nil {
		return nil, err
	}
	r.orders[id] = &clone
	result := clone
	return &result, nil
}

// memSessionRepo 是 CheckoutSessionRepository 的内存实现。
type memSessionRepo struct {
	mu       sync.Mutex
	sessions []*domain.CheckoutSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{}
}

func (r *memSessionRepo) Save(ctx context.Context, session *domain.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, session)
	return nil
}

func (r *memSessionRepo) FindOrderID(ctx context.Context, provider domain.Provider, providerRef string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Provider == provider && s.ProviderRef == providerRef {
			return s.OrderID, nil
		}
	}
	return "", nil
}

// fakeGateway 是可编程的 PaymentGateway 测试替身。
type fakeGateway struct {
	provider     domain.Provider
	initiateErr  error
	verifyErr    error
	parsedEvent  *port.ParsedEvent
	initiateHits int
}

func (g *fakeGateway) Provider() domain.Provider { return g.provider }

func (g *fakeGateway) Initiate(ctx context.Context, order *domain.Order) (*port.CheckoutIntent, error) {
	g.initiateHits++
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	return &port.CheckoutIntent{
		RedirectURL: "https://pay.example.com/" + order.ID,
		ProviderRef: "ref-" + order.ID,
	}, nil
}

func (g *fakeGateway) VerifyWebhook(ctx context.Context, req *port.WebhookRequest) (*port.ParsedEvent, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.parsedEvent, nil
}

// recordingNotifier 记录所有发布过的通知，可注入失败。
type recordingNotifier struct {
	mu       sync.Mutex
	messages []*domain.NotificationMessage
	failWith error
}

func (n *recordingNotifier) Publish(ctx context.Context, msg *domain.NotificationMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// recordingStream 记录生命周期事件。
type recordingStream struct {
	mu     sync.Mutex
	events []*domain.OrderEvent
}

func (s *recordingStream) Publish(ctx context.Context, event *domain.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingStream) Close() error { return nil }

// memSeen 是 IdempotencyStore 的内存实现。
type memSeen struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemSeen() *memSeen {
	return &memSeen{keys: make(map[string]bool)}
}

func (s *memSeen) MarkIfFirst(ctx context.Context, provider domain.Provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(provider) + ":" + eventID
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memSeen) Unmark(ctx context.Context, provider domain.Provider, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, string(provider)+":"+eventID)
	return nil
}

// flakyOrderRepo 包装 memOrderRepo，让前 N 次状态更新失败，模拟数据库抖动。
type flakyOrderRepo struct {
	*memOrderRepo
	mu          sync.Mutex
	updateFails int
}

func (r *flakyOrderRepo) UpdateInTx(ctx context.Context, id string, mutate func(*domain.Order) error) (*domain.Order, error) {
	r.mu.Lock()
	if r.updateFails > 0 {
		r.updateFails--
		r.mu.Unlock()
		return nil, errMockStorage
	}
	r.mu.Unlock()
	return r.memOrderRepo.UpdateInTx(ctx, id, mutate)
}
