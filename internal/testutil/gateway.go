package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/qs3c/booking_go_server/internal/pkg/gateway"
)

// FakeGateway 测试用支付网关。CreatePreference 按序返回固定下单结果，
// GetPayment 从预置的详情表返回。
type FakeGateway struct {
	mu sync.Mutex

	// CreateErr 非空时 CreatePreference 返回该错误
	CreateErr error
	// GetErr 非空时 GetPayment 返回该错误
	GetErr error

	payments    map[string]*gateway.PaymentDetail
	preferences []*gateway.PreferenceRequest
	prefSeq     int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		payments: make(map[string]*gateway.PaymentDetail),
	}
}

func (f *FakeGateway) CreatePreference(_ context.Context, req *gateway.PreferenceRequest) (*gateway.Preference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.prefSeq++
	f.preferences = append(f.preferences, req)
	return &gateway.Preference{
		ID:        fmt.Sprintf("pref-%d", f.prefSeq),
		InitPoint: fmt.Sprintf("https://gateway.test/checkout/pref-%d", f.prefSeq),
	}, nil
}

func (f *FakeGateway) GetPayment(_ context.Context, id string) (*gateway.PaymentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}
	detail, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("gateway error (404): payment %s not found", id)
	}
	return detail, nil
}

// SetPayment 预置一条网关侧支付详情
func (f *FakeGateway) SetPayment(id string, detail *gateway.PaymentDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	detail.ID = id
	f.payments[id] = detail
}

// Preferences 已创建的下单请求快照
func (f *FakeGateway) Preferences() []*gateway.PreferenceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*gateway.PreferenceRequest, len(f.preferences))
	copy(out, f.preferences)
	return out
}
