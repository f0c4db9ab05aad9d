package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfield/futures-trader/internal/order"
)

// Mock is a scripted in-memory Exchange for strategy tests: successive
// GetPrice calls walk a configured price sequence, and every placement and
// cancellation is recorded for assertions.
type Mock struct {
	mu sync.Mutex

	QtyPrecision   int32
	PricePrecision int32

	prices   []decimal.Decimal
	priceIdx int
	PriceErr error

	// PlaceFn, when set, overrides the default auto-accept behavior.
	PlaceFn  func(req order.Request) (order.Record, error)
	StatusFn func(orderID int64) (order.Status, error)
	ExistsFn func(symbol string) (bool, error)

	CancelErr error

	nextID   int64
	Placed   []order.Request
	Records  []order.Record
	Canceled []int64

	PriceCalls int
}

// NewMock returns a mock trading at 100.00 with 3/2 precision.
func NewMock() *Mock {
	m := &Mock{QtyPrecision: 3, PricePrecision: 2, nextID: 1000}
	m.SetPrices("100")
	return m
}

// SetPrices scripts the price feed; the last price repeats once exhausted.
func (m *Mock) SetPrices(prices ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = m.prices[:0]
	for _, p := range prices {
		m.prices = append(m.prices, decimal.RequireFromString(p))
	}
	m.priceIdx = 0
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) GetPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PriceCalls++
	if m.PriceErr != nil {
		return decimal.Decimal{}, m.PriceErr
	}
	p := m.prices[m.priceIdx]
	if m.priceIdx < len(m.prices)-1 {
		m.priceIdx++
	}
	return p, nil
}

func (m *Mock) GetQuantityPrecision(_ context.Context, _ string) int32 { return m.QtyPrecision }
func (m *Mock) GetPricePrecision(_ context.Context, _ string) int32   { return m.PricePrecision }

func (m *Mock) SymbolExists(_ context.Context, symbol string) (bool, error) {
	if m.ExistsFn != nil {
		return m.ExistsFn(symbol)
	}
	return true, nil
}

func (m *Mock) PlaceOrder(_ context.Context, req order.Request) (order.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlaceFn != nil {
		rec, err := m.PlaceFn(req)
		if err != nil {
			return order.Record{}, err
		}
		m.Placed = append(m.Placed, req)
		m.Records = append(m.Records, rec)
		return rec, nil
	}
	m.nextID++
	rec := order.Record{
		OrderID:       m.nextID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Quantity:      req.Quantity,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		Status:        order.StatusNew,
		PlacedAt:      time.Now(),
	}
	if req.Type == order.Market {
		rec.Status = order.StatusFilled
		rec.AvgPrice = m.prices[m.priceIdx]
	}
	m.Placed = append(m.Placed, req)
	m.Records = append(m.Records, rec)
	return rec, nil
}

func (m *Mock) CancelOrder(_ context.Context, _ string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CancelErr != nil {
		return m.CancelErr
	}
	m.Canceled = append(m.Canceled, orderID)
	return nil
}

func (m *Mock) GetOrderStatus(_ context.Context, _ string, orderID int64) (order.Status, error) {
	m.mu.Lock()
	fn := m.StatusFn
	m.mu.Unlock()
	if fn != nil {
		return fn(orderID)
	}
	return order.StatusNew, nil
}
