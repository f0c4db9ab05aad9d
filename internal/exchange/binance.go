package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfield/futures-trader/internal/order"
)

// BinanceFutures adapts the USDT-M futures REST API to the Exchange
// interface.
type BinanceFutures struct {
	client *futures.Client
	log    *zap.Logger
}

// NewBinanceFutures builds a futures client from API credentials. The
// testnet flag flips the SDK to the testnet base URL.
func NewBinanceFutures(apiKey, apiSecret string, testnet bool, log *zap.Logger) (*BinanceFutures, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("BINANCE_API_KEY is not set")
	}
	if strings.TrimSpace(apiSecret) == "" {
		return nil, fmt.Errorf("BINANCE_API_SECRET is not set")
	}

	futures.UseTestnet = testnet
	if testnet {
		log.Info("connecting to Binance futures testnet")
	} else {
		log.Info("connecting to Binance futures live")
	}

	return &BinanceFutures{
		client: futures.NewClient(strings.TrimSpace(apiKey), strings.TrimSpace(apiSecret)),
		log:    log,
	}, nil
}

func (b *BinanceFutures) Name() string { return "binance-futures" }

// retry runs fn up to attempts times with doubling backoff, capped at 30s.
// Only used for idempotent reads; order placement is never retried since a
// timed-out request may still have placed the order.
func (b *BinanceFutures) retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		b.log.Warn("retrying exchange call",
			zap.Int("attempt", i), zap.Int("max", attempts),
			zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
	return err
}

func (b *BinanceFutures) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var prices []*futures.SymbolPrice
	err := b.retry(ctx, 3, time.Second, func() error {
		var err error
		prices, err = b.client.NewListPricesService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetching price for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("no price returned for %s", symbol)
	}
	p, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing price %q for %s: %w", prices[0].Price, symbol, err)
	}
	return p, nil
}

func (b *BinanceFutures) symbolInfo(ctx context.Context, symbol string) (*futures.Symbol, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching exchange info: %w", err)
	}
	upper := strings.ToUpper(symbol)
	for i := range info.Symbols {
		if info.Symbols[i].Symbol == upper {
			return &info.Symbols[i], nil
		}
	}
	return nil, fmt.Errorf("symbol %s not found", symbol)
}

func (b *BinanceFutures) SymbolExists(ctx context.Context, symbol string) (bool, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("fetching exchange info: %w", err)
	}
	upper := strings.ToUpper(symbol)
	for i := range info.Symbols {
		if info.Symbols[i].Symbol == upper {
			return true, nil
		}
	}
	return false, nil
}

func (b *BinanceFutures) GetQuantityPrecision(ctx context.Context, symbol string) int32 {
	s, err := b.symbolInfo(ctx, symbol)
	if err != nil {
		b.log.Warn("could not determine quantity precision, using default",
			zap.String("symbol", symbol), zap.Int32("default", DefaultQuantityPrecision), zap.Error(err))
		return DefaultQuantityPrecision
	}
	lot := s.LotSizeFilter()
	if lot == nil {
		return DefaultQuantityPrecision
	}
	return PrecisionFromStep(lot.StepSize, DefaultQuantityPrecision)
}

func (b *BinanceFutures) GetPricePrecision(ctx context.Context, symbol string) int32 {
	s, err := b.symbolInfo(ctx, symbol)
	if err != nil {
		b.log.Warn("could not determine price precision, using default",
			zap.String("symbol", symbol), zap.Int32("default", DefaultPricePrecision), zap.Error(err))
		return DefaultPricePrecision
	}
	pf := s.PriceFilter()
	if pf == nil {
		return DefaultPricePrecision
	}
	return PrecisionFromStep(pf.TickSize, DefaultPricePrecision)
}

func (b *BinanceFutures) PlaceOrder(ctx context.Context, req order.Request) (order.Record, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Type)).
		Quantity(req.Quantity.String())
	if !req.Price.IsZero() {
		svc = svc.Price(req.Price.String())
	}
	if !req.StopPrice.IsZero() {
		svc = svc.StopPrice(req.StopPrice.String())
	}
	if req.TimeInForce != "" {
		svc = svc.TimeInForce(futures.TimeInForceType(req.TimeInForce))
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return order.Record{}, err
	}
	return recordFromResponse(resp), nil
}

func (b *BinanceFutures) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	_, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return fmt.Errorf("cancelling order %d on %s: %w", orderID, symbol, err)
	}
	return nil
}

func (b *BinanceFutures) GetOrderStatus(ctx context.Context, symbol string, orderID int64) (order.Status, error) {
	o, err := b.client.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching status of order %d on %s: %w", orderID, symbol, err)
	}
	return order.Status(o.Status), nil
}

func recordFromResponse(resp *futures.CreateOrderResponse) order.Record {
	return order.Record{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          order.Side(resp.Side),
		Type:          order.Type(resp.Type),
		Quantity:      parseDecimal(resp.OrigQuantity),
		Price:         parseDecimal(resp.Price),
		StopPrice:     parseDecimal(resp.StopPrice),
		AvgPrice:      parseDecimal(resp.AvgPrice),
		Status:        order.Status(resp.Status),
		PlacedAt:      time.Now(),
	}
}

// parseDecimal tolerates the empty strings the API uses for absent fields.
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Decimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}
	}
	return d
}
