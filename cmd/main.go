package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quantfield/futures-trader/internal/config"
	"github.com/quantfield/futures-trader/internal/exchange"
	"github.com/quantfield/futures-trader/internal/journal"
	"github.com/quantfield/futures-trader/internal/logging"
	"github.com/quantfield/futures-trader/internal/normalize"
	"github.com/quantfield/futures-trader/internal/notifier"
	"github.com/quantfield/futures-trader/internal/strategy"
)

const usage = `Usage: trader [-config FILE] COMMAND ARGS...

Commands:
  market     SYMBOL SIDE QUANTITY
  limit      SYMBOL SIDE QUANTITY PRICE
  stop-limit SYMBOL SIDE QUANTITY LIMIT_PRICE STOP_PRICE
  oco        SYMBOL SIDE QUANTITY TAKE_PROFIT STOP_LOSS
  twap       [-slices N] SYMBOL SIDE QUANTITY DURATION
  grid       SYMBOL LOWER UPPER LEVELS QUANTITY_PER_LEVEL

Examples:
  trader market BTCUSDT buy 0.01
  trader limit BTCUSDT buy 0.01 45000
  trader stop-limit BTCUSDT sell 0.01 44000 44500
  trader oco BTCUSDT buy 0.01 48000 43000
  trader twap -slices 10 BTCUSDT buy 0.5 10m
  trader grid BTCUSDT 40000 50000 5 0.01
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("trader", flag.ExitOnError)
	configPath := global.String("config", "config.yaml", "path to the YAML config file")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	global.Parse(args)

	if global.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}
	command := global.Arg(0)
	rest := global.Args()[1:]

	// The default config file is optional; a missing explicitly-given one
	// is still an error.
	path := *configPath
	if path == "config.yaml" {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	log, err := logging.New(cfg.LogDir, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn("received signal, cancelling", zap.String("signal", sig.String()))
		cancel()
	}()

	env, cleanup, err := buildEnv(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer cleanup()

	note := selectNotifier(cfg)

	switch command {
	case "market":
		return runMarket(ctx, env, rest)
	case "limit":
		return runLimit(ctx, env, rest)
	case "stop-limit":
		return runStopLimit(ctx, env, rest)
	case "oco":
		return runOCO(ctx, env, note, rest)
	case "twap":
		return runTWAP(ctx, env, rest)
	case "grid":
		return runGrid(ctx, env, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		return 1
	}
}

// buildEnv wires the exchange, journal, and tuning knobs into the strategy
// environment. The returned cleanup closes the journal connection if one
// was opened.
func buildEnv(ctx context.Context, cfg config.Config, log *zap.Logger) (strategy.Env, func(), error) {
	ex, err := exchange.NewBinanceFutures(cfg.APIKey, cfg.APISecret, cfg.Testnet, log)
	if err != nil {
		return strategy.Env{}, nil, err
	}
	if cfg.Testnet {
		log.Info("using Binance futures testnet")
	}

	rounding, err := normalize.ParseRounding(cfg.Rounding)
	if err != nil {
		return strategy.Env{}, nil, err
	}

	cleanup := func() {}
	var jrnl journal.Journal = journal.NewMemory()
	if cfg.JournalDSN != "" {
		pg, err := journal.NewPostgres(ctx, cfg.JournalDSN, cfg.JournalMaxOpen, cfg.JournalMaxIdle)
		if err != nil {
			return strategy.Env{}, nil, fmt.Errorf("journal: %w", err)
		}
		log.Info("order events journaled to Postgres")
		jrnl = pg
		cleanup = func() { pg.Close() }
	}

	return strategy.Env{
		Exchange:       ex,
		Log:            log,
		Journal:        jrnl,
		Rounding:       rounding,
		PollInterval:   cfg.PollInterval,
		PlacementDelay: cfg.PlacementDelay,
	}, cleanup, nil
}

func selectNotifier(cfg config.Config) notifier.Notifier {
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		return notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, 3, 5*time.Second)
	}
	return notifier.Noop{}
}

func runMarket(ctx context.Context, env strategy.Env, args []string) int {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: trader market SYMBOL SIDE QUANTITY")
		return 1
	}
	res := strategy.NewMarket(env).Execute(ctx, strategy.MarketParams{
		Symbol: args[0], Side: args[1], Quantity: args[2],
	})
	if !res.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", res.Err)
		return 1
	}
	fmt.Printf("Market order placed: id=%d %s %s %s", res.Order.OrderID,
		res.Order.Side, res.Order.Quantity, res.Order.Symbol)
	if res.Order.AvgPrice.IsPositive() {
		fmt.Printf(" @ avg $%s", res.Order.AvgPrice)
	}
	fmt.Println()
	return 0
}

func runLimit(ctx context.Context, env strategy.Env, args []string) int {
	if len(args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: trader limit SYMBOL SIDE QUANTITY PRICE")
		return 1
	}
	res := strategy.NewLimit(env).Execute(ctx, strategy.LimitParams{
		Symbol: args[0], Side: args[1], Quantity: args[2], Price: args[3],
	})
	if !res.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", res.Err)
		return 1
	}
	fmt.Printf("Limit order placed: id=%d %s %s %s @ $%s (%s)\n", res.Order.OrderID,
		res.Order.Side, res.Order.Quantity, res.Order.Symbol, res.Order.Price, res.Order.Status)
	return 0
}

func runStopLimit(ctx context.Context, env strategy.Env, args []string) int {
	if len(args) != 5 {
		fmt.Fprintln(os.Stderr, "usage: trader stop-limit SYMBOL SIDE QUANTITY LIMIT_PRICE STOP_PRICE")
		return 1
	}
	res := strategy.NewStopLimit(env).Execute(ctx, strategy.StopLimitParams{
		Symbol: args[0], Side: args[1], Quantity: args[2], LimitPrice: args[3], StopPrice: args[4],
	})
	if !res.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", res.Err)
		return 1
	}
	switch res.Status {
	case strategy.StopLimitTriggered:
		fmt.Printf("Simulated stop triggered: limit order id=%d %s %s %s @ $%s\n",
			res.Order.OrderID, res.Order.Side, res.Order.Quantity, res.Order.Symbol, res.Order.Price)
	default:
		kind := "Stop-limit"
		if res.Simulated {
			kind = "Simulated stop-limit"
		}
		fmt.Printf("%s order placed: id=%d %s %s %s stop $%s limit $%s\n", kind,
			res.Order.OrderID, res.Side, res.Quantity, res.Symbol, res.Stop, res.Limit)
	}
	return 0
}

func runOCO(ctx context.Context, env strategy.Env, note notifier.Notifier, args []string) int {
	if len(args) != 5 {
		fmt.Fprintln(os.Stderr, "usage: trader oco SYMBOL SIDE QUANTITY TAKE_PROFIT STOP_LOSS")
		return 1
	}
	res := strategy.NewOCO(env).Execute(ctx, strategy.OCOParams{
		Symbol: args[0], Side: args[1], Quantity: args[2], TakeProfit: args[3], StopLoss: args[4],
	})
	if !res.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", res.Err)
		return 1
	}
	switch res.Outcome {
	case strategy.OCOTakeProfit:
		msg := fmt.Sprintf("OCO %s: take-profit order %d filled", res.Symbol, res.TakeProfit.OrderID)
		fmt.Println(msg)
		note.SendWithRetry(msg)
	case strategy.OCOStopTrigger:
		msg := fmt.Sprintf("OCO %s: stop-loss triggered, position closed by market order %d",
			res.Symbol, res.Closing.OrderID)
		fmt.Println(msg)
		note.SendWithRetry(msg)
	default:
		fmt.Printf("OCO pair placed on %s: take-profit id=%d @ $%s, stop-loss id=%d\n",
			res.Symbol, res.TakeProfit.OrderID, res.TakeProfit.Price, res.StopLoss.OrderID)
	}
	return 0
}

func runTWAP(ctx context.Context, env strategy.Env, args []string) int {
	fs := flag.NewFlagSet("twap", flag.ExitOnError)
	slices := fs.Int("slices", 0, "number of slices (default: one per minute, max 60)")
	fs.Parse(args)
	if fs.NArg() != 4 {
		fmt.Fprintln(os.Stderr, "usage: trader twap [-slices N] SYMBOL SIDE QUANTITY DURATION")
		return 1
	}
	duration, err := time.ParseDuration(fs.Arg(3))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid duration %q\n", fs.Arg(3))
		return 1
	}
	res := strategy.NewTWAP(env).Execute(ctx, strategy.TWAPParams{
		Symbol: fs.Arg(0), Side: fs.Arg(1), Quantity: fs.Arg(2),
		Duration: duration, Slices: *slices,
	})
	if res.Slices > 0 {
		fmt.Printf("TWAP %s %s: executed %s of %s across %d slices, average $%s\n",
			res.Side, res.Symbol, res.Executed, res.Requested, res.Slices, res.AveragePrice)
	}
	if !res.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", res.Err)
		return 1
	}
	return 0
}

func runGrid(ctx context.Context, env strategy.Env, args []string) int {
	if len(args) != 5 {
		fmt.Fprintln(os.Stderr, "usage: trader grid SYMBOL LOWER UPPER LEVELS QUANTITY_PER_LEVEL")
		return 1
	}
	var levels int
	if _, err := fmt.Sscanf(args[3], "%d", &levels); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid level count %q\n", args[3])
		return 1
	}
	res := strategy.NewGrid(env).Execute(ctx, strategy.GridParams{
		Symbol: args[0], Lower: args[1], Upper: args[2], Levels: levels, Quantity: args[4],
	})
	if len(res.Placed) > 0 {
		fmt.Printf("Grid on %s: %d orders placed (%d buy, %d sell), %s per level\n",
			res.Symbol, res.OrdersPlaced(), res.BuyOrders, res.SellOrders, res.QuantityPerLevel)
		for _, lvl := range res.Placed {
			fmt.Printf("  level %d: %s id=%d @ $%s\n", lvl.Level, lvl.Order.Side, lvl.Order.OrderID, lvl.Price)
		}
	}
	if !res.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", res.Err)
		return 1
	}
	return 0
}
