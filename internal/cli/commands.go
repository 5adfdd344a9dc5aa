// Package cli wires the command surface: running decisions through the
// accounting pipeline, replaying backtests, and maturing the reflection
// queue.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"agentfolio/internal/backtest"
	"agentfolio/internal/config"
	"agentfolio/internal/dataflows"
	"agentfolio/internal/journal"
	"agentfolio/internal/memory"
	"agentfolio/internal/message"
	"agentfolio/internal/models"
	"agentfolio/internal/reflection"
	"agentfolio/internal/storage"
	"agentfolio/internal/trading"
)

// Version is stamped at build time.
var Version = "dev"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "agentfolio",
		Short: "Agentfolio - portfolio accounting and delayed-outcome evaluation",
		Long: `Agentfolio turns advisory trade decisions into bounded, affordable orders,
keeps the resulting portfolio books, and scores every decision later
against the prices that actually happened.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newReflectCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newTradesCmd())
	rootCmd.AddCommand(newPruneCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// app bundles the collaborators every command needs.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	prices  dataflows.Provider
	quoter  dataflows.Quoter
	store   *storage.AccountStore
	journal *journal.Journal
	queue   *reflection.Queue
	lessons *memory.Store
	session *trading.Session
}

func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	logger := newLogger(cfg)
	prices := newProvider(cfg)
	quoter, _ := prices.(dataflows.Quoter)
	if quoter == nil {
		quoter = dataflows.NewYahooClient(filepath.Join(cfg.DataCacheDir, "yahoo"), cfg.CacheEnabled)
	}

	lessons, err := memory.Open(cfg.LessonDBPath())
	if err != nil {
		return nil, err
	}

	queue := reflection.NewQueue(reflection.Config{
		Path:             cfg.QueuePath(),
		LookforwardDays:  cfg.LookforwardDays,
		MinAgeDays:       cfg.MinReflectionAgeDays,
		MaxRetries:       cfg.ReflectionMaxRetries,
		RetentionDays:    cfg.RetentionDays,
		SuccessThreshold: cfg.SuccessThreshold,
		FailureThreshold: cfg.FailureThreshold,
	}, trading.WindowSource{Provider: prices}, trading.LessonRecorder(lessons), logger)

	store := storage.NewAccountStore(cfg.AccountStatePath())
	jrnl := journal.New(cfg.TradeLogPath())
	defaults := models.NewAccountState(cfg.InitialCash, cfg.MaxAllocationPct, cfg.MinCashReserve)

	return &app{
		cfg:     cfg,
		log:     logger,
		prices:  prices,
		quoter:  quoter,
		store:   store,
		journal: jrnl,
		queue:   queue,
		lessons: lessons,
		session: trading.NewSession(store, jrnl, queue, prices, defaults, logger),
	}, nil
}

// livePrices marks held positions to current quotes. Tickers whose quote
// fails are simply omitted and shown at cost.
func (a *app) livePrices(account models.AccountState) map[string]float64 {
	if len(account.Positions) == 0 {
		return nil
	}
	prices := make(map[string]float64, len(account.Positions))
	for ticker := range account.Positions {
		bar, err := a.quoter.Quote(ticker)
		if err != nil {
			a.log.Debug().Str("ticker", ticker).Err(err).Msg("quote unavailable")
			continue
		}
		prices[ticker] = bar.Close.InexactFloat64()
	}
	return prices
}

func (a *app) Close() {
	if a.lessons != nil {
		a.lessons.Close()
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func newProvider(cfg *config.Config) dataflows.Provider {
	yahoo := dataflows.NewYahooClient(filepath.Join(cfg.DataCacheDir, "yahoo"), cfg.CacheEnabled)
	stooq := dataflows.NewStooqClient(filepath.Join(cfg.DataCacheDir, "stooq"), cfg.CacheEnabled)

	switch cfg.PriceSource {
	case "yahoo":
		return yahoo
	case "stooq":
		return stooq
	default:
		return dataflows.FallbackProvider{yahoo, stooq}
	}
}

func newRunCmd() *cobra.Command {
	var date, decisionText, decisionFile string

	cmd := &cobra.Command{
		Use:   "run [TICKER]",
		Short: "Run one decision through the accounting pipeline",
		Long: `Parse a final trade decision, size it against the account, execute it on
the ledger, journal the result, and queue it for delayed reflection.
The decision text is read from --decision, --decision-file, or an
interactive prompt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ticker := ""
			if len(args) > 0 {
				ticker = args[0]
			}
			if ticker == "" {
				if ticker, err = PromptForTicker(); err != nil {
					return err
				}
			}
			if date == "" {
				if date, err = PromptForDate(); err != nil {
					return err
				}
			}

			text := decisionText
			if text == "" && decisionFile != "" {
				data, err := os.ReadFile(decisionFile)
				if err != nil {
					return fmt.Errorf("read decision file: %w", err)
				}
				text = string(data)
			}
			if text == "" {
				if text, err = PromptForDecision(); err != nil {
					return err
				}
			}

			buf := message.NewBuffer(200)
			result, err := a.session.Run(context.Background(), ticker, date,
				models.DecisionContext{FinalTradeDecision: text}, buf)
			if err != nil {
				return err
			}

			fmt.Println(RenderRunResult(result))
			fmt.Println(RenderAccount(result.StateAfter, map[string]float64{
				result.Ticker: result.Recommendation.ReferencePrice,
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Decision date in YYYY-MM-DD format")
	cmd.Flags().StringVar(&decisionText, "decision", "", "Decision text to parse")
	cmd.Flags().StringVar(&decisionFile, "decision-file", "", "File containing the decision text")

	return cmd
}

func newBacktestCmd() *cobra.Command {
	var signalsPath string
	var initialCash float64

	cmd := &cobra.Command{
		Use:   "backtest [TICKER]",
		Short: "Replay a signal sequence against historical prices",
		Long: `Replay dated BUY/SELL/HOLD signals for one ticker on a synthetic account
and report the equity curve, realized and unrealized P&L, and maximum
drawdown. Signals are read from a JSON file of {date, action, quantity}
objects.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			signals, err := loadSignals(signalsPath)
			if err != nil {
				return err
			}
			if len(signals) == 0 {
				return fmt.Errorf("no signals in %s", signalsPath)
			}
			if initialCash <= 0 {
				initialCash = a.cfg.InitialCash
			}

			start, end, err := signalDateRange(signals)
			if err != nil {
				return err
			}
			bars, err := a.prices.HistoricalWindow(context.Background(), args[0], start, end)
			if err != nil {
				return fmt.Errorf("fetch prices: %w", err)
			}

			trace, summary := backtest.Run(signals, dataflows.ClosesByDate(bars), initialCash)
			fmt.Println(RenderBacktest(args[0], trace, summary))
			return nil
		},
	}

	cmd.Flags().StringVar(&signalsPath, "signals", "", "JSON file with the signal sequence")
	cmd.Flags().Float64Var(&initialCash, "cash", 0, "Starting cash (defaults to configured initial cash)")
	cmd.MarkFlagRequired("signals")

	return cmd
}

func newReflectCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Mature pending reflections against realized prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if date == "" {
				date = time.Now().Format(models.DateLayout)
			}

			report, err := a.session.ProcessReflections(context.Background(), date)
			if err != nil {
				return err
			}
			fmt.Println(RenderReflectionReport(report))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Evaluation date in YYYY-MM-DD format (today if not provided)")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the account, reflection queue, and lesson store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.session.Account()
			if err != nil {
				return err
			}
			fmt.Println(RenderAccount(account, a.livePrices(account)))

			counts, err := a.queue.Status()
			if err != nil {
				return err
			}
			fmt.Println(RenderQueueStatus(counts))

			stats, err := a.lessons.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(RenderLessonStats(stats))
			return nil
		},
	}
}

func newTradesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Show the trade journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.journal.ReadAll()
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			fmt.Println(RenderTrades(entries))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Show only the most recent N entries")

	return cmd
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop completed reflections past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			pruned, err := a.queue.PruneCompleted()
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d completed reflections.\n", pruned)
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Println(RenderConfig(a.cfg))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("directory validation failed: %w", err)
			}
			fmt.Println("Configuration is valid.")
			return nil
		},
	})

	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agentfolio %s\n", Version)
		},
	}
}

// loadSignals reads a JSON signal sequence for the backtester.
func loadSignals(path string) ([]backtest.Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}

	var signals []backtest.Signal
	if err := json.Unmarshal(data, &signals); err != nil {
		return nil, fmt.Errorf("decode signals: %w", err)
	}
	return signals, nil
}

// signalDateRange returns the inclusive date span of a signal sequence.
func signalDateRange(signals []backtest.Signal) (time.Time, time.Time, error) {
	var start, end time.Time
	for _, sig := range signals {
		d, err := time.Parse(models.DateLayout, sig.Date)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid signal date %q: %w", sig.Date, err)
		}
		if start.IsZero() || d.Before(start) {
			start = d
		}
		if end.IsZero() || d.After(end) {
			end = d
		}
	}
	return start, end, nil
}
