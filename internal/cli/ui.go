package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agentfolio/internal/backtest"
	"agentfolio/internal/config"
	"agentfolio/internal/journal"
	"agentfolio/internal/memory"
	"agentfolio/internal/models"
	"agentfolio/internal/reflection"
	"agentfolio/internal/trading"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	gainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)
)

func signed(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	if v > 0 {
		return gainStyle.Render(s)
	}
	if v < 0 {
		return lossStyle.Render(s)
	}
	return dimStyle.Render(s)
}

func signedPct(v float64) string {
	s := fmt.Sprintf("%+.2f%%", v*100)
	if v > 0 {
		return gainStyle.Render(s)
	}
	if v < 0 {
		return lossStyle.Render(s)
	}
	return dimStyle.Render(s)
}

// RenderRunResult formats one pipeline run.
func RenderRunResult(r *trading.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Decision for %s on %s", r.Ticker, r.Date)))
	b.WriteString("\n")

	rec := r.Recommendation
	lines := []string{
		fmt.Sprintf("Action:            %s", rec.Action),
		fmt.Sprintf("Quantity:          %d", rec.Quantity),
		fmt.Sprintf("Reference Price:   %.2f", rec.ReferencePrice),
		fmt.Sprintf("Trade Value:       %.2f", rec.TradeValue),
		fmt.Sprintf("Usable Cash:       %.2f", rec.UsableCash),
		fmt.Sprintf("Allocation Budget: %.2f", rec.AllocationBudget),
	}
	if r.Executed {
		lines = append(lines, gainStyle.Render("Executed"))
	} else if r.SkipReason != "" {
		lines = append(lines, warnStyle.Render("Skipped: "+r.SkipReason))
	} else {
		lines = append(lines, dimStyle.Render("No trade"))
	}
	if !r.Parsed.Parsed {
		lines = append(lines, warnStyle.Render("Decision text was unstructured; action inferred by token scan"))
	}
	lines = append(lines, dimStyle.Render("Reflection queued: "+r.ReflectionID))

	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

// RenderAccount formats the account state, marking positions to the given
// prices where available.
func RenderAccount(state models.AccountState, prices map[string]float64) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Account"))
	b.WriteString("\n")

	lines := []string{
		fmt.Sprintf("Cash Balance:   %.2f", state.CashBalance),
		fmt.Sprintf("Cash Reserve:   %.2f", state.MinCashReserve),
		fmt.Sprintf("Allocation Cap: %.0f%%", state.MaxAllocationPct*100),
	}

	if len(state.Positions) == 0 {
		lines = append(lines, dimStyle.Render("No open positions"))
	} else {
		tickers := make([]string, 0, len(state.Positions))
		for ticker := range state.Positions {
			tickers = append(tickers, ticker)
		}
		sort.Strings(tickers)

		lines = append(lines, "", "Positions:")
		for _, ticker := range tickers {
			pos := state.Positions[ticker]
			row := fmt.Sprintf("  %-6s %6d @ %.2f", ticker, pos.Shares, pos.AvgCost)
			if price, ok := prices[ticker]; ok && price > 0 {
				pnl := (price - pos.AvgCost) * float64(pos.Shares)
				row += fmt.Sprintf("  mark %.2f  P&L %s", price, signed(pnl))
			}
			lines = append(lines, row)
		}
		lines = append(lines, "", fmt.Sprintf("Total Value:    %.2f", state.TotalValue(prices)))
	}

	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

// RenderBacktest formats the replay trace tail and summary.
func RenderBacktest(ticker string, trace []backtest.Step, summary backtest.Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Backtest " + ticker))
	b.WriteString("\n")

	var lines []string
	const tail = 10
	start := 0
	if len(trace) > tail {
		start = len(trace) - tail
		lines = append(lines, dimStyle.Render(fmt.Sprintf("... %d earlier steps omitted", start)))
	}
	for _, step := range trace[start:] {
		mark := " "
		if step.Executed {
			mark = "*"
		}
		if step.PriceMissing {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("%s %-4s  no price, value carried at %.2f", step.Date, step.Action, step.TotalValue)))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %-4s %s %4d @ %8.2f  value %10.2f  pnl %s",
			step.Date, step.Action, mark, step.Quantity, step.Price, step.TotalValue, signed(step.TotalPnL)))
	}

	lines = append(lines, "",
		fmt.Sprintf("Final Value:      %.2f", summary.FinalValue),
		fmt.Sprintf("Total Return:     %s", signedPct(summary.TotalReturn)),
		fmt.Sprintf("Realized P&L:     %s", signed(summary.TotalRealizedPnL)),
		fmt.Sprintf("Unrealized P&L:   %s", signed(summary.FinalUnrealizedPnL)),
		fmt.Sprintf("Max Drawdown:     %.2f%%", summary.MaxDrawdown*100),
		fmt.Sprintf("Trades:           %d (%d winning, %d losing)", summary.TotalTrades, summary.WinningTrades, summary.LosingTrades),
	)

	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

// RenderQueueStatus formats the reflection queue breakdown.
func RenderQueueStatus(counts reflection.StatusCounts) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Reflection Queue"))
	b.WriteString("\n")

	lines := []string{
		fmt.Sprintf("Pending:   %d", counts.Pending),
		fmt.Sprintf("Completed: %d", counts.Completed),
		fmt.Sprintf("Error:     %d", counts.Error),
		fmt.Sprintf("Total:     %d", counts.Total),
	}
	if counts.Error > 0 {
		lines = append(lines, warnStyle.Render("Some reflections failed; they retry on the next run"))
	}

	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

// RenderReflectionReport formats one processing batch.
func RenderReflectionReport(report *reflection.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Reflection Report"))
	b.WriteString("\n")

	lines := []string{
		fmt.Sprintf("Processed: %d   Skipped: %d   Failed: %d   (of %d queued)",
			report.Processed, report.Skipped, report.Failed, report.Total),
	}
	if report.Processed > 0 {
		lines = append(lines,
			fmt.Sprintf("Successful decisions: %d", report.SuccessfulDecisions),
			fmt.Sprintf("Failed decisions:     %d", report.FailedDecisions),
			fmt.Sprintf("Average return:       %s", signedPct(report.AvgReturn)),
			"")
		for _, o := range report.Outcomes {
			lines = append(lines, fmt.Sprintf("%s %s %-4s %s  %s",
				o.Date, o.Ticker, o.Action, signedPct(o.ActualReturn), dimStyle.Render(o.Lesson)))
		}
	} else {
		lines = append(lines, dimStyle.Render("Nothing matured on this run"))
	}

	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

// RenderTrades formats the journal entries.
func RenderTrades(entries []journal.Entry) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Trade Journal"))
	b.WriteString("\n")

	if len(entries) == 0 {
		b.WriteString(boxStyle.Render(dimStyle.Render("No trades recorded")))
		return b.String()
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		mark := dimStyle.Render("skipped")
		if e.Executed {
			mark = gainStyle.Render("filled ")
		}
		id := e.ID
		if len(id) > 8 {
			id = id[:8]
		}
		lines = append(lines, fmt.Sprintf("%s  %s %-6s %-4s %4d @ %8.2f  %s  cash %.2f -> %.2f",
			e.Timestamp.Format("2006-01-02 15:04"), mark, e.Ticker, e.Action, e.Quantity, e.ReferencePrice,
			dimStyle.Render(id), e.CashBefore, e.CashAfter))
	}

	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

// RenderLessonStats formats per-ticker lesson aggregates.
func RenderLessonStats(stats []memory.TickerStats) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Lessons"))
	b.WriteString("\n")

	if len(stats) == 0 {
		b.WriteString(boxStyle.Render(dimStyle.Render("No lessons recorded yet")))
		return b.String()
	}

	lines := make([]string, 0, len(stats))
	for _, st := range stats {
		lines = append(lines, fmt.Sprintf("%-6s %3d lessons  avg return %s", st.Ticker, st.Lessons, signedPct(st.AvgReturn)))
	}

	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

// RenderConfig formats the active configuration.
func RenderConfig(cfg *config.Config) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Configuration"))
	b.WriteString("\n")

	lines := []string{
		fmt.Sprintf("Data Directory:      %s", cfg.DataDir),
		fmt.Sprintf("Results Directory:   %s", cfg.ResultsDir),
		fmt.Sprintf("Cache Directory:     %s", cfg.DataCacheDir),
		"",
		fmt.Sprintf("Initial Cash:        %.2f", cfg.InitialCash),
		fmt.Sprintf("Allocation Cap:      %.0f%%", cfg.MaxAllocationPct*100),
		fmt.Sprintf("Cash Reserve:        %.2f", cfg.MinCashReserve),
		"",
		fmt.Sprintf("Lookforward Days:    %d", cfg.LookforwardDays),
		fmt.Sprintf("Min Reflection Age:  %d days", cfg.MinReflectionAgeDays),
		fmt.Sprintf("Max Retries:         %d", cfg.ReflectionMaxRetries),
		fmt.Sprintf("Retention:           %d days", cfg.RetentionDays),
		fmt.Sprintf("Success Threshold:   %+.2f%%", cfg.SuccessThreshold*100),
		fmt.Sprintf("Failure Threshold:   %+.2f%%", cfg.FailureThreshold*100),
		"",
		fmt.Sprintf("Price Source:        %s", cfg.PriceSource),
		fmt.Sprintf("Cache Enabled:       %t", cfg.CacheEnabled),
		fmt.Sprintf("Log Level:           %s", cfg.LogLevel),
	}

	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}
