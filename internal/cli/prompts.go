package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
)

var tickerRe = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// PromptForTicker prompts the user to enter a stock ticker symbol.
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "The symbol whose decision you want to run through the pipeline",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(strings.ToUpper(val.(string)))
		if len(str) == 0 {
			return fmt.Errorf("ticker symbol cannot be empty")
		}
		if len(str) > 10 {
			return fmt.Errorf("ticker symbol too long (max 10 characters)")
		}
		if !tickerRe.MatchString(str) {
			return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

// PromptForDate prompts for the decision date, defaulting to today.
func PromptForDate() (string, error) {
	var dateStr string
	prompt := &survey.Input{
		Message: "Enter the decision date (YYYY-MM-DD) or press Enter for today:",
		Default: time.Now().Format("2006-01-02"),
	}

	err := survey.AskOne(prompt, &dateStr, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		if str == "" {
			return nil
		}
		parsed, err := time.Parse("2006-01-02", str)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD")
		}
		if parsed.After(time.Now().AddDate(0, 0, 1)) {
			return fmt.Errorf("decision date cannot be in the future")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}

	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		dateStr = time.Now().Format("2006-01-02")
	}
	return dateStr, nil
}

// PromptForDecision collects the final trade decision text to parse.
func PromptForDecision() (string, error) {
	var text string
	prompt := &survey.Multiline{
		Message: "Paste the final trade decision text:",
		Help:    "Structured JSON, fenced or bare, or free text containing BUY/SELL/HOLD",
	}

	err := survey.AskOne(prompt, &text, survey.WithValidator(survey.Required))
	if err != nil {
		return "", err
	}
	return text, nil
}

// PromptForConfirmation asks a yes/no question, defaulting to yes.
func PromptForConfirmation(question string) (bool, error) {
	var confirmed bool
	prompt := &survey.Confirm{
		Message: question,
		Default: true,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}
