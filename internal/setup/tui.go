package setup

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/config"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultOutput is where the wizard writes the generated config.
const DefaultOutput = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers are the wizard inputs.
type Answers struct {
	MonthlyBudget   string
	BandTable       string
	TrendAdjustment bool
	MaxDaily        string
	SpotSource      string
	SnapshotSource  string
	ServerAddr      string
}

func defaultAnswers() Answers {
	return Answers{
		MonthlyBudget:   "1100",
		BandTable:       domain.BandTableDefault,
		TrendAdjustment: true,
		SpotSource:      "strike",
		SnapshotSource:  config.SnapshotSourceCoinGecko,
		ServerAddr:      config.DefaultServerAddr,
	}
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SENTIDCA CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result to output.
func RunTUI(output string) error {
	if output == "" {
		output = DefaultOutput
	}

	a := defaultAnswers()
	confirm := false

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SENTIDCA CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Sentiment-driven bitcoin DCA.\n"))

	fmt.Println(stepStyle.Render("STEP 1: BUDGET"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Monthly budget (USD)").
				Description("Spread across 30 days, scaled by sentiment").
				Value(&a.MonthlyBudget).
				Validate(validatePositive),
			huh.NewInput().
				Title("Max daily buy (USD)").
				Description("Leave empty for no cap").
				Value(&a.MaxDaily).
				Validate(validateOptionalPositive),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: STRATEGY")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Sentiment bands").
				Options(
					huh.NewOption("Default (six bands, 0x-3x)", domain.BandTableDefault),
					huh.NewOption("Legacy (five bands)", domain.BandTableLegacy),
				).
				Value(&a.BandTable),
			huh.NewConfirm().
				Title("Adjust sentiment by distance to the 1400-day average?").
				Value(&a.TrendAdjustment),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 3: DATA SOURCES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Spot price source").
				Options(
					huh.NewOption("Strike (needs STRIKE_API_KEY)", "strike"),
					huh.NewOption("Binance public ticker", "binance"),
				).
				Value(&a.SpotSource),
			huh.NewSelect[string]().
				Title("Crash detection source").
				Options(
					huh.NewOption("CoinGecko hourly chart", config.SnapshotSourceCoinGecko),
					huh.NewOption("Binance 1h klines", config.SnapshotSourceBinance),
					huh.NewOption("Disabled", config.SnapshotSourceNone),
				).
				Value(&a.SnapshotSource),
			huh.NewInput().
				Title("HTTP listen address").
				Value(&a.ServerAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("FINAL CONFIRMATION")

	summary := fmt.Sprintf(
		"Monthly budget: %s\nMax daily: %s\nBands: %s\nTrend adjustment: %t\nSpot: %s\nCrash source: %s\nListen: %s\n",
		a.MonthlyBudget, orNone(a.MaxDaily), a.BandTable, a.TrendAdjustment, a.SpotSource, a.SnapshotSource, a.ServerAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := Write(a, output); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", output)))
	return nil
}

// Write renders the answers as yaml config at path.
func Write(a Answers, path string) error {
	data, err := yaml.Marshal(toConfigTmp(a))
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func toConfigTmp(a Answers) config.ConfigTmp {
	tmp := config.Default().Tmp()

	tmp.MonthlyBudgetStr = a.MonthlyBudget
	tmp.MaxDailyStr = a.MaxDaily
	tmp.BandTable = a.BandTable
	tmp.TrendAdjustmentStr = strconv.FormatBool(a.TrendAdjustment)
	tmp.Sources.SpotSource = a.SpotSource
	tmp.Sources.SnapshotSource = a.SnapshotSource
	tmp.Server.Addr = a.ServerAddr

	return tmp
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

func validateOptionalPositive(s string) error {
	if s == "" {
		return nil
	}
	return validatePositive(s)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
