package setup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

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

type generatedConfig struct {
	Policy       string `yaml:"policy"`
	Guard        string `yaml:"guard"`
	TaxYear      int    `yaml:"tax_year"`
	Unit         string `yaml:"unit"`
	Platform     string `yaml:"platform"`
	Transactions string `yaml:"transactions"`
	DataDir      string `yaml:"data_dir"`
	Store        string `yaml:"store"`
}

// RunTUI launches the terminal configuration wizard and writes
// config.gen.yaml on confirmation.
func RunTUI() error {
	var (
		policy       string
		guard        string
		taxYearStr   string
		unit         string
		platform     string
		transactions string
		confirm      bool
	)

	// defaults
	unit = "USD"
	taxYearStr = strconv.Itoa(time.Now().UTC().Year() - 1)
	transactions = "transactions.json"

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CHAINLEDGER CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's set up your tax run.\n"))

	fmt.Println(stepStyle.Render("STEP 1: LOT-SELECTION POLICY"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which chunks are consumed first on disposal?").
				Options(
					huh.NewOption("FIFO (oldest first)", "fifo"),
					huh.NewOption("LIFO (newest first)", "lifo"),
					huh.NewOption("HIFO (highest cost basis first)", "hifo"),
				).
				Value(&policy),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CHAINLEDGER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: JURISDICTION"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Jurisdiction guard").
				Description("Account prefix scoping the report (e.g. USA)").
				Value(&guard),
			huh.NewInput().
				Title("Tax year").
				Value(&taxYearStr).
				Validate(func(s string) error {
					year, err := strconv.Atoi(s)
					if err != nil {
						return fmt.Errorf("not a year: %q", s)
					}
					if year < 2009 {
						return fmt.Errorf("year %d predates the chain", year)
					}
					return nil
				}),
			huh.NewInput().
				Title("Pricing unit").
				Description("Currency gains are denominated in (e.g. USD)").
				Value(&unit),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CHAINLEDGER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: PRICE BACKEND"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should missing historical prices come from?").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("None (cached prices only)", "none"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CHAINLEDGER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: INPUT"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Transactions file").
				Description("Normalized transaction JSON produced by your importer").
				Value(&transactions).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("path cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CHAINLEDGER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Policy: %s\nGuard: %s\nTax year: %s\nUnit: %s\nPrices: %s\nTransactions: %s\n",
		policy, guard, taxYearStr, unit, platform, transactions,
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

	taxYear, _ := strconv.Atoi(taxYearStr)
	cfg := generatedConfig{
		Policy:       policy,
		Guard:        guard,
		TaxYear:      taxYear,
		Unit:         unit,
		Platform:     platform,
		Transactions: transactions,
		DataDir:      "./data",
		Store:        "wal",
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("Saved " + filename))
	return nil
}
