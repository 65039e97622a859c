package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"pagechat/pkg/config"
	"pagechat/pkg/llm"
	"pagechat/pkg/scraper"
	"pagechat/pkg/store"
)

func main() {
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(cfg *config.Config) error {
	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	pageScraper := scraper.NewWithConfig(scraper.ScraperConfig{
		Mode:      cfg.Scraper.Mode,
		Timeout:   time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second,
		RateLimit: cfg.Scraper.RateLimit,
		UserAgent: cfg.Scraper.UserAgent,
	})

	recordStore := store.New(cfg.Store.Dir)

	color.Cyan("\nPaste a URL to scrape it, or ask a question about the last scraped page (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	urlRegex := regexp.MustCompile(`https?://[^\s]+`)

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.ToLower(input) == "exit" {
			break
		}

		if url := urlRegex.FindString(input); url != "" {
			fetchSpinner := getSpinner(" Fetching page...")
			rec, err := pageScraper.Scrape(context.Background(), url)
			fetchSpinner.Finish()
			fmt.Print("\r")

			if err != nil {
				color.Red("Failed to scrape URL: %v\n", err)
				continue
			}

			id, err := recordStore.Save(rec)
			if err != nil {
				color.Red("Failed to save record: %v\n", err)
				continue
			}
			color.Green("✓ Saved %s (%d characters of text)\n", id, len(rec.ExtractedText))

			// A bare URL means scrape only; anything else doubles as a question.
			if input == url {
				continue
			}
		}

		rec, id, err := recordStore.Latest()
		if err != nil {
			color.Red("No scraped data available. Paste a URL first. (%v)\n", err)
			continue
		}

		answerSpinner := getSpinner(" Thinking...")
		answer, err := chatEngine.Ask(context.Background(), rec, input)
		answerSpinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		color.Blue("(record: %s)", id)
		assistantPrompt("Assistant: %s\n", answer)
	}

	return nil
}
