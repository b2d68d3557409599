// Command scraper-cli logs in, searches one keyword and prints what it
// finds. Nothing is stored or emailed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisenews_scraper/internal/adapter/browser"
	"wisenews_scraper/internal/adapter/wisenews"
	"wisenews_scraper/internal/config"
	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
	"wisenews_scraper/internal/usecase"
)

func main() {
	keyword := flag.String("keyword", "suicide", "configured keyword to search")
	dateRange := flag.String("date-range", "", "date preset (default from config)")
	configPath := flag.String("config", os.Getenv("WISENEWS_CONFIG"), "YAML config file")
	headful := flag.Bool("show", false, "show the browser window")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall time limit")
	flag.Parse()

	config.LoadEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Credentials().Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logs, err := logger.New(cfg.Log.Level, "console")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logs.Sync() }()

	keywords, err := domain.SelectKeywords(cfg.Search.Keywords, []string{*keyword})
	if err != nil {
		log.Fatal(err)
	}
	rng := cfg.DateRange()
	if *dateRange != "" {
		if rng, err = domain.ParseDateRange(*dateRange); err != nil {
			log.Fatal(err)
		}
	}

	portals := wisenews.NewFactory(wisenews.Options{
		Browser: browser.Options{
			ExecPath:    cfg.Browser.ExecPath,
			Headless:    cfg.Browser.Headless && !*headful,
			WaitTimeout: cfg.Browser.WaitTimeout,
		},
		Credentials: cfg.Credentials(),
		SettleDelay: cfg.Browser.SettleDelay,
	}, logs)
	pipeline := usecase.NewPipeline(portals, usecase.Settings{
		Attempts:   cfg.Retry.Attempts,
		RetryDelay: cfg.Retry.Delay,
	}, logs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	report, err := pipeline.Execute(ctx, usecase.RunRequest{
		Keywords:        keywords,
		Sections:        cfg.Search.Sections,
		DateRange:       rng,
		Delivery:        domain.DeliveryNone,
		IncludeArticles: true,
	})
	if err != nil {
		log.Fatalf("scraping failed: %v", err)
	}

	res := report.Keywords[0]
	if res.Error != "" {
		log.Fatalf("scraping failed: %s", res.Error)
	}
	if len(res.Articles) == 0 {
		fmt.Println("No articles found.")
		return
	}

	fmt.Printf("=== %s: %d article(s) ===\n", res.Keyword, len(res.Articles))
	for _, a := range res.Articles {
		fmt.Printf("[%s] %s %s\n%s\n%s\n\n",
			a.MetaData.PubDate.Format(time.DateOnly), a.MetaData.Source, a.MetaData.Section, a.Heading, a.DocumentID)
	}
}
