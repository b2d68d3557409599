package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/handler/httpapi"
	"wisenews_scraper/internal/repository"
	"wisenews_scraper/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "wisenews_scraper",
		Short:         "Collect WiseNews articles for suicide-related keywords",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("WISENEWS_CONFIG"), "YAML config file")

	root.AddCommand(newRunCmd(&configPath), newServeCmd(&configPath), newKeywordsCmd(&configPath))
	return root
}

type runFlags struct {
	keywords   []string
	dateRange  string
	sections   []string
	noStore    bool
	deliver    string
	skipSeen   bool
	emailTitle string
}

func newRunCmd(configPath *string) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search every selected keyword once and deliver the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), *configPath, f)
		},
	}
	cmd.Flags().StringSliceVar(&f.keywords, "keywords", nil, "keyword names to search (default: all configured)")
	cmd.Flags().StringVar(&f.dateRange, "date-range", "", "date preset: "+fmt.Sprint(domain.DateRangeNames()))
	cmd.Flags().StringSliceVar(&f.sections, "sections", nil, "news sections to include")
	cmd.Flags().BoolVar(&f.noStore, "no-store", false, "do not write articles to MongoDB")
	cmd.Flags().StringVar(&f.deliver, "deliver", "", "delivery mode: portal, smtp or none")
	cmd.Flags().BoolVar(&f.skipSeen, "skip-seen", false, "leave out articles already delivered")
	cmd.Flags().StringVar(&f.emailTitle, "email-title", "", "email subject prefix")
	return cmd
}

func runOnce(ctx context.Context, configPath string, f runFlags) error {
	a, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeApp(a)

	cfg := a.cfg
	if err := cfg.Credentials().Validate(); err != nil {
		return err
	}

	keywords, err := domain.SelectKeywords(cfg.Search.Keywords, f.keywords)
	if err != nil {
		return err
	}
	dateRange := cfg.DateRange()
	if f.dateRange != "" {
		if dateRange, err = domain.ParseDateRange(f.dateRange); err != nil {
			return err
		}
	}
	delivery := cfg.Delivery()
	if f.deliver != "" {
		if delivery, err = domain.ParseDelivery(f.deliver); err != nil {
			return err
		}
	}
	sections := cfg.Search.Sections
	if len(f.sections) > 0 {
		sections = f.sections
	}

	report, err := a.pipeline.Execute(ctx, usecase.RunRequest{
		Keywords:   keywords,
		Sections:   sections,
		DateRange:  dateRange,
		Persist:    a.store != nil && !f.noStore,
		Delivery:   delivery,
		SkipSeen:   f.skipSeen,
		EmailTitle: f.emailTitle,
	})
	if err != nil {
		return err
	}

	for _, k := range report.Keywords {
		status := "ok"
		if k.Error != "" {
			status = k.Error
		}
		fmt.Printf("%-10s found=%d skipped=%d stored=%d duplicates=%d emailed=%d published=%d  %s\n",
			k.Keyword, k.Found, k.Skipped, k.Stored, k.Duplicates, k.Emailed, k.Published, status)
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d keyword(s) failed", n, len(report.Keywords))
	}
	return nil
}

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run trigger and article listing over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR or :8080)")
	return cmd
}

func serve(ctx context.Context, configPath, addr string) error {
	a, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeApp(a)

	cfg, log := a.cfg, a.log
	if err := cfg.Credentials().Validate(); err != nil {
		log.WarnObj("runs will fail to log in", "serve", map[string]any{"error": err.Error()})
	}
	if addr == "" {
		addr = cfg.HTTP.Addr
	}

	// a nil *ArticleStore must stay a nil interface
	var store repository.ArticleStore
	if a.store != nil {
		store = a.store
	}
	handler := httpapi.NewScrapeHandler(a.pipeline, store, defaults(a), log)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      httpapi.RunTimeout + time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoObj("http server starting", "serve", map[string]any{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.InfoObj("shutdown signal received", "serve", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func defaults(a *app) httpapi.Defaults {
	return httpapi.Defaults{
		Keywords:   a.cfg.Search.Keywords,
		Sections:   a.cfg.Search.Sections,
		DateRange:  a.cfg.DateRange(),
		Delivery:   a.cfg.Delivery(),
		Persist:    a.store != nil,
		EmailTitle: a.cfg.Mail.Title,
	}
}

func newKeywordsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "Print the configured keywords as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(map[string]any{"keywords": cfg.Search.Keywords}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func closeApp(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Close(ctx)
}
