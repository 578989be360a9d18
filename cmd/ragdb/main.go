package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ragdb/internal/app"
	"ragdb/internal/config"
	"ragdb/internal/httpapi"
	"ragdb/internal/logger"
	"ragdb/internal/service"
	"ragdb/internal/tui"
)

const usage = `Usage: ragdb [--config=config.yaml] <command> [args]

Commands:
  ingest [--force] file.pdf [more files or globs]
  ask "question"
  chat
  serve [--addr=:8080]
  books
  delete-book name`

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragdb/config.yaml if not provided)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	l, err := logger.Init(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	a, err := app.New(cfg, l)
	if err != nil {
		l.Fatal("invalid configuration", zap.Error(err))
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]
	if cmd != "serve" {
		stopMetrics, err := a.ServeMetrics()
		if err != nil {
			l.Fatal("metrics listener failed", zap.Error(err))
		}
		defer stopMetrics()
	}
	switch cmd {
	case "ingest":
		err = runIngest(ctx, a, rest)
	case "ask":
		err = runAsk(ctx, a, rest)
	case "chat":
		err = runChat(ctx, a)
	case "serve":
		err = runServe(ctx, a, rest)
	case "books":
		err = runBooks(ctx, a)
	case "delete-book":
		err = runDeleteBook(ctx, a, rest)
	default:
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		l.Error(cmd+" failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func runIngest(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	force := fs.Bool("force", false, "re-ingest books that are already stored")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("ingest needs at least one file")
	}
	ing, err := a.Ingestor(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	reports, err := ing.IngestFiles(ctx, fs.Args(), *force)
	var inserted, skipped int
	for _, r := range reports {
		inserted += r.Saved.Inserted
		skipped += r.Saved.Skipped
		switch {
		case r.AlreadyStored:
			fmt.Printf("%s: already stored, skipped (use --force to replace)\n", r.Name)
		default:
			fmt.Printf("%s: %d pages, %d short, %d chunks, %d inserted, %d skipped\n",
				r.Name, r.Pages, r.ShortPages, r.Chunks, r.Saved.Inserted, r.Saved.Skipped)
			if r.Summary != "" {
				fmt.Printf("  %s\n", r.Summary)
			}
		}
	}
	if err != nil {
		return err
	}
	a.Log.Info("ingest completed",
		zap.Int("books", len(reports)),
		zap.Int("chunks_inserted", inserted),
		zap.Int("chunks_skipped", skipped),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func runAsk(ctx context.Context, a *app.App, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("ask needs a question")
	}
	logger.PrintConfiguration(a.Log, a.Config)
	q, err := a.QueryEngine(ctx)
	if err != nil {
		return err
	}
	resp, err := q.Query(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(service.FormatOutput(resp, a.Config.Chat.AddReferences))
	return nil
}

func runChat(ctx context.Context, a *app.App) error {
	logger.PrintConfiguration(a.Log, a.Config)
	e, err := a.ChatEngine(ctx)
	if err != nil {
		return err
	}
	st, err := a.Store(ctx)
	if err != nil {
		return err
	}
	books, err := st.ListBooks(ctx)
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("%d books stored | llm %s | mode %s", len(books), a.Config.LLM.Model, e.Mode())
	m := tui.New(ctx, e, uuid.NewString(), summary, a.Config.Chat.AddReferences)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func runServe(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	_ = fs.Parse(args)

	logger.PrintConfiguration(a.Log, a.Config)
	q, err := a.QueryEngine(ctx)
	if err != nil {
		return err
	}
	e, err := a.ChatEngine(ctx)
	if err != nil {
		return err
	}
	st, err := a.Store(ctx)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.New(q, e, st, a.Metrics, a.Config.Chat.AddReferences, a.Log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// the API already serves /metrics when both share an address
	if a.Config.Metrics.Addr != *addr {
		stopMetrics, err := a.ServeMetrics()
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("server listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runBooks(ctx context.Context, a *app.App) error {
	st, err := a.Store(ctx)
	if err != nil {
		return err
	}
	books, err := st.ListBooks(ctx)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Println("No books stored.")
		return nil
	}
	for _, b := range books {
		fmt.Printf("%4d  %-40s %6d chunks\n", b.ID, b.Name, b.Chunks)
	}
	return nil
}

func runDeleteBook(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("delete-book needs exactly one book name")
	}
	st, err := a.Store(ctx)
	if err != nil {
		return err
	}
	if err := st.DeleteBook(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("%s deleted\n", args[0])
	return nil
}

