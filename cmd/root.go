package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"crmload/internal/banner"
	"crmload/internal/driver"
	"crmload/internal/mockapi"
	"crmload/internal/report"
	"crmload/internal/scenario"
	"crmload/internal/stats"
	"crmload/internal/storage"
	"crmload/internal/tui"
)

var (
	cfgFile string

	baseURL      string
	timeout      int
	insecure     bool
	headers      []string
	authReads    int
	customers    int
	listCalls    int
	chatMessages int
	outPrefix    string
	live         bool
	verbose      bool
	noHistory    bool
)

var rootCmd = &cobra.Command{
	Use:   "crmload",
	Short: "crmload - load driver for CRM-style HTTP APIs",
	Long: `
crmload drives synthetic load against a CRM-style API: it registers a test
owner, logs in, then runs concurrent batches of authenticated reads, customer
CRUD, pipeline inspection and AI chat, and reports latency and error rates.`,
	Run: func(cmd *cobra.Command, args []string) {
		if baseURL == "" {
			fmt.Println("❌ --url required")
			os.Exit(1)
		}
		runScenario()
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(historyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.crmload.yaml)")

	rootCmd.Flags().StringVarP(&baseURL, "url", "u", "", "Base URL of the target CRM API")
	rootCmd.Flags().IntVar(&timeout, "timeout", 30, "Request timeout in seconds")
	rootCmd.Flags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	rootCmd.Flags().StringSliceVarP(&headers, "header", "H", []string{}, "Extra HTTP header (e.g. \"Key: Value\")")
	rootCmd.Flags().IntVar(&authReads, "auth-reads", 50, "Concurrent authenticated read requests")
	rootCmd.Flags().IntVar(&customers, "customers", 15, "Customers to create concurrently")
	rootCmd.Flags().IntVar(&listCalls, "list-calls", 10, "Concurrent customer list requests")
	rootCmd.Flags().IntVar(&chatMessages, "chat-messages", 10, "Concurrent AI chat requests")
	rootCmd.Flags().StringVarP(&outPrefix, "out", "o", "", "Output filename prefix for report export")
	rootCmd.Flags().BoolVar(&live, "live", false, "Show a live progress view")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every failed request")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip saving the run to history")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".crmload")
		}
	}
	viper.SetEnvPrefix("CRMLOAD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		// Config file values back the flags that were not set explicitly.
		if !rootCmd.Flags().Changed("url") && viper.IsSet("url") {
			baseURL = viper.GetString("url")
		}
		if !rootCmd.Flags().Changed("timeout") && viper.IsSet("timeout") {
			timeout = viper.GetInt("timeout")
		}
		if !rootCmd.Flags().Changed("out") && viper.IsSet("out") {
			outPrefix = viper.GetString("out")
		}
	}
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func parseHeaders(raw []string) map[string]string {
	out := make(map[string]string)
	for _, h := range raw {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return out
}

func runScenario() {
	log := newLogger()
	defer log.Sync()

	cfg := driver.Config{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		TimeoutSec: timeout,
		Insecure:   insecure,
		Headers:    parseHeaders(headers),
	}
	scCfg := scenario.Config{
		AuthReads:    authReads,
		Customers:    customers,
		ListCalls:    listCalls,
		ChatMessages: chatMessages,
	}

	updates := make(driver.SnapshotChan, 100)
	drv := driver.New(cfg, log, updates)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv.StartTickLoop(ctx, 200*time.Millisecond)

	start := time.Now()
	var runErr error

	if live {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		phases := make(chan tui.Phase, scenario.PhaseCount)
		done := make(chan struct{})

		sc := scenario.New(drv, scCfg, log, io.Discard)
		sc.OnPhase = func(name string, index, total int) {
			select {
			case phases <- tui.Phase{Name: name, Index: index, Total: total}:
			default:
			}
		}

		go func() {
			runErr = sc.Run(runCtx)
			close(done)
		}()

		m := tui.NewModel(cfg.BaseURL, updates, phases, done)
		if _, err := tea.NewProgram(m).Run(); err != nil {
			fmt.Printf("Error running live view: %v\n", err)
			os.Exit(1)
		}

		// The view may have been quit mid-run.
		cancel()
		<-done
	} else {
		report.PrintHeader(os.Stdout, cfg, scCfg)
		sc := scenario.New(drv, scCfg, log, os.Stdout)
		runErr = sc.Run(ctx)
	}

	if runErr != nil {
		fmt.Printf("\n❌ Run aborted: %v\n", runErr)
		os.Exit(1)
	}

	totalTime := time.Since(start)
	rec := drv.Recorder()
	report.PrintSummary(os.Stdout, rec, totalTime)

	if outPrefix != "" {
		if err := report.ExportAll(outPrefix, drv.Results(), rec); err != nil {
			fmt.Printf("⚠️  Report export failed: %v\n", err)
		} else {
			fmt.Printf("💾 Reports saved to %s.{csv,json}, %s_summary.json, %s_timeline.json\n",
				outPrefix, outPrefix, outPrefix)
		}
	}

	if !noHistory {
		saveHistory(cfg, rec, start)
	}
}

func saveHistory(cfg driver.Config, rec *stats.Recorder, start time.Time) {
	store, err := storage.Open("")
	if err != nil {
		fmt.Printf("⚠️  History unavailable: %v\n", err)
		return
	}
	defer store.Close()

	record := storage.RunRecord{
		ID:          uuid.New().String()[:8],
		Timestamp:   start,
		BaseURL:     cfg.BaseURL,
		Total:       rec.Total(),
		Success:     rec.Success(),
		Errors:      rec.Errors(),
		SuccessRate: rec.SuccessRate(),
		Latency:     rec.Summarize(),
		Passed:      report.Verdict(rec),
	}
	if err := store.Save(record); err != nil {
		fmt.Printf("⚠️  Could not save run history: %v\n", err)
	}
}

// --- mock subcommand ---

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run the built-in mock CRM API",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		jitter, _ := cmd.Flags().GetInt("jitter")
		failRate, _ := cmd.Flags().GetFloat64("fail-rate")
		rateLimited, _ := cmd.Flags().GetBool("rate-limited")

		mockapi.Start(mockapi.ServerConfig{
			Port:        port,
			JitterMaxMs: jitter,
			FailureRate: failRate,
			RateLimited: rateLimited,
		})
		select {}
	},
}

func init() {
	mockCmd.Flags().IntP("port", "p", 3333, "Port to run the mock API on")
	mockCmd.Flags().Int("jitter", 40, "Max per-request latency jitter in ms")
	mockCmd.Flags().Float64("fail-rate", 0, "Chance of injected 500s on authenticated endpoints")
	mockCmd.Flags().Bool("rate-limited", false, "Answer 429 on registration")
}

// --- history subcommand ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.Open("")
		if err != nil {
			fmt.Printf("❌ Could not open history: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		runs, err := store.List()
		if err != nil {
			fmt.Printf("❌ Could not list history: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return
		}

		fmt.Printf("%-10s %-20s %-30s %8s %8s %8s\n", "ID", "WHEN", "TARGET", "TOTAL", "ERRORS", "RATE")
		for _, r := range runs {
			fmt.Printf("%-10s %-20s %-30s %8d %8d %7.1f%%\n",
				r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.BaseURL,
				r.Total, r.Errors, r.SuccessRate)
		}
	},
}
