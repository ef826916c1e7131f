package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/constants"
	"github.com/adaoss/Mail2printer/internal/logger"
	"github.com/adaoss/Mail2printer/internal/mailbox"
	"github.com/adaoss/Mail2printer/internal/mailparse"
	"github.com/adaoss/Mail2printer/internal/printing"
	"github.com/adaoss/Mail2printer/internal/render"
	"github.com/adaoss/Mail2printer/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mail2printd",
		Short: "Email to printer bridge",
		Long:  "mail2printd polls an IMAP mailbox and prints matching messages and attachments",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkPrinterCmd())
	rootCmd.AddCommand(checkMailboxCmd())
	rootCmd.AddCommand(printTestCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvironment resolves the config file, loads it, and builds the
// logger. Every subcommand starts here.
func loadEnvironment() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}

	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the mailbox and print matching messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer log.Sync()

			// SIGHUP is the restart path: the API sends it to this process
			// and the supervisor brings up a fresh one after the clean exit.
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer cancel()

			log.InfowCtx(ctx, "Starting mail2printd")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			log.InfowCtx(ctx, "Service running")
			if err := app.Run(ctx); err != nil && err != context.Canceled {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}

func checkPrinterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-printer",
		Short: "Verify spooler connectivity and list printers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultHTTPTimeout)
			defer cancel()

			spooler := printing.NewIPPSpooler(cfg.Printing.Spooler, log)
			if err := spooler.Ping(ctx); err != nil {
				log.Errorw("Spooler unreachable", "host", cfg.Printing.Spooler.Host, "error", err)
				return err
			}

			printers, err := spooler.Printers(ctx)
			if err != nil {
				log.Errorw("Failed to list printers", "error", err)
				return err
			}
			defaultPrinter, _ := spooler.DefaultPrinter(ctx)

			log.Infow("Spooler reachable", "host", cfg.Printing.Spooler.Host, "printers", len(printers))
			for _, name := range printers {
				if name == defaultPrinter {
					fmt.Printf("%s (default)\n", name)
					continue
				}
				fmt.Println(name)
			}
			return nil
		},
	}
}

func checkMailboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-mailbox",
		Short: "Verify IMAP login and report unread count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			client := mailbox.NewClient(cfg.Email, log)
			defer client.Disconnect()

			if err := client.Connect(ctx); err != nil {
				log.Errorw("Mailbox unreachable", "server", cfg.Email.Server, "error", err)
				return err
			}

			uids, err := client.SearchUnseen(ctx)
			if err != nil {
				log.Errorw("Search failed", "folder", cfg.Email.Folder, "error", err)
				return err
			}

			log.Infow("Mailbox reachable", "server", cfg.Email.Server, "folder", cfg.Email.Folder)
			fmt.Printf("%d unread message(s) in %s\n", len(uids), cfg.Email.Folder)
			return nil
		},
	}
}

func printTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-test",
		Short: "Submit a test page to the configured printer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			// Body printing stays on for the test page even when the
			// operator has it disabled for real mail.
			printCfg := cfg.Printing
			printCfg.PrintBody = true

			spooler := printing.NewIPPSpooler(printCfg.Spooler, log)
			renderer := render.NewHTMLRenderer(printCfg.Options, log)
			registry := printing.NewJobRegistry(constants.JobRegistryCapacity)
			fallback := printing.NewLPCommand(log)
			orch := printing.NewOrchestrator(printCfg, spooler, fallback, renderer, registry, log)

			// The test page rides the normal body path so it exercises
			// rendering, submission, and job tracking end to end.
			msg := &mailparse.EmailMessage{
				Subject:   "mail2printd test page",
				Sender:    "mail2printd",
				Recipient: cfg.Email.Username,
				Date:      time.Now().Format(time.RFC1123Z),
				TextBody:  fmt.Sprintf("Test page submitted at %s.\nPrinter: %s\n", time.Now().Format(time.RFC3339), cfg.Printing.PrinterName),
			}

			switch orch.PrintMessage(ctx, msg) {
			case printing.OutcomePrinted:
				fmt.Println("Test page submitted successfully")
				return nil
			case printing.OutcomeSkipped:
				return fmt.Errorf("test page was rejected before submission")
			default:
				return fmt.Errorf("test page submission failed")
			}
		},
	}
}
