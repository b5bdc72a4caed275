// Package main is the entry point for the chatbot CLI.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vthunder/chatbot/internal/completion"
	"github.com/vthunder/chatbot/internal/config"
	"github.com/vthunder/chatbot/internal/effectors"
	"github.com/vthunder/chatbot/internal/engine"
	"github.com/vthunder/chatbot/internal/journal"
	"github.com/vthunder/chatbot/internal/logging"
	"github.com/vthunder/chatbot/internal/senses"
	"github.com/vthunder/chatbot/internal/tokenizer"
)

// Set by ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	loadEnv()
	if err := rootCmd().Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatbot",
		Short:         "A Discord chatbot driven by a text-completion server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("chatbot %s (commit: %s)\n", version, commit)
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Connect to Discord and start chatting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			server, _ := cmd.Flags().GetString("server")
			apiKey, _ := cmd.Flags().GetString("api-key")
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebug(true)
			}
			return run(cfgPath, server, apiKey)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Bot configuration file (JSON, JSONC or YAML)")
	cmd.Flags().StringP("server", "s", envOr("LLM_HOST", "localhost:5000"), "LLM API server address, including port")
	cmd.Flags().String("api-key", os.Getenv("LLM_API_KEY"), "Bearer token for the LLM API server")
	cmd.Flags().Bool("debug", false, "Log prompts and raw completions")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Load and validate a configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			counter, err := tokenizer.New(cfg.Tokenizer)
			if err != nil {
				return err
			}

			fmt.Printf("Configuration OK: %s\n", cfg.Name)
			fmt.Printf("  prompt budget:   %d tokens\n", cfg.PromptBudget(counter))
			fmt.Printf("  summaries:       %v\n", cfg.HasSummary())
			fmt.Printf("  banned markers:  %d\n", len(cfg.Banned))
			fmt.Printf("  admins:          %d\n", len(cfg.Admins))
			return nil
		},
	})
	return cmd
}

// loadEnv runs before flags are built so .env values reach the flag defaults
func loadEnv() {
	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		logging.Info("config", "No .env file found, using environment variables")
		return
	}
	logging.Info("config", "Loaded .env file")
	if os.Getenv("DEBUG") == "true" {
		logging.SetDebug(true)
	}
}

func run(cfgPath, server, apiKey string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	var j *journal.Journal
	if cfg.JournalPath != "" {
		j, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		logging.Info("main", "Journal at %s", cfg.JournalPath)
	}

	backend := completion.NewHTTPBackend(completion.HTTPConfig{Host: server, APIKey: apiKey})
	logging.Info("main", "Completion endpoint %s", backend.URL())

	// The effector shares the sense's session, which is created below
	var sense *senses.DiscordSense
	effector := effectors.NewDiscordEffector(func() *discordgo.Session {
		if sense == nil {
			return nil
		}
		return sense.Session()
	}, cfg.ChannelID)

	eng, err := engine.New(cfg, backend, effector, engine.Options{Journal: j})
	if err != nil {
		return err
	}

	sense, err = senses.NewDiscordSense(senses.DiscordConfig{
		Token:     cfg.BotToken,
		ChannelID: cfg.ChannelID,
		IsAdmin:   cfg.IsAdmin,
	}, eng.HandleInbound)
	if err != nil {
		return err
	}
	if err := sense.Start(); err != nil {
		return err
	}
	eng.Start()
	logging.Info("main", "%s is running in channel %s", cfg.Name, cfg.ChannelID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logging.Info("main", "Shutting down...")
	eng.Stop()
	if err := sense.Stop(); err != nil {
		logging.Info("main", "Discord close: %v", err)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
