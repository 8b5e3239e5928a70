package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sweetpotato0/reasonchain/chain"
	"github.com/sweetpotato0/reasonchain/config"
	"github.com/sweetpotato0/reasonchain/history"
	"github.com/sweetpotato0/reasonchain/history/store"
	"github.com/sweetpotato0/reasonchain/pkg/logging"
	"github.com/sweetpotato0/reasonchain/pkg/telemetry"
	"github.com/sweetpotato0/reasonchain/provider/claude"
	"github.com/sweetpotato0/reasonchain/provider/deepseek"
	"github.com/sweetpotato0/reasonchain/provider/groq"
	"github.com/sweetpotato0/reasonchain/session"
	"github.com/sweetpotato0/reasonchain/tokenizer"
	"github.com/sweetpotato0/reasonchain/web"
)

const longDesc = `Reasonchain chains a reasoning model into a fast synthesis model.

Each chat turn streams the user question through DeepSeek R1, captures the
intermediate reasoning tokens, and hands them together with the question to a
fast inference provider for the final answer.`

type commander struct {
	listen  string
	storeTy string
	envFile string
}

func newRootCmd() *cobra.Command {
	cmder := &commander{}

	cmd := &cobra.Command{
		Use:   "reasonchain",
		Short: "Reasoning-to-synthesis chat server",
		Long:  longDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default :8080)")
	cmd.Flags().StringVarP(&cmder.storeTy, "store", "s", "", "Trace history store: memory, redis, postgres or mongo (default memory)")
	cmd.Flags().StringVar(&cmder.envFile, "env-file", config.DefaultEnvFile, "Dotenv file with API keys")

	return cmd
}

func (c *commander) run() error {
	logger := logging.Logger()

	cfg, err := config.Load(c.envFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.listen != "" {
		cfg.Listen = c.listen
	}
	if c.storeTy != "" {
		cfg.Store = c.storeTy
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Reasoner.APIKey == "" && cfg.Synthesizer.APIKey == "" {
		logger.Warn("no API keys found in environment; configure them in the .env file or the UI settings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "reasonchain",
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	traceStore, err := newTraceStore(cfg)
	if err != nil {
		return fmt.Errorf("creating trace store: %w", err)
	}

	sess := session.New(traceStore)
	defer sess.Close()

	opts := []chain.Option{
		chain.WithEnvironmentKeys(cfg.Reasoner.APIKey, cfg.Synthesizer.APIKey),
		chain.WithReasonerFactory(func(apiKey string) chain.Reasoner {
			rcfg := deepseek.DefaultConfig(apiKey)
			rcfg.Model = cfg.Reasoner.Model
			return deepseek.New(rcfg)
		}),
		chain.WithSynthesizerFactory(newSynthesizerFactory(cfg)),
	}

	// Token counting is best-effort: the encoding may need a one-time
	// download, and the chain works without it.
	if tok, err := tokenizer.New("cl100k_base"); err == nil {
		opts = append(opts, chain.WithTokenizer(tok))
	} else {
		logger.Warn("tokenizer unavailable, trace token counts disabled", "error", err)
	}

	orch := chain.New(opts...)

	server := web.NewServer(web.Config{Listen: cfg.Listen}, orch, sess, logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return server.Shutdown()
	case err := <-errChan:
		return err
	}
}

func newSynthesizerFactory(cfg *config.Config) chain.SynthesizerFactory {
	switch cfg.Synthesizer.Provider {
	case "claude":
		return func(apiKey string) chain.Synthesizer {
			ccfg := claude.DefaultConfig(apiKey)
			ccfg.Model = cfg.Synthesizer.Model
			ccfg.MaxTokens = cfg.Synthesizer.MaxTokens
			ccfg.Temperature = cfg.Synthesizer.Temperature
			return claude.New(ccfg)
		}
	default:
		return func(apiKey string) chain.Synthesizer {
			gcfg := groq.DefaultConfig(apiKey)
			gcfg.Model = cfg.Synthesizer.Model
			gcfg.MaxTokens = cfg.Synthesizer.MaxTokens
			gcfg.Temperature = cfg.Synthesizer.Temperature
			gcfg.TopP = cfg.Synthesizer.TopP
			return groq.New(gcfg)
		}
	}
}

func newTraceStore(cfg *config.Config) (history.Store, error) {
	switch cfg.Store {
	case "redis":
		return store.NewRedisStore(&cfg.Redis), nil
	case "postgres":
		return store.NewPostgresStore(&cfg.Postgres)
	case "mongo":
		return store.NewMongoStore(&cfg.Mongo)
	default:
		return store.NewInMemoryStore(), nil
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
