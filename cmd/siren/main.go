package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TFMV/siren/pkg/api"
	"github.com/TFMV/siren/pkg/embed"
	"github.com/TFMV/siren/pkg/loss"
	"github.com/TFMV/siren/pkg/metrics"
	"github.com/TFMV/siren/pkg/pairwise"
	"github.com/TFMV/siren/pkg/sampling"
	"github.com/TFMV/siren/pkg/source"
	"github.com/TFMV/siren/pkg/trainer"
)

var (
	cfgFile  string
	logLevel string
	version  = "0.1.0" // Will be set during build
)

func main() {
	cobra.OnInitialize(initConfig)

	rootCmd := &cobra.Command{
		Use:   "siren",
		Short: "Siren - speaker embedding training with triplet loss",
		Long: `Siren trains speaker embeddings for diarization with triplet loss,
mining anchor/positive/negative triplets from labelled audio segment batches.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.siren.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(trainCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".siren")
	}

	viper.SetEnvPrefix("SIREN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run a training loop over labelled segment batches",
		RunE:  runTrain,
	}

	flags := cmd.Flags()
	flags.String("metric", string(pairwise.Cosine), "distance metric (euclidean, cosine, angular)")
	flags.Float64("margin", 0.2, "margin as a fraction of the metric's max distance")
	flags.String("clamp", string(loss.Positive), "clamp function (positive, sigmoid, softmargin)")
	flags.String("sampling", string(sampling.All), "triplet sampling strategy (all, hard, negative, easy)")
	flags.Int("per-label", 3, "segments per speaker in each batch")
	flags.Int("per-fold", 4, "speakers per batch (0 = whole speaker set)")
	flags.Int("steps", 100, "number of training steps (0 = until the source is exhausted)")
	flags.String("batch-url", "", "segment generator endpoint; empty uses the synthetic source")
	flags.Int("feat-dim", 59, "acoustic feature dimension")
	flags.Int("embed-dim", 32, "embedding dimension")
	flags.Int("frames", 50, "frames per synthetic segment")
	flags.Int64("seed", 42, "synthetic source seed")
	flags.String("port", "8090", "status server port (empty disables the server)")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger, err := buildLogger(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	collector := metrics.NewCollector()

	embedder, err := embed.NewLinear(viper.GetInt("feat-dim"), viper.GetInt("embed-dim"))
	if err != nil {
		return err
	}

	cfg := trainer.Config{
		Metric:    pairwise.Metric(viper.GetString("metric")),
		Margin:    viper.GetFloat64("margin"),
		Clamp:     loss.Clamp(viper.GetString("clamp")),
		Sampling:  sampling.Strategy(viper.GetString("sampling")),
		PerLabel:  viper.GetInt("per-label"),
		PerFold:   viper.GetInt("per-fold"),
		Logger:    logger,
		Collector: collector,
	}
	t, err := trainer.New(embedder, cfg)
	if err != nil {
		return err
	}

	src, err := buildSource(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if port := viper.GetString("port"); port != "" {
		server := api.NewServer(collector, logger, api.ServerOptions{Port: port})
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Status server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("Starting training run",
		zap.String("metric", viper.GetString("metric")),
		zap.String("clamp", viper.GetString("clamp")),
		zap.String("sampling", viper.GetString("sampling")),
		zap.Float64("margin", viper.GetFloat64("margin")))

	steps := viper.GetInt("steps")
	err = t.Run(ctx, src, steps, func(step int, result trainer.StepResult) error {
		if step%10 == 0 {
			logger.Info("Step completed",
				zap.Int("step", step),
				zap.Float64("loss", result.Loss),
				zap.Int("triplets", result.Triplets))
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return err
	}

	snapshot := collector.Snapshot()
	logger.Info("Training run finished",
		zap.Int64("steps", snapshot.Steps),
		zap.Int64("skipped", snapshot.Skipped),
		zap.Float64("last_loss", snapshot.LastLoss))
	return nil
}

func buildSource(cfg trainer.Config, logger *zap.Logger) (trainer.BatchSource, error) {
	if url := viper.GetString("batch-url"); url != "" {
		logger.Info("Pulling batches from generator service", zap.String("url", url))
		return source.NewHTTP(url, 30*time.Second), nil
	}

	speakers := cfg.PerFold
	if speakers == 0 {
		speakers = 4
	}
	logger.Info("Using synthetic batch source",
		zap.Int("speakers", speakers),
		zap.Int("per_label", cfg.PerLabel))
	return source.NewSynthetic(speakers, cfg.PerLabel,
		viper.GetInt("frames"), viper.GetInt("feat-dim"), viper.GetInt64("seed"))
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
