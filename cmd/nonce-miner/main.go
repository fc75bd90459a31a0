package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/screa/nonce-miner/internal/config"
	"github.com/screa/nonce-miner/internal/crypto"
	logpkg "github.com/screa/nonce-miner/internal/logger"
	minerpkg "github.com/screa/nonce-miner/pkg/miner"
	"github.com/screa/nonce-miner/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfg        = config.NewConfig()
	configFile string
	logger     *logpkg.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "nonce-miner",
		Short: "Proof-of-work nonce search, sequential or as a worker race",
		Long: `Searches the nonce space of a fixed block header for a double-SHA-256
hash starting with a target prefix, either sequentially or by racing
several workers over disjoint nonce classes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "YAML config file (flags override it)")
	flags.StringVarP(&cfg.Target, "target", "t", cfg.Target, "Required hash prefix (hex)")
	flags.Uint64Var(&cfg.MaxNonce, "max-nonce", cfg.MaxNonce, "Exclusive nonce bound")
	flags.Uint32Var(&cfg.Timestamp, "timestamp", 0, "Starting header timestamp (default: now)")
	flags.StringVar(&cfg.Hash, "hash", cfg.Hash, fmt.Sprintf("Hash algorithm %v", crypto.Algorithms()))
	flags.DurationVar(&cfg.Timeout, "timeout", 0, "Give up after this long (0: never)")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")
	flags.StringVarP(&cfg.LogFile, "log-file", "l", "", "Log file for progress tracking (default: stdout)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	flags.IntVarP(&cfg.LogInterval, "log-interval", "i", cfg.LogInterval, "Verbose progress interval in seconds")
	flags.Int64Var(&cfg.ProgressEvery, "progress-every", cfg.ProgressEvery, "Sequential search: log every N attempts")

	raceCmd := &cobra.Command{
		Use:   "race",
		Short: "Race several workers over disjoint nonce classes",
		RunE:  runRace,
	}
	raceCmd.Flags().IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Number of worker goroutines")
	raceCmd.Flags().DurationVar(&cfg.HeartbeatTimeout, "heartbeat", cfg.HeartbeatTimeout, "Fail if no progress for this long")
	raceCmd.Flags().DurationVar(&cfg.JoinTimeout, "join-timeout", cfg.JoinTimeout, "Max wait for workers to stop")

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "Run one race per worker count and compare elapsed times",
		RunE:  runCompare,
	}
	compareCmd.Flags().IntSliceVar(&cfg.CompareCounts, "counts", cfg.CompareCounts, "Worker counts to compare")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "search",
			Short: "Sequential search, rolling the timestamp when nonces run out",
			RunE:  runSearch,
		},
		raceCmd,
		compareCmd,
		newVerifyCmd(),
	)
	return rootCmd
}

// loadConfig applies the config file, then re-applies explicitly set flags on top
func loadConfig(cmd *cobra.Command) error {
	if configFile != "" {
		// Flags write straight into cfg, so remember them before the file overwrites it.
		values := map[string]string{}
		slices := map[string][]string{}
		cmd.Flags().Visit(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				slices[f.Name] = sv.GetSlice()
				return
			}
			values[f.Name] = f.Value.String()
		})

		if err := cfg.Load(configFile); err != nil {
			return err
		}

		var err error
		cmd.Flags().Visit(func(f *pflag.Flag) {
			if err != nil {
				return
			}
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				err = sv.Replace(slices[f.Name])
				return
			}
			err = f.Value.Set(values[f.Name])
		})
		if err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return setupLogging()
}

func setupLogging() error {
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logger = logpkg.NewWriter(file)
	} else {
		logger = logpkg.New()
	}
	logger.SetVerbose(cfg.Verbose)
	logger.SetFormat(cfg.LogFormat)
	return nil
}

// runWithSignals runs fn until it returns or Ctrl+C stops the miner
func runWithSignals(miner *minerpkg.Miner, fn func(context.Context) error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(context.Background())
	}()

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Println("Received interrupt signal (Ctrl+C). Stopping miners...")
		miner.Stop()
		err := <-errChan
		logger.Printf("Mining stopped by user after %d attempts.", miner.Attempts())
		return err
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	miner, err := minerpkg.NewMiner(cfg, logger)
	if err != nil {
		return err
	}
	return runWithSignals(miner, func(ctx context.Context) error {
		result, err := miner.Search(ctx)
		if err != nil {
			return err
		}
		reportResult(result)
		return nil
	})
}

func runRace(cmd *cobra.Command, args []string) error {
	miner, err := minerpkg.NewMiner(cfg, logger)
	if err != nil {
		return err
	}
	return runWithSignals(miner, func(ctx context.Context) error {
		result, err := miner.Race(ctx)
		if err != nil {
			return err
		}
		reportResult(result)
		return nil
	})
}

func runCompare(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateCompare(); err != nil {
		return err
	}
	miner, err := minerpkg.NewMiner(cfg, logger)
	if err != nil {
		return err
	}
	return runWithSignals(miner, func(ctx context.Context) error {
		results, err := miner.Compare(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			reportResult(r)
		}
		logger.Println("Elapsed time by worker count:")
		for _, r := range results {
			logger.Printf(" - %d workers: %.2f seconds", r.Workers, r.Duration.Seconds())
		}
		return nil
	})
}

func reportResult(result *types.Result) {
	logger.Printf("Block mined!")
	if result.RaceID != "" {
		logger.Printf("Race: %s (%d workers), winner: worker %d", result.RaceID, result.Workers, result.WorkerID)
	}
	logger.Printf("Timestamp: %d", result.Timestamp)
	logger.Printf("Nonce: %d", result.Nonce)
	logger.Printf("Hash: %s", result.Hash)
	logger.Printf("Attempts: %d (all workers: %d)", result.Attempts, result.TotalAttempts)
	logger.Printf("Duration: %v", result.Duration)
	logger.Printf("Rate: %.2f hashes/sec", result.Rate())
}
