// Command sigmaflow loads a directory of Sigma rules, compiles them into
// a Ruleset, and drives the streaming consumer (spec.md §6) against
// either stdin/stdout or a Redis broker. This binary is the "embedding
// application" spec.md §1 treats as an external collaborator: it owns
// CLI flags, config-file loading, and broker wiring; the engine itself
// lives in the internal packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"sigmaflow/config"
	"sigmaflow/internal/broker/redis"
	"sigmaflow/internal/broker/stdio"
	"sigmaflow/internal/consumer"
	"sigmaflow/internal/logger"
	"sigmaflow/internal/rule"
	"sigmaflow/internal/ruleset"
)

var appLog = logger.Component("sigmaflow")

func findConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat("sigmaflow.yml"); err == nil {
		return "sigmaflow.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), "sigmaflow.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "sigmaflow.yml"
}

// loadRules walks dir for .yml/.yaml files and loads each one into rs,
// matching spec.md §1's "rule directory discovery... accepts a stream of
// (path, bytes) pairs" framing: this is the trivial discovery collaborator,
// the Ruleset itself does the compiling.
func loadRules(rs *ruleset.Ruleset, dir string, opts rule.LoaderOptions, failOnParseError bool) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if failOnParseError {
				return fmt.Errorf("read rule file %s: %w", path, err)
			}
			appLog.Errorf("skipping unreadable rule file %s: %v", path, err)
			return nil
		}
		if loadErr := rs.Load(path, data, opts); loadErr != nil && failOnParseError {
			return fmt.Errorf("load rule file %s: %w", path, loadErr)
		}
		return nil
	})
}

func buildSource(mode string, bcfg config.BrokerConfig) (consumer.Source, func() bool, error) {
	switch mode {
	case "", "stdin":
		src := stdio.NewSource(os.Stdin)
		return src, src.AtEOF, nil
	case "redis", "broker":
		addr := ""
		if len(bcfg.Endpoints) > 0 {
			addr = bcfg.Endpoints[0]
		}
		if len(bcfg.InputTopics) == 0 {
			return nil, nil, fmt.Errorf("broker.input_topics must name at least one Redis list key")
		}
		src, err := redis.NewSource(redis.SourceConfig{
			Addr:         addr,
			Password:     bcfg.Password,
			DB:           bcfg.DB,
			Key:          bcfg.InputTopics[0],
			BlockTimeout: bcfg.BlockTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, func() bool { return false }, nil
	default:
		return nil, nil, fmt.Errorf("unrecognized --input mode %q (want stdin or redis)", mode)
	}
}

func buildSink(mode string, bcfg config.BrokerConfig) (consumer.Sink, error) {
	switch mode {
	case "", "stdout":
		return stdio.NewSink(os.Stdout, os.Stderr), nil
	case "redis", "broker":
		addr := ""
		if len(bcfg.Endpoints) > 0 {
			addr = bcfg.Endpoints[0]
		}
		if bcfg.OutputTopic == "" {
			return nil, fmt.Errorf("broker.output_topic must name a Redis list key")
		}
		return redis.NewSink(redis.SinkConfig{
			Addr:      addr,
			Password:  bcfg.Password,
			DB:        bcfg.DB,
			OutputKey: bcfg.OutputTopic,
			DLQKey:    bcfg.DLQTopic,
		})
	default:
		return nil, fmt.Errorf("unrecognized --output mode %q (want stdout or redis)", mode)
	}
}

func buildCommitter(inputMode string, bcfg config.BrokerConfig) (consumer.OffsetCommitter, func() error, error) {
	switch inputMode {
	case "redis", "broker":
		cs, err := redis.NewCommitStore(redis.CommitStoreConfig{
			Addr:     firstOr(bcfg.Endpoints, ""),
			Password: bcfg.Password,
			DB:       bcfg.DB,
			Key:      bcfg.CommitKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return cs, cs.Close, nil
	default:
		c := stdio.NewCommitter()
		return c, func() error { return nil }, nil
	}
}

func firstOr(vs []string, fallback string) string {
	if len(vs) > 0 {
		return vs[0]
	}
	return fallback
}

func run() int {
	rulesDir := flag.String("rules", "", "directory of Sigma rule YAML files")
	inputMode := flag.String("input", "stdin", "event source: stdin or redis")
	outputMode := flag.String("output", "stdout", "match sink: stdout or redis")
	configPath := flag.String("config", "", "path to sigmaflow.yml")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfgFile := findConfigFile(*configPath)
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		if *configPath != "" {
			fmt.Fprintf(os.Stderr, "sigmaflow: failed to load config %s: %v\n", cfgFile, err)
			return 1
		}
		cfg = &config.Config{}
	}
	config.ApplyDefaults(cfg)

	if *rulesDir != "" {
		cfg.Sigmaflow.Rules.Dir = *rulesDir
	}
	if *debug {
		cfg.Sigmaflow.Logging.Level = "debug"
		cfg.Sigmaflow.Logging.Enabled = true
		cfg.Sigmaflow.Logging.Console = true
	}

	if err := logger.Init(cfg.Sigmaflow.Logging.Enabled, cfg.Sigmaflow.Logging.Level, cfg.Sigmaflow.Logging.File, cfg.Sigmaflow.Logging.Console); err != nil {
		fmt.Fprintf(os.Stderr, "sigmaflow: failed to initialize logger: %v\n", err)
		return 1
	}

	appLog.Infof("starting, rules=%s input=%s output=%s", cfg.Sigmaflow.Rules.Dir, *inputMode, *outputMode)

	rs := ruleset.New(ruleset.WithWorkers(cfg.Sigmaflow.Workers))
	loaderOpts := rule.LoaderOptions{
		MaxFileBytes:   cfg.Sigmaflow.Rules.MaxFileBytes,
		MaxIdentifiers: cfg.Sigmaflow.Rules.MaxIdentifiers,
	}
	if err := loadRules(rs, cfg.Sigmaflow.Rules.Dir, loaderOpts, cfg.Sigmaflow.Rules.FailOnParseError); err != nil {
		appLog.Errorf("rule load failed: %v", err)
		return 1
	}
	stats := rs.Stats()
	appLog.Infof("rules loaded total=%d ok=%d failed=%d", stats.Total, stats.OK, stats.Failed)
	if rs.Len() == 0 {
		appLog.Warnf("no rules loaded from %s; every event will evaluate to zero matches", cfg.Sigmaflow.Rules.Dir)
	}

	source, atEOF, err := buildSource(*inputMode, cfg.Sigmaflow.Broker)
	if err != nil {
		appLog.Errorf("failed to build input source: %v", err)
		return 1
	}
	sink, err := buildSink(*outputMode, cfg.Sigmaflow.Broker)
	if err != nil {
		appLog.Errorf("failed to build output sink: %v", err)
		return 1
	}
	committer, closeCommitter, err := buildCommitter(*inputMode, cfg.Sigmaflow.Broker)
	if err != nil {
		appLog.Errorf("failed to build offset committer: %v", err)
		return 1
	}

	cons := consumer.New(source, sink, committer, rs, consumer.Config{
		Workers:            cfg.Sigmaflow.Workers,
		MaxRetries:         cfg.Sigmaflow.Retry.MaxRetries,
		BaseDelay:          cfg.Sigmaflow.Retry.BaseDelay,
		MaxDelay:           cfg.Sigmaflow.Retry.MaxDelay,
		Multiplier:         cfg.Sigmaflow.Retry.Multiplier,
		DLQAfterRetries:    cfg.Sigmaflow.Retry.DLQAfterRetries,
		QueueCapacity:      cfg.Sigmaflow.Backpressure.Capacity,
		HighWatermarkRatio: cfg.Sigmaflow.Backpressure.HighWatermarkRatio,
		LowWatermarkRatio:  cfg.Sigmaflow.Backpressure.LowWatermarkRatio,
		CommitInterval:     5 * time.Second,
		CommitEveryN:       1000,
		ShutdownGrace:      cfg.Sigmaflow.Shutdown.Grace,
		EvalTimeout:        cfg.Sigmaflow.Evaluation.Timeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- cons.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	eofPoll := time.NewTicker(200 * time.Millisecond)
	defer eofPoll.Stop()

waitLoop:
	for {
		select {
		case <-sigCh:
			appLog.Infof("signal received, shutting down")
			cancel()
			exitCode = 2
			break waitLoop
		case <-eofPoll.C:
			if atEOF != nil && atEOF() {
				appLog.Infof("input exhausted, shutting down")
				cancel()
				exitCode = 0
				break waitLoop
			}
		case err := <-runErr:
			if err != nil && err != context.Canceled {
				appLog.Errorf("consumer stopped: %v", err)
				exitCode = 1
			}
			_ = source.Close()
			_ = sink.Close()
			_ = closeCommitter()
			return exitCode
		}
	}

	<-runErr
	_ = source.Close()
	_ = sink.Close()
	_ = closeCommitter()
	appLog.Infof("stopped")
	return exitCode
}

func main() {
	os.Exit(run())
}
