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

	"rowquery/internal/config"
	"rowquery/internal/metrics"
	"rowquery/internal/metrics/datadog"
	"rowquery/internal/metrics/prompush"
	"rowquery/internal/runner"
	"rowquery/internal/storage"

	// register all backends with the storage factory.
	_ "rowquery/internal/storage/all"
)

// main loads the job config, optionally initializes a metrics backend, and
// runs every configured query.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/jobs/sample.json", "job config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none; overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	pretty := flag.Bool("pretty", isTerminal(os.Stdout.Fd()), "indent JSON array output")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	log.SetOutput(os.Stderr)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintln(os.Stderr, iss.Error())
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	backendName := metricsBackend(metricsBackendFlg, os.Getenv)
	jobName := cfg.Job
	if jobName == "" {
		jobName = "rowquery"
	}
	switch backendName {
	case "pushgateway":
		gwURL := firstNonEmpty(pushGatewayURLFlg, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, jobName)
		metrics.SetBackend(b)

	case "datadog":
		addr := firstNonEmpty(statsdAddrFlg, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "rowquery.",
			GlobalTags: []string{"job:" + jobName},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, backendName, jobName)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	start := time.Now()
	err = run(ctx, cfg, *pretty, *verbose)
	stop()

	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("metrics: flush error: %v", ferr)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func run(ctx context.Context, cfg config.Config, pretty, verbose bool) error {
	if verbose {
		log.Printf("job: name=%s storage=%s queries=%d", cfg.Job, cfg.Storage.Kind, len(cfg.Queries))
	}

	t := time.Now()
	repo, err := storage.New(ctx, storage.FromConfig(cfg.Storage))
	metrics.RecordStep(cfg.Job, "connect", err, time.Since(t))
	if err != nil {
		return err
	}
	defer repo.Close()

	r := runner.New(repo, cfg)
	r.Pretty = pretty
	_, err = r.Run(ctx, cfg.Queries)
	return err
}

// metricsBackend picks the backend name: flag, then env METRICS_BACKEND, then
// "none".
func metricsBackend(flagVal string, getenv func(string) string) string {
	return firstNonEmpty(flagVal, getenv("METRICS_BACKEND"), "none")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
