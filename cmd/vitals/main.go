// Command vitals estimates heart rate, HRV and breathing rate from a stream
// of per-frame face measurements.
//
// Usage:
//
//	vitals [flags] [session_id]
//	vitals [-db path] migrate <action>
//
// Input is one JSON object per line; output is one JSON object per line on
// stdout, plus any configured sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/vitals.report/internal/config"
	"github.com/banshee-data/vitals.report/internal/db"
	"github.com/banshee-data/vitals.report/internal/linemux"
	"github.com/banshee-data/vitals.report/internal/monitor"
	"github.com/banshee-data/vitals.report/internal/monitoring"
	"github.com/banshee-data/vitals.report/internal/rpc"
	"github.com/banshee-data/vitals.report/internal/session"
	"github.com/banshee-data/vitals.report/internal/sink"
	"github.com/banshee-data/vitals.report/internal/version"
)

var (
	input       = flag.String("input", "-", "Line source: - for stdin, serial:<device>, or a file path")
	baudRate    = flag.Int("baud", 115200, "Baud rate when -input is a serial device")
	configPath  = flag.String("config", "", "Path to a tuning JSON file (built-in defaults when empty)")
	listen      = flag.String("listen", "", "Debug HTTP listen address, e.g. localhost:8080 (disabled when empty)")
	dbPath      = flag.String("db", "", "SQLite session registry path (disabled when empty)")
	grpcListen  = flag.String("grpc-listen", "", "gRPC health service listen address (disabled when empty)")
	noStdout    = flag.Bool("no-stdout", false, "Do not write metrics to stdout")
	mqttBroker  = flag.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (env "+sink.EnvMQTTBroker+")")
	redisAddr   = flag.String("redis-addr", "", "Redis address for the metrics stream (env "+sink.EnvRedisAddr+")")
	natsURL     = flag.String("nats-url", "", "NATS server URL (env "+sink.EnvNATSURL+")")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn or error")
	logFormat   = flag.String("log-format", "json", "Log format: json or console")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

// options is the parsed command line.
type options struct {
	sessionID  string
	input      string
	baudRate   int
	configPath string
	listen     string
	dbPath     string
	grpcListen string
	stdout     bool
	mqttBroker string
	redisAddr  string
	natsURL    string
}

func optionsFromFlags(args []string) options {
	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		id = uuid.NewString()
	}
	return options{
		sessionID:  id,
		input:      *input,
		baudRate:   *baudRate,
		configPath: *configPath,
		listen:     *listen,
		dbPath:     *dbPath,
		grpcListen: *grpcListen,
		stdout:     !*noStdout,
		mqttBroker: *mqttBroker,
		redisAddr:  *redisAddr,
		natsURL:    *natsURL,
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	args := flag.Args()
	if len(args) > 0 && args[0] == "migrate" {
		path := *dbPath
		if path == "" {
			path = "vitals.db"
		}
		if err := db.RunMigrateCommand(args[1:], path, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, err := monitoring.NewZapLogger(*logLevel, *logFormat, "vitals")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	monitoring.UseZap(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitoring.Logf("[vitals] version %s", version.String())
	if err := run(ctx, optionsFromFlags(args), os.Stdout); err != nil {
		monitoring.Logf("[vitals] fatal: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// run processes one session until its input ends or ctx is cancelled.
func run(ctx context.Context, opts options, stdout io.Writer) error {
	tuning, err := loadTuning(opts.configPath)
	if err != nil {
		return err
	}
	if err := tuning.Validate(); err != nil {
		return fmt.Errorf("invalid tuning config: %w", err)
	}

	port, err := linemux.Open(opts.input, linemux.PortOptions{BaudRate: opts.baudRate})
	if err != nil {
		return err
	}
	lines := linemux.NewLineMux(port)
	defer lines.Close()

	sinkCfg := sink.ConfigFromTuning(tuning)
	sinkCfg.Stdout = opts.stdout
	sinkCfg.MQTTBroker = opts.mqttBroker
	sinkCfg.RedisAddr = opts.redisAddr
	sinkCfg.NATSURL = opts.natsURL
	sinkCfg.ClientID = "vitals-" + opts.sessionID
	sinkCfg.LoadFromEnv()

	var extra []sink.Sink
	var hub *sink.Hub
	if opts.listen != "" {
		hub = sink.NewHub(nil)
		extra = append(extra, hub)
	}

	var database *db.DB
	if opts.dbPath != "" {
		database, err = db.NewDB(opts.dbPath)
		if err != nil {
			return fmt.Errorf("failed to open session database: %w", err)
		}
		defer database.Close()
		recorder, err := db.NewRecorder(database, opts.input, tuning, nil)
		if err != nil {
			return err
		}
		extra = append(extra, recorder)
	}

	if opts.grpcListen != "" {
		health := rpc.NewServer(opts.grpcListen)
		if err := health.Start(); err != nil {
			return err
		}
		extra = append(extra, health)
	}

	sinks, err := sink.Open(ctx, sinkCfg, stdout, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			monitoring.Logf("[vitals] closing sinks: %v", err)
		}
	}()

	sess := session.New(session.OptionsFromTuning(opts.sessionID, tuning), sinks)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var wg sync.WaitGroup
	_, feed := lines.SubscribeReliable()

	// the monitor closes the mux at EOF, which closes feed and ends the session
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := lines.Monitor(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("[vitals] input error: %v", err)
		}
		lines.Close()
	}()

	if opts.listen != "" {
		mux := http.NewServeMux()
		lines.AttachAdminRoutes(mux)
		monitor.New(sess).WithFeed(hub).AttachAdminRoutes(mux)
		hub.AttachRoutes(mux)
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				return err
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(runCtx, opts.listen, mux)
		}()
	}

	err = sess.Run(runCtx, feed)
	cancelRun()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		monitoring.Logf("[vitals] debug server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("[vitals] debug server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[vitals] debug server shutdown error: %v", err)
		server.Close()
	}
}
