// Command a2aserver wires a manager.TaskManager to the JSON-RPC, REST, and
// Agent Card HTTP surfaces and serves them, the way the teacher's
// example/cmd/assistant wires generated services to transports - except
// here the wiring is by hand, since this module has no codegen step of its
// own.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"goa.design/clue/log"
	"gopkg.in/yaml.v3"

	"github.com/a2aserver/a2a-core/a2a/agentcard"
	"github.com/a2aserver/a2a-core/a2a/eventstore"
	"github.com/a2aserver/a2a-core/a2a/manager"
	"github.com/a2aserver/a2a-core/a2a/pushconfig"
	"github.com/a2aserver/a2a-core/a2a/store"
	"github.com/a2aserver/a2a-core/a2a/telemetry"
	"github.com/a2aserver/a2a-core/a2a/temporalexec"
	"github.com/a2aserver/a2a-core/a2a/transport/jsonrpc"
	"github.com/a2aserver/a2a-core/a2a/transport/rest"
	"github.com/a2aserver/a2a-core/examples/echoagent"
)

// config is the server's YAML configuration file shape.
type config struct {
	Addr string `yaml:"addr"`
	Base string `yaml:"base"`

	TaskStore  string `yaml:"taskStore"`  // "memory" (default), "file", "redis"
	EventStore string `yaml:"eventStore"` // "memory" (default), "file", "pulse"
	PushStore  string `yaml:"pushStore"`  // "memory" (default), "mongo"

	FileDir  string `yaml:"fileDir"`
	RedisURL string `yaml:"redisUrl"`

	MongoURI string `yaml:"mongoUri"`
	MongoDB  string `yaml:"mongoDb"`

	Agent struct {
		Anthropic bool   `yaml:"anthropic"`
		Model     string `yaml:"model"`
	} `yaml:"agent"`

	// Temporal, when HostPort is set, runs AgentHandler.Execute through
	// a2a/temporalexec instead of manager.InlineRunner.
	Temporal struct {
		HostPort  string `yaml:"hostPort"`
		Namespace string `yaml:"namespace"`
		TaskQueue string `yaml:"taskQueue"`
	} `yaml:"temporal"`

	Card agentcard.Card `yaml:"card"`
}

func defaultConfig() config {
	var c config
	c.Addr = ":8080"
	c.Base = "/a2a"
	c.TaskStore = "memory"
	c.EventStore = "memory"
	c.PushStore = "memory"
	c.FileDir = "./data"
	c.Card = agentcard.Card{
		Name:            "a2a-core reference agent",
		Version:         "0.1.0",
		ProtocolVersion: "1.0",
		Capabilities: agentcard.Capabilities{
			Streaming:              true,
			PushNotifications:      true,
			StateTransitionHistory: true,
		},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
	}
	return c
}

func loadConfig(path string) (config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("opening config %q: %w", path, err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&c); err != nil {
		return c, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return c, nil
}

func main() {
	var (
		configF = flag.String("config", "", "path to YAML config file")
		dbgF    = flag.Bool("debug", false, "log request/response bodies at debug level")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg, err := loadConfig(*configF)
	if err != nil {
		log.Fatalf(ctx, err, "loading config")
	}

	tasks, err := buildTaskStore(ctx, cfg)
	if err != nil {
		log.Fatalf(ctx, err, "building task store")
	}
	events, err := buildEventStore(ctx, cfg)
	if err != nil {
		log.Fatalf(ctx, err, "building event store")
	}
	push, err := buildPushStore(ctx, cfg)
	if err != nil {
		log.Fatalf(ctx, err, "building push notification config store")
	}

	handler := echoagent.New(echoagent.Options{
		UseAnthropic: cfg.Agent.Anthropic,
		Model:        cfg.Agent.Model,
	})

	tel := telemetry.Telemetry{
		Log:     telemetry.NewClueLogger(),
		Metrics: telemetry.NewClueMetrics(),
		Trace:   telemetry.NewClueTracer(),
	}

	runner, err := buildHandlerRunner(ctx, cfg)
	if err != nil {
		log.Fatalf(ctx, err, "building handler runner")
	}

	mgr := manager.New(manager.Options{
		Tasks:     tasks,
		Events:    events,
		Push:      push,
		Handler:   handler,
		Runner:    runner,
		Telemetry: tel,
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.Base+"/rpc", jsonrpc.New(mgr, tel))
	mux.Handle(cfg.Base+"/v1/", rest.New(cfg.Base, mgr, tel))
	mux.Handle("/.well-known/agent.json", agentcard.New(cfg.Card))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	go func() {
		log.Printf(ctx, "listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	err = <-errc
	log.Print(ctx, log.KV{K: "shutdown", V: err.Error()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "graceful shutdown failed"})
	}
}

// buildHandlerRunner returns a manager.HandlerRunner. If cfg.Temporal is
// unconfigured, nil is returned and manager.New defaults to InlineRunner. If
// configured, it dials Temporal, starts a worker registered with
// a2a/temporalexec.Runner, and wraps both sides of the connection with the
// OpenTelemetry tracing interceptor so workflow/activity spans join the rest
// of this server's trace.
func buildHandlerRunner(ctx context.Context, cfg config) (manager.HandlerRunner, error) {
	if cfg.Temporal.HostPort == "" {
		return nil, nil
	}
	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = "a2a-tasks"
	}

	tracingInterceptor, err := opentelemetry.NewTracingInterceptor(opentelemetry.TracerOptions{})
	if err != nil {
		return nil, fmt.Errorf("building temporal tracing interceptor: %w", err)
	}

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:     cfg.Temporal.HostPort,
		Namespace:    cfg.Temporal.Namespace,
		Interceptors: []interceptor.ClientInterceptor{tracingInterceptor},
	})
	if err != nil {
		return nil, fmt.Errorf("dialing temporal: %w", err)
	}

	runner := temporalexec.New(c, taskQueue)
	w := worker.New(c, taskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{tracingInterceptor},
	})
	runner.RegisterWith(w)
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting temporal worker: %w", err)
	}

	log.Print(ctx, log.KV{K: "temporal", V: "worker started on task queue " + taskQueue})
	return runner, nil
}

func buildTaskStore(ctx context.Context, cfg config) (store.TaskStore, error) {
	switch cfg.TaskStore {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(cfg.FileDir)
	case "redis":
		return store.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisURL}), "a2a:task:"), nil
	default:
		return nil, fmt.Errorf("unknown taskStore backend %q", cfg.TaskStore)
	}
}

func buildEventStore(ctx context.Context, cfg config) (eventstore.EventStore, error) {
	switch cfg.EventStore {
	case "", "memory":
		return eventstore.NewMemoryStore(), nil
	case "file":
		return eventstore.NewFileStore(cfg.FileDir)
	case "pulse":
		return eventstore.NewPulseStore(redis.NewClient(&redis.Options{Addr: cfg.RedisURL})), nil
	default:
		return nil, fmt.Errorf("unknown eventStore backend %q", cfg.EventStore)
	}
}

func buildPushStore(ctx context.Context, cfg config) (pushconfig.Store, error) {
	switch cfg.PushStore {
	case "", "memory":
		return pushconfig.NewMemoryStore(), nil
	case "mongo":
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("pinging mongo: %w", err)
		}
		coll := client.Database(cfg.MongoDB).Collection("push_configs")
		return pushconfig.NewMongoStore(coll), nil
	default:
		return nil, fmt.Errorf("unknown pushStore backend %q", cfg.PushStore)
	}
}
