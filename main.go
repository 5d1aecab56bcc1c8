package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/chat-relay/modules/api"
	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/chat"
	"github.com/example/chat-relay/modules/directory"
	"github.com/example/chat-relay/modules/store"
	"github.com/example/chat-relay/modules/uploads"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

// config holds the settings read from the environment.
type config struct {
	Port          string
	DBPath        string
	DBDebug       bool
	CORSOrigin    string
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration
	MaxUploadSize int64
	StoragePath   string
	BlobStorage   fsjetstream.StorageType
}

func loadConfig() config {
	return config{
		Port:          getEnv("PORT", "5000"),
		DBPath:        getEnv("DB_PATH", "chat.db"),
		DBDebug:       getEnvBool("DB_DEBUG", false),
		CORSOrigin:    getEnv("CORS_ORIGIN", "http://localhost:3000"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      getEnvDuration("CACHE_TTL", time.Hour),
		MaxUploadSize: getEnvInt64("MAX_UPLOAD_SIZE", 10*1024*1024), // 10MB default
		StoragePath:   getEnv("STORAGE_PATH", "/tmp/chat-relay"),
		BlobStorage:   fsjetstream.FileStorage,
	}
}

// application is the assembled mono app plus the module handles that are
// shared in-process.
type application struct {
	mono      mono.MonoApplication
	store     *store.Module
	directory *directory.Module
	broadcast *broadcast.BroadcastModule
	uploads   *uploads.Module
	chat      *chat.Module
	api       *api.APIModule
}

// newApplication creates the mono app, its storage plugin and every module.
// Extra options are applied after the defaults.
func newApplication(cfg config, opts ...mono.MonoFrameworkOption) (*application, error) {
	monoOpts := append([]mono.MonoFrameworkOption{
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(cfg.StoragePath),
	}, opts...)

	// Create mono application with embedded NATS JetStream
	monoApp, err := mono.NewMonoApplication(monoOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mono application: %w", err)
	}

	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        uploads.BucketName,
				Description: "Chat file uploads",
				MaxBytes:    1024 * 1024 * 1024, // 1GB max storage
				Storage:     cfg.BlobStorage,
				Compression: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage plugin: %w", err)
	}

	// The framework calls SetPlugin("storage", storagePlugin) on the uploads module
	if err := monoApp.RegisterPlugin(storagePlugin, "storage"); err != nil {
		return nil, fmt.Errorf("failed to register storage plugin: %w", err)
	}

	var cache *directory.RedisCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		cache = directory.NewRedisCache(client, "chat:user:", cfg.CacheTTL, monoApp.Logger())
	}

	app := &application{mono: monoApp}
	app.store = store.NewModule(cfg.DBPath, cfg.DBDebug, monoApp.Logger())
	app.directory = directory.NewModule(app.store, cache, monoApp.Logger())
	app.broadcast = broadcast.NewModule(monoApp.Logger())
	app.uploads = uploads.NewModule(monoApp.Logger())
	app.chat = chat.NewModule(app.store, app.broadcast, monoApp.Logger())
	app.api = api.NewModule(api.Config{
		Port:          cfg.Port,
		CORSOrigin:    cfg.CORSOrigin,
		MaxUploadSize: cfg.MaxUploadSize,
		QueueSize:     broadcast.DefaultQueueSize,
	}, monoApp.Logger())

	// The hub and in-process collaborators are not exposed via ServiceContainer
	app.api.SetHub(app.broadcast.Hub())
	app.api.SetChatModule(app.chat)
	app.api.SetUploadsModule(app.uploads)

	// Start order follows each module's Dependencies():
	// - store: SQLite via GORM
	// - directory: user directory services (store)
	// - broadcast: websocket hub
	// - uploads: fs-jetstream blob store
	// - chat: membership, pipeline, sessions (store, broadcast, directory)
	// - api: Fiber HTTP/WebSocket server (broadcast, uploads, directory, chat)
	for _, m := range []mono.Module{app.store, app.directory, app.broadcast, app.uploads, app.chat, app.api} {
		if err := monoApp.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register %s module: %w", m.Name(), err)
		}
	}

	return app, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cfg := loadConfig()

	log.Println("=== Chat Relay ===")
	log.Printf("HTTP Port: %s", cfg.Port)
	log.Printf("Database: %s", cfg.DBPath)
	log.Printf("CORS Origin: %s", cfg.CORSOrigin)
	log.Printf("Max Upload Size: %d bytes", cfg.MaxUploadSize)
	log.Printf("Storage Path: %s", cfg.StoragePath)
	if cfg.RedisAddr != "" {
		log.Printf("User cache: redis %s (ttl %s)", cfg.RedisAddr, cfg.CacheTTL)
	}

	app, err := newApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := app.mono.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg.Port)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.mono.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(port string) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("HTTP Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health            - Health check")
	log.Println("  POST   /user              - Register or fetch a user")
	log.Println("  GET    /messages/:room    - Room history")
	log.Println("  POST   /upload            - Upload a file (multipart field \"file\")")
	log.Println("  GET    /uploads/:name     - Download an uploaded file")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws?username=yourname):", port)
	log.Println("  Client events: joinRoom, message")
	log.Println("  Server events: loadMessages, message, userPresence")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64 returns environment variable as int64 or default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int64 value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
