package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"ondc-bpp/internal/bloom"
	"ondc-bpp/internal/callback"
	"ondc-bpp/internal/catalog"
	"ondc-bpp/internal/config"
	"ondc-bpp/internal/dispatcher"
	"ondc-bpp/internal/igm"
	"ondc-bpp/internal/kstream"
	"ondc-bpp/internal/metrics"
	"ondc-bpp/internal/orders"
	"ondc-bpp/internal/policy"
	"ondc-bpp/internal/registry"
	"ondc-bpp/internal/rsp"
	"ondc-bpp/internal/signing"
	"ondc-bpp/internal/storage"
	"ondc-bpp/internal/subscribe"
	"ondc-bpp/internal/tasks"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	metrics.Register()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis %s: %v", cfg.RedisAddr, err)
		}
		defer rdb.Close()
	}

	var store storage.Store
	var keyCache registry.Cache
	if rdb != nil {
		store = storage.NewRedis(rdb)
		keyCache = registry.NewRedisCache(rdb)
	} else {
		log.Println("REDIS_ADDR not set, using in-memory store")
		store = storage.NewMemory()
		keyCache = registry.NewMemoryCache()
	}
	audit := storage.NewAuditLog(cfg.AuditLogDir)

	signer, err := signing.NewSigner(cfg.SubscriberID, cfg.UniqueKeyID, cfg.SigningPrivateKey)
	if err != nil {
		log.Fatalf("signing key: %v", err)
	}
	resolver := registry.NewResolver(cfg.RegistryURL, cfg.Domain, cfg.LookupTimeout, cfg.KeyCacheTTL, keyCache)
	client := callback.NewClient(cfg, signer)

	var queue tasks.Queue
	switch cfg.TaskQueue {
	case "kafka":
		log.Printf("Task queue: kafka %s topic %s", cfg.KafkaBroker, cfg.TaskTopic)
		queue = kstream.NewQueue(cfg.KafkaBroker, cfg.TaskTopic)
	default:
		queue = tasks.NewLocalQueue(cfg.WorkerCount, 1024)
	}

	deps := dispatcher.Deps{
		Config:    cfg,
		Keys:      resolver,
		Store:     store,
		Catalog:   catalog.NewBuilder(cfg),
		Orders:    orders.NewService(store, audit),
		Callbacks: client,
		Queue:     queue,
		Issues:    igm.NewService(cfg, client, audit, igm.Backends(cfg.IssueBackends, store)...),
		Recon:     rsp.NewService(store, audit, cfg.Store.Currency, rsp.NewPaymentLedger(), rsp.NewJournalLedger("", "")),
		Audit:     audit,
	}
	if rdb != nil {
		deps.Policy = policy.NewService(rdb)
		deps.Replays = bloom.NewReplayFilter(ctx, rdb)
	}
	if cfg.EncryptionPrivateKey != "" && cfg.RegistryEncryptionPublicKey != "" {
		answerer, err := subscribe.NewAnswerer(cfg.EncryptionPrivateKey, cfg.RegistryEncryptionPublicKey)
		if err != nil {
			log.Fatalf("encryption keys: %v", err)
		}
		deps.Subscribe = answerer
	}

	server := dispatcher.NewServer(deps)
	deps.Orders.SetNotifier(server)

	go func() {
		log.Println("Starting task workers...")
		if err := queue.Run(ctx, server.Process); err != nil {
			log.Printf("Task queue error: %v", err)
		}
	}()
	go schedule(ctx, queue, tasks.KindCleanup, 24*time.Hour)
	if cfg.AutoProgressInterval > 0 {
		go schedule(ctx, queue, tasks.KindAutoProgress, cfg.AutoProgressInterval)
	}

	r := mux.NewRouter()
	server.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down...")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		_ = queue.Close()
	}()

	log.Printf("ONDC BPP %s (%s) listening on %s", cfg.SubscriberID, cfg.Environment, cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// schedule enqueues a housekeeping task of kind every interval.
func schedule(ctx context.Context, q tasks.Queue, kind tasks.Kind, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := q.Enqueue(ctx, tasks.Task{Kind: kind, Key: kind.String(), ReceivedAt: now}); err != nil {
				log.Printf("Scheduler: enqueue %s: %v", kind, err)
			}
		}
	}
}
