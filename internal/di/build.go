package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hanko-field/cartclone/internal/platform/config"
	"github.com/hanko-field/cartclone/internal/platform/events"
	pfirestore "github.com/hanko-field/cartclone/internal/platform/firestore"
	"github.com/hanko-field/cartclone/internal/platform/lock"
	"github.com/hanko-field/cartclone/internal/repositories"
	firestoreRepo "github.com/hanko-field/cartclone/internal/repositories/firestore"
)

const (
	firestoreProbeTimeout = 2 * time.Second
	redisProbeTimeout     = time.Second
)

// Build dials the production dependencies described by cfg and assembles a Container around them.
// Anything opened before a failure is released again.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *Container, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var cleanup []closer
	defer func() {
		if err == nil {
			return
		}
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		for i := len(cleanup) - 1; i >= 0; i-- {
			if closeErr := cleanup[i].fn(closeCtx); closeErr != nil {
				logger.Warn("release after failed build", zap.String("dependency", cleanup[i].name), zap.Error(closeErr))
			}
		}
	}()

	provider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := provider.Client(ctx); err != nil {
		return nil, fmt.Errorf("initialise firestore client: %w", err)
	}
	providerCloser := closer{name: "firestore", fn: provider.Close}
	cleanup = append(cleanup, providerCloser)

	checks := []repositories.DependencyCheck{
		{Name: "firestore", Timeout: firestoreProbeTimeout, Check: provider.Ping},
	}

	var containerClosers []closer
	locker, lockChecks, lockClosers, err := buildLocker(cfg, provider)
	if err != nil {
		return nil, err
	}
	checks = append(checks, lockChecks...)
	cleanup = append(cleanup, lockClosers...)
	containerClosers = append(containerClosers, lockClosers...)

	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}
	registry, err := firestoreRepo.NewRegistry(provider, health)
	if err != nil {
		return nil, fmt.Errorf("build repository registry: %w", err)
	}

	opts := []Option{WithLogger(logger), WithLocker(locker)}

	if topicID := strings.TrimSpace(cfg.PubSub.CloneTopic); topicID != "" {
		publisher, pubClosers, err := buildPublisher(ctx, cfg, topicID)
		if err != nil {
			return nil, err
		}
		cleanup = append(cleanup, pubClosers...)
		containerClosers = append(containerClosers, pubClosers...)
		opts = append(opts, WithPublisher(publisher))
	} else {
		logger.Info("clone event publishing disabled", zap.String("reason", "no topic configured"))
	}

	for _, c := range containerClosers {
		opts = append(opts, WithCloser(c.name, c.fn))
	}
	return NewContainer(ctx, cfg, registry, opts...)
}

func buildLocker(cfg config.Config, provider *pfirestore.Provider) (lock.Locker, []repositories.DependencyCheck, []closer, error) {
	switch cfg.Lock.Backend {
	case config.LockBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		release := []closer{{name: "redis", fn: func(context.Context) error { return client.Close() }}}
		locker, err := lock.NewRedisLocker(client, cfg.Lock.TTL, cfg.Lock.Wait)
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("build redis locker: %w", err)
		}
		checks := []repositories.DependencyCheck{{Name: "redis", Timeout: redisProbeTimeout, Check: locker.Ping}}
		return locker, checks, release, nil
	case config.LockBackendFirestore:
		locker, err := lock.NewFirestoreLocker(provider, cfg.Lock.Collection, cfg.Lock.TTL, cfg.Lock.Wait)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("build firestore locker: %w", err)
		}
		return locker, nil, nil, nil
	case config.LockBackendMemory, "":
		return lock.NewMemoryLocker(cfg.Lock.Wait), nil, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported lock backend %q", cfg.Lock.Backend)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, topicID string) (*events.PubSubPublisher, []closer, error) {
	var clientOpts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	release := []closer{
		{name: "pubsub", fn: func(context.Context) error { return client.Close() }},
		{name: "pubsub topic", fn: func(context.Context) error { topic.Stop(); return nil }},
	}

	publisher, err := events.NewPubSubPublisher(topic)
	if err != nil {
		topic.Stop()
		_ = client.Close()
		return nil, nil, fmt.Errorf("build clone event publisher: %w", err)
	}
	return publisher, release, nil
}
