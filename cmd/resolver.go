package cmd

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sepetli/kimlik/db"
	"github.com/sepetli/kimlik/events"
	"github.com/sepetli/kimlik/lockout"
	"github.com/sepetli/kimlik/mailing"
	"github.com/sepetli/kimlik/registration"
	"go.uber.org/zap"
)

func mustResolveUsableDataStore() *db.DataStore {
	var dataStore *db.DataStore
	var err error
	switch LoadedConfig.Database.Type {
	case "sqlite":
		dataStore, err = db.NewSqliteStore(TopLevelLogger.Named("database"), LoadedConfig.Database)
	case "mysql":
		dataStore, err = db.NewMysqlStore(TopLevelLogger.Named("database"), LoadedConfig.Database)
	case "pg":
		dataStore, err = db.NewPostgrestore(TopLevelLogger.Named("database"), LoadedConfig.Database)
	default:
		log.Fatal("Unknown database type")
	}
	if err != nil {
		TopLevelLogger.Fatal("Failed to create datastore", zap.Error(err))
	}
	err = dataStore.EnsureUsable()
	if err != nil {
		TopLevelLogger.Fatal("Datastore is unusable", zap.Error(err))
	}
	return dataStore
}

// resolveRedisClient connects to redis when it is configured, a nil
// client means every redis-backed component falls back to its
// in-memory implementation
func resolveRedisClient() *redis.Client {
	if LoadedConfig.Redis == nil || !LoadedConfig.Redis.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     LoadedConfig.Redis.Address,
		Password: LoadedConfig.Redis.Password,
		DB:       LoadedConfig.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		TopLevelLogger.Warn(
			"redis is configured but unreachable, falling back to in-memory stores",
			zap.String("addr", LoadedConfig.Redis.Address),
			zap.Error(err),
		)
		_ = client.Close()
		return nil
	}
	return client
}

func resolvePendingStore(client *redis.Client) registration.Store {
	ttl := LoadedConfig.Behaviour.PendingRegistrationTTL
	if client == nil {
		TopLevelLogger.Info("pending registrations are held in memory")
		return registration.NewMemoryStore(ttl)
	}
	return registration.NewRedisStore(TopLevelLogger.Named("pending_store"), client, ttl)
}

func resolveAttemptTracker(client *redis.Client, dispatcher *events.Dispatcher) lockout.Tracker {
	if client == nil {
		TopLevelLogger.Info("login attempts are tracked in memory")
		return lockout.NewMemoryTracker(
			LoadedConfig.Behaviour.MaxLoginAttempts,
			LoadedConfig.Behaviour.LockoutDuration,
		)
	}
	return lockout.NewRedisTracker(
		TopLevelLogger.Named("attempt_tracker"),
		client,
		LoadedConfig.Behaviour,
		dispatcher,
	)
}

func bootstrapDispatcher(auditor db.Auditor) *events.Dispatcher {
	dispatcher := events.NewDispatcher(TopLevelLogger.Named("event_dispatcher"))
	//bootstrap listeners
	dbLayer := db.BootstrapListeners(auditor, TopLevelLogger.Named("event_listener"))
	dispatcher.Register(dbLayer...)
	return dispatcher
}

func mustResolveMailer() *mailing.Mailer {
	mailer, err := mailing.NewMailer(
		TopLevelLogger.Named("mailer"),
		LoadedConfig,
		FileSystemsConfig.Email,
	)
	if err != nil {
		TopLevelLogger.Fatal("Failed to create mailer", zap.Error(err))
	}
	return mailer
}
