// Package bootstrap builds the long-lived clients shared by the bot binary.
package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	appconfig "github.com/wolfman30/clinic-booking-bot/internal/config"
	"github.com/wolfman30/clinic-booking-bot/internal/conversation"
	"github.com/wolfman30/clinic-booking-bot/internal/export"
	"github.com/wolfman30/clinic-booking-bot/internal/geocode"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks the Redis store when a client is available and
// memory sessions were not requested. The memory store is returned
// separately so the caller can run its janitor.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (conversation.Store, *conversation.MemoryStore) {
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.UseMemorySessions && redisClient != nil {
		logger.Info("conversation sessions in redis", "ttl", cfg.SessionTTL.String())
		return conversation.NewRedisStore(redisClient, cfg.SessionTTL, otel.Tracer("clinicbot.conversation")), nil
	}
	logger.Info("conversation sessions in memory", "ttl", cfg.SessionTTL.String())
	mem := conversation.NewMemoryStore(cfg.SessionTTL)
	return mem, mem
}

// BuildGeocoder returns the Nominatim client, cached in Redis when available.
func BuildGeocoder(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) geocode.Geocoder {
	client := geocode.NewNominatimClient(cfg.NominatimBaseURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout, logger)
	if redisClient == nil {
		return client
	}
	return geocode.NewCachedGeocoder(client, redisClient, cfg.GeocodeCacheTTL, logger)
}

// BuildPostgresPool opens and verifies the shared connection pool.
func BuildPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// LoadAWSConfig builds the SDK config, using static credentials when both
// keys are set and the default chain otherwise.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// BuildArchiver returns the S3 export archiver, or nil when no bucket is configured.
func BuildArchiver(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*export.S3Archiver, error) {
	if strings.TrimSpace(cfg.ExportS3Bucket) == "" {
		return nil, nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	if logger != nil {
		logger.Info("export archiving enabled", "bucket", cfg.ExportS3Bucket)
	}
	return export.NewS3Archiver(client, cfg.ExportS3Bucket), nil
}
