// Package bootstrap builds the external clients the binaries share:
// Redis, AWS, Google Sheets and PostgreSQL. Every builder degrades to a
// nil client (or an in-memory fallback) when its configuration is
// absent, so local runs need nothing but the binary.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // chat log database/sql driver
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	appconfig "github.com/yakushift/staffing-platform/internal/config"
	"github.com/yakushift/staffing-platform/internal/directory"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when no
// address is set. When verify is true, a ping is issued and failures
// return nil so callers fall back to their in-memory stores.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
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

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("bootstrap: redis unreachable, falling back to memory stores",
			"error", err, "addr", cfg.RedisAddr)
		_ = client.Close()
		return nil
	}
	logger.Info("bootstrap: redis connected", "addr", cfg.RedisAddr)
	return client
}

// LoadAWSConfig centralizes AWS SDK initialization so every binary
// shares the same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case sqs.ServiceID, dynamodb.ServiceID, s3.ServiceID, sesv2.ServiceID:
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}

// BuildDirectory wires the Google Sheets roster when a spreadsheet is
// configured, otherwise an in-memory directory for local runs.
func BuildDirectory(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (directory.Directory, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.SheetsSpreadsheetID) == "" {
		logger.Warn("bootstrap: no spreadsheet configured, using in-memory directory")
		return directory.NewMemoryDirectory(), nil
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build sheets client: %w", err)
	}
	logger.Info("bootstrap: sheets directory ready", "spreadsheet_id", cfg.SheetsSpreadsheetID)
	return directory.NewSheets(svc, cfg.SheetsSpreadsheetID, cfg.SheetsStoresSheet, cfg.SheetsRecordsSheet, logger), nil
}

// newSheetsService builds the sheets/v4 client. SHEETS_CREDENTIALS_JSON
// may hold either inline service-account JSON or a file path.
func newSheetsService(ctx context.Context, cfg *appconfig.Config) (*sheets.Service, error) {
	creds := strings.TrimSpace(cfg.SheetsCredentialsJSON)
	var opts []option.ClientOption
	switch {
	case creds == "":
		// Ambient credentials (workload identity, gcloud ADC).
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	default:
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return sheets.NewService(ctx, opts...)
}

// BuildPostgresPool opens the pgx pool for the records and
// processed-events stores, or returns nil when no DATABASE_URL is set.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	if logger != nil {
		logger.Info("bootstrap: postgres connected")
	}
	return pool, nil
}

// BuildChatLogDB opens the database/sql handle the chat log writes
// through, or returns nil when no DATABASE_URL is set.
func BuildChatLogDB(cfg *appconfig.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open chat log db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}
