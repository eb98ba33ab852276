package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/internal/ratelimiter"
	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/marmos91/onedrivefs/pkg/drive/graph"
	"github.com/marmos91/onedrivefs/pkg/drive/memory"
	driveS3 "github.com/marmos91/onedrivefs/pkg/drive/s3"
	"github.com/marmos91/onedrivefs/pkg/metrics"
	"github.com/marmos91/onedrivefs/pkg/onedrivefs"
	"github.com/marmos91/onedrivefs/pkg/tokenstore"
	tokenBadger "github.com/marmos91/onedrivefs/pkg/tokenstore/badger"
	"github.com/mitchellh/mapstructure"
)

// ConfigureLogging applies the logging section to the global logger.
func ConfigureLogging(cfg *LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)
	if err := logger.SetOutput(cfg.Output); err != nil {
		return fmt.Errorf("failed to set log output: %w", err)
	}
	return nil
}

// CreateTokenStore creates the OAuth token store selected by cfg.
//
// Supported types:
//   - "memory": tokens live for the lifetime of the process
//   - "badger": tokens are persisted in a BadgerDB database
//
// The returned store must be closed by the caller if it implements io.Closer.
func CreateTokenStore(ctx context.Context, cfg *TokensConfig) (tokenstore.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return tokenstore.NewMemoryStore(), nil
	case "badger":
		return createBadgerTokenStore(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown token store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createBadgerTokenStore opens a BadgerDB-backed token store.
func createBadgerTokenStore(options map[string]any) (tokenstore.Store, error) {
	type BadgerTokenStoreOptions struct {
		Path    string `mapstructure:"path"`
		Account string `mapstructure:"account"`
	}

	var storeOpts BadgerTokenStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger token store options: %w", err)
	}

	if storeOpts.Path == "" {
		return nil, fmt.Errorf("badger token store: path is required")
	}

	store, err := tokenBadger.Open(tokenBadger.Config{Path: storeOpts.Path, Account: storeOpts.Account})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger token store: %w", err)
	}

	logger.Debug("Badger token store opened: path=%s", storeOpts.Path)
	return store, nil
}

// CreateDrive creates the drive backend selected by cfg.Drive.
//
// This factory function uses the Type field to determine which backend to
// create, then decodes the type-specific configuration from the corresponding
// map and passes it to the backend's constructor.
//
// Supported types:
//   - "graph": OneDrive through Microsoft Graph (pkg/drive/graph)
//   - "memory": in-memory drive, ephemeral (pkg/drive/memory)
//   - "s3": Amazon S3 or compatible storage (pkg/drive/s3)
//
// tokens is only used by the graph backend.
func CreateDrive(ctx context.Context, cfg *Config, tokens tokenstore.Store) (drive.Drive, error) {
	switch cfg.Drive.Type {
	case "graph":
		return createGraphDrive(ctx, cfg.Drive.Graph, &cfg.Throttle, tokens)
	case "memory":
		return createMemoryDrive(ctx, cfg.Drive.Memory)
	case "s3":
		return createS3Drive(ctx, cfg.Drive.S3)
	default:
		return nil, fmt.Errorf("unknown drive type: %q (supported: graph, memory, s3)", cfg.Drive.Type)
	}
}

// GraphOptions are the options of the graph drive backend.
type GraphOptions struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	DriveID      string `mapstructure:"drive_id"`
	UserID       string `mapstructure:"user_id"`
	GroupID      string `mapstructure:"group_id"`
	SiteID       string `mapstructure:"site_id"`
	BaseURL      string `mapstructure:"base_url"`
}

// createGraphDrive creates a Microsoft Graph drive.
func createGraphDrive(ctx context.Context, options map[string]any, throttle *ThrottleConfig, tokens tokenstore.Store) (drive.Drive, error) {
	var opts GraphOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode graph drive config: %w", err)
	}

	if opts.ClientID == "" {
		return nil, fmt.Errorf("graph drive: client_id is required")
	}

	// ========================================================================
	// Step 1: Resolve the drive
	// ========================================================================

	root, err := graph.DriveRoot(graph.RootSelector{
		DriveID: opts.DriveID,
		UserID:  opts.UserID,
		GroupID: opts.GroupID,
		SiteID:  opts.SiteID,
	})
	if err != nil {
		return nil, fmt.Errorf("graph drive: %w", err)
	}

	// ========================================================================
	// Step 2: Build the authenticated HTTP client
	// ========================================================================

	httpClient, err := graph.NewHTTPClient(ctx, graph.AuthConfig{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		AccessToken:  opts.AccessToken,
		RefreshToken: opts.RefreshToken,
		Store:        tokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create graph HTTP client: %w", err)
	}

	// ========================================================================
	// Step 3: Create the client
	// ========================================================================

	client := graph.New(graph.Config{
		BaseURL:            opts.BaseURL,
		DriveRoot:          root,
		HTTPClient:         httpClient,
		Limiter:            ratelimiter.New(throttle.RequestsPerSecond, throttle.Burst),
		MaxThrottleRetries: throttle.MaxRetries,
		CopyPollInterval:   throttle.CopyPollInterval,
	})

	logger.Info("Graph drive initialized: root=%s", root)
	return client, nil
}

// createMemoryDrive creates an in-memory drive.
func createMemoryDrive(ctx context.Context, options map[string]any) (drive.Drive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Folders created up front, handy for demos and tests
	type MemoryDriveOptions struct {
		Folders []string `mapstructure:"folders"`
	}

	var opts MemoryDriveOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode memory drive config: %w", err)
	}

	d := memory.New()
	for _, p := range opts.Folders {
		if _, err := d.MkdirAll(ctx, p); err != nil {
			return nil, fmt.Errorf("memory drive: failed to create %q: %w", p, err)
		}
	}

	return d, nil
}

// createS3Drive creates an S3-backed drive.
func createS3Drive(ctx context.Context, options map[string]any) (drive.Drive, error) {
	type S3DriveConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		PartSize        int64  `mapstructure:"part_size"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var driveCfg S3DriveConfig
	if err := mapstructure.Decode(options, &driveCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 drive config: %w", err)
	}

	if driveCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 drive: bucket is required")
	}
	if driveCfg.Region == "" {
		return nil, fmt.Errorf("S3 drive: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(driveCfg.Region),
	}

	// Set credentials if provided, otherwise use default credential chain
	if driveCfg.AccessKeyID != "" && driveCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			driveCfg.AccessKeyID,
			driveCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := driveCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if driveCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(driveCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Drive
	// ========================================================================

	d, err := driveS3.New(ctx, driveS3.Config{
		Client:    client,
		Bucket:    driveCfg.Bucket,
		KeyPrefix: driveCfg.KeyPrefix,
		PartSize:  driveCfg.PartSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 drive: %w", err)
	}

	logger.Info("S3 drive initialized: bucket=%s, region=%s, prefix=%s",
		driveCfg.Bucket, driveCfg.Region, driveCfg.KeyPrefix)

	return d, nil
}

// CreateFilesystem builds the complete filesystem described by cfg: token
// store, drive and committer, rooted at cfg.Drive.Root.
//
// The returned cleanup function releases the token store and must be called
// once the filesystem is no longer used.
func CreateFilesystem(ctx context.Context, cfg *Config) (*onedrivefs.FS, func() error, error) {
	tokens, err := CreateTokenStore(ctx, &cfg.Tokens)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() error {
		if c, ok := tokens.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}

	fsys, err := createFilesystem(ctx, cfg, tokens)
	if err != nil {
		return nil, nil, errors.Join(err, cleanup())
	}

	return fsys, cleanup, nil
}

func createFilesystem(ctx context.Context, cfg *Config, tokens tokenstore.Store) (*onedrivefs.FS, error) {
	d, err := CreateDrive(ctx, cfg, tokens)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		d = metrics.InstrumentDrive(d, metrics.NewDriveMetrics())
	}

	fsys, err := onedrivefs.New(d, onedrivefs.CommitterConfig{
		Threshold: int(cfg.Upload.Threshold),
		ChunkSize: int(cfg.Upload.ChunkSize),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Drive.Root == "" || cfg.Drive.Root == "/" {
		return fsys, nil
	}

	sub, err := fsys.OpenDir(ctx, cfg.Drive.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to open drive root %q: %w", cfg.Drive.Root, err)
	}
	return sub, nil
}
