package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"simplesns/internal/config"
	"simplesns/internal/database"
	"simplesns/internal/featureflags"
	"simplesns/internal/middleware"
	"simplesns/internal/models"
	"simplesns/internal/objectstore"
	"simplesns/internal/repository"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"
)

// New builds the Service for cfg.CloudProvider. Missing store identifiers
// yield a configuration error; callers treat it as fatal.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, models.NewConfigurationError("configuration is required")
	}
	base := []Option{
		WithURLTTL(cfg.PresignedURLTTL()),
		WithStoreTimeout(cfg.StoreTimeout()),
		WithCDNURL(cfg.ImagesCDNURL),
		WithFeatureFlags(featureflags.NewManager(cfg.FeatureFlags)),
	}
	opts = append(base, opts...)

	var (
		svc *Service
		err error
	)
	switch cfg.CloudProvider {
	case config.ProviderLocal:
		svc, err = newLocal(cfg, opts)
	case config.ProviderAWS:
		svc, err = newAWS(ctx, cfg, opts)
	case config.ProviderAzure:
		svc, err = newAzure(cfg, opts)
	case config.ProviderGCP:
		svc, err = newGCP(ctx, cfg, opts)
	default:
		return nil, models.NewConfigurationError(fmt.Sprintf("unsupported CLOUD_PROVIDER %q", cfg.CloudProvider))
	}
	if err != nil {
		return nil, err
	}

	store := "none"
	if svc.objects != nil {
		store = svc.objects.Name()
	}
	middleware.Logger.Info("backend initialized",
		slog.String("provider", svc.provider),
		slog.String("object_store", store),
	)
	return svc, nil
}

func missing(names ...string) error {
	return models.NewConfigurationError(strings.Join(names, ", ") + " must be set")
}

func newLocal(cfg *config.Config, opts []Option) (*Service, error) {
	db, err := database.Connect(cfg, repository.SQLModels()...)
	if err != nil {
		return nil, fmt.Errorf("local database: %w", err)
	}
	store, err := objectstore.NewLocalStore(cfg.LocalStorageDir, cfg.PublicBaseURL, cfg.LocalSigningSecret)
	if err != nil {
		_ = database.Close(db)
		return nil, models.NewConfigurationError(err.Error())
	}
	opts = append(opts,
		WithObjectStore(store),
		withCloser(func() error { return database.Close(db) }),
	)
	return NewService(config.ProviderLocal,
		repository.NewSQLPostRepository(db),
		repository.NewSQLProfileRepository(db),
		opts...,
	), nil
}

func newAWS(ctx context.Context, cfg *config.Config, opts []Option) (*Service, error) {
	if cfg.PostsTableName == "" {
		return nil, missing("POSTS_TABLE_NAME")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	ddb := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	if cfg.ImagesBucketName != "" {
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
				o.UsePathStyle = true
			}
		})
		opts = append(opts, WithObjectStore(objectstore.NewS3Store(s3Client, cfg.ImagesBucketName)))
	}

	return NewService(config.ProviderAWS,
		repository.NewDynamoPostRepository(ddb, cfg.PostsTableName, cfg.PostsPostIDIndex),
		repository.NewDynamoProfileRepository(ddb, cfg.PostsTableName),
		opts...,
	), nil
}

func newAzure(cfg *config.Config, opts []Option) (*Service, error) {
	if cfg.CosmosEndpoint == "" || cfg.CosmosKey == "" || cfg.CosmosDatabase == "" || cfg.CosmosContainer == "" {
		return nil, missing("COSMOS_DB_ENDPOINT", "COSMOS_DB_KEY", "COSMOS_DB_DATABASE", "COSMOS_DB_CONTAINER")
	}

	cred, err := azcosmos.NewKeyCredential(cfg.CosmosKey)
	if err != nil {
		return nil, models.NewConfigurationError(fmt.Sprintf("invalid COSMOS_DB_KEY: %v", err))
	}
	client, err := azcosmos.NewClientWithKey(cfg.CosmosEndpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("cosmos client: %w", err)
	}
	container, err := client.NewContainer(cfg.CosmosDatabase, cfg.CosmosContainer)
	if err != nil {
		return nil, fmt.Errorf("cosmos container: %w", err)
	}

	if cfg.AzureStorageContainer != "" {
		if cfg.AzureStorageAccount == "" || cfg.AzureStorageKey == "" {
			return nil, missing("AZURE_STORAGE_ACCOUNT_NAME", "AZURE_STORAGE_ACCOUNT_KEY")
		}
		blobCred, err := azblob.NewSharedKeyCredential(cfg.AzureStorageAccount, cfg.AzureStorageKey)
		if err != nil {
			return nil, models.NewConfigurationError(fmt.Sprintf("invalid Azure storage credentials: %v", err))
		}
		endpoint := cfg.AzureBlobEndpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureStorageAccount)
		}
		blobClient, err := azblob.NewClientWithSharedKeyCredential(endpoint, blobCred, nil)
		if err != nil {
			return nil, fmt.Errorf("blob client: %w", err)
		}
		opts = append(opts, WithObjectStore(objectstore.NewAzureBlobStore(blobClient, cfg.AzureStorageContainer)))
	}

	return NewService(config.ProviderAzure,
		repository.NewCosmosPostRepository(container),
		repository.NewCosmosProfileRepository(container),
		opts...,
	), nil
}

func newGCP(ctx context.Context, cfg *config.Config, opts []Option) (*Service, error) {
	if cfg.GCPProjectID == "" {
		return nil, missing("GCP_PROJECT_ID")
	}
	if cfg.GCPPostsCollection == "" || cfg.GCPProfilesCollection == "" {
		return nil, missing("GCP_POSTS_COLLECTION", "GCP_PROFILES_COLLECTION")
	}

	var clientOpts []option.ClientOption
	if cfg.GCPCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.GCPCredentialsFile))
	}

	fs, err := firestore.NewClient(ctx, cfg.GCPProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	opts = append(opts, withCloser(fs.Close))

	if cfg.GCPStorageBucket != "" {
		gcs, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			_ = fs.Close()
			return nil, fmt.Errorf("storage client: %w", err)
		}
		var gcsOpts []objectstore.GCSOption
		if cfg.GCPServiceAccount != "" {
			gcsOpts = append(gcsOpts, objectstore.WithSigner(cfg.GCPServiceAccount, nil))
		}
		opts = append(opts,
			WithObjectStore(objectstore.NewGCSStore(gcs, cfg.GCPStorageBucket, gcsOpts...)),
			withCloser(gcs.Close),
		)
	}

	return NewService(config.ProviderGCP,
		repository.NewFirestorePostRepository(fs, cfg.GCPPostsCollection),
		repository.NewFirestoreProfileRepository(fs, cfg.GCPProfilesCollection),
		opts...,
	), nil
}
