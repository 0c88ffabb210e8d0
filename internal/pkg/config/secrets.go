// internal/pkg/config/secrets.go
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsProvider supplies configuration values that should not live in the
// environment. Keys missing from the store are omitted from the result.
type SecretsProvider interface {
	GetSecrets(ctx context.Context, keys []string) (map[string]string, error)
}

// SecretsOptions selects and configures a SecretsProvider
type SecretsOptions struct {
	Provider      string // file, env, aws
	Dir           string
	AWSRegion     string
	AWSSecretName string
}

// NewSecretsProvider builds the provider named by opts.Provider
func NewSecretsProvider(ctx context.Context, opts SecretsOptions, logger *slog.Logger) (SecretsProvider, error) {
	switch strings.ToLower(opts.Provider) {
	case "", "file":
		return NewFileSecretsProvider(opts.Dir, logger), nil
	case "env":
		return NewEnvSecretsProvider(), nil
	case "aws":
		if opts.AWSSecretName == "" {
			return nil, fmt.Errorf("%w: AWS_SECRET_NAME", ErrMissingRequiredConfig)
		}
		return NewAWSSecretsManager(ctx, opts.AWSRegion, opts.AWSSecretName, logger)
	default:
		return nil, fmt.Errorf("%w: unknown secrets provider %q", ErrInvalidConfig, opts.Provider)
	}
}

// FileSecretsProvider reads one secret per file, named after the key, as
// mounted by container secret stores.
type FileSecretsProvider struct {
	dir    string
	logger *slog.Logger
}

// NewFileSecretsProvider creates a provider reading from dir
func NewFileSecretsProvider(dir string, logger *slog.Logger) *FileSecretsProvider {
	return &FileSecretsProvider{dir: dir, logger: logger}
}

// GetSecrets reads the files for keys. A missing directory yields no secrets.
func (p *FileSecretsProvider) GetSecrets(_ context.Context, keys []string) (map[string]string, error) {
	secrets := make(map[string]string)
	if p.dir == "" {
		return secrets, nil
	}

	if _, err := os.Stat(p.dir); errors.Is(err, fs.ErrNotExist) {
		p.logger.Debug("secrets directory not found", slog.String("dir", p.dir))
		return secrets, nil
	}

	for _, key := range keys {
		data, err := os.ReadFile(filepath.Join(p.dir, key))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read secret %s: %w", key, err)
		}
		secrets[key] = strings.TrimSpace(string(data))
	}
	return secrets, nil
}

// EnvSecretsProvider implements secrets management using environment variables
type EnvSecretsProvider struct{}

// NewEnvSecretsProvider creates a new environment-based secrets provider
func NewEnvSecretsProvider() *EnvSecretsProvider {
	return &EnvSecretsProvider{}
}

// GetSecrets retrieves multiple secrets from environment variables
func (em *EnvSecretsProvider) GetSecrets(_ context.Context, keys []string) (map[string]string, error) {
	secrets := make(map[string]string)
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			secrets[key] = val
		}
	}
	return secrets, nil
}

// secretsManagerAPI is the part of the Secrets Manager client we call.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager reads a JSON object of key/value pairs stored as a single
// AWS Secrets Manager secret.
type AWSSecretsManager struct {
	client     secretsManagerAPI
	secretName string
	cache      map[string]string
	cacheMu    sync.RWMutex
	lastFetch  time.Time
	ttl        time.Duration
	logger     *slog.Logger
}

// NewAWSSecretsManager creates a new AWS Secrets Manager client
func NewAWSSecretsManager(ctx context.Context, region, secretName string, logger *slog.Logger) (*AWSSecretsManager, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newAWSSecretsManager(secretsmanager.NewFromConfig(cfg), secretName, logger), nil
}

func newAWSSecretsManager(client secretsManagerAPI, secretName string, logger *slog.Logger) *AWSSecretsManager {
	return &AWSSecretsManager{
		client:     client,
		secretName: secretName,
		cache:      make(map[string]string),
		ttl:        5 * time.Minute,
		logger:     logger,
	}
}

// GetSecrets retrieves multiple secrets
func (sm *AWSSecretsManager) GetSecrets(ctx context.Context, keys []string) (map[string]string, error) {
	sm.cacheMu.RLock()
	fresh := time.Since(sm.lastFetch) < sm.ttl && len(sm.cache) > 0
	data := sm.cache
	sm.cacheMu.RUnlock()

	if !fresh {
		sm.logger.Info("fetching secrets from AWS Secrets Manager",
			slog.String("secret_name", sm.secretName))

		result, err := sm.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId:     aws.String(sm.secretName),
			VersionStage: aws.String("AWSCURRENT"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get secret value: %w", err)
		}
		if result.SecretString == nil {
			return nil, fmt.Errorf("secret %s has no string value", sm.secretName)
		}

		var secretData map[string]string
		if err := json.Unmarshal([]byte(*result.SecretString), &secretData); err != nil {
			return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
		}

		sm.cacheMu.Lock()
		sm.cache = secretData
		sm.lastFetch = time.Now()
		sm.cacheMu.Unlock()
		data = secretData
	}

	filtered := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := data[key]; ok {
			filtered[key] = val
		}
	}
	return filtered, nil
}
