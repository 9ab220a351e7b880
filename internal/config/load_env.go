package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadEnv hydrates the process environment from AWS Secrets Manager (when a secret
// id is configured) and then from a .env file. Existing variables win unless
// AWS_SECRETS_MANAGER_OVERWRITE=true.
func LoadEnv(ctx context.Context, defaultEnvPath string) {
	if err := loadAWSSecretsIntoEnv(ctx, secretsmanagerFactory); err != nil {
		log.Warn().Err(err).Msg("skipping AWS Secrets Manager load")
	}
	loadDotEnv(defaultEnvPath)
}

func loadDotEnv(defaultEnvPath string) {
	envFile := GetEnv("ENV_FILE_PATH", defaultEnvPath)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil && os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
			log.Debug().Str("path", envFile).Msg(".env file not found, using process environment")
		}
	}
}

// SecretGetter is the slice of the Secrets Manager client LoadEnv needs.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type secretGetterFactory func(ctx context.Context, region string) (SecretGetter, error)

func secretsmanagerFactory(ctx context.Context, region string) (SecretGetter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

func loadAWSSecretsIntoEnv(ctx context.Context, newClient secretGetterFactory) error {
	secretID := GetEnv("AWS_SECRETS_MANAGER_SECRET_ID", os.Getenv("AWS_SECRET_ID"))
	if secretID == "" {
		return nil
	}
	versionStage := GetEnv("AWS_SECRETS_MANAGER_VERSION_STAGE", "AWSCURRENT")
	overwrite := strings.EqualFold(os.Getenv("AWS_SECRETS_MANAGER_OVERWRITE"), "true")

	client, err := newClient(ctx, os.Getenv("AWS_SECRETS_MANAGER_REGION"))
	if err != nil {
		return err
	}

	output, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String(versionStage),
	})
	if err != nil {
		return fmt.Errorf("fetching secret %s: %w", secretID, err)
	}

	var payload string
	switch {
	case output.SecretString != nil:
		payload = *output.SecretString
	case len(output.SecretBinary) > 0:
		payload = string(output.SecretBinary)
	default:
		return fmt.Errorf("secret %s has no payload", secretID)
	}

	var kv map[string]any
	if err := json.Unmarshal([]byte(payload), &kv); err != nil {
		return fmt.Errorf("parsing secret %s as JSON: %w", secretID, err)
	}

	applied := 0
	for key, val := range kv {
		if !overwrite && os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return fmt.Errorf("setting env %s from secret: %w", key, err)
		}
		applied++
	}
	log.Info().Int("applied", applied).Str("secret", secretID).Msg("loaded env vars from AWS Secrets Manager")
	return nil
}
