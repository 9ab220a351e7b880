package config

import "context"

var LoadAWSSecretsIntoEnv = func(ctx context.Context, client SecretGetter) error {
	return loadAWSSecretsIntoEnv(ctx, func(context.Context, string) (SecretGetter, error) {
		return client, nil
	})
}
