package crypto

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/logger"
)

const secretSourceVault = "vault"

// VaultSecretSource reads the HMAC signing secret from a Vault KV v2 engine.
type VaultSecretSource struct {
	client    *vault.Client
	log       logger.Logger
	mountPath string
}

// NewVaultSecretSource creates and configures a Vault client.
func NewVaultSecretSource(cfg config.VaultConfig, log logger.Logger) (*VaultSecretSource, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, errors.ErrSecretUnavailable(secretSourceVault, err)
	}
	client.SetToken(cfg.Token)

	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &VaultSecretSource{
		client:    client,
		log:       log.WithComponent("vault"),
		mountPath: mount,
	}, nil
}

// SigningSecret returns the string stored under key at secretPath.
func (v *VaultSecretSource) SigningSecret(ctx context.Context, secretPath, key string) ([]byte, error) {
	secret, err := v.client.KVv2(v.mountPath).Get(ctx, secretPath)
	if err != nil {
		return nil, errors.ErrSecretUnavailable(secretSourceVault, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.ErrSecretUnavailable(secretSourceVault, fmt.Errorf("no data at %s/%s", v.mountPath, secretPath))
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return nil, errors.ErrSecretUnavailable(secretSourceVault, fmt.Errorf("key %q missing at %s/%s", key, v.mountPath, secretPath))
	}

	v.log.Info(ctx, "signing secret loaded",
		logger.String("mount", v.mountPath),
		logger.String("path", secretPath),
		logger.Int("version", versionOf(secret)),
	)
	return []byte(value), nil
}

func versionOf(secret *vault.KVSecret) int {
	if secret.VersionMetadata == nil {
		return 0
	}
	return secret.VersionMetadata.Version
}

// LoadSigningSecret resolves the local signing secret from the configured source.
func LoadSigningSecret(ctx context.Context, cfg *config.Config, log logger.Logger) ([]byte, error) {
	if cfg.SSO.JWT.SecretSource != secretSourceVault {
		return []byte(cfg.SSO.JWT.Secret), nil
	}
	src, err := NewVaultSecretSource(cfg.Vault, log)
	if err != nil {
		return nil, err
	}
	return src.SigningSecret(ctx, cfg.SSO.JWT.VaultPath, cfg.SSO.JWT.VaultKey)
}
