// Copyright 2026 fanjia1024
// HashiCorp Vault secret store

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"admin-assistant/pkg/errors"
)

// VaultConfig 为空的 Address / Token 沿用 VAULT_ADDR / VAULT_TOKEN
type VaultConfig struct {
	Address    string
	Token      string
	PathPrefix string // KV v2 路径前缀，默认 secret/data/assistant
}

const defaultVaultPrefix = "secret/data/assistant"

type vaultStore struct {
	logical    *vault.Logical
	pathPrefix string
}

// NewVaultStore 创建 Vault secret store；不在构造时探活，首次 Get 才访问 Vault
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	prefix := strings.Trim(config.PathPrefix, "/")
	if prefix == "" {
		prefix = defaultVaultPrefix
	}
	return &vaultStore{logical: client.Logical(), pathPrefix: prefix}, nil
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.logical.ReadWithContext(ctx, v.path(key))
	if err != nil {
		return "", errors.Wrapf(errors.Join(errors.ErrUnavailable, err), "vault read %s", key)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.Wrapf(errors.ErrNotFound, "vault secret %s", key)
	}
	data := secret.Data
	// KV v2 将值嵌在 data.data 下
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}
	if s, ok := data["value"].(string); ok {
		return s, nil
	}
	if s, ok := data[key].(string); ok {
		return s, nil
	}
	return "", errors.Wrapf(errors.ErrNotFound, "vault secret %s has no value field", key)
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	_, err := v.logical.WriteWithContext(ctx, v.path(key), map[string]interface{}{
		"data": map[string]interface{}{"value": value},
	})
	if err != nil {
		return fmt.Errorf("failed to write secret to vault: %w", err)
	}
	return nil
}

func (v *vaultStore) Delete(ctx context.Context, key string) error {
	if _, err := v.logical.DeleteWithContext(ctx, v.path(key)); err != nil {
		return fmt.Errorf("failed to delete secret from vault: %w", err)
	}
	return nil
}

func (v *vaultStore) path(key string) string {
	return v.pathPrefix + "/" + strings.TrimLeft(key, "/")
}
