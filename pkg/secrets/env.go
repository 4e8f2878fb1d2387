// Copyright 2026 fanjia1024
// Environment variable secret store

package secrets

import (
	"context"
	"os"
	"strings"

	"admin-assistant/pkg/errors"
)

var envReplacer = strings.NewReplacer("-", "_", ".", "_", "/", "_")

// envStore key 转为大写变量名，如 openai_api_key -> OPENAI_API_KEY；
// 配置了 prefix 时先查 PREFIX_OPENAI_API_KEY 再查无前缀的变量
type envStore struct {
	prefix string
}

// NewEnvStore 创建无前缀的环境变量 secret store
func NewEnvStore() Store {
	return &envStore{}
}

// NewPrefixedEnvStore 创建带前缀的环境变量 secret store，如 prefix=assistant
func NewPrefixedEnvStore(prefix string) Store {
	return &envStore{prefix: envName(prefix)}
}

func (e *envStore) Get(_ context.Context, key string) (string, error) {
	for _, name := range e.names(key) {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", errors.Wrapf(errors.ErrNotFound, "environment variable %s", e.names(key)[0])
}

func (e *envStore) Set(_ context.Context, key, value string) error {
	return os.Setenv(e.names(key)[0], value)
}

func (e *envStore) Delete(_ context.Context, key string) error {
	return os.Unsetenv(e.names(key)[0])
}

func (e *envStore) names(key string) []string {
	name := envName(key)
	if e.prefix == "" {
		return []string{name}
	}
	return []string{e.prefix + "_" + name, name}
}

func envName(key string) string {
	return strings.ToUpper(envReplacer.Replace(key))
}
