package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tabletop-chat/backend/pkg/config"
	"tabletop-chat/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

const cacheTTL = 5 * time.Minute

type cachedSecret struct {
	value   string
	expires time.Time
}

// VaultManager reads secrets from a Vault KV v2 mount, falling back to the
// environment when Vault is disabled or the key is absent there
type VaultManager struct {
	client      *vault.Client
	mount       string
	secretsPath string
	enabled     bool
	log         *logger.Logger

	mu    sync.RWMutex
	cache map[string]cachedSecret
	now   func() time.Time
}

// NewVaultManager creates a manager from the vault section of the configuration
func NewVaultManager(cfg *config.Config, log *logger.Logger) (*VaultManager, error) {
	if log == nil {
		log = logger.Nop()
	}

	m := &VaultManager{
		enabled: cfg.Vault.Enabled,
		log:     log,
		cache:   make(map[string]cachedSecret),
		now:     time.Now,
	}

	if !m.enabled {
		return m, nil
	}

	if cfg.Vault.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if cfg.Vault.Token == "" {
		return nil, ErrNoVaultToken
	}

	m.mount, m.secretsPath = splitKVPath(cfg.Vault.SecretsPath)

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Vault.Address
	vaultConfig.Timeout = 10 * time.Second
	vaultConfig.MaxRetries = 3

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Vault.Token)
	m.client = client

	return m, nil
}

// splitKVPath turns "secret/data/tabletop" into mount "secret" and path "tabletop"
func splitKVPath(full string) (string, string) {
	full = strings.Trim(full, "/")
	mount, rest, found := strings.Cut(full, "/")
	if !found {
		return "secret", mount
	}
	rest = strings.TrimPrefix(rest, "data/")
	return mount, rest
}

// GetSecret retrieves a secret from Vault, with fallback to environment variable
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	cached, found := m.cache[key]
	m.mu.RUnlock()

	if found && m.now().Before(cached.expires) {
		return cached.value, nil
	}

	if !m.enabled {
		return m.getFromEnvironment(key)
	}

	value, err := m.getFromVault(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("Secret not found in Vault, falling back to environment", "key", key)
			return m.getFromEnvironment(key)
		}
		return "", err
	}

	m.cacheSecret(key, value)
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		m.log.Debug("Secret unavailable, using default value", "key", key, "error", err.Error())
		return defaultValue
	}
	return value
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.mount).Get(ctx, m.secretsPath)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		m.log.Error("Failed to read secret from Vault", "path", m.secretsPath, "error", err.Error())
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok {
		return "", ErrSecretNotFound
	}

	return value, nil
}

// getFromEnvironment maps "openai_api_key" to OPENAI_API_KEY
func (m *VaultManager) getFromEnvironment(key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))

	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}

	m.cacheSecret(key, value)
	return value, nil
}

func (m *VaultManager) cacheSecret(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = cachedSecret{value: value, expires: m.now().Add(cacheTTL)}
}
