package agent

import (
	"errors"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var (
	envMu       sync.RWMutex
	envVarCache = make(map[string]string)
	envLoaded   bool
)

// loadEnvFile reads a dotenv file into the cache. A missing file is not an error.
func loadEnvFile(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	envMu.Lock()
	defer envMu.Unlock()
	for key, value := range values {
		envVarCache[key] = value
	}
	envLoaded = true
	return nil
}

// ExpandEnv expands ${VAR} references, checking real environment variables before the .env cache
func ExpandEnv(s string) string {
	envMu.RLock()
	loaded := envLoaded
	envMu.RUnlock()
	if !loaded {
		_ = loadEnvFile(".env")
		envMu.Lock()
		envLoaded = true
		envMu.Unlock()
	}

	return os.Expand(s, GetEnvValue)
}

// LoadEnvFile explicitly loads a .env file into the cache
func LoadEnvFile(path string) error {
	return loadEnvFile(path)
}

// GetEnvValue gets an environment variable value from either env or .env cache
func GetEnvValue(key string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	envMu.RLock()
	defer envMu.RUnlock()
	return envVarCache[key]
}
