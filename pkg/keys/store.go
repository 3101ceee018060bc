// Package keys checks credential presence and format. the resolution engine never
// sees raw key values, only the boolean outcome of a validation check.
package keys

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Store is a named credential source. Lookup returns the raw value for a name;
// an empty value means the credential is absent. implementations may be remote,
// so errors are possible — the Validator maps them to "absent", callers never
// handle them.
type Store interface {
	Lookup(name string) (string, error)
}

// EnvStore reads credentials from the process environment.
type EnvStore struct{}

// Lookup returns the environment value for name, "" when unset.
func (EnvStore) Lookup(name string) (string, error) {
	return os.Getenv(name), nil
}

// MapStore is an in-memory store for tests and fixtures.
type MapStore map[string]string

// Lookup returns the mapped value, "" when missing.
func (m MapStore) Lookup(name string) (string, error) {
	return m[name], nil
}

// LoadDotenv loads a .env file into the process environment so EnvStore picks the
// entries up. existing environment values are not overwritten. a missing file is
// not an error: running without a .env is the normal case.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
