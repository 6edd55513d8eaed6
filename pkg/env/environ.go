// pkg/env/environ.go
package env

import "os"

// Environ is the process context an activation modifies
type Environ interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
	Unsetenv(key string) error
}

type osEnviron struct{}

// ProcessEnviron returns the real process environment
func ProcessEnviron() Environ {
	return osEnviron{}
}

func (osEnviron) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (osEnviron) Setenv(key, value string) error      { return os.Setenv(key, value) }
func (osEnviron) Unsetenv(key string) error           { return os.Unsetenv(key) }

// MapEnviron is an in-memory Environ
type MapEnviron map[string]string

func (m MapEnviron) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapEnviron) Setenv(key, value string) error {
	m[key] = value
	return nil
}

func (m MapEnviron) Unsetenv(key string) error {
	delete(m, key)
	return nil
}

func lookup(e Environ, key string) *string {
	if v, ok := e.LookupEnv(key); ok {
		return &v
	}
	return nil
}
