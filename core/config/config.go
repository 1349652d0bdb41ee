package config

import (
	"errors"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrNilConfig is returned when Load receives a nil pointer.
var ErrNilConfig = errors.New("config: target must be a non-nil pointer")

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> value of the loaded struct
)

// Load parses environment variables into cfg.
// The first call reads a .env file from the working directory when one exists;
// real environment variables always take precedence. Each type is parsed once,
// later calls copy the cached value.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	dotenvOnce.Do(func() {
		_ = godotenv.Load() // missing .env is fine
	})

	typ := reflect.TypeOf(cfg).Elem()
	if cached, ok := cache.Load(typ); ok {
		*cfg = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParse, err)
	}
	actual, _ := cache.LoadOrStore(typ, parsed)
	*cfg = actual.(T)
	return nil
}

// MustLoad is like Load but panics on error. Intended for program start.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// ErrParse wraps env parsing failures.
var ErrParse = errors.New("config: failed to parse environment")

// reset clears the cache. Tests only.
func reset() {
	cache.Range(func(k, _ any) bool {
		cache.Delete(k)
		return true
	})
}
