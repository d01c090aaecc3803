// Package bootstrap handles the process-level setup that precedes any
// domain logic: loading .env overrides (joho/godotenv, a teacher
// dependency the original main.go imported the pattern for but never
// actually called), binding CPU_CORE from the environment
// (caarlos0/env/v11, generalizing the original Rust's manual
// std::env::var parse-with-fallback), and pinning the process to that
// core on Linux via golang.org/x/sys/unix.
package bootstrap

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// RuntimeEnv is the process environment's configurable knobs, generalizing
// the original's lone CPU_CORE variable.
type RuntimeEnv struct {
	CPUCore int `env:"CPU_CORE" envDefault:"0"`
}

// LoadEnv best-effort loads a .env file (missing is not an error) and
// binds RuntimeEnv from the resulting process environment.
func LoadEnv() (RuntimeEnv, error) {
	_ = godotenv.Load()

	var re RuntimeEnv
	if err := env.Parse(&re); err != nil {
		return RuntimeEnv{}, fmt.Errorf("bootstrap: parse environment: %w", err)
	}
	return re, nil
}

// PinToCPU pins the calling OS thread to cpu on Linux. Other platforms log
// a warning and return nil, matching spec.md §6's "non-Linux platforms
// skip affinity without erroring".
func PinToCPU(cpu int, log zerolog.Logger) error {
	if runtime.GOOS != "linux" {
		log.Warn().Str("component", "cpu").Str("os", runtime.GOOS).Msg("affinity not supported on this platform")
		return nil
	}

	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("bootstrap: set affinity to core %d: %w", cpu, err)
	}
	log.Info().Str("component", "cpu").Int("core", cpu).Msg("affinity set")
	return nil
}
