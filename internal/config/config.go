// Package config loads client settings from a CUE file unified with an
// embedded schema, then applies environment overrides.
//
// Precedence, lowest first: schema defaults, config file, ABSENSI_*
// environment variables, command-line flags (applied by the caller).
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/reconcile"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables read by Load.
const (
	EnvDatabase     = "ABSENSI_DATABASE"
	EnvUserID       = "ABSENSI_USER_ID"
	EnvTimezone     = "ABSENSI_TIMEZONE"
	EnvSelfieBucket = "ABSENSI_SELFIE_BUCKET"
)

// Config is the resolved client configuration.
type Config struct {
	UserID       string
	Database     string
	TimezoneName string
	Location     *time.Location
	TickInterval time.Duration
	BreakPolicy  string
	Sync         reconcile.Config
	Selfie       Selfie
}

// Selfie locates verification uploads.
type Selfie struct {
	Bucket string
	Prefix string
}

// fileConfig mirrors #Config for decoding.
type fileConfig struct {
	UserID       string `json:"user_id"`
	Database     string `json:"database"`
	Timezone     string `json:"timezone"`
	TickInterval string `json:"tick_interval"`
	BreakPolicy  string `json:"break_policy"`
	Sync         struct {
		InitialBackoff string `json:"initial_backoff"`
		MaxAttempts    int    `json:"max_attempts"`
		WriteRetries   int    `json:"write_retries"`
	} `json:"sync"`
	Selfie struct {
		Bucket string `json:"bucket"`
		Prefix string `json:"prefix"`
	} `json:"selfie"`
}

// Error reports an invalid configuration value with its CUE position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the schema defaults with no file and no environment.
func Default() (Config, error) {
	return load(nil, "", func(string) string { return "" })
}

// Load reads path (may be empty for defaults only) and applies environment
// overrides.
func Load(path string) (Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		data = b
	}
	return load(data, path, os.Getenv)
}

// Parse resolves config source text without consulting the environment.
func Parse(src []byte, filename string) (Config, error) {
	return load(src, filename, func(string) string { return "" })
}

func load(src []byte, filename string, getenv func(string) string) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config"))
	if src != nil {
		file := ctx.CompileBytes(src, cue.Filename(filename))
		if err := file.Err(); err != nil {
			return Config{}, formatCUEError(err)
		}
		v = v.Unify(file)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var fc fileConfig
	if err := v.Decode(&fc); err != nil {
		return Config{}, formatCUEError(err)
	}

	if s := strings.TrimSpace(getenv(EnvDatabase)); s != "" {
		fc.Database = s
	}
	if s := strings.TrimSpace(getenv(EnvUserID)); s != "" {
		fc.UserID = s
	}
	if s := strings.TrimSpace(getenv(EnvTimezone)); s != "" {
		fc.Timezone = s
	}
	if s := strings.TrimSpace(getenv(EnvSelfieBucket)); s != "" {
		fc.Selfie.Bucket = s
	}

	return resolve(fc)
}

func resolve(fc fileConfig) (Config, error) {
	cfg := Config{
		UserID:       fc.UserID,
		Database:     fc.Database,
		TimezoneName: fc.Timezone,
		BreakPolicy:  fc.BreakPolicy,
		Sync: reconcile.Config{
			MaxAttempts:  fc.Sync.MaxAttempts,
			WriteRetries: fc.Sync.WriteRetries,
		},
		Selfie: Selfie{Bucket: fc.Selfie.Bucket, Prefix: fc.Selfie.Prefix},
	}

	var invalid []string

	loc, err := time.LoadLocation(fc.Timezone)
	if err != nil {
		invalid = append(invalid, "timezone")
	}
	cfg.Location = loc

	tick, err := time.ParseDuration(fc.TickInterval)
	if err != nil || tick <= 0 {
		invalid = append(invalid, "tick_interval")
	}
	cfg.TickInterval = tick

	backoff, err := time.ParseDuration(fc.Sync.InitialBackoff)
	if err != nil || backoff <= 0 {
		invalid = append(invalid, "sync.initial_backoff")
	}
	cfg.Sync.InitialBackoff = backoff

	if len(invalid) > 0 {
		return Config{}, &Error{Field: strings.Join(invalid, ", "), Message: "invalid value"}
	}
	return cfg, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := strings.Join(first.Path(), ".")
	if field == "" {
		field = "config"
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Field: field, Message: first.Error(), Pos: positions[0]}
	}
	return &Error{Field: field, Message: first.Error()}
}
