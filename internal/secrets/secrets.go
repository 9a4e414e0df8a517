// Package secrets resolves credential settings from environment references
// or mounted secret files (Docker and Kubernetes style).
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// MaxFileSize bounds how much of a secret file is read.
const MaxFileSize = 64 * 1024

// Expand replaces ${VAR} and ${VAR:-fallback} references in s.
// A referenced variable that is unset and has no fallback is an error.
func Expand(s string) (string, error) {
	var missing []string
	out := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return out, nil
}

// ReadFile returns the contents of a secret file without trailing newlines.
func ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	switch {
	case err != nil:
		return "", fileError(err, clean)
	case !info.Mode().IsRegular():
		return "", fileError(errors.NewStd("not a regular file"), clean)
	case info.Size() > MaxFileSize:
		return "", fileError(errors.NewStd("file too large"), clean)
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("mode", perm.String()))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fileError(err, clean)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileError(errors.NewStd("file is empty"), clean)
	}
	return secret, nil
}

// Resolve picks the secret for one setting: the file wins over the value.
// Values holding a ${...} reference are expanded; anything else, including
// values with a bare $, is returned as is.
func Resolve(file, value string) (string, error) {
	if file != "" {
		return ReadFile(file)
	}
	if !strings.Contains(value, "${") {
		return value, nil
	}
	return Expand(value)
}

func fileError(err error, path string) error {
	return errors.New(err).
		Component("secrets").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
