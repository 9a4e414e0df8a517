// Package buildinfo carries build-time metadata injected with -ldflags.
package buildinfo

import "runtime/debug"

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/hellobirdie/hellobirdie/internal/buildinfo.version=..."
var (
	version   string
	buildDate string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	version   string
	buildDate string
}

// NewContext creates a build info context.
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Current returns the metadata of the running binary. Without ldflags the
// module version recorded by the Go toolchain is used when there is one.
func Current() *Context {
	v := version
	if v == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return NewContext(v, buildDate)
}

// Version returns the build version string
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build date string
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// String formats the metadata for the version command.
func (c *Context) String() string {
	return c.Version() + " (built " + c.BuildDate() + ")"
}
