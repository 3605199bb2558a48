// Package capability probes the host once at startup and reports what
// optional analytics paths are usable.
package capability

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds the darwin CPU brand subprocess.
const DefaultProbeTimeout = 5 * time.Second

// Flags is the immutable result of Detect. It is passed by value to every
// component that needs it.
type Flags struct {
	OS       string `json:"os" yaml:"os"`
	Arch     string `json:"arch" yaml:"arch"`
	CPUBrand string `json:"cpu_brand,omitempty" yaml:"cpu_brand,omitempty"`

	// Accelerated is set on Apple silicon, where the parallel analytics
	// provider is enabled.
	Accelerated bool `json:"accelerated" yaml:"accelerated"`

	// RemoteConfigured is set when both an analytics endpoint and an API key
	// were supplied.
	RemoteConfigured bool `json:"remote_configured" yaml:"remote_configured"`
}

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Options configures Detect.
type Options struct {
	RemoteEndpoint string
	RemoteAPIKey   string

	// ProbeTimeout bounds the CPU probe. Zero means DefaultProbeTimeout.
	ProbeTimeout time.Duration

	// Run overrides command execution, for tests.
	Run Runner

	// ReadFile overrides file reads such as /proc/cpuinfo, for tests.
	ReadFile func(name string) ([]byte, error)
}

// Detect inspects the host. It never fails: a probe that errors or times out
// leaves the corresponding flag unset.
func Detect(ctx context.Context, opts Options) Flags {
	return detect(ctx, runtime.GOOS, runtime.GOARCH, opts)
}

func detect(ctx context.Context, goos, goarch string, opts Options) Flags {
	f := Flags{
		OS:   goos,
		Arch: goarch,
		RemoteConfigured: strings.TrimSpace(opts.RemoteEndpoint) != "" &&
			strings.TrimSpace(opts.RemoteAPIKey) != "",
	}

	run := opts.Run
	if run == nil {
		run = execRunner
	}
	readFile := opts.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	switch goos {
	case "darwin":
		f.CPUBrand = probe(ctx, run, timeout, "sysctl", "-n", "machdep.cpu.brand_string")
		f.Accelerated = goarch == "arm64" && isAppleSilicon(f.CPUBrand)
	case "linux":
		f.CPUBrand = linuxBrand(readFile)
	}
	return f
}

func probe(ctx context.Context, run Runner, timeout time.Duration, name string, args ...string) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := run(ctx, name, args...)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// cpuinfoPath is the Linux CPU description file.
const cpuinfoPath = "/proc/cpuinfo"

// linuxBrand returns the first "model name" value in /proc/cpuinfo.
func linuxBrand(readFile func(string) ([]byte, error)) string {
	data, err := readFile(cpuinfoPath)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(key) == "model name" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// isAppleSilicon matches brand strings such as "Apple M4 Pro".
func isAppleSilicon(brand string) bool {
	rest, ok := strings.CutPrefix(brand, "Apple M")
	return ok && rest != "" && rest[0] >= '1' && rest[0] <= '9'
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
