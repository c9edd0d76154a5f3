package serial

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Port is a byte stream to the firmware. NativePort wraps a real serial
// device; tests use a net.Pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush discards anything buffered in either direction.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate. USB CDC ignores it.
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int

	// LockDir holds the per-device lock file. Empty disables locking.
	LockDir string

	// LockRetries is how many 10ms attempts Open makes at the lock.
	LockRetries int
}

// DefaultConfig returns the configuration used by motion-host.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
		LockDir:     os.TempDir(),
		LockRetries: 50,
	}
}

// LockPath is the lock file guarding cfg.Device, or "" when locking is off.
func (cfg *Config) LockPath() string {
	if cfg.LockDir == "" {
		return ""
	}
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(filepath.Clean(cfg.Device))
	return filepath.Join(cfg.LockDir, "motionhub"+name+".lock")
}
