//go:build !wasm

package serial

import (
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

var (
	ErrNilConfig = errors.New("config cannot be nil")
	ErrPortBusy  = errors.New("port is in use by another process")
)

// NativePort wraps a tarm/serial port and the lock that keeps a second host
// from opening the same device.
type NativePort struct {
	port *serial.Port
	lock *flock.Flock
	cfg  *Config
}

// Lock takes the device lock for cfg, retrying every 10ms. A nil lock is
// returned when locking is disabled.
func Lock(cfg *Config) (*flock.Flock, error) {
	path := cfg.LockPath()
	if path == "" {
		return nil, nil
	}
	fileLock := flock.New(path)

	retries := 0
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, errors.Wrapf(err, "could not lock %s", path)
		}
		if locked {
			return fileLock, nil
		}
		retries++
		if retries > cfg.LockRetries {
			return nil, errors.Wrap(ErrPortBusy, cfg.Device)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Open locks and opens a native serial port.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	fileLock, err := Lock(cfg)
	if err != nil {
		return nil, err
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		unlock(fileLock)
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}

	return &NativePort{port: port, lock: fileLock, cfg: cfg}, nil
}

func unlock(fileLock *flock.Flock) {
	if fileLock == nil {
		return
	}
	if err := fileLock.Unlock(); err != nil {
		slog.Error("could not unlock serial port", "path", fileLock.Path(), "error", err)
	}
}

func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the port and releases the lock.
func (p *NativePort) Close() error {
	defer unlock(p.lock)
	if p.port != nil {
		return errors.Wrap(p.port.Close(), "close serial port")
	}
	return nil
}

func (p *NativePort) Flush() error {
	return errors.Wrap(p.port.Flush(), "flush serial port")
}
