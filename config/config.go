// Package config parses the server command line.
package config

import (
	"bytes"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbid/Mini-HTTP-Server/errors"
	"github.com/nimbid/Mini-HTTP-Server/resource"
	"github.com/nimbid/Mini-HTTP-Server/transport"
)

const (
	MinPort            = 5000
	DefaultKeepAlive   = 10 * time.Second
	DefaultBacklog     = 100
	DefaultMaxConns    = 50
	DefaultBufferSize  = 4096
	DefaultGracePeriod = 5 * time.Second
)

// Config holds everything the server needs at startup
type Config struct {
	Host           string
	Port           int
	Root           string
	DefaultObject  string
	KeepAlive      time.Duration
	Backlog        int
	MaxConns       int
	BufferSize     int
	Transport      transport.Kind
	GracePeriod    time.Duration
	LogLevel       zerolog.Level
	AllowTraversal bool
	UnixSocket     string
}

// Default returns the configuration used when no flag is given
func Default() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Root:          resource.DefaultRoot,
		DefaultObject: resource.DefaultObject,
		KeepAlive:     DefaultKeepAlive,
		Backlog:       DefaultBacklog,
		MaxConns:      DefaultMaxConns,
		BufferSize:    DefaultBufferSize,
		Transport:     transport.KindTcp,
		GracePeriod:   DefaultGracePeriod,
		LogLevel:      zerolog.InfoLevel,
	}
}

// Usage renders the usage message for program
func Usage(program string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Usage: %s [flags] <port>\n", program)
	fs, _ := newFlagSet(program, Default())
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	return buf.String()
}

func newFlagSet(program string, cfg *Config) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(program, flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "IPv4 address to bind")
	fs.StringVar(&cfg.Root, "root", cfg.Root, "document root")
	fs.StringVar(&cfg.DefaultObject, "index", cfg.DefaultObject, "object served for /")
	fs.DurationVar(&cfg.KeepAlive, "keepalive", cfg.KeepAlive, "idle timeout of keep-alive connections")
	fs.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "listen backlog")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum concurrent connections")
	fs.IntVar(&cfg.BufferSize, "buffer", cfg.BufferSize, "receive buffer size in bytes")
	fs.DurationVar(&cfg.GracePeriod, "grace", cfg.GracePeriod, "time in-flight connections get on shutdown")
	fs.BoolVar(&cfg.AllowTraversal, "allow-traversal", cfg.AllowTraversal, "serve targets whose .. segments leave the root")
	fs.StringVar(&cfg.UnixSocket, "unix", cfg.UnixSocket, "listen on this Unix socket path instead of host:port")
	kind := fs.String("transport", string(cfg.Transport), "connection I/O: tcp, uring or uring2")
	fs.Func("log-level", "debug, info, warn or error (default info)", func(s string) error {
		level, err := zerolog.ParseLevel(s)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
		return nil
	})
	return fs, kind
}

// Parse reads flags followed by the single required port argument.
// args excludes the program name.
func Parse(program string, args []string) (*Config, error) {
	cfg := Default()

	fs, kind := newFlagSet(program, cfg)
	fs.SetOutput(&bytes.Buffer{})
	if err := fs.Parse(args); err != nil {
		return nil, errors.NewInvalidArgumentError(err.Error())
	}

	if fs.NArg() != 1 {
		return nil, errors.NewInvalidArgumentError("expected exactly one port argument")
	}

	port, err := strconv.Atoi(fs.Arg(0))
	if err != nil || port < MinPort || port > 65535 {
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("invalid port %q, want %d-65535", fs.Arg(0), MinPort))
	}
	cfg.Port = port

	if cfg.Transport, err = transport.ParseKind(*kind); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric limits
func (c *Config) Validate() error {
	switch {
	case c.KeepAlive <= 0:
		return errors.NewInvalidArgumentError("keepalive must be positive")
	case c.Backlog <= 0:
		return errors.NewInvalidArgumentError("backlog must be positive")
	case c.MaxConns <= 0:
		return errors.NewInvalidArgumentError("max-conns must be positive")
	case c.BufferSize < 64:
		return errors.NewInvalidArgumentError("buffer must be at least 64 bytes")
	case c.GracePeriod < 0:
		return errors.NewInvalidArgumentError("grace must not be negative")
	case c.Root == "":
		return errors.NewInvalidArgumentError("root must not be empty")
	}
	return nil
}

// Addr returns host:port, or the socket path when UnixSocket is set
func (c *Config) Addr() string {
	if c.UnixSocket != "" {
		return c.UnixSocket
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
