// Command httpd serves static files from a document root over HTTP/1.0 and HTTP/1.1.
//
//	httpd [flags] <port>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbid/Mini-HTTP-Server/config"
	"github.com/nimbid/Mini-HTTP-Server/server"
)

func main() {
	program := filepath.Base(os.Args[0])

	cfg, err := config.Parse(program, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input/port: %v\n", err)
		fmt.Fprint(os.Stderr, config.Usage(program))
		os.Exit(1)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, log)
	if err := srv.Listen(); err != nil {
		log.Error().Err(err).Str("addr", cfg.Addr()).Msg("could not start server")
		os.Exit(1)
	}

	if err := srv.Serve(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
