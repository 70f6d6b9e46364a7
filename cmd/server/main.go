package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	router "github.com/pierrecuevas/Tarea-Chat/internal/adapters/http"
	control "github.com/pierrecuevas/Tarea-Chat/internal/adapters/signal"
	"github.com/pierrecuevas/Tarea-Chat/internal/adapters/udp"
	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/app/orch"
	"github.com/pierrecuevas/Tarea-Chat/internal/config"
	"github.com/pierrecuevas/Tarea-Chat/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	st, err := store.Open(store.Config{Path: cfg.DBPath})
	if err != nil {
		return err
	}
	defer st.Close()

	notes, err := app.NewVoiceNotes(afero.NewOsFs(), cfg.AudioDir, cfg.MaxVoiceNote)
	if err != nil {
		return err
	}

	policy := app.SimplePolicy{}
	dir := app.NewDirectory()
	calls := app.NewCallRegistry()
	calling := orch.New(dir, calls, policy)

	srv := control.NewServer(control.Deps{
		Directory: dir,
		Router:    app.NewRouter(dir, st, policy, cfg.HistoryLimit),
		Auth:      app.NewAuthenticator(st, store.BcryptHasher{Cost: cfg.BcryptCost}),
		Notes:     notes,
		Orch:      calling,
		Limiter:   control.NewLoginLimiter(cfg.LoginAttempts, cfg.LoginWindow),
	}, control.Options{
		MaxConnections: cfg.MaxConnections,
		ReadLimit:      cfg.ReadLimit,
		SendBuffer:     cfg.SendBuffer,
		WriteTimeout:   cfg.WriteTimeout,
	})

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return err
	}
	relay, err := udp.Listen(cfg.UDPAddr, calling, calls, cfg.UDPBuffer)
	if err != nil {
		_ = ln.Close()
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx, ln) })
	g.Go(func() error { return relay.Run(ctx) })

	if cfg.HTTPAddr != "" {
		httpSrv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: router.SetupRouter(ctx, cfg, router.Deps{
				Directory: dir,
				Calls:     calls,
				Relay:     relay.Stats(),
				Control:   srv,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("ops http started")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server forced to shutdown")
			}
			return nil
		})
	}

	log.Info().Str("tcp", cfg.TCPAddr).Str("udp", cfg.UDPAddr).Msg("chat server started")
	<-ctx.Done()
	log.Info().Msg("Shutting down")
	return g.Wait()
}
