package cli

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mithrel/inkwell/internal/server"
	"github.com/mithrel/inkwell/internal/wire"
)

const shutdownGrace = 5 * time.Second

func newServerCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the JSON API over HTTP(S)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			addr := app.Cfg.GetString("http_addr")
			if listen != "" {
				addr = listen
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			scheme := "http"
			if tlsOptions(app).Enabled() {
				scheme = "https"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API listening on %s://%s\n", scheme, ln.Addr())
			return serve(ctx, app, ln)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config http_addr)")
	return cmd
}

func tlsOptions(app *wire.App) server.TLSOptions {
	c := app.Cfg
	storage := c.GetString("tls.storage_dir")
	if storage == "" {
		storage = filepath.Join(c.GetString("data_dir"), "certmagic")
	}
	return server.TLSOptions{
		Domain:        c.GetString("tls.domain"),
		Email:         c.GetString("tls.email"),
		CA:            c.GetString("tls.ca"),
		StorageDir:    storage,
		HTTPChallenge: c.GetString("tls.http_challenge_addr") != "",
		CertFile:      c.GetString("tls.cert_file"),
		KeyFile:       c.GetString("tls.key_file"),
	}
}

func apiHandler(app *wire.App) http.Handler {
	return server.New(server.Deps{
		Auth:        app.Auth,
		Signer:      app.Signer,
		Notes:       app.Notes,
		Blueprints:  app.Blueprints,
		Settings:    app.Settings,
		Log:         app.Log,
		AllowOrigin: app.Cfg.GetString("cors.allow_origin"),
	}).Router()
}

type route struct {
	ln net.Listener
	h  http.Handler
}

// serve runs the API on ln until ctx is done, then drains open requests.
// With TLS configured ln is wrapped, and an ACME HTTP-01 responder may
// run alongside on tls.http_challenge_addr.
func serve(ctx context.Context, app *wire.App, ln net.Listener) error {
	routes := []route{{ln: ln, h: apiHandler(app)}}
	if opts := tlsOptions(app); opts.Enabled() {
		conf, challenge, err := server.BuildTLS(ctx, opts)
		if err != nil {
			_ = ln.Close()
			return err
		}
		routes[0].ln = tls.NewListener(ln, conf)
		if challenge != nil {
			cln, err := net.Listen("tcp", app.Cfg.GetString("tls.http_challenge_addr"))
			if err != nil {
				_ = ln.Close()
				return fmt.Errorf("acme challenge listener: %w", err)
			}
			app.Log.Info("serving acme http-01 challenges", "addr", cln.Addr().String())
			routes = append(routes, route{ln: cln, h: challenge})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range routes {
		srv := &http.Server{Handler: r.h, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			if err := srv.Serve(r.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			app.Log.Info("shutting down http server", "addr", r.ln.Addr().String())
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	return g.Wait()
}
