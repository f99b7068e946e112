package cli

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lydakis/ubridge/internal/authgate"
	"github.com/lydakis/ubridge/internal/config"
	"github.com/lydakis/ubridge/internal/dispatch"
	"github.com/lydakis/ubridge/internal/instance"
	"github.com/lydakis/ubridge/internal/mcpserver"
	"github.com/lydakis/ubridge/internal/paths"
	"github.com/lydakis/ubridge/internal/pool"
	"github.com/lydakis/ubridge/internal/resolve"
)

var serveTransport string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Start the agent-facing MCP server.

With transport "stdio" the server speaks MCP on stdin/stdout for a local,
implicitly trusted agent. With transport "http" it listens on the configured
address behind the token and IP-allowlist gate.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", `override the configured transport ("stdio" or "http")`)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveTransport != "" {
		cfg.Transport = serveTransport
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	registry, p := buildInstanceStack(cfg)
	defer p.CloseAll()

	resolver := resolve.New(registry, resolve.NewSessions())
	dispatcher := dispatch.New(registry, resolver, p)
	srv := mcpserver.New(dispatcher, version)

	if !cfg.IsHTTP() {
		return srv.ServeStdio()
	}
	return serveHTTP(cfg, srv)
}

// buildInstanceStack wires the registry and the connection pool from config.
func buildInstanceStack(cfg *config.Config) (*instance.Registry, *pool.Pool) {
	indexDir := cfg.Discovery.IndexDir
	if indexDir == "" {
		indexDir = paths.InstanceIndexDir()
	}
	if err := paths.EnsureDir(indexDir); err != nil {
		fmt.Fprintf(os.Stderr, "ubridge: cannot create index dir %s: %v\n", indexDir, err)
	}

	registry := instance.NewRegistry(instance.Options{
		PortStart:    cfg.Discovery.PortStart,
		PortEnd:      cfg.Discovery.PortEnd,
		IndexDir:     indexDir,
		ProbeTimeout: cfg.Discovery.ProbeTimeoutDuration(),
		CacheTTL:     cfg.Discovery.CacheTTLDuration(),
	})

	p := pool.New(func(id string) (int, bool) {
		rec, ok := registry.Lookup(id)
		return rec.Port, ok
	}, pool.Options{
		Attempts:       cfg.Dispatch.Attempts,
		AttemptTimeout: cfg.Dispatch.AttemptTimeoutDuration(),
		BackoffInitial: cfg.Dispatch.BackoffInitialDuration(),
		BackoffMax:     cfg.Dispatch.BackoffMaxDuration(),
	})
	return registry, p
}

func serveHTTP(cfg *config.Config, srv *mcpserver.Server) error {
	gate := authgate.New(authgate.Settings{
		Enabled:           cfg.Auth.Enabled,
		Token:             cfg.Auth.Token,
		AllowedIPs:        cfg.Auth.AllowedIPs,
		TrustForwardedFor: cfg.HTTP.TrustForwardedFor,
	})
	if cfg.Auth.Enabled && cfg.Auth.Token != "" {
		srv.SetIdentityResolver(tokenFingerprint(cfg.Auth.Token))
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.HTTPHandler(gate),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "ubridge: serving MCP on http://%s\n", httpServer.Addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// tokenFingerprint attributes the configured bearer credential with a short
// stable name, without ever logging the secret itself.
func tokenFingerprint(token string) mcpserver.IdentityResolver {
	sum := sha1.Sum([]byte(token))
	name := "bearer-" + hex.EncodeToString(sum[:])[:8]
	return func(credential string) (string, bool) {
		if subtle.ConstantTimeCompare([]byte(credential), []byte(token)) == 1 {
			return name, true
		}
		return "", false
	}
}
