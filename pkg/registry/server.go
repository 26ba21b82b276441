package registry

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/gorilla/handlers"
)

func Run(ctx context.Context, opts *Options) error {
	logger := stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error})
	ctx = logr.NewContext(ctx, logger)

	registry, err := NewRegistry(ctx, opts)
	if err != nil {
		return err
	}
	defer registry.KV.Close()

	handler := handlers.CombinedLoggingHandler(os.Stdout, registry.route())
	if registry.Auth != nil {
		handler = NewOIDCAuthFilter(registry.Auth, handler)
	}

	server := http.Server{
		Addr:    opts.Listen,
		Handler: handler,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		<-ctx.Done()
		server.Shutdown(ctx)
	}()
	if opts.TLS.CertFile != "" && opts.TLS.KeyFile != "" {
		logger.Info("zrcd listening", "https", opts.Listen)
		return server.ListenAndServeTLS(opts.TLS.CertFile, opts.TLS.KeyFile)
	} else {
		logger.Info("zrcd listening", "http", opts.Listen)
		return server.ListenAndServe()
	}
}
