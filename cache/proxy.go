package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/elazarl/goproxy"
)

// NewProxyHandler returns a MITM proxy that serves from and fills the store.
// A headless browser pointed at it fetches each record page only once.
func NewProxyHandler(store *Store) (http.Handler, error) {
	ca, err := tls.X509KeyPair(goproxy.CA_CERT, goproxy.CA_KEY)
	if err != nil {
		return nil, fmt.Errorf("invalid certificate: %w", err)
	}
	goproxy.GoproxyCa = ca

	proxy := goproxy.NewProxyHttpServer()
	proxy.CertStore = &certStore{}
	proxy.OnRequest().HandleConnect(goproxy.AlwaysMitm)
	proxy.Tr = &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout: 10 * time.Second,
		Proxy:               http.ProxyFromEnvironment,
	}

	proxy.OnRequest().DoFunc(func(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		k := Key{Method: req.Method, URL: req.URL.String()}

		e, err := store.Get(k)
		if err != nil {
			slog.Error("cache lookup failed", "url", k.URL, "error", err)
			return req, nil
		}
		if e != nil {
			slog.Debug("proxy cache hit", "url", k.URL)
			return req, e.Response(req)
		}

		ctx.UserData = k
		return req, nil
	})

	proxy.OnResponse().DoFunc(func(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
		k, ok := ctx.UserData.(Key)
		if resp == nil || !ok || !Cacheable(resp) {
			return resp
		}
		if err := store.Record(k, resp); err != nil {
			slog.Error("failed to cache proxied response", "url", k.URL, "error", err)
		}
		return resp
	})

	return proxy, nil
}

type certStore struct {
	certs sync.Map
}

func (cs *certStore) Fetch(hostname string, gen func() (*tls.Certificate, error)) (*tls.Certificate, error) {
	if v, ok := cs.certs.Load(hostname); ok {
		return v.(*tls.Certificate), nil
	}
	cert, err := gen()
	if err != nil {
		return nil, err
	}
	actual, _ := cs.certs.LoadOrStore(hostname, cert)
	return actual.(*tls.Certificate), nil
}

// RunServer serves handler on addr until SIGINT/SIGTERM or ctx is done, then
// shuts down with a 10 second grace period.
func RunServer(ctx context.Context, addr string, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting http server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server shutdown complete")
	return nil
}
