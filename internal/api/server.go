// Package api exposes the bridge operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/claim"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/governance"
	"github.com/wormhole-demo/corebridge/internal/message"
)

type Server struct {
	bridge     *corebridge.Bridge
	governance *governance.Processor
	claims     *claim.Tracker
	publisher  *message.Publisher
	fees       corebridge.FeeCollector
	logger     *zap.Logger
	root       chi.Router
}

func NewServer(logger *zap.Logger, bridge *corebridge.Bridge, gov *governance.Processor, publisher *message.Publisher, fees corebridge.FeeCollector) *Server {
	s := &Server{
		bridge:     bridge,
		governance: gov,
		claims:     claim.NewTracker(bridge.Store()),
		publisher:  publisher,
		fees:       fees,
		logger:     logger.With(zap.String("component", "api")),
		root:       chi.NewMux(),
	}
	s.routes()
	return s
}

const (
	hashPattern    = "{hash:0x[0-9a-fA-F]{64}}"
	uintPattern    = "[0-9]+"
	addressPattern = "(0x)?[0-9a-fA-F]{1,64}"
)

func (s *Server) routes() {
	r := s.root
	r.Use(middleware.RequestID)
	r.Use(NewLoggerMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/vaas", s.postVAA)
		r.Get("/vaas/"+hashPattern, s.getPostedVAA)
		r.Delete("/vaas/"+hashPattern, s.closePostedVAA)
		r.Post("/governance/"+hashPattern, s.applyGovernance)

		r.Get("/guardian-sets/current", s.getCurrentGuardianSet)
		r.Get("/guardian-sets/{index:"+uintPattern+"}", s.getGuardianSet)

		claimPath := "/claims/{chain:" + uintPattern + "}/{emitter:" + addressPattern + "}/{sequence:" + uintPattern + "}"
		r.Get(claimPath, s.getClaim)
		r.Post(claimPath, s.claimOnce)

		r.Get("/emitters/{chain:"+uintPattern+"}", s.getRegisteredEmitter)
		r.Get("/config", s.getConfig)

		r.Post("/messages", s.publish)
		r.Put("/messages/unreliable/{id}", s.publishUnreliable)
		r.Post("/messages/drafts", s.initDraft)
		r.Get("/messages/{id}", s.getMessage)
		r.Post("/messages/{id}/write", s.writeDraft)
		r.Post("/messages/{id}/finalize", s.finalizeDraft)
		r.Post("/messages/{id}/post", s.postDraft)
		r.Delete("/messages/{id}", s.closeMessage)
		r.Get("/sequences/{emitter:"+addressPattern+"}", s.getSequence)
	})
}

func (s *Server) Handler() http.Handler {
	return s.root
}

// Serve listens on addr until ctx is cancelled, then waits up to
// shutdownTimeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP API", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve HTTP API on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP API")
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
