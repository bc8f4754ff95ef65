package api

import (
	"net/http"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCORSOrigins sets the origins accepted by the CORS middleware.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithMount attaches an extra handler, such as the API docs, to the router.
func WithMount(pattern string, h http.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.mounts = append(s.mounts, mount{pattern: pattern, handler: h})
		}
	}
}
