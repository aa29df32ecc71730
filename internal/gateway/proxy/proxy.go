package proxy

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"paymentcore.backend/internal/gateway/circuitbreaker"
)

// Route maps a path prefix to a backend and the breaker name that
// guards it.
type Route struct {
	Prefix      string
	Target      *url.URL
	ServiceName string
}

var errBackendFailure = errors.New("backend returned a server error")

// Handler reverse-proxies matched requests to their backend, wrapping
// the round trip in the route's circuit breaker. An open breaker
// serves the gateway's fallback body directly instead of reaching the
// backend.
func Handler(route Route, breakers *circuitbreaker.Manager) gin.HandlerFunc {
	rp := httputil.NewSingleHostReverseProxy(route.Target)

	return func(c *gin.Context) {
		_, err := breakers.Execute(route.ServiceName, func() (interface{}, error) {
			rp.ServeHTTP(c.Writer, c.Request)
			if c.Writer.Status() >= 500 {
				return nil, errBackendFailure
			}
			return nil, nil
		})

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			serviceUnavailable(c, route.ServiceName)
		}
	}
}

// Dispatch routes each request to the first route whose prefix matches
// its path, each behind its own breaker. Order routes most-specific
// first; a catch-all "/" belongs last.
func Dispatch(routes []Route, breakers *circuitbreaker.Manager) gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, len(routes))
	for i, route := range routes {
		handlers[i] = Handler(route, breakers)
	}

	return func(c *gin.Context) {
		for i, route := range routes {
			if strings.HasPrefix(c.Request.URL.Path, route.Prefix) {
				handlers[i](c)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"message": "no route"})
	}
}

func serviceUnavailable(c *gin.Context, service string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"message": service + " unavailable"})
}
