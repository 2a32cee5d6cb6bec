// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api serves read-only accessors over a deployed kernel.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/vechain/cap9/api/admin/apilogs"
	"github.com/vechain/cap9/api/admin/loglevel"
	"github.com/vechain/cap9/api/middleware"
	"github.com/vechain/cap9/api/procedures"
	"github.com/vechain/cap9/api/status"
	"github.com/vechain/cap9/api/storage"
	"github.com/vechain/cap9/host"
	"github.com/vechain/cap9/kernel"
	"github.com/vechain/cap9/log"
	"github.com/vechain/cap9/metrics"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins       string
	EnableMetrics        bool
	EnableReqLogger      *atomic.Bool
	SlowQueriesThreshold time.Duration
	// LogLevel, if set, enables the admin routes.
	LogLevel *slog.LevelVar
}

// New return api router
func New(k *kernel.Kernel, store host.Storage, opts Options) http.Handler {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	status.New(k).
		Mount(router, "/kernel")
	procedures.New(k.Table()).
		Mount(router, "/procedures")
	storage.New(store).
		Mount(router, "/storage")

	reqLogger := opts.EnableReqLogger
	if reqLogger == nil {
		reqLogger = &atomic.Bool{}
	}

	if opts.LogLevel != nil {
		loglevel.New(opts.LogLevel).
			Mount(router, "/admin/loglevel")
		apilogs.New(reqLogger).
			Mount(router, "/admin/apilogs")
	}

	if opts.EnableMetrics {
		router.Path("/metrics").
			Methods(http.MethodGet).
			Handler(metrics.HTTPHandler())
		router.Use(metricsMiddleware)
	}

	var handler http.Handler = router
	handler = handlers.CompressHandler(handler)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	return middleware.RequestLoggerMiddleware(logger, reqLogger, opts.SlowQueriesThreshold)(handler)
}
