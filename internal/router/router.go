// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestTimeout = 60 * time.Second

func SetupRoutes(
	paymentHandler *handler.PaymentHandler,
	receiptHandler *handler.ReceiptHandler,
	allowedOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// the frontend calls the bare paths; /api/v1 mirrors them
	for _, prefix := range []string{"", "/api/v1"} {
		// websocket connections outlive the request timeout
		r.Get(prefix+"/receipt/{reference}/ws", receiptHandler.Subscribe)

		r.With(middleware.Timeout(requestTimeout)).Group(func(r chi.Router) {
			r.Post(prefix+"/pay", paymentHandler.Pay)
			r.Post(prefix+"/callback", paymentHandler.Callback)
			r.Get(prefix+"/receipt/{reference}", receiptHandler.Get)
			r.Get(prefix+"/receipt/{reference}/pdf", receiptHandler.PDF)
		})
	}

	return r
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()))
		})
	}
}
