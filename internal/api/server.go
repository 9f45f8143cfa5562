package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/finsight/internal/company"
	"github.com/finsight/finsight/internal/finance"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/quota"
	"github.com/finsight/finsight/internal/rag"
	"github.com/finsight/finsight/internal/session"
)

const (
	sessionCookieName   = "sid"
	sessionCookieMaxAge = 180 * 24 * time.Hour

	maxRequestBody = 16 << 10
)

// asker runs one question through the pipeline.
type asker interface {
	Ask(ctx context.Context, sessionID uuid.UUID, ipHash, question string) (*rag.Result, error)
}

type usageReader interface {
	Usage(ctx context.Context, sessionID uuid.UUID) (quota.Usage, error)
}

type sessionStore interface {
	GetOrCreate(ctx context.Context, id uuid.UUID, ipHash string) (session.Session, bool, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

type companyDirectory interface {
	List(ctx context.Context) ([]company.Company, error)
	Get(ctx context.Context, ticker string) (company.Company, error)
}

// SnapshotFunc loads a company's latest headline figures, typically
// finance.LatestSnapshot closed over a pool.
type SnapshotFunc func(ctx context.Context, ticker string) (*finance.Snapshot, error)

// ServerConfig contains everything the HTTP server needs.
type ServerConfig struct {
	Logger      log.Logger
	Pipeline    asker            // Required
	Sessions    sessionStore     // Required
	Quota       usageReader      // Required
	Companies   companyDirectory // Required
	Snapshots   SnapshotFunc     // Optional: nil omits financials from company detail
	Pool        *pgxpool.Pool    // Optional: nil disables pool stats in /ready
	CORSOrigins []string
	IsDev       bool // HTTP cookies (no Secure flag)
	TrustProxy  bool // Trust X-Real-IP/X-Forwarded-For
	RateBurst   int  // Token bucket burst per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux        *http.ServeMux
	pipeline   asker
	sessions   sessionStore
	quota      usageReader
	companies  companyDirectory
	snapshots  SnapshotFunc
	validate   *validator.Validate
	logger     log.Logger
	isDev      bool
	trustProxy bool
}

// NewServer wires routes and the middleware stack.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Quota == nil {
		return nil, errors.New("quota store is required")
	}
	if cfg.Companies == nil {
		return nil, errors.New("company directory is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		pipeline:   cfg.Pipeline,
		sessions:   cfg.Sessions,
		quota:      cfg.Quota,
		companies:  cfg.Companies,
		snapshots:  cfg.Snapshots,
		validate:   validator.New(),
		logger:     logger.With("component", "api"),
		isDev:      cfg.IsDev,
		trustProxy: cfg.TrustProxy,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	mux.HandleFunc("GET /api/v1/usage", s.handleUsage)
	mux.HandleFunc("GET /api/v1/companies", s.handleListCompanies)
	mux.HandleFunc("GET /api/v1/companies/{ticker}", s.handleGetCompany)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Session → Routes
	// RequestID runs before Logging so request_id lands in log attributes;
	// CORS runs before RateLimit so preflights get proper headers.
	var handler http.Handler = mux
	handler = s.sessionMiddleware(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, s.logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(s.logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", s.handleHealth)
	topMux.Handle("GET /ready", s.readiness(cfg.Pool))
	topMux.Handle("/", final)

	s.mux = topMux
	return s, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
