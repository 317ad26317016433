package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"catalogd/internal/catalog"
	"catalogd/internal/config"
	"catalogd/internal/ics"
	appLog "catalogd/internal/log"
	"catalogd/internal/model"
	"catalogd/internal/source"
)

// Server provides the catalog JSON API and the public ICS feeds.
type Server struct {
	cfg      *config.Config
	upstream *source.Client
	loc      *time.Location
	router   *mux.Router
	now      func() time.Time

	// Anonymous sessions backing /api/feeds, refreshed by RefreshFeeds.
	feedsMu sync.RWMutex
	feeds   map[model.Kind]*catalog.Session
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, upstream *source.Client, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		cfg:      cfg,
		upstream: upstream,
		loc:      loc,
		router:   mux.NewRouter(),
		now:      time.Now,
		feeds:    make(map[model.Kind]*catalog.Session),
	}
	for _, k := range []model.Kind{model.KindEvent, model.KindHackathon} {
		s.feeds[k] = catalog.NewSession(catalog.SessionConfig{
			Kind:     k,
			Catalog:  upstream,
			Location: loc,
			Now:      func() time.Time { return s.now() },
		})
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/catalog/{kind:[a-z]+}", s.handleCatalog).Methods(http.MethodGet)
	s.router.HandleFunc("/api/feeds/{kind:[a-z]+}.ics", s.handleFeed).Methods(http.MethodGet)
	s.router.Use(loggingMiddleware)
}

// RefreshFeeds reloads every anonymous feed session and waits for the
// fetches to settle or ctx to end.
func (s *Server) RefreshFeeds(ctx context.Context) {
	s.feedsMu.RLock()
	defer s.feedsMu.RUnlock()

	for kind, sess := range s.feeds {
		done, err := sess.Load(ctx)
		if err != nil {
			appLog.Error("feed refresh failed to start", err, "kind", kind)
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the feed sessions; late fetch results are dropped.
func (s *Server) Close() {
	s.feedsMu.Lock()
	defer s.feedsMu.Unlock()
	for _, sess := range s.feeds {
		sess.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// itemDTO is the JSON view of one catalog item.
type itemDTO struct {
	ID                   string         `json:"id"`
	Kind                 model.Kind     `json:"kind"`
	Title                string         `json:"title"`
	StartTime            time.Time      `json:"startTime"`
	EndTime              time.Time      `json:"endTime"`
	RegistrationDeadline time.Time      `json:"registrationDeadline"`
	RegistrationOpen     bool           `json:"registrationOpen"`
	Type                 string         `json:"type,omitempty"`
	Mode                 string         `json:"mode,omitempty"`
	FeeType              string         `json:"feeType,omitempty"`
	TeamSize             string         `json:"teamSize,omitempty"`
	Status               model.Status   `json:"status"`
	StatusSource         string         `json:"statusSource"`
	IsRegistered         bool           `json:"isRegistered"`
	Recurrence           string         `json:"recurrence,omitempty"`
	Raw                  map[string]any `json:"raw,omitempty"`
}

// catalogResponse is the JSON response shape for /api/catalog/{kind}.
type catalogResponse struct {
	Kind               model.Kind `json:"kind"`
	Now                time.Time  `json:"now"`
	Items              []itemDTO  `json:"items"`
	Total              int        `json:"total"`
	Excluded           int        `json:"excluded"`
	RegistrationsKnown bool       `json:"registrationsKnown"`
}

// handleCatalog runs one assembler cycle for the requested kind.
//
// GET /api/catalog/events?type=workshop&mode=online&status=live
//   - filters: type, mode, status, teamSize, fee ("all" 또는 빈 값은 와일드카드)
//   - Authorization: Bearer <jwt> 가 있으면 등록 목록도 함께 조회한다.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, ok := model.ParseKind(mux.Vars(r)["kind"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown catalog")
		return
	}
	criteria := catalog.CriteriaFromQuery(r.URL.Query())

	var regs catalog.RegistrationSource
	if token, ok := bearerToken(r, s.now()); ok {
		regs = s.upstream.ForUser(token)
	}

	asm := &catalog.Assembler{
		Catalog:             s.upstream,
		Location:            s.loc,
		RegistrationTimeout: s.cfg.RegistrationTimeout,
		Now:                 s.now,
	}
	sc, err := asm.Run(ctx, kind, regs, criteria)
	if ctx.Err() != nil {
		// Client went away; nothing to render into.
		appLog.Debug("api catalog: request cancelled, discarding result", "kind", kind)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not load catalog")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(sc))
}

// handleFeed serves the anonymous feed as iCalendar, recomputed at read time.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	kind, ok := model.ParseKind(mux.Vars(r)["kind"])
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.feedsMu.RLock()
	sess := s.feeds[kind]
	s.feedsMu.RUnlock()

	upd := sess.Snapshot(s.now())
	if upd.State != catalog.StateReady {
		w.Header().Set("Retry-After", "30")
		http.Error(w, "feed "+upd.State.String(), http.StatusServiceUnavailable)
		return
	}

	body := ics.Export(upd.Catalog, ics.ExportOptions{Name: feedName(kind)})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func feedName(kind model.Kind) string {
	p := kind.Plural()
	return strings.ToUpper(p[:1]) + p[1:]
}

func toResponse(sc catalog.SortedCatalog) catalogResponse {
	items := make([]itemDTO, 0, len(sc.Items))
	for _, it := range sc.Items {
		items = append(items, itemDTO{
			ID:                   it.ID,
			Kind:                 it.Kind,
			Title:                it.Title,
			StartTime:            it.Start,
			EndTime:              it.End,
			RegistrationDeadline: it.RegistrationDeadline,
			RegistrationOpen:     it.RegistrationOpen(sc.Now),
			Type:                 it.Type,
			Mode:                 it.Mode,
			FeeType:              it.FeeType,
			TeamSize:             it.TeamSize,
			Status:               it.Status,
			StatusSource:         it.Lifecycle.String(),
			IsRegistered:         it.IsRegistered,
			Recurrence:           it.Recurrence,
			Raw:                  it.Raw,
		})
	}
	return catalogResponse{
		Kind:               sc.Kind,
		Now:                sc.Now,
		Items:              items,
		Total:              sc.Total,
		Excluded:           len(sc.Excluded),
		RegistrationsKnown: sc.RegistrationsKnown,
	}
}

// bearerToken extracts a JWT from the Authorization header. Signature
// checks belong to the upstream API; here a token only has to look like a
// JWT and not be expired for the request to count as authenticated.
func bearerToken(r *http.Request, now time.Time) (string, bool) {
	h := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(h, "Bearer ")
	if !found {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		appLog.Debug("api: ignoring malformed bearer token", "reason", err.Error())
		return "", false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return "", false
	}
	if exp != nil && now.After(exp.Time) {
		appLog.Debug("api: ignoring expired bearer token", "exp", exp.Time)
		return "", false
	}
	return token, true
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		appLog.Debug("http request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

// StartServer serves s on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func StartServer(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
