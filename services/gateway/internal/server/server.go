package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"meetingminutes/internal/ratelimit"
	"meetingminutes/internal/usertoken"
	"meetingminutes/internal/util"
	"meetingminutes/services/gateway/internal/identityclient"
	"meetingminutes/services/gateway/internal/recordingclient"
	"meetingminutes/services/gateway/internal/summarizationclient"
	"meetingminutes/services/gateway/internal/transcriptionclient"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Identity      *identityclient.Client
	Recording     *recordingclient.Client
	Transcription *transcriptionclient.Client
	Summarization *summarizationclient.Client
	Tokens        *usertoken.Authority

	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	ProbeTimeout               time.Duration
	MaxUploadBytes             int64
	AllowedExtensions          []string

	// RegisterLimiter/LoginLimiter override the Redis-backed limiters,
	// used by tests.
	RegisterLimiter *ratelimit.FixedWindowLimiter
	LoginLimiter    *ratelimit.FixedWindowLimiter
}

// Server is the external API surface. It validates tokens locally,
// relays downstream errors verbatim and owns the health fan-out.
type Server struct {
	identity      *identityclient.Client
	recording     *recordingclient.Client
	transcription *transcriptionclient.Client
	summarization *summarizationclient.Client
	tokens        *usertoken.Authority
	mux           *http.ServeMux

	maxUploadBytes    int64
	allowedExtensions map[string]struct{}
	registerLimiter   *ratelimit.FixedWindowLimiter
	loginLimiter      *ratelimit.FixedWindowLimiter
	probes            []healthProbe
	probeTimeout      time.Duration
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	registerLimiter := cfg.RegisterLimiter
	if registerLimiter == nil {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword,
			"meetingminutes:gateway:ratelimit:register", registerLimit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init register limiter: %w", err)
		}
		registerLimiter = limiter
	}
	loginLimiter := cfg.LoginLimiter
	if loginLimiter == nil {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword,
			"meetingminutes:gateway:ratelimit:login", loginLimit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init login limiter: %w", err)
		}
		loginLimiter = limiter
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	s := &Server{
		identity:          cfg.Identity,
		recording:         cfg.Recording,
		transcription:     cfg.Transcription,
		summarization:     cfg.Summarization,
		tokens:            cfg.Tokens,
		mux:               http.NewServeMux(),
		maxUploadBytes:    normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedExtensions: normalizeExtensions(cfg.AllowedExtensions),
		registerLimiter:   registerLimiter,
		loginLimiter:      loginLimiter,
		probeTimeout:      probeTimeout,
	}
	s.probes = []healthProbe{
		{name: "identity", check: s.identity.Health},
		{name: "recording", check: s.recording.Health},
		{name: "transcription", check: s.transcription.Health},
		{name: "summarization", check: s.summarization.Health},
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("gateway", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/v1/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/v1/auth/login", s.handleLogin)
	s.mux.Handle("/api/v1/auth/me", s.authenticated(s.handleMe))

	// projects & workspaces
	s.mux.Handle("/api/v1/projects", s.authenticated(s.handleProjects))
	s.mux.Handle("/api/v1/projects/", s.authenticated(s.handleProjectSub))
	s.mux.Handle("/api/v1/workspaces", s.authenticated(s.handleWorkspaces))
	s.mux.Handle("/api/v1/workspaces/", s.authenticated(s.handleWorkspaceSub))

	// meeting pipeline
	s.mux.Handle("/api/v1/meetings/record", s.authenticated(s.handleRecord))
	s.mux.Handle("/api/v1/meetings/transcribe/", s.authenticated(s.handleTranscribe))
	s.mux.Handle("/api/v1/meetings/summarize/", s.authenticated(s.handleSummarize))
	s.mux.Handle("/api/v1/meetings/", s.authenticated(s.handleMeetingSub))
}

// auth wrappers. The token is validated locally against the shared
// secret; the identity service is not on the request path.
type authHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := usertoken.BearerToken(r)
		if !ok {
			s.audit(r, "gateway.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := s.tokens.Verify(token); err != nil {
			s.audit(r, "gateway.authorize", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, token)
	})
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "gateway.register", "rate_limited")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	userID, err := s.identity.Register(req.Email, req.Password, req.Name)
	if err != nil {
		s.audit(r, "gateway.register", "fail")
		writeClientError(w, err, "identity")
		return
	}
	s.audit(r, "gateway.register", "success", "user_id", userID)
	writeJSON(w, http.StatusCreated, map[string]string{"userId": userID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "gateway.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := s.identity.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "gateway.login", "fail")
		writeClientError(w, err, "identity")
		return
	}
	s.audit(r, "gateway.login", "success")
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, token string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.identity.Me(token)
	if err != nil {
		writeClientError(w, err, "identity")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// /api/v1/projects
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request, token string) {
	switch r.Method {
	case http.MethodPost:
		var req projectRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		project, err := s.recording.CreateProject(token, req.Name, req.Description)
		if err != nil {
			writeClientError(w, err, "recording")
			return
		}
		writeJSON(w, http.StatusCreated, project)
	case http.MethodGet:
		projects, err := s.recording.ListProjects(token)
		if err != nil {
			writeClientError(w, err, "recording")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": projects,
			"count": len(projects),
		})
	default:
		methodNotAllowed(w)
	}
}

// /api/v1/projects/{id}/workspaces
func (s *Server) handleProjectSub(w http.ResponseWriter, r *http.Request, token string) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/projects/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" || len(parts) != 2 || parts[1] != "workspaces" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req workspaceRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	ws, err := s.recording.CreateWorkspace(token, id, req.Name, req.Description)
	if err != nil {
		writeClientError(w, err, "recording")
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

// /api/v1/workspaces
func (s *Server) handleWorkspaces(w http.ResponseWriter, r *http.Request, token string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	listings, err := s.recording.ListWorkspaces(token)
	if err != nil {
		writeClientError(w, err, "recording")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": listings,
		"count": len(listings),
	})
}

// /api/v1/workspaces/{id}/recordings
func (s *Server) handleWorkspaceSub(w http.ResponseWriter, r *http.Request, token string) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/workspaces/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" || len(parts) != 2 || parts[1] != "recordings" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	recordings, err := s.recording.ListRecordings(token, id)
	if err != nil {
		writeClientError(w, err, "recording")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": recordings,
		"count": len(recordings),
	})
}

// handleRecord streams the multipart upload through to the recording
// service without buffering the audio. Fields ahead of the file part are
// collected to resolve the target workspace; everything is re-emitted
// onto a pipe as it is read. Streaming means the workspaceId field must
// be sent before the file part: the target has to be known before the
// audio starts flowing, so a body with the file first is rejected even
// when it carries a valid workspaceId later.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request, token string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	// Collect leading fields until the file part shows up. The
	// workspaceId field must precede the file.
	fields := make(map[string]string)
	var filePart *multipart.Part
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, 1<<20))
			part.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid form data")
				return
			}
			fields[part.FormName()] = string(value)
			continue
		}
		filePart = part
		break
	}
	if filePart == nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer filePart.Close()

	workspaceID := strings.TrimSpace(fields["workspaceId"])
	if workspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspaceId is required before the file part")
		return
	}
	if !s.isExtensionAllowed(filePart.FileName()) {
		writeError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		for name, value := range fields {
			if err := mw.WriteField(name, value); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		dst, err := mw.CreateFormFile(filePart.FormName(), filePart.FileName())
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(dst, filePart); err != nil {
			pw.CloseWithError(err)
			return
		}
		// Trailing fields stream through after the file.
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if part.FileName() != "" {
				part.Close()
				pw.CloseWithError(fmt.Errorf("multiple file parts"))
				return
			}
			value, err := io.ReadAll(io.LimitReader(part, 1<<20))
			part.Close()
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if err := mw.WriteField(part.FormName(), string(value)); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	rec, err := s.recording.UploadRecording(token, workspaceID, mw.FormDataContentType(), pr)
	if err != nil {
		writeClientError(w, err, "recording")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// /api/v1/meetings/transcribe/{recordingId}
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request, token string) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/meetings/transcribe/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	transcript, err := s.transcription.Transcribe(token, id)
	if err != nil {
		writeClientError(w, err, "transcription")
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

// /api/v1/meetings/summarize/{recordingId}
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request, token string) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/meetings/summarize/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	summary, err := s.summarization.Summarize(token, id)
	if err != nil {
		writeClientError(w, err, "summarization")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// /api/v1/meetings/{recordingId} or /api/v1/meetings/{recordingId}/summary
func (s *Server) handleMeetingSub(w http.ResponseWriter, r *http.Request, token string) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/meetings/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "summary" {
			http.NotFound(w, r)
			return
		}
		summary, err := s.summarization.GetSummary(token, id)
		if err != nil {
			writeClientError(w, err, "summarization")
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}
	rec, err := s.recording.GetRecording(token, id)
	if err != nil {
		writeClientError(w, err, "recording")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type workspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeClientError relays a downstream error response verbatim; anything
// that is not a structured API error means the service itself could not
// be reached.
func writeClientError(w http.ResponseWriter, err error, service string) {
	switch apiErr := err.(type) {
	case *identityclient.APIError:
		writeError(w, apiErr.Status, apiErr.Message)
	case *recordingclient.APIError:
		writeError(w, apiErr.Status, apiErr.Message)
	case *transcriptionclient.APIError:
		writeError(w, apiErr.Status, apiErr.Message)
	case *summarizationclient.APIError:
		writeError(w, apiErr.Status, apiErr.Message)
	default:
		slog.Error("downstream unreachable", "service", service, "err", err)
		writeError(w, http.StatusServiceUnavailable, service+" service unavailable")
	}
}

// classifyProbeError distinguishes a component answering with an error
// from one not answering at all.
func classifyProbeError(err error) componentState {
	switch err.(type) {
	case *identityclient.APIError,
		*recordingclient.APIError,
		*transcriptionclient.APIError,
		*summarizationclient.APIError:
		return stateUnhealthy
	default:
		return stateUnavailable
	}
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 500 * 1024 * 1024
	}
	return value
}

func normalizeExtensions(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = []string{".m4a", ".mp3", ".wav", ".ogg", ".flac"}
	}
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}

func (s *Server) isExtensionAllowed(filename string) bool {
	if len(s.allowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := s.allowedExtensions[ext]
	return ok
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
