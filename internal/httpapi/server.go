package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/ihblv/hairhub-server/internal/brands"
	"github.com/ihblv/hairhub-server/internal/formula"
	"github.com/ihblv/hairhub-server/internal/logger"
	"github.com/ihblv/hairhub-server/internal/observability"
	"github.com/ihblv/hairhub-server/internal/report"
)

const (
	defaultMaxUploadBytes = 10 << 20
	maxCardBodyBytes      = 1 << 20
)

// Analyzer runs the formula pipeline; *formula.Pipeline satisfies it.
type Analyzer interface {
	Generate(ctx context.Context, req formula.Request) (formula.AnalysisResult, error)
}

type CardRenderer interface {
	Render(ctx context.Context, c report.Card) ([]byte, error)
}

type Options struct {
	MaxUploadBytes int64
	// RateLimit applies per client IP to /v1/analyze, e.g. "30-M". Empty disables it.
	RateLimit string
	TempDir   string
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Now       func() time.Time
}

type Server struct {
	registry *brands.Registry
	analyzer Analyzer
	renderer CardRenderer
	opts     Options
	log      *zap.Logger
}

func NewServer(registry *brands.Registry, analyzer Analyzer, renderer CardRenderer, opts Options) (http.Handler, error) {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{registry: registry, analyzer: analyzer, renderer: renderer, opts: opts, log: log}

	var analyze http.Handler = http.HandlerFunc(s.handleAnalyze)
	if opts.RateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(opts.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("rate limit %q: %w", opts.RateLimit, err)
		}
		analyze = limiterhttp.NewMiddleware(limiter.New(memory.NewStore(), rate)).Handler(analyze)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/analyze", s.instrument("/v1/analyze", analyze))
	mux.Handle("/v1/brands", s.instrument("/v1/brands", http.HandlerFunc(s.handleBrands)))
	mux.Handle("/v1/formula-card", s.instrument("/v1/formula-card", http.HandlerFunc(s.handleFormulaCard)))
	mux.HandleFunc("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics.Handler())
	}
	return withRequestID(log, mux), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logger.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, 400, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	category := brands.ParseCategory(r.FormValue("category"))
	rule := s.registry.Resolve(category, r.FormValue("brand"))

	file, _, err := r.FormFile("photo")
	if err != nil {
		writeError(w, 400, "photo field is required")
		return
	}
	defer file.Close()

	img, err := readPhoto(file, s.opts.MaxUploadBytes, s.opts.TempDir)
	if err != nil {
		switch {
		case errors.Is(err, ErrPhotoTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrNotImage), errors.Is(err, ErrEmptyPhoto):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			log.Error("read photo", zap.Error(err))
			writeError(w, 500, "failed to read photo")
		}
		return
	}

	log = log.With(zap.String("brand", rule.Name), zap.String("category", string(category)))
	result, err := s.analyzer.Generate(r.Context(), formula.Request{Category: category, Brand: rule, Image: img})
	if err != nil {
		var upstream *formula.UpstreamError
		if errors.As(err, &upstream) {
			log.Warn("vision collaborator unavailable", zap.Error(err))
			writeError(w, http.StatusBadGateway, "formula service temporarily unavailable")
			return
		}
		log.Error("generate formula", zap.Error(err))
		writeError(w, 500, "failed to generate formula")
		return
	}
	w.Header().Set("X-Hairhub-Brand", rule.Name)
	w.Header().Set("X-Hairhub-Category", string(category))
	writeJSON(w, 200, result)
}

type brandListing struct {
	Category brands.Category `json:"category"`
	Default  string          `json:"default"`
	Brands   []brands.Rule   `json:"brands"`
}

func (s *Server) handleBrands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	categories := brands.Categories
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		categories = []brands.Category{brands.ParseCategory(raw)}
	}
	listings := make([]brandListing, 0, len(categories))
	for _, cat := range categories {
		listings = append(listings, brandListing{
			Category: cat,
			Default:  s.registry.Default(cat).Name,
			Brands:   s.registry.Brands(cat),
		})
	}
	writeJSON(w, 200, map[string]any{"categories": listings})
}

func (s *Server) handleFormulaCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.renderer == nil {
		writeError(w, 503, "pdf renderer unavailable")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCardBodyBytes))
	if err != nil {
		writeError(w, 400, "invalid request body")
		return
	}
	var card report.Card
	if err := json.Unmarshal(body, &card); err != nil {
		writeError(w, 400, "invalid formula card json")
		return
	}
	if strings.TrimSpace(card.Brand) == "" || len(card.Result.Scenarios) == 0 {
		writeError(w, 400, "brand and at least one scenario are required")
		return
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = s.opts.Now()
	}
	pdf, err := s.renderer.Render(r.Context(), card)
	if err != nil {
		logger.FromContext(r.Context()).Error("render formula card", zap.Error(err))
		writeError(w, 500, "failed to render pdf")
		return
	}
	filename := fmt.Sprintf("formula-card-%s.pdf", sanitizeFilename(card.Brand))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(200)
	_, _ = w.Write(pdf)
}

func sanitizeFilename(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "card"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, v)
}
