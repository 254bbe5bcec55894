package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihblv/hairhub-server/internal/brands"
	"github.com/ihblv/hairhub-server/internal/formula"
	"github.com/ihblv/hairhub-server/internal/observability"
	"github.com/ihblv/hairhub-server/internal/report"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type stubAnalyzer struct {
	got    formula.Request
	calls  int
	result formula.AnalysisResult
	err    error
}

func (s *stubAnalyzer) Generate(_ context.Context, req formula.Request) (formula.AnalysisResult, error) {
	s.calls++
	s.got = req
	return s.result, s.err
}

type stubRenderer struct {
	card report.Card
	err  error
}

func (s *stubRenderer) Render(_ context.Context, c report.Card) ([]byte, error) {
	s.card = c
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.4 stub"), nil
}

func testRegistry(t *testing.T) *brands.Registry {
	t.Helper()
	cat, err := brands.DefaultCatalog()
	require.NoError(t, err)
	reg, err := brands.NewRegistry(cat)
	require.NoError(t, err)
	return reg
}

func newTestServer(t *testing.T, analyzer Analyzer, renderer CardRenderer, opts Options) http.Handler {
	t.Helper()
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	h, err := NewServer(testRegistry(t), analyzer, renderer, opts)
	require.NoError(t, err)
	return h
}

func multipartRequest(t *testing.T, fields map[string]string, photo []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if photo != nil {
		part, err := mw.CreateFormFile("photo", "client.png")
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAnalyzeReturnsResult(t *testing.T) {
	analyzer := &stubAnalyzer{result: formula.AnalysisResult{
		Analysis:  "Level 7",
		Scenarios: []formula.Scenario{{Title: "Primary", Ends: formula.Step{Formula: "07NB (1:1) with Shades EQ Processing Solution"}, Processing: []string{}}},
	}}
	h := newTestServer(t, analyzer, nil, Options{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartRequest(t, map[string]string{"category": "demi", "brand": "shades eq"}, pngHeader))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Redken Shades EQ", rr.Header().Get("X-Hairhub-Brand"))
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
	assert.Equal(t, brands.CategoryDemi, analyzer.got.Category)
	assert.Equal(t, "Redken Shades EQ", analyzer.got.Brand.Name)
	assert.Equal(t, "image/png", analyzer.got.Image.MediaType)
	assert.Equal(t, pngHeader, analyzer.got.Image.Data)

	var got formula.AnalysisResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, analyzer.result, got)
}

func TestAnalyzeUnknownCategoryUsesPermanentDefault(t *testing.T) {
	analyzer := &stubAnalyzer{result: formula.AnalysisResult{Scenarios: []formula.Scenario{}}}
	h := newTestServer(t, analyzer, nil, Options{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartRequest(t, map[string]string{"category": "glitter"}, pngHeader))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, brands.CategoryPermanent, analyzer.got.Category)
	assert.Equal(t, testRegistry(t).Default(brands.CategoryPermanent).Name, analyzer.got.Brand.Name)
}

func TestAnalyzeUpstreamErrorIsBadGateway(t *testing.T) {
	analyzer := &stubAnalyzer{err: &formula.UpstreamError{Provider: formula.ProviderAnthropic, Err: errors.New("529 overloaded")}}
	h := newTestServer(t, analyzer, nil, Options{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartRequest(t, map[string]string{"category": "demi"}, pngHeader))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.NotContains(t, rr.Body.String(), "529")
}

func TestAnalyzeRejectsBadUploads(t *testing.T) {
	cases := []struct {
		name   string
		photo  []byte
		opts   Options
		status int
	}{
		{name: "missing photo", photo: nil, status: http.StatusBadRequest},
		{name: "empty photo", photo: []byte{}, status: http.StatusUnsupportedMediaType},
		{name: "not an image", photo: []byte("just some plain text, not a photo"), status: http.StatusUnsupportedMediaType},
		{name: "too large", photo: append(append([]byte{}, pngHeader...), make([]byte, 512)...), opts: Options{MaxUploadBytes: 64}, status: http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			analyzer := &stubAnalyzer{}
			h := newTestServer(t, analyzer, nil, tc.opts)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, multipartRequest(t, map[string]string{"category": "demi"}, tc.photo))
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.Zero(t, analyzer.calls)
		})
	}
}

func TestAnalyzeRejectsNonMultipart(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{}, nil, Options{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/analyze", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestAnalyzeRateLimited(t *testing.T) {
	analyzer := &stubAnalyzer{result: formula.AnalysisResult{Scenarios: []formula.Scenario{}}}
	h := newTestServer(t, analyzer, nil, Options{RateLimit: "1-M"})

	first := httptest.NewRecorder()
	h.ServeHTTP(first, multipartRequest(t, nil, pngHeader))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, multipartRequest(t, nil, pngHeader))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, 1, analyzer.calls)
}

func TestNewServerRejectsBadRateLimit(t *testing.T) {
	_, err := NewServer(testRegistry(t), &stubAnalyzer{}, nil, Options{RateLimit: "lots"})
	assert.Error(t, err)
}

func TestBrandsListing(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{}, nil, Options{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/brands?category=semi", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Categories []struct {
			Category string `json:"category"`
			Default  string `json:"default"`
			Brands   []struct {
				Name string `json:"name"`
			} `json:"brands"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Categories, 1)
	assert.Equal(t, "semi", body.Categories[0].Category)
	assert.NotEmpty(t, body.Categories[0].Default)
	names := make([]string, 0, len(body.Categories[0].Brands))
	for _, b := range body.Categories[0].Brands {
		names = append(names, b.Name)
	}
	assert.Contains(t, names, "Pravana ChromaSilk Vivids")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/brands", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Categories, len(brands.Categories))
}

func TestFormulaCardPDF(t *testing.T) {
	renderer := &stubRenderer{}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newTestServer(t, &stubAnalyzer{}, renderer, Options{Now: func() time.Time { return fixed }})

	card := `{"brand":"Redken Shades EQ","category":"demi","result":{"analysis":"Level 7","scenarios":[{"title":"Primary","ends":{"formula":"07NB (1:1) with Shades EQ Processing Solution"},"processing":[]}]}}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/formula-card", strings.NewReader(card)))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "formula-card-Redken-Shades-EQ.pdf")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")))
	assert.Equal(t, fixed, renderer.card.CreatedAt)
}

func TestFormulaCardErrors(t *testing.T) {
	valid := `{"brand":"Redken Shades EQ","result":{"scenarios":[{"title":"Primary","ends":{"formula":"07NB"}}]}}`

	noRenderer := newTestServer(t, &stubAnalyzer{}, nil, Options{})
	rr := httptest.NewRecorder()
	noRenderer.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/formula-card", strings.NewReader(valid)))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	h := newTestServer(t, &stubAnalyzer{}, &stubRenderer{}, Options{})
	for _, body := range []string{"not json", `{"brand":"","result":{"scenarios":[{}]}}`, `{"brand":"x","result":{"scenarios":[]}}`} {
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/formula-card", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}

	failing := newTestServer(t, &stubAnalyzer{}, &stubRenderer{err: errors.New("chrome missing")}, Options{})
	rr = httptest.NewRecorder()
	failing.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/formula-card", strings.NewReader(valid)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	h := newTestServer(t, &stubAnalyzer{}, nil, Options{Metrics: metrics})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/brands", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	count, err := testutil.GatherAndCount(metrics.Registry(), "hairhub_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "hairhub_http_requests_total")
}

func TestRequestIDIsEchoedWhenValid(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{}, nil, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "3f0c2b4e-8a57-4c1b-9a55-3f0b3c2e1d10")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "3f0c2b4e-8a57-4c1b-9a55-3f0b3c2e1d10", rr.Header().Get(requestIDHeader))

	req.Header.Set(requestIDHeader, "<script>")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotEqual(t, "<script>", rr.Header().Get(requestIDHeader))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "card", sanitizeFilename("  "))
	assert.Equal(t, "L-Oreal-Professionnel-Majirel", sanitizeFilename("L'Oreal Professionnel Majirel"))
}
