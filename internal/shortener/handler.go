package shortener

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sundayezeilo/shorttag/internal/errx"
	"github.com/sundayezeilo/shorttag/internal/httpx"
	"github.com/sundayezeilo/shorttag/internal/tagcheck"
)

//go:embed web/index.html.tmpl
var webFS embed.FS

var indexPage = template.Must(template.ParseFS(webFS, "web/index.html.tmpl"))

// ShortenRequest is the JSON body accepted by POST /shorten.
type ShortenRequest struct {
	URL       string `json:"url"`
	CustomTag string `json:"customTag,omitempty"`
}

// ShortenResponse is the JSON answer to a successful shorten.
type ShortenResponse struct {
	Tag      string `json:"tag"`
	ShortURL string `json:"short_url"`
	URL      string `json:"url"`
}

// pageData feeds the index template.
type pageData struct {
	URL       string
	CustomTag string
	ShortURL  string
	Message   string
}

// Handler serves the shortening form, the JSON API and tag redirects.
type Handler struct {
	service    Service
	logger     *slog.Logger
	trustProxy bool
}

type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:    cfg.Service,
		logger:     logger,
		trustProxy: cfg.TrustProxy,
	}
}

// Index renders the empty shortening form.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(r.Context(), w, http.StatusOK, pageData{})
}

// Shorten handles POST /shorten. A JSON body gets a JSON answer; a form
// submission gets the form page back with the outcome.
func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	if httpx.IsJSON(r) {
		h.shortenJSON(w, r)
		return
	}
	h.shortenForm(w, r)
}

func (h *Handler) shortenForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", httpx.GetRequestID(ctx))

	if err := httpx.ParseForm(w, r); err != nil {
		logger.WarnContext(ctx, "failed to parse form", "error", err)
		h.render(ctx, w, http.StatusBadRequest, pageData{Message: msgInvalidURL})
		return
	}

	url := r.PostForm.Get("url")
	customTag := r.PostForm.Get("customTag")

	res, err := h.service.Shorten(ctx, url, customTag)
	if err != nil {
		h.logShortenError(ctx, logger, err)
		h.render(ctx, w, formStatus(err), pageData{
			URL:       url,
			CustomTag: customTag,
			Message:   Message(err),
		})
		return
	}

	logger.InfoContext(ctx, "tag bound", "tag", res.Tag, "custom_tag", customTag != "")
	h.render(ctx, w, http.StatusOK, pageData{ShortURL: res.ShortURL})
}

func (h *Handler) shortenJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", httpx.GetRequestID(ctx))

	req, err := httpx.DecodeJSON[ShortenRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	res, err := h.service.Shorten(ctx, req.URL, req.CustomTag)
	if err != nil {
		h.logShortenError(ctx, logger, err)
		kind := errx.KindOf(err)
		httpx.WriteError(w, httpx.ErrorKindToStatus(kind), httpx.ErrorKindToCode(kind), Message(err), nil)
		return
	}

	logger.InfoContext(ctx, "tag bound", "tag", res.Tag, "custom_tag", req.CustomTag != "")
	httpx.WriteJSON(w, http.StatusCreated, ShortenResponse{
		Tag:      res.Tag,
		ShortURL: res.ShortURL,
		URL:      res.URL,
	})
}

// Resolve handles GET /{tag} and redirects to the bound URL.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tag := r.PathValue("tag")

	url, err := h.service.Resolve(ctx, tag, httpx.ClientAddr(r, h.trustProxy))
	if err != nil {
		kind := errx.KindOf(err)
		attrs := []any{
			"request_id", httpx.GetRequestID(ctx),
			"tag", tag,
			"error", err.Error(),
			"error_kind", kind,
			"operation", errx.OpOf(err),
		}

		switch kind {
		case errx.Invalid, errx.NotFound:
			h.logger.DebugContext(ctx, "tag not resolved", attrs...)
		default:
			h.logger.ErrorContext(ctx, "failed to resolve tag", attrs...)
		}
		httpx.WriteText(w, httpx.ErrorKindToStatus(kind), Message(err))
		return
	}

	http.Redirect(w, r, redirectTarget(url), http.StatusFound)
}

// redirectTarget gives scheme-less bindings an http scheme so the redirect
// leaves this host instead of being read as a local path.
func redirectTarget(url string) string {
	if tagcheck.HasScheme(url) {
		return url
	}
	return "http://" + url
}

func (h *Handler) logShortenError(ctx context.Context, logger *slog.Logger, err error) {
	attrs := []any{
		"error", err.Error(),
		"error_kind", errx.KindOf(err),
		"operation", errx.OpOf(err),
	}
	switch errx.KindOf(err) {
	case errx.Invalid, errx.Conflict:
		logger.InfoContext(ctx, "shorten rejected", attrs...)
	default:
		logger.ErrorContext(ctx, "shorten failed", attrs...)
	}
}

// formStatus keeps rejections at 200 like a normal form round-trip and
// reports dependency failures with their real status.
func formStatus(err error) int {
	switch errx.KindOf(err) {
	case errx.Invalid, errx.Conflict:
		return http.StatusOK
	default:
		return httpx.ErrorKindToStatus(errx.KindOf(err))
	}
}

func (h *Handler) render(ctx context.Context, w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := indexPage.Execute(&buf, data); err != nil {
		h.logger.ErrorContext(ctx, "failed to render page", "error", err)
		httpx.WriteText(w, http.StatusInternalServerError, msgFailure)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
