package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sundayezeilo/shorttag/internal/errx"
	"github.com/sundayezeilo/shorttag/internal/tagcheck"
)

/*** Mocks ***/

type mockService struct {
	shortenFunc func(ctx context.Context, url, customTag string) (Result, error)
	resolveFunc func(ctx context.Context, tag, clientAddr string) (string, error)
}

func (m *mockService) Shorten(ctx context.Context, url, customTag string) (Result, error) {
	if m.shortenFunc != nil {
		return m.shortenFunc(ctx, url, customTag)
	}
	return Result{Tag: "abc12", URL: url, ShortURL: "https://sho.rt/abc12"}, nil
}

func (m *mockService) Resolve(ctx context.Context, tag, clientAddr string) (string, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, tag, clientAddr)
	}
	return "https://example.com", nil
}

func newTestHandler(svc Service, trustProxy bool) http.Handler {
	h := NewHandler(HandlerConfig{Service: svc, TrustProxy: trustProxy})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /shorten", h.Shorten)
	mux.HandleFunc("GET /{tag}", h.Resolve)
	return mux
}

func postForm(t *testing.T, h http.Handler, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/shorten", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_Index(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestHandler(&mockService{}, false).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), `action="/shorten"`) {
		t.Error("form missing from index page")
	}
}

func TestHandler_ShortenForm(t *testing.T) {
	t.Run("success shows short url", func(t *testing.T) {
		var gotURL, gotTag string
		svc := &mockService{shortenFunc: func(ctx context.Context, url, customTag string) (Result, error) {
			gotURL, gotTag = url, customTag
			return Result{Tag: "docs", URL: url, ShortURL: "https://sho.rt/docs"}, nil
		}}

		rr := postForm(t, newTestHandler(svc, false), url.Values{
			"url":       {"https://example.com/docs"},
			"customTag": {"docs"},
		})

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rr.Code)
		}
		if gotURL != "https://example.com/docs" || gotTag != "docs" {
			t.Errorf("service got url=%q tag=%q", gotURL, gotTag)
		}
		body := rr.Body.String()
		if !strings.Contains(body, `value="https://sho.rt/docs"`) || !strings.Contains(body, `id="copyButton"`) {
			t.Errorf("short url not rendered: %s", body)
		}
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantText   string
	}{
		{
			name:       "invalid url",
			err:        errx.E("op", errx.Invalid, ErrInvalidURL),
			wantStatus: http.StatusOK,
			wantText:   "Sorry, you need to provide a valid URL.",
		},
		{
			name:       "blacklisted tag",
			err:        errx.E("op", errx.Invalid, tagcheck.RejectedBlacklisted.Err()),
			wantStatus: http.StatusOK,
			wantText:   "Sorry, no blacklisted words are allowed in custom tags.",
		},
		{
			name:       "non-ascii tag",
			err:        errx.E("op", errx.Invalid, tagcheck.RejectedNonASCII.Err()),
			wantStatus: http.StatusOK,
			wantText:   "Sorry, no special characters are allowed in custom tags.",
		},
		{
			name:       "collision",
			err:        errx.E("op", errx.Conflict, ErrTagExists),
			wantStatus: http.StatusOK,
			wantText:   "Short URL already exists.",
		},
		{
			name:       "directory down",
			err:        errx.E("op", errx.Unavailable, errors.New("dial tcp: refused")),
			wantStatus: http.StatusServiceUnavailable,
			wantText:   "Sorry, something went wrong. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{shortenFunc: func(ctx context.Context, url, customTag string) (Result, error) {
				return Result{}, tt.err
			}}

			rr := postForm(t, newTestHandler(svc, false), url.Values{"url": {"x"}, "customTag": {"y"}})

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.wantText) {
				t.Errorf("body does not contain %q", tt.wantText)
			}
			if strings.Contains(rr.Body.String(), "refused") {
				t.Error("internal error detail leaked to the page")
			}
		})
	}
}

func TestHandler_ShortenForm_EscapesInput(t *testing.T) {
	svc := &mockService{shortenFunc: func(ctx context.Context, url, customTag string) (Result, error) {
		return Result{}, errx.E("op", errx.Invalid, ErrInvalidURL)
	}}

	rr := postForm(t, newTestHandler(svc, false), url.Values{"url": {`"><script>alert(1)</script>`}})

	if strings.Contains(rr.Body.String(), "<script>alert(1)</script>") {
		t.Error("user input rendered unescaped")
	}
}

func TestHandler_ShortenJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "created", body: `{"url":"https://example.com","customTag":"docs"}`, wantStatus: http.StatusCreated},
		{name: "malformed body", body: `{"url":`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{
			name:       "invalid url",
			body:       `{"url":"nope"}`,
			err:        errx.E("op", errx.Invalid, ErrInvalidURL),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		{
			name:       "collision",
			body:       `{"url":"https://example.com","customTag":"docs"}`,
			err:        errx.E("op", errx.Conflict, ErrTagExists),
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
		},
		{
			name:       "unavailable",
			body:       `{"url":"https://example.com"}`,
			err:        errx.E("op", errx.Unavailable, errors.New("down")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{shortenFunc: func(ctx context.Context, url, customTag string) (Result, error) {
				if tt.err != nil {
					return Result{}, tt.err
				}
				return Result{Tag: customTag, URL: url, ShortURL: "https://sho.rt/" + customTag}, nil
			}}

			req := httptest.NewRequest("POST", "/shorten", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			newTestHandler(svc, false).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}

			if tt.wantCode == "" {
				var resp ShortenResponse
				if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if resp.Tag != "docs" || resp.ShortURL != "https://sho.rt/docs" || resp.URL != "https://example.com" {
					t.Errorf("response = %+v", resp)
				}
				return
			}

			var resp struct {
				Error   string `json:"error"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
			if resp.Message == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestHandler_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "redirect", path: "/abc12", wantStatus: http.StatusFound},
		{
			name:       "bad tag",
			path:       "/a.b",
			err:        errx.E("op", errx.Invalid, ErrBadTag),
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid URL tag.",
		},
		{
			name:       "unknown tag",
			path:       "/nope",
			err:        errx.E("op", errx.NotFound, errors.New("missing")),
			wantStatus: http.StatusNotFound,
			wantBody:   "Short URL not found.",
		},
		{
			name:       "directory down",
			path:       "/abc12",
			err:        errx.E("op", errx.Unavailable, errors.New("down")),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   msgFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{resolveFunc: func(ctx context.Context, tag, clientAddr string) (string, error) {
				if tt.err != nil {
					return "", tt.err
				}
				return "https://example.com/target", nil
			}}

			rr := httptest.NewRecorder()
			newTestHandler(svc, false).ServeHTTP(rr, httptest.NewRequest("GET", tt.path, nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusFound {
				if loc := rr.Header().Get("Location"); loc != "https://example.com/target" {
					t.Errorf("Location = %q", loc)
				}
				return
			}
			if rr.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandler_Resolve_SchemelessURL(t *testing.T) {
	tests := []struct {
		name  string
		bound string
		want  string
	}{
		{name: "bare host and path", bound: "example.com/page", want: "http://example.com/page"},
		{name: "ipv4 with port", bound: "10.0.0.1:8080/x", want: "http://10.0.0.1:8080/x"},
		{name: "https kept", bound: "https://example.com/page", want: "https://example.com/page"},
		{name: "uppercase scheme kept", bound: "HTTP://example.com", want: "HTTP://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{resolveFunc: func(ctx context.Context, tag, clientAddr string) (string, error) {
				return tt.bound, nil
			}}

			rr := httptest.NewRecorder()
			newTestHandler(svc, false).ServeHTTP(rr, httptest.NewRequest("GET", "/abc", nil))

			if rr.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302", rr.Code)
			}
			if loc := rr.Header().Get("Location"); loc != tt.want {
				t.Errorf("Location = %q, want %q", loc, tt.want)
			}
		})
	}
}

func TestHandler_Resolve_ClientAddress(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		want       string
	}{
		{name: "remote address", trustProxy: false, want: "192.0.2.10"},
		{name: "forwarded address behind proxy", trustProxy: true, want: "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTag, gotAddr string
			svc := &mockService{resolveFunc: func(ctx context.Context, tag, clientAddr string) (string, error) {
				gotTag, gotAddr = tag, clientAddr
				return "https://example.com", nil
			}}

			req := httptest.NewRequest("GET", "/abc12", nil)
			req.RemoteAddr = "192.0.2.10:51234"
			req.Header.Set("X-Forwarded-For", "198.51.100.7, 192.0.2.10")
			newTestHandler(svc, tt.trustProxy).ServeHTTP(httptest.NewRecorder(), req)

			if gotTag != "abc12" {
				t.Errorf("tag = %q, want abc12", gotTag)
			}
			if gotAddr != tt.want {
				t.Errorf("client address = %q, want %q", gotAddr, tt.want)
			}
		})
	}
}
