package handlers

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zhortlabs/zhort/internal/access"
	"github.com/zhortlabs/zhort/internal/masking"
	"github.com/zhortlabs/zhort/internal/ratelimit"
	"github.com/zhortlabs/zhort/internal/resolver"
)

type RedirectHandler struct {
	Pipeline *resolver.Pipeline
}

func (h *RedirectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/")
	if code == "" || strings.Contains(code, "/") {
		http.NotFound(w, r)
		return
	}

	res, err := h.Pipeline.Resolve(r.Context(), code, resolver.Request{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
		Password:  r.URL.Query().Get("password"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	switch res.Presentation.Mode {
	case masking.ModeFrame:
		renderFrame(w, res.Presentation)
	case masking.ModeSplash:
		renderSplash(w, res.Presentation)
	default:
		http.Redirect(w, r, res.TargetURL, http.StatusFound)
	}
}

func (h *RedirectHandler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, resolver.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, resolver.ErrExpired) {
		http.Error(w, "this link is no longer active", http.StatusGone)
		return
	}

	var denied *resolver.DeniedError
	if errors.As(err, &denied) {
		switch denied.Decision.Reason {
		case access.ReasonGone, access.ReasonExpired:
			http.Error(w, "this link is no longer active", http.StatusGone)
		case access.ReasonPasswordRequired:
			http.Error(w, "password required", http.StatusUnauthorized)
		case access.ReasonInvalidPassword:
			http.Error(w, "invalid password", http.StatusUnauthorized)
		case access.ReasonRateLimited:
			setRateLimitHeaders(w, denied.Decision.RateLimit)
			http.Error(w, "too many attempts", http.StatusTooManyRequests)
		case access.ReasonQuotaExceeded, access.ReasonIPNotAllowed:
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			http.Error(w, "forbidden", http.StatusForbidden)
		}
		return
	}

	http.Error(w, "internal error", http.StatusInternalServerError)
}

func setRateLimitHeaders(w http.ResponseWriter, rl *ratelimit.Result) {
	if rl == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	w.Header().Set("X-RateLimit-Reset", rl.ResetAt.UTC().Format(time.RFC3339))
}

// clientIP relies on chi's RealIP middleware having already rewritten
// RemoteAddr from X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
