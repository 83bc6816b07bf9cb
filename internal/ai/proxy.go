package ai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
)

// NewProxy forwards <prefix>/* to the upstream base URL and injects the
// credential. Callers never see or send the key; any Authorization or
// Cookie header they send is dropped.
func NewProxy(prefix, upstream, apiKey string, log logger.Logger) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", upstream)
	}
	prefix = strings.TrimRight(prefix, "/")

	if apiKey == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeProxyError(w, apperrors.NewSuggestionNotConfiguredError())
		}), nil
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, prefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Set("Authorization", "Bearer "+apiKey)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error("ai proxy request failed", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err,
			})
			writeProxyError(w, apperrors.NewExternalServiceError("ai-proxy", err))
		},
	}
	return rp, nil
}

func writeProxyError(w http.ResponseWriter, stdErr *apperrors.StandardError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatus(stdErr.Code))
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    stdErr.Code,
		"message": stdErr.Message,
	})
}
