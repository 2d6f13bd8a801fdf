// Package quote forwards quote requests to the Sina quote service so a
// browser can read them cross-origin.
package quote

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultUpstream = "https://hq.sinajs.cn/list="

	sinaReferer        = "https://finance.sina.com.cn/"
	fallbackType       = "text/javascript; charset=GBK"
	cacheControl       = "public, max-age=0, s-maxage=5"
	defaultHTTPTimeout = 10 * time.Second
)

// Proxy is an http.Handler answering GET ?list=sh600519,sz000001 with the
// upstream body unchanged.
type Proxy struct {
	upstream string
	client   *http.Client
	logger   *zap.Logger
}

// NewProxy creates a proxy for upstream, a URL prefix the list is appended
// to. An empty upstream means DefaultUpstream.
func NewProxy(upstream string, logger *zap.Logger) *Proxy {
	if upstream == "" {
		upstream = DefaultUpstream
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{
		upstream: upstream,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		logger:   logger,
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list := r.URL.Query().Get("list")
	if list == "" {
		http.Error(w, "missing ?list=...", http.StatusBadRequest)
		return
	}

	if !validList(list) {
		http.Error(w, "invalid ?list=...", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, p.upstream+list, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Header.Set("Referer", sinaReferer)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("quote upstream failed", zap.String("list", list), zap.Error(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = fallbackType
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Cache-Control", cacheControl)
	h.Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Debug("quote response copy interrupted", zap.Error(err))
	}
}

// validList accepts Sina codes such as sh600519, gb_aapl, hf_CL or rt_hk00700,
// comma separated.
func validList(list string) bool {
	for _, c := range list {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_' || c == ',' || c == '.' || c == '-':
		default:
			return false
		}
	}
	return true
}
