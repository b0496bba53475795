package pprof

import (
	"net/http"
	hpprof "net/http/pprof"
	"strings"
)

func normalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = defaultPrefix
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func registerPprof(mux *http.ServeMux, prefix string, wrap func(http.HandlerFunc) http.HandlerFunc) {
	base := strings.TrimSuffix(prefix, "/")
	mux.HandleFunc(prefix, wrap(indexAt(prefix)))
	mux.HandleFunc(base+"/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc(base+"/profile", wrap(hpprof.Profile))
	mux.HandleFunc(base+"/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc(base+"/trace", wrap(hpprof.Trace))
	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, prefix, http.StatusPermanentRedirect)
	})
}

// indexAt serves hpprof.Index under prefix. Index only understands paths
// rooted at /debug/pprof/, so the request path is rewritten first.
func indexAt(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = defaultPrefix + strings.TrimPrefix(r.URL.Path, prefix)
		hpprof.Index(w, r2)
	}
}
