// Package demotarget serves a small, deliberately sloppy web site for
// pointing scans at during development and demos. Do not expose it beyond
// localhost.
package demotarget

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
)

// DemoTarget is the demo web site.
type DemoTarget struct {
	cfg   Config
	pages map[string]Page
}

// NewDemoTarget creates a demo target instance.
func NewDemoTarget(cfg Config) *DemoTarget {
	pageMap := make(map[string]Page)
	for _, p := range AllPages() {
		pageMap[p.Path] = p
	}
	return &DemoTarget{cfg: cfg, pages: pageMap}
}

// Handler builds the site's http.Handler.
func (s *DemoTarget) Handler() http.Handler {
	mux := http.NewServeMux()

	for path := range s.pages {
		p := path // capture for closure
		mux.HandleFunc(p, s.pageHandler(p))
	}

	mux.HandleFunc("/products/item", s.productHandler)
	mux.HandleFunc("/search", s.searchHandler)
	mux.HandleFunc("/login", s.loginHandler)
	mux.HandleFunc("/admin", s.adminHandler)
	mux.HandleFunc("/contact", s.contactHandler)
	mux.HandleFunc("/api/products", s.apiHandler)
	mux.HandleFunc("/static/app.js", s.staticHandler)

	return mux
}

// Start runs the demo target until the listener fails.
func (s *DemoTarget) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Demo target on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *DemoTarget) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := s.pages[path]
		for k, v := range page.Headers {
			w.Header().Set(k, v)
		}
		for _, c := range page.Cookies {
			http.SetCookie(w, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     c.Path,
				HttpOnly: c.HttpOnly,
				Secure:   c.Secure,
			})
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page.HTML)
	}
}

func (s *DemoTarget) productHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil || id < 1 || id > 3 {
		http.Error(w, "no such product", http.StatusNotFound)
		return
	}
	names := map[int]string{1: "Widget", 2: "Sprocket", 3: "Gizmo"}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html><html><body><h1>%s</h1><a href="/products">Back</a></body></html>`,
		template.HTMLEscapeString(names[id]))
}

// searchHandler reflects the query parameter without escaping. That is the
// point: it gives scanners a reflected XSS to find.
func (s *DemoTarget) searchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html><body>
<h1>Search</h1>
<form action="/search" method="get"><input type="text" name="q" value=""><button>Go</button></form>
<p>Results for: %s</p>
<a href="/">Home</a>
</body></html>`, q)
}

func (s *DemoTarget) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		// Any credentials work.
		http.SetCookie(w, &http.Cookie{
			Name:  "session",
			Value: "demo-session-token",
			Path:  "/",
		})
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html><body>
<h1>Login</h1>
<form action="/login" method="post">
<input type="text" name="username">
<input type="password" name="password">
<button type="submit">Sign in</button>
</form>
</body></html>`)
}

func (s *DemoTarget) adminHandler(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("session"); err != nil || c.Value == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html><body>
<h1>Admin</h1>
<p>Welcome back.</p>
<a href="/api/products">Product API</a>
</body></html>`)
}

func (s *DemoTarget) contactHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/about", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html><html><body><p>Thanks, we got your message.</p></body></html>`)
}

func (s *DemoTarget) apiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `[{"id":1,"name":"Widget"},{"id":2,"name":"Sprocket"},{"id":3,"name":"Gizmo"}]`)
}

func (s *DemoTarget) staticHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	fmt.Fprint(w, `document.addEventListener("DOMContentLoaded",function(){fetch("/api/products");});`)
}
