package demotarget

// Page is one static page of the demo site with its response headers and
// cookies.
type Page struct {
	Path        string
	Description string
	HTML        string
	Headers     map[string]string
	Cookies     []CookieDef
}

// CookieDef defines a cookie to be set.
type CookieDef struct {
	Name     string
	Value    string
	Path     string
	HttpOnly bool
	Secure   bool
}

// AllPages returns the static page set. The site is intentionally link-rich
// so spiders have something to walk, and intentionally sloppy about security
// headers so scanners have something to flag.
func AllPages() []Page {
	return []Page{
		{
			Path:        "/",
			Description: "Landing page linking into the rest of the site",
			HTML: `<!DOCTYPE html>
<html>
<head><title>Acme Gadgets</title></head>
<body>
<h1>Acme Gadgets</h1>
<nav>
<a href="/products">Products</a>
<a href="/about">About</a>
<a href="/search">Search</a>
<a href="/login">Login</a>
</nav>
<script src="/static/app.js"></script>
</body>
</html>`,
			Headers: map[string]string{
				"X-Powered-By": "AcmeFramework/0.3.1",
			},
			Cookies: []CookieDef{
				{Name: "visitor", Value: "anon-1234", Path: "/"},
			},
		},
		{
			Path:        "/products",
			Description: "Product listing with parameterized detail links",
			HTML: `<!DOCTYPE html>
<html>
<head><title>Products</title></head>
<body>
<h1>Products</h1>
<ul>
<li><a href="/products/item?id=1">Widget</a></li>
<li><a href="/products/item?id=2">Sprocket</a></li>
<li><a href="/products/item?id=3">Gizmo</a></li>
</ul>
<a href="/">Home</a>
</body>
</html>`,
		},
		{
			Path:        "/about",
			Description: "Static page with an email harvesting target",
			HTML: `<!DOCTYPE html>
<html>
<head><title>About</title></head>
<body>
<h1>About Acme</h1>
<p>Contact us at <a href="mailto:support@acme.test">support@acme.test</a>.</p>
<form action="/contact" method="post">
<input type="text" name="name" placeholder="Your name">
<textarea name="message"></textarea>
<input type="hidden" name="csrf_token" value="static-token-do-not-ship">
<button type="submit">Send</button>
</form>
</body>
</html>`,
		},
	}
}
