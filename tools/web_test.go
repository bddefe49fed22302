package tools

import (
	"net"
	"strings"
	"testing"
)

func TestValidateURLScheme(t *testing.T) {
	if err := validateURL("ftp://example.com/file"); err == nil {
		t.Error("expected ftp scheme to be rejected")
	}
	if err := validateURL("file:///etc/passwd"); err == nil {
		t.Error("expected file scheme to be rejected")
	}
}

func TestValidateURLLocalhost(t *testing.T) {
	for _, u := range []string{"http://localhost/admin", "http://foo.localhost:8080/"} {
		if err := validateURL(u); err == nil {
			t.Errorf("expected %s to be rejected", u)
		}
	}
}

func TestIsPrivateOrReservedIP(t *testing.T) {
	blocked := []string{"127.0.0.1", "10.0.0.5", "172.16.1.1", "192.168.1.1", "169.254.169.254", "0.0.0.0", "::1"}
	for _, s := range blocked {
		if !isPrivateOrReservedIP(net.ParseIP(s)) {
			t.Errorf("expected %s to be blocked", s)
		}
	}
	allowed := []string{"93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"}
	for _, s := range allowed {
		if isPrivateOrReservedIP(net.ParseIP(s)) {
			t.Errorf("expected %s to be allowed", s)
		}
	}
}

func TestExtractReadableText(t *testing.T) {
	html := `<html><head>
<title>Example Page</title>
<meta name="description" content="A test page">
<script>var x = "noise";</script>
<style>.a { color: red }</style>
</head><body>
<nav>menu items</nav>
<p>Main &amp; important content.</p>
<footer>copyright</footer>
</body></html>`

	out := extractReadableText(html)
	if !strings.Contains(out, "Title: Example Page") {
		t.Errorf("title missing: %q", out)
	}
	if !strings.Contains(out, "Description: A test page") {
		t.Errorf("description missing: %q", out)
	}
	if !strings.Contains(out, "Main & important content.") {
		t.Errorf("body content missing or entities not decoded: %q", out)
	}
	for _, noise := range []string{"noise", "color: red", "menu items", "copyright"} {
		if strings.Contains(out, noise) {
			t.Errorf("boilerplate leaked: %q in %q", noise, out)
		}
	}
}
