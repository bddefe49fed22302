package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	fetchMaxChars = 10000
	fetchMaxBytes = 10 * 1024 * 1024
	webUserAgent  = "Mozilla/5.0 (compatible; TernBot/1.0)"
)

var webClient = &http.Client{Timeout: 15 * time.Second}

// isPrivateOrReservedIP reports whether an IP is loopback, link-local,
// private, unspecified, multicast, or the cloud metadata endpoint.
func isPrivateOrReservedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	return ip.Equal(net.ParseIP("169.254.169.254"))
}

// validateURL blocks non-HTTP schemes, localhost, and hosts resolving
// to private or reserved addresses.
func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}
	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("cannot resolve %s: %w", hostname, err)
	}
	for _, ip := range ips {
		if isPrivateOrReservedIP(ip) {
			return fmt.Errorf("%s resolves to a private or reserved address", hostname)
		}
	}
	return nil
}

// NewWebFetchTool returns the webFetch tool: fetch a page and reduce
// it to readable text.
func NewWebFetchTool() Tool {
	return Tool{
		Name:        "webFetch",
		Description: "Fetch a web page and return its readable text content.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "The http(s) URL to fetch.",
				},
			},
			"required": []interface{}{"url"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return "", err
			}
			if err := validateURL(params.URL); err != nil {
				return "", err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
			if err != nil {
				return "", fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("User-Agent", webUserAgent)

			resp, err := webClient.Do(req)
			if err != nil {
				return "", fmt.Errorf("fetch %s: %w", params.URL, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("fetch %s: HTTP %d", params.URL, resp.StatusCode)
			}
			contentType := resp.Header.Get("Content-Type")
			if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") && contentType != "" {
				return "", fmt.Errorf("unsupported content type: %s", contentType)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes))
			if err != nil {
				return "", fmt.Errorf("read body: %w", err)
			}

			content := extractReadableText(string(body))
			if len(content) > fetchMaxChars {
				content = content[:fetchMaxChars] + "..."
			}
			return content, nil
		},
	}
}

// NewWebSearchTool returns the webSearch tool backed by the DuckDuckGo
// Instant Answer API.
func NewWebSearchTool() Tool {
	return Tool{
		Name:        "webSearch",
		Description: "Search the web and return result titles, URLs and snippets.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query.",
				},
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results. Default 5.",
				},
			},
			"required": []interface{}{"query"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params struct {
				Query string `json:"query"`
				Count int    `json:"count"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return "", err
			}
			if params.Count <= 0 {
				params.Count = 5
			}

			endpoint := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1", url.QueryEscape(params.Query))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return "", fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("User-Agent", webUserAgent)

			resp, err := webClient.Do(req)
			if err != nil {
				return "", fmt.Errorf("search failed: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("search backend returned HTTP %d", resp.StatusCode)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", fmt.Errorf("read response: %w", err)
			}

			var ddg struct {
				AbstractText  string `json:"AbstractText"`
				AbstractURL   string `json:"AbstractURL"`
				Heading       string `json:"Heading"`
				RelatedTopics []struct {
					FirstURL string `json:"FirstURL"`
					Text     string `json:"Text"`
				} `json:"RelatedTopics"`
			}
			if err := json.Unmarshal(body, &ddg); err != nil {
				return "", fmt.Errorf("parse response: %w", err)
			}

			var sb strings.Builder
			count := 0
			if ddg.AbstractText != "" && ddg.AbstractURL != "" {
				fmt.Fprintf(&sb, "%s\n%s\n%s\n\n", ddg.Heading, ddg.AbstractURL, ddg.AbstractText)
				count++
			}
			for _, topic := range ddg.RelatedTopics {
				if count >= params.Count {
					break
				}
				if topic.FirstURL == "" || topic.Text == "" {
					continue
				}
				fmt.Fprintf(&sb, "%s\n%s\n\n", topic.Text, topic.FirstURL)
				count++
			}
			if count == 0 {
				return "no results for " + params.Query, nil
			}
			return strings.TrimSpace(sb.String()), nil
		},
	}
}

var (
	strippedTags = []string{"script", "style", "noscript", "iframe", "nav", "header", "footer", "aside"}
	titleRe      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	descRe       = regexp.MustCompile(`(?i)<meta[^>]*name=["']description["'][^>]*content=["']([^"']*)["']`)
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe      = regexp.MustCompile(`[ \t]+`)
	blankRe      = regexp.MustCompile(`\n{3,}`)
)

// extractReadableText strips boilerplate tags from HTML and returns a
// title, meta description and the remaining text.
func extractReadableText(html string) string {
	cleaned := html
	for _, tag := range strippedTags {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	var sb strings.Builder
	if m := titleRe.FindStringSubmatch(cleaned); len(m) > 1 {
		sb.WriteString("Title: ")
		sb.WriteString(cleanText(m[1]))
		sb.WriteString("\n\n")
	}
	if m := descRe.FindStringSubmatch(cleaned); len(m) > 1 {
		sb.WriteString("Description: ")
		sb.WriteString(cleanText(m[1]))
		sb.WriteString("\n\n")
	}

	text := tagRe.ReplaceAllString(cleaned, " ")
	sb.WriteString(cleanText(text))
	return strings.TrimSpace(sb.String())
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = spaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
