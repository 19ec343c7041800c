// Package web fetches articles from the handful of news sites the knowledge
// base knows how to read. Extraction is site-specific: each supported site
// names the CSS selector of its article body.
package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type siteRule struct {
	hostSuffix string
	selector   string
}

// Supported sites and where their article bodies live. Adding a site means
// adding a rule; anything else is rejected as unsupported.
var siteRules = []siteRule{
	{hostSuffix: "theblockbeats.info", selector: "div.article-content"},
	{hostSuffix: "odaily.news", selector: "._3739r7Mk"},
	{hostSuffix: "foresightnews.pro", selector: ".ql-editor"},
}

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

type Loader struct {
	client *http.Client
	rules  []siteRule
	log    *slog.Logger
}

func New(timeout time.Duration, logger *slog.Logger) *Loader {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{client: &http.Client{Timeout: timeout}, rules: siteRules, log: logger}
}

// Load fetches the page and extracts the article text: paragraph and h2
// texts of the site's article container, joined by newlines. Unsupported
// sites and empty extractions are errors so the caller can count the item
// as a loader failure.
func (l *Loader) Load(rawURL string) (string, error) {
	rule, err := l.ruleFor(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}

	var parts []string
	doc.Find(rule.selector).Find("p, h2").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		// Some articles are a single block of text with no p/h2 structure.
		if text := strings.TrimSpace(doc.Find(rule.selector).Text()); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no article content at %s", rawURL)
	}

	content := strings.Join(parts, "\n")
	l.log.Info("article extracted", "url", rawURL, "chars", len(content))
	return content, nil
}

func (l *Loader) ruleFor(rawURL string) (siteRule, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return siteRule{}, fmt.Errorf("parse url %s: %w", rawURL, err)
	}
	host := u.Hostname()
	for _, r := range l.rules {
		if host == r.hostSuffix || strings.HasSuffix(host, "."+r.hostSuffix) {
			return r, nil
		}
	}
	return siteRule{}, fmt.Errorf("unsupported site: %s", host)
}
