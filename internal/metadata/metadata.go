// Package metadata fetches a web page and extracts the fields a link tile
// displays: title, description, preview image, site logo, author and date.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pinned/internal/api"
)

// MaxBody caps how much of a page is read (2 MiB).
const MaxBody int64 = 2 << 20

var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrPrivateURL = errors.New("URL targets a private or loopback address")
)

type Fetcher struct {
	Client *http.Client
	// AllowPrivate disables the private/loopback address guard.
	AllowPrivate bool
	UserAgent    string
}

func NewFetcher(timeout time.Duration, allowPrivate bool) *Fetcher {
	return &Fetcher{
		Client:       &http.Client{Timeout: timeout},
		AllowPrivate: allowPrivate,
		UserAgent:    "pinned-metadata/1.0",
	}
}

// Validate checks that rawURL is an absolute http(s) URL and, unless private
// targets are allowed, that its host does not resolve to a private address.
func (f *Fetcher) Validate(ctx context.Context, rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if f.AllowPrivate {
		return u, nil
	}

	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if isPrivate(ip) {
			return nil, ErrPrivateURL
		}
		return u, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		// unresolvable hosts fail at fetch time anyway
		return u, nil
	}
	for _, a := range addrs {
		if isPrivate(a.IP) {
			return nil, ErrPrivateURL
		}
	}
	return u, nil
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (api.Metadata, error) {
	u, err := f.Validate(ctx, rawURL)
	if err != nil {
		return api.Metadata{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return api.Metadata{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return api.Metadata{}, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return api.Metadata{}, fmt.Errorf("fetch %s: status %d", u.Host, resp.StatusCode)
	}

	// the final URL after redirects is the base for relative links
	final := resp.Request.URL
	return Parse(io.LimitReader(resp.Body, MaxBody), final)
}

func isPrivate(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

var textPolicy = bluemonday.StrictPolicy()

// Parse extracts metadata from an HTML document. base resolves relative
// image and logo URLs and is the fallback for the canonical URL.
func Parse(r io.Reader, base *url.URL) (api.Metadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return api.Metadata{}, err
	}

	p := page{meta: map[string]string{}, links: map[string]string{}}
	p.walk(doc)

	m := api.Metadata{
		Title:       p.first("og:title", "twitter:title"),
		Description: p.first("og:description", "twitter:description", "description"),
		Image:       p.first("og:image", "og:image:url", "og:image:secure_url", "twitter:image", "twitter:image:src"),
		Author:      p.first("author", "article:author", "twitter:creator", "dc.creator"),
		Date:        p.first("article:published_time", "og:published_time", "date", "dc.date", "pubdate"),
		URL:         p.first("og:url"),
	}
	if m.Title == "" {
		m.Title = p.title
	}
	if m.Date == "" {
		m.Date = p.timeDatetime
	}
	if m.URL == "" {
		m.URL = p.links["canonical"]
	}
	m.Logo = firstNonEmpty(p.links["apple-touch-icon"], p.links["icon"], p.links["shortcut icon"])

	m.Title = clean(m.Title)
	m.Description = clean(m.Description)
	m.Author = clean(m.Author)
	m.Date = clean(m.Date)

	if base != nil {
		m.Image = resolve(base, m.Image)
		m.URL = resolve(base, m.URL)
		if m.Logo == "" {
			m.Logo = (&url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/favicon.ico"}).String()
		} else {
			m.Logo = resolve(base, m.Logo)
		}
		if m.URL == "" {
			m.URL = base.String()
		}
	}
	return m, nil
}

type page struct {
	meta         map[string]string
	links        map[string]string
	title        string
	timeDatetime string
}

func (p *page) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return
		case atom.Meta:
			key := strings.ToLower(firstNonEmpty(attr(n, "property"), attr(n, "name"), attr(n, "itemprop")))
			if key != "" {
				if _, seen := p.meta[key]; !seen {
					p.meta[key] = strings.TrimSpace(attr(n, "content"))
				}
			}
		case atom.Link:
			rel := strings.ToLower(strings.TrimSpace(attr(n, "rel")))
			if rel != "" {
				if _, seen := p.links[rel]; !seen {
					p.links[rel] = strings.TrimSpace(attr(n, "href"))
				}
			}
		case atom.Title:
			if p.title == "" {
				p.title = text(n)
			}
		case atom.Time:
			if p.timeDatetime == "" {
				p.timeDatetime = strings.TrimSpace(attr(n, "datetime"))
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func (p *page) first(keys ...string) string {
	for _, k := range keys {
		if v := p.meta[k]; v != "" {
			return v
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// clean strips any markup smuggled into a meta value and collapses
// whitespace.
func clean(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
