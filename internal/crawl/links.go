package crawl

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// 选择器只编译一次；所有页面共享。
var (
	selPageLinks  = cascadia.MustCompile("a[href]")
	selStylesheet = cascadia.MustCompile(`link[rel~="stylesheet"][href]`)
	selScripts    = cascadia.MustCompile("script[src]")
	selImages     = cascadia.MustCompile("img[src]")
)

// discovered 是从一个 HTML 页面发现的同源引用（已解析为绝对 URL、按文档顺序去重）。
type discovered struct {
	Pages  []string
	Assets []string
}

// discover 从 HTML 中收集：
// - a[href]：继续遍历的页面
// - link[rel=stylesheet][href] / script[src] / img[src]：候选静态资源
//
// 所有引用都相对 pageURL 解析，只保留与 baseHost 同源的 URL。
// HTML 无法解析时返回空结果（不中止爬取）。
func discover(pageURL *url.URL, body []byte, baseHost string) (discovered, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return discovered{}, err
	}
	doc := goquery.NewDocumentFromNode(root)

	var out discovered
	out.Pages = collect(doc, pageURL, baseHost, "href", selPageLinks)
	assets := collect(doc, pageURL, baseHost, "href", selStylesheet)
	assets = append(assets, collect(doc, pageURL, baseHost, "src", selScripts, selImages)...)
	out.Assets = dedupe(assets)
	return out, nil
}

func collect(doc *goquery.Document, pageURL *url.URL, baseHost, attr string, sels ...cascadia.Selector) []string {
	var out []string
	for _, sel := range sels {
		doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
			v, ok := s.Attr(attr)
			if !ok {
				return
			}
			if u, ok := resolveSameOrigin(pageURL, v, baseHost); ok {
				out = append(out, u)
			}
		})
	}
	return dedupe(out)
}

// resolveSameOrigin 把引用解析为绝对 URL（去掉 fragment），并校验 host 与 baseHost 一致。
// 空引用、无法解析的引用、非 http(s) 引用（mailto:/javascript:/data: 等）均被拒绝。
func resolveSameOrigin(pageURL *url.URL, ref, baseHost string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	abs := pageURL.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(abs.Host, baseHost) {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}

// normalizeURL 是 URL 的身份：绝对 URL，去掉 fragment。
func normalizeURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func dedupe(xs []string) []string {
	if len(xs) == 0 {
		return xs
	}
	seen := make(map[string]struct{}, len(xs))
	out := xs[:0]
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
