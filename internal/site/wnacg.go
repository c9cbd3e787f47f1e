package site

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shaw465/wnacg-downloader/internal/util"
)

// DefaultHost is the primary mirror; the others carry identical markup.
const DefaultHost = "www.wnacg.com"

// Mirrors lists the hosts the site publishes under.
var Mirrors = []string{
	"www.wnacg.com",
	"www.wnacg.ru",
	"www.wn01.cfd",
	"www.wn01.shop",
	"www.wn07.ru",
}

// KnownMirror reports whether host is one of the published mirrors.
// Unknown hosts still work; this only gates a warning.
func KnownMirror(host string) bool {
	return slices.Contains(Mirrors, host)
}

var (
	reAlbumHref  = regexp.MustCompile(`(?i)photos-(?:index|slist|slide)-aid-(\d+)(?:\.html)?`)
	reUploadDate = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
)

// Wnacg implements Adapter against the wnacg mirror family.
type Wnacg struct {
	host string
}

func NewWnacg(host string) *Wnacg {
	if host == "" {
		host = DefaultHost
	}

	return &Wnacg{host: host}
}

func (w *Wnacg) Host() string { return w.host }

func (w *Wnacg) origin() string { return "https://" + w.host }

// ExtractAlbumID pulls the numeric album ID out of any album-ish href
// (index, slist, and slide pages all embed it the same way).
func (w *Wnacg) ExtractAlbumID(href string) (int64, bool) {
	if href == "" {
		return 0, false
	}

	m := reAlbumHref.FindStringSubmatch(href)
	if m == nil {
		return 0, false
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

// AlbumEntries collects album links in document order, first occurrence of
// each ID winning. Anchors without text are decoration (covers, paging).
func (w *Wnacg) AlbumEntries(doc *goquery.Document) []Entry {
	seen := make(map[int64]bool)
	var out []Entry

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		id, ok := w.ExtractAlbumID(href)
		if !ok || seen[id] {
			return
		}

		title := strings.TrimSpace(a.Text())
		if title == "" {
			return
		}

		seen[id] = true
		out = append(out, Entry{ID: id, Title: title})
	})

	return out
}

// NextPageURL finds the「後頁」link, falling back to any -page- style href.
// Returns "" when the listing has no further page.
func (w *Wnacg) NextPageURL(doc *goquery.Document, pageURL string) string {
	var next string

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())

		if strings.Contains(text, "後頁") || strings.Contains(href, "-page-") {
			next = href
			return false
		}

		return true
	})

	if next == "" {
		return ""
	}

	return w.resolveHref(pageURL, next)
}

func (w *Wnacg) AlbumURL(id int64) string {
	return fmt.Sprintf("%s/photos-index-aid-%d.html", w.origin(), id)
}

func (w *Wnacg) DownloadPageURL(id int64) string {
	return fmt.Sprintf("%s/download-index-aid-%d.html", w.origin(), id)
}

func (w *Wnacg) RankURL(scope Scope) string {
	return fmt.Sprintf("%s/albums-rank-type-%s.html", w.origin(), scope)
}

// ResolveDownload extracts the mirror's "Server 2" direct link (a.ads) from
// a download page and derives the archive filename from its n= parameter.
func (w *Wnacg) ResolveDownload(doc *goquery.Document, id int64) (string, string, bool) {
	rawHref, _ := doc.Find("a.ads").First().Attr("href")
	rawHref = strings.TrimSpace(rawHref)
	if rawHref == "" {
		return "", "", false
	}

	downloadURL := w.resolveDownloadHref(rawHref)
	if downloadURL == "" {
		return "", "", false
	}

	filename := fmt.Sprintf("album_%d.zip", id)
	if u, err := url.Parse(downloadURL); err == nil {
		if name := u.Query().Get("n"); name != "" {
			if !strings.HasSuffix(strings.ToLower(name), ".zip") {
				name += ".zip"
			}
			filename = name
		}
	}

	return downloadURL, util.SanitizeFilename(filename), true
}

// resolveDownloadHref normalises the scheme-relative and host-relative hrefs
// the download pages use.
func (w *Wnacg) resolveDownloadHref(href string) string {
	switch {
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return w.origin() + href
	}

	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return href
	}

	return w.resolveHref(w.origin()+"/", href)
}

func (w *Wnacg) resolveHref(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}

	b, err := url.Parse(base)
	if err != nil {
		return ""
	}

	return b.ResolveReference(u).String()
}

// ParseAlbumInfo reads the title and upload date off an album page. The
// date sits in the info cell after the 上傳於 label.
func (w *Wnacg) ParseAlbumInfo(doc *goquery.Document) AlbumInfo {
	info := AlbumInfo{}

	info.Title = strings.TrimSpace(doc.Find("h2").First().Text())
	if info.Title == "" {
		info.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	doc.Find(".uwconn, .asTBcell").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "上傳") {
			return true
		}
		if m := reUploadDate.FindStringSubmatch(text); m != nil {
			if t, err := time.Parse("2006-01-02", m[1]); err == nil {
				info.UploadedAt = &t
				return false
			}
		}
		return true
	})

	if info.UploadedAt == nil {
		if m := reUploadDate.FindStringSubmatch(doc.Text()); m != nil {
			if t, err := time.Parse("2006-01-02", m[1]); err == nil {
				info.UploadedAt = &t
			}
		}
	}

	return info
}
