package site

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Scope is a ranking time window on the host site.
type Scope string

const (
	ScopeDay   Scope = "day"
	ScopeWeek  Scope = "week"
	ScopeMonth Scope = "month"
)

// Entry is one album link discovered on a listing page.
type Entry struct {
	ID    int64
	Title string
}

// AlbumInfo is the metadata scraped from an album page.
type AlbumInfo struct {
	Title      string
	UploadedAt *time.Time
}

// Adapter isolates everything that depends on one site's markup so the
// crawling and scoring layers can run against synthetic documents.
type Adapter interface {
	Host() string

	ExtractAlbumID(href string) (int64, bool)
	AlbumEntries(doc *goquery.Document) []Entry
	NextPageURL(doc *goquery.Document, pageURL string) string

	AlbumURL(id int64) string
	DownloadPageURL(id int64) string
	RankURL(scope Scope) string

	ResolveDownload(doc *goquery.Document, id int64) (url, filename string, ok bool)
	ParseAlbumInfo(doc *goquery.Document) AlbumInfo
}
