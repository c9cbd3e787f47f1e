package site

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return d
}

func TestExtractAlbumID(t *testing.T) {
	w := NewWnacg("")

	cases := []struct {
		href string
		want int64
		ok   bool
	}{
		{"/photos-index-aid-12345.html", 12345, true},
		{"https://www.wnacg.com/photos-index-aid-777.html", 777, true},
		{"/photos-slist-aid-42.html", 42, true},
		{"/photos-slide-aid-9.html", 9, true},
		{"/PHOTOS-INDEX-AID-5.HTML", 5, true},
		{"/photos-index-aid-31", 31, true},
		{"/albums-index-page-2.html", 0, false},
		{"/photos-index-aid-.html", 0, false},
		{"", 0, false},
	}

	for _, c := range cases {
		got, ok := w.ExtractAlbumID(c.href)
		if got != c.want || ok != c.ok {
			t.Errorf("ExtractAlbumID(%q) = (%d, %v), want (%d, %v)", c.href, got, ok, c.want, c.ok)
		}
	}
}

func TestAlbumEntriesDeduplicatesAndSkipsDecoration(t *testing.T) {
	w := NewWnacg("")

	d := doc(t, `<html><body>
		<a href="/photos-index-aid-1.html"><img src="cover.jpg"/></a>
		<a href="/photos-index-aid-1.html">First Album</a>
		<a href="/photos-index-aid-2.html">Second Album</a>
		<a href="/photos-index-aid-1.html">First Album Again</a>
		<a href="/about.html">About</a>
	</body></html>`)

	entries := w.AlbumEntries(d)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].ID != 1 || entries[0].Title != "First Album" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].ID != 2 || entries[1].Title != "Second Album" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestNextPageURL(t *testing.T) {
	w := NewWnacg("")

	d := doc(t, `<html><body>
		<a href="/photos-index-aid-3.html">Some Album</a>
		<a href="/albums-index-page-4.html">後頁</a>
	</body></html>`)

	got := w.NextPageURL(d, "https://www.wnacg.com/albums-index-page-3.html")
	want := "https://www.wnacg.com/albums-index-page-4.html"
	if got != want {
		t.Errorf("NextPageURL = %q, want %q", got, want)
	}

	last := doc(t, `<html><body><a href="/photos-index-aid-3.html">Some Album</a></body></html>`)
	if got := w.NextPageURL(last, "https://www.wnacg.com/albums.html"); got != "" {
		t.Errorf("last page NextPageURL = %q, want empty", got)
	}
}

func TestResolveDownload(t *testing.T) {
	w := NewWnacg("www.wnacg.com")

	cases := []struct {
		name         string
		html         string
		wantURL      string
		wantFilename string
		wantOK       bool
	}{
		{
			name:         "scheme relative with name param",
			html:         `<a class="ads" href="//dl.wnacg.com/dl?n=My%20Album&t=abc">Server 2</a>`,
			wantURL:      "https://dl.wnacg.com/dl?n=My%20Album&t=abc",
			wantFilename: "My Album.zip",
			wantOK:       true,
		},
		{
			name:         "host relative without name param",
			html:         `<a class="ads" href="/down.php?t=abc">Server 2</a>`,
			wantURL:      "https://www.wnacg.com/down.php?t=abc",
			wantFilename: "album_55.zip",
			wantOK:       true,
		},
		{
			name:         "absolute with zip name",
			html:         `<a class="ads" href="https://cdn.example/f?n=pack.zip">DL</a>`,
			wantURL:      "https://cdn.example/f?n=pack.zip",
			wantFilename: "pack.zip",
			wantOK:       true,
		},
		{
			name:   "no download link",
			html:   `<a href="/photos-index-aid-55.html">back</a>`,
			wantOK: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			url, filename, ok := w.ResolveDownload(doc(t, "<html><body>"+c.html+"</body></html>"), 55)
			if ok != c.wantOK {
				t.Fatalf("ok = %v, want %v", ok, c.wantOK)
			}
			if !ok {
				return
			}
			if url != c.wantURL {
				t.Errorf("url = %q, want %q", url, c.wantURL)
			}
			if filename != c.wantFilename {
				t.Errorf("filename = %q, want %q", filename, c.wantFilename)
			}
		})
	}
}

func TestParseAlbumInfo(t *testing.T) {
	w := NewWnacg("")

	d := doc(t, `<html><body>
		<h2>  (C99) My Great Album  </h2>
		<div class="uwconn"><label>上傳於 2024-03-15</label></div>
	</body></html>`)

	info := w.ParseAlbumInfo(d)
	if info.Title != "(C99) My Great Album" {
		t.Errorf("title = %q", info.Title)
	}
	if info.UploadedAt == nil {
		t.Fatal("uploadedAt is nil")
	}
	if got := info.UploadedAt.Format("2006-01-02"); got != "2024-03-15" {
		t.Errorf("uploadedAt = %s", got)
	}

	noDate := w.ParseAlbumInfo(doc(t, `<html><head><title>Fallback Title</title></head><body></body></html>`))
	if noDate.Title != "Fallback Title" {
		t.Errorf("fallback title = %q", noDate.Title)
	}
	if noDate.UploadedAt != nil {
		t.Errorf("uploadedAt = %v, want nil", noDate.UploadedAt)
	}
}

func TestFilterIDs(t *testing.T) {
	all := []int64{10, 20, 30, 40, 50}

	if got := FilterIDs(all, "", ""); len(got) != 5 {
		t.Errorf("no selector should keep everything, got %v", got)
	}

	got := FilterIDs(all, "2-4", "")
	if len(got) != 3 || got[0] != 20 || got[2] != 40 {
		t.Errorf("range 2-4 = %v", got)
	}

	got = FilterIDs(all, "", "1, 5, 99")
	if len(got) != 2 || got[0] != 10 || got[1] != 50 {
		t.Errorf("list 1,5,99 = %v", got)
	}

	if got := FilterIDs(all, "4-2", ""); got != nil {
		t.Errorf("inverted range = %v, want nil", got)
	}
	if got := FilterIDs(all, "junk", ""); got != nil {
		t.Errorf("malformed range = %v, want nil", got)
	}
}
