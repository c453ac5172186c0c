package extract

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-harvester/internal/catalog"
	"github.com/JakeFAU/catalog-harvester/internal/parse"
)

// Layout names every selector the extractor depends on. A markup change on
// the catalog site should only ever require an edit here.
type Layout struct {
	Lists        string
	ListCount    int
	Spans        string
	IdentityLink string
	InfoHash     string
	Title        string
	Description  string
	Images       string
	ImageAttr    string
	Trackers     string
	Files        string
	CommentCount string
	MoviePrefix  string
	SeriesPrefix string
	// SpanFields maps the position of each inline span, counted across the
	// second and third info lists, to the item field it populates.
	SpanFields []SpanField
}

// SpanField binds one span position to an item field.
type SpanField struct {
	Name string
	Read func(*goquery.Selection) string
	Set  func(item *catalog.Item, text string, now time.Time) error
}

// DefaultLayout matches the detail pages served by the catalog today.
func DefaultLayout() Layout {
	return Layout{
		Lists:        ".list",
		ListCount:    3,
		Spans:        "span",
		IdentityLink: ".torrent-detail-info h3>a",
		InfoHash:     ".infohash-box>p>span",
		Title:        "h1",
		Description:  ".torrent-tabs #description",
		Images:       "img",
		ImageAttr:    "data-original",
		Trackers:     ".torrent-tabs #tracker-list li",
		Files:        ".torrent-tabs #files li",
		CommentCount: `.torrent-tabs .tab-nav a[href="#comments"]>span`,
		MoviePrefix:  "/movie/",
		SeriesPrefix: "/series/",
		SpanFields: []SpanField{
			{Name: "category", Read: firstText, Set: setString(func(i *catalog.Item) *string { return &i.Category })},
			{Name: "type", Read: firstText, Set: setString(func(i *catalog.Item) *string { return &i.Type })},
			{Name: "language", Read: firstText, Set: setString(func(i *catalog.Item) *string { return &i.Language })},
			{Name: "total_size", Read: firstText, Set: setSize(func(i *catalog.Item) *uint64 { return &i.TotalSize })},
			{Name: "uploader", Read: firstNonBlankText, Set: setString(func(i *catalog.Item) *string { return &i.Uploader })},
			{Name: "download_count", Read: firstText, Set: setCount(func(i *catalog.Item) *uint64 { return &i.Downloads })},
			{Name: "last_checked_at", Read: firstText, Set: setTime(func(i *catalog.Item) *catalog.Timestamp { return &i.LastCheckedAt })},
			{Name: "uploaded_at", Read: firstText, Set: setTime(func(i *catalog.Item) *catalog.Timestamp { return &i.UploadedAt })},
			{Name: "seeder_count", Read: firstText, Set: setCount(func(i *catalog.Item) *uint64 { return &i.Seeders })},
			{Name: "leecher_count", Read: firstText, Set: setCount(func(i *catalog.Item) *uint64 { return &i.Leechers })},
		},
	}
}

func setString(field func(*catalog.Item) *string) func(*catalog.Item, string, time.Time) error {
	return func(item *catalog.Item, text string, _ time.Time) error {
		*field(item) = text
		return nil
	}
}

func setSize(field func(*catalog.Item) *uint64) func(*catalog.Item, string, time.Time) error {
	return func(item *catalog.Item, text string, _ time.Time) error {
		size, err := parse.Size(text)
		if err != nil {
			return err
		}
		*field(item) = size
		return nil
	}
}

func setCount(field func(*catalog.Item) *uint64) func(*catalog.Item, string, time.Time) error {
	return func(item *catalog.Item, text string, _ time.Time) error {
		n, err := parse.Count(text)
		if err != nil {
			return err
		}
		*field(item) = n
		return nil
	}
}

func setTime(field func(*catalog.Item) *catalog.Timestamp) func(*catalog.Item, string, time.Time) error {
	return func(item *catalog.Item, text string, now time.Time) error {
		t, err := parse.RelativeTime(now, text)
		if err != nil {
			return err
		}
		*field(item) = catalog.TimestampOf(t)
		return nil
	}
}

func (l Layout) validate() error {
	if l.ListCount < 3 {
		return fmt.Errorf("layout needs at least 3 info lists, got %d", l.ListCount)
	}
	if len(l.SpanFields) == 0 {
		return fmt.Errorf("layout has no span fields")
	}
	for i, f := range l.SpanFields {
		if f.Read == nil || f.Set == nil {
			return fmt.Errorf("span field %d (%s) is incomplete", i, f.Name)
		}
	}
	return nil
}
