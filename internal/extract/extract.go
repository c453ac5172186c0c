// Package extract turns a detail page, plus its comment feed, into a catalog
// record.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-harvester/internal/catalog"
	"github.com/JakeFAU/catalog-harvester/internal/crawler"
	"github.com/JakeFAU/catalog-harvester/internal/parse"
)

const (
	ellipsis      = "..."
	noDescription = "No description given."
)

// Soft failure kinds reported to the observer.
const (
	SoftIdentityLink = "identity_link"
	SoftFileEntry    = "file_entry"
	SoftCommentTime  = "comment_time"
	SoftCommentFeed  = "comment_feed"
)

// Config tunes the extractor.
type Config struct {
	// NotFoundMarkers are body substrings that identify a missing item.
	NotFoundMarkers []string
	// Layout overrides DefaultLayout when set.
	Layout *Layout
}

// Extractor converts detail pages into records.
type Extractor struct {
	layout   Layout
	markers  [][]byte
	feed     CommentFeed
	observer crawler.Observer
	logger   *zap.Logger
}

// New constructs an Extractor. feed may be nil, in which case comments are
// never requested.
func New(cfg Config, feed CommentFeed, observer crawler.Observer, logger *zap.Logger) (*Extractor, error) {
	layout := DefaultLayout()
	if cfg.Layout != nil {
		layout = *cfg.Layout
	}
	if err := layout.validate(); err != nil {
		return nil, err
	}
	markers := make([][]byte, 0, len(cfg.NotFoundMarkers))
	for _, m := range cfg.NotFoundMarkers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, []byte(m))
		}
	}
	if observer == nil {
		observer = crawler.NopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		layout:   layout,
		markers:  markers,
		feed:     feed,
		observer: observer,
		logger:   logger,
	}, nil
}

// Extract parses body as the detail page of id. now is the capture instant:
// it becomes scraped_at and anchors every relative time on the page.
func (e *Extractor) Extract(ctx context.Context, id uint64, body []byte, now time.Time) (catalog.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return catalog.Record{}, fmt.Errorf("%w: parse document: %v", crawler.ErrStructural, err)
	}
	log := e.logger.With(zap.Uint64("id", id))

	if e.NotFound(body) {
		return catalog.Tombstone(), nil
	}
	spans, err := e.spans(doc)
	if err != nil {
		return catalog.Record{}, err
	}

	item := catalog.Item{ScrapedAt: catalog.TimestampOf(now)}
	for i, field := range e.layout.SpanFields {
		text := field.Read(spans.Eq(i))
		if err := field.Set(&item, text, now); err != nil {
			return catalog.Record{}, fmt.Errorf("%w: %s: %v", crawler.ErrStructural, field.Name, err)
		}
	}

	item.ExternalMovieID, item.ExternalSeriesID = e.identity(doc, log)

	infoHash := doc.Find(e.layout.InfoHash).First()
	if infoHash.Length() == 0 {
		return catalog.Record{}, fmt.Errorf("%w: no content identifier", crawler.ErrStructural)
	}
	item.InfoHash = strings.TrimSpace(infoHash.Text())

	heading := doc.Find(e.layout.Title).First()
	if heading.Length() == 0 {
		return catalog.Record{}, fmt.Errorf("%w: no title", crawler.ErrStructural)
	}
	description := doc.Find(e.layout.Description).First()
	if description.Length() == 0 {
		return catalog.Record{}, fmt.Errorf("%w: no description", crawler.ErrStructural)
	}
	item.Name, item.Description = disambiguate(strings.TrimSpace(heading.Text()), lines(description))

	description.Find(e.layout.Images).Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr(e.layout.ImageAttr); ok {
			item.Images = append(item.Images, src)
		}
	})

	doc.Find(e.layout.Trackers).Each(func(_ int, li *goquery.Selection) {
		item.Trackers = append(item.Trackers, strings.TrimSpace(li.Text()))
	})

	doc.Find(e.layout.Files).Each(func(_ int, li *goquery.Selection) {
		text := strings.TrimSpace(li.Text())
		file, err := parse.FileEntry(text)
		if err != nil {
			e.soft(log, SoftFileEntry, "dropping malformed file entry", zap.String("entry", text))
			return
		}
		item.Files = append(item.Files, file)
	})

	comments, err := e.comments(ctx, id, doc, now, log)
	if err != nil {
		return catalog.Record{}, err
	}
	item.Comments = comments

	if err := item.Validate(); err != nil {
		return catalog.Record{}, err
	}
	return catalog.Found(item), nil
}

func (e *Extractor) spans(doc *goquery.Document) (*goquery.Selection, error) {
	lists := doc.Find(e.layout.Lists)
	if lists.Length() != e.layout.ListCount {
		return nil, fmt.Errorf("%w: expected %d info lists, found %d", crawler.ErrStructural, e.layout.ListCount, lists.Length())
	}
	spans := lists.Eq(1).Find(e.layout.Spans).AddSelection(lists.Eq(2).Find(e.layout.Spans))
	if spans.Length() != len(e.layout.SpanFields) {
		return nil, fmt.Errorf("%w: expected %d spans, found %d", crawler.ErrStructural, len(e.layout.SpanFields), spans.Length())
	}
	return spans, nil
}

// NotFound reports whether body carries one of the configured not-found
// markers. It holds for any response status.
func (e *Extractor) NotFound(body []byte) bool {
	for _, m := range e.markers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}

// identity decodes the external movie or series ID from the heading link.
// Any unexpected shape leaves both unset.
func (e *Extractor) identity(doc *goquery.Document, log *zap.Logger) (*uint64, *string) {
	href, ok := doc.Find(e.layout.IdentityLink).First().Attr("href")
	if !ok {
		return nil, nil
	}
	var segments []string
	for _, s := range strings.Split(href, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	switch {
	case strings.HasPrefix(href, e.layout.MoviePrefix) && len(segments) == 3:
		movieID, err := strconv.ParseUint(segments[1], 10, 64)
		if err != nil {
			e.soft(log, SoftIdentityLink, "unexpected movie link", zap.String("href", href), zap.Error(err))
			return nil, nil
		}
		return &movieID, nil
	case strings.HasPrefix(href, e.layout.SeriesPrefix) && len(segments) == 2:
		seriesID := segments[1]
		return nil, &seriesID
	default:
		e.soft(log, SoftIdentityLink, "unexpected identity link", zap.String("href", href))
		return nil, nil
	}
}

// disambiguate recovers the full title when the heading is truncated or
// repeated as the first line of the description.
func disambiguate(title string, descLines []string) (string, string) {
	if len(descLines) == 1 && descLines[0] == noDescription {
		descLines = nil
	}
	description := strings.Join(descLines, "\n")

	truncated := strings.HasSuffix(title, ellipsis)
	if truncated {
		title = strings.TrimSuffix(title, ellipsis)
	}
	if (truncated && strings.HasPrefix(description, title)) ||
		(!truncated && strings.HasPrefix(description, title+"\n")) {
		first, rest, _ := strings.Cut(description, "\n")
		return first, rest
	}
	return title, description
}

func (e *Extractor) comments(ctx context.Context, id uint64, doc *goquery.Document, now time.Time, log *zap.Logger) ([]catalog.Comment, error) {
	if e.feed == nil {
		return nil, nil
	}
	count, err := parse.Count(firstText(doc.Find(e.layout.CommentCount).First()))
	if err != nil || count == 0 {
		return nil, nil
	}

	raw, err := e.feed.Comments(ctx, id)
	if errors.Is(err, ErrFeedStatus) {
		e.soft(log, SoftCommentFeed, "comment feed unavailable", zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	comments := make([]catalog.Comment, 0, len(raw))
	for _, rc := range raw {
		posted, err := parse.RelativeTime(now, rc.Posted)
		if err != nil {
			e.soft(log, SoftCommentTime, "dropping comment with unparseable time",
				zap.Uint64("comment_id", rc.CommentID), zap.String("posted", rc.Posted))
			continue
		}
		comments = append(comments, catalog.Comment{
			Avatar:    rc.Avatar,
			Class:     orDeleted(rc.Class),
			Body:      rc.Comment,
			CommentID: rc.CommentID,
			PostedAt:  catalog.TimestampOf(posted),
			Username:  orDeleted(rc.Username),
		})
	}
	if len(comments) == 0 {
		log.Warn("comment badge is non-zero but no comments were recovered", zap.Uint64("badge", count))
		return nil, nil
	}
	return comments, nil
}

func orDeleted(s *string) string {
	if s == nil {
		return catalog.DeletedSentinel
	}
	return *s
}

func (e *Extractor) soft(log *zap.Logger, kind, msg string, fields ...zap.Field) {
	e.observer.ObserveSoftFailure(kind)
	log.Warn(msg, append(fields, zap.String("soft_failure", kind))...)
}
