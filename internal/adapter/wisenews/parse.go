package wisenews

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"wisenews_scraper/internal/domain"
)

const (
	headingSelector = ".bluebold"
	contentSelector = ".content"
	sourceSelector  = "#content_source a"
	detailsSelector = "[id=content_details]"
)

var (
	// Control characters that spreadsheet and XML consumers reject.
	illegalChars = regexp.MustCompile(`[\x00-\x08\x0b-\x0c\x0e-\x1f]`)
	whitespace   = regexp.MustCompile(`\s+`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	pagePattern  = regexp.MustCompile(`^[A-Z]\d{2}$`)
)

// StripIllegal removes control characters that cannot be stored or exported.
func StripIllegal(s string) string {
	return illegalChars.ReplaceAllString(s, "")
}

// ParseArticles extracts every article from the portal's "view all" page.
// Only sections listed in sections are kept in the section metadata.
func ParseArticles(html string, sections []string) ([]domain.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse article page: %w", err)
	}

	headings := texts(doc.Find(headingSelector))
	contents := texts(doc.Find(contentSelector))
	sources := texts(doc.Find(sourceSelector))
	details := texts(doc.Find(detailsSelector))

	// details alternate between the page detail line and the document id line
	var pageDetails, documentIDs []string
	for i, d := range details {
		if i%2 == 0 {
			pageDetails = append(pageDetails, d)
			continue
		}
		documentIDs = append(documentIDs, documentID(d))
	}

	n := min(len(headings), len(contents), len(sources), len(pageDetails), len(documentIDs))

	known := make(map[string]struct{}, len(sections))
	for _, s := range sections {
		known[whitespace.ReplaceAllString(s, "")] = struct{}{}
	}

	articles := make([]domain.Article, 0, n)
	for i := range n {
		id := documentIDs[i]
		if id == "" {
			continue
		}
		articles = append(articles, domain.Article{
			DocumentID: id,
			Heading:    StripIllegal(headings[i]),
			Content:    StripIllegal(contents[i]),
			MetaData:   parsePageDetail(sources[i], pageDetails[i], known),
		})
	}
	return articles, nil
}

// parsePageDetail reads a line such as "明報 | 2020-07-20 | 港聞 | A03".
func parsePageDetail(source, detail string, sections map[string]struct{}) domain.MetaData {
	meta := domain.MetaData{Source: source}

	var matched []string
	for _, item := range strings.Split(whitespace.ReplaceAllString(detail, ""), "|") {
		switch {
		case item == "":
		case datePattern.MatchString(item):
			if t, err := time.ParseInLocation(time.DateOnly, item, domain.HongKong); err == nil {
				meta.PubDate = t
			}
		case pagePattern.MatchString(item):
			meta.Page = item
		default:
			if _, ok := sections[item]; ok {
				matched = append(matched, item)
			}
		}
	}
	meta.Section = strings.Join(matched, "/")
	return meta
}

// documentID returns the value after the last ": " in "Document ID: 123".
// Ids may themselves contain colons.
func documentID(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.LastIndex(line, ": "); i >= 0 {
		return strings.TrimSpace(line[i+2:])
	}
	// label without a value
	if strings.HasSuffix(line, ":") {
		return ""
	}
	return line
}

func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}
