package process

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-mapper/pkg/parse"
)

// maxPrealloc caps the initial link slice; max_links_per_page may be arbitrarily large
const maxPrealloc = 64

// ExtractLinks returns the first limit crawlable links of doc in document order
// Every a[href] is resolved against base; only http(s) links whose host equals domain are kept.
// Duplicates on the same page are kept and count toward limit. A limit <= 0 yields no links.
// An empty href links the page to itself.
func ExtractLinks(doc *goquery.Document, base *url.URL, domain string, limit int, taskLog *logrus.Entry) []string {
	if doc == nil || base == nil || limit <= 0 {
		return nil
	}

	links := make([]string, 0, min(limit, maxPrealloc))
	doc.Find("a[href]").EachWithBreak(func(_ int, element *goquery.Selection) bool {
		href, _ := element.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			if parse.SameDomain(base, domain) {
				links = append(links, base.String())
			}
			return len(links) < limit
		}

		linkURL, err := base.Parse(href)
		if err != nil {
			if taskLog != nil {
				taskLog.Debugf("Skipping invalid link href '%s': %v", href, err)
			}
			return true
		}
		if !parse.SameDomain(linkURL, domain) {
			return true // Off-domain, or mailto:, tel:, javascript: etc
		}

		links = append(links, linkURL.String())
		return len(links) < limit
	})
	return links
}
