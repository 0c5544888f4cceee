package sources

import (
	"encoding/xml"
	"strings"
)

type rssItem struct {
	Title          string `xml:"title"`
	Description    string `xml:"description"`
	ContentEncoded string `xml:"encoded"` // content:encoded
	Link           string `xml:"link"`
	PubDate        string `xml:"pubDate"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Text string `xml:",chardata"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Updated   string     `xml:"updated"`
	Published string     `xml:"published"`
	Links     []atomLink `xml:"link"`
}

// feedDoc matches both RSS (<rss><channel><item>) and Atom
// (<feed><entry>) documents in one decode pass.
type feedDoc struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Items   []rssItem   `xml:"item"` // RDF feeds place items at the root
	Entries []atomEntry `xml:"entry"`
}

// ParseFeed parses an RSS or Atom document into normalized items.
// Malformed XML yields an empty slice rather than an error: a broken
// feed is treated the same as an empty one.
func ParseFeed(xmlText string) []NormalizedItem {
	var doc feedDoc
	decoder := xml.NewDecoder(strings.NewReader(xmlText))
	decoder.Strict = false
	if err := decoder.Decode(&doc); err != nil {
		return nil
	}

	var items []NormalizedItem

	rssItems := doc.Channel.Items
	rssItems = append(rssItems, doc.Items...)
	for _, item := range rssItems {
		title := strings.TrimSpace(item.Title)
		description := strings.TrimSpace(item.Description)
		content := strings.TrimSpace(item.ContentEncoded)
		if content == "" {
			content = description
		}
		if content == "" {
			content = title
		}
		items = append(items, NormalizedItem{
			Title:       title,
			Summary:     description,
			Content:     content,
			URL:         strings.TrimSpace(item.Link),
			PublishedAt: ParseProviderTime(strings.TrimSpace(item.PubDate)),
		})
	}

	for _, entry := range doc.Entries {
		title := strings.TrimSpace(entry.Title)
		summary := strings.TrimSpace(entry.Summary)
		content := strings.TrimSpace(entry.Content)
		if content == "" {
			content = summary
		}
		if content == "" {
			content = title
		}
		published := strings.TrimSpace(entry.Updated)
		if published == "" {
			published = strings.TrimSpace(entry.Published)
		}
		items = append(items, NormalizedItem{
			Title:       title,
			Summary:     summary,
			Content:     content,
			URL:         atomEntryURL(entry),
			PublishedAt: ParseProviderTime(published),
		})
	}

	return items
}

func atomEntryURL(entry atomEntry) string {
	for _, link := range entry.Links {
		if href := strings.TrimSpace(link.Href); href != "" {
			return href
		}
	}
	for _, link := range entry.Links {
		if text := strings.TrimSpace(link.Text); text != "" {
			return text
		}
	}
	return ""
}
