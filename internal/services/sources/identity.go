package sources

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/models"
)

// SyntheticURL builds a stable stand-in URL for items whose provider
// gave none. The hash covers the source URL, the title, and the
// publish time, so the same item fetched twice dedupes to one key.
func SyntheticURL(source *models.NewsSource, title string, published time.Time) string {
	shortTitle := title
	if len(shortTitle) > 200 {
		shortTitle = shortTitle[:200]
	}
	published = published.UTC()

	h := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s", source.URL, shortTitle, published.Format(time.RFC3339))))
	digest := hex.EncodeToString(h[:])[:20]

	slug := common.Slugify(source.Name, 60)
	if slug == "" {
		slug = "source"
	}

	return fmt.Sprintf("https://synthetic.local/%s/%s-%s", slug, published.Format("20060102150405"), digest)
}

// DedupeKey returns the identity used for raw item deduplication: the
// URL when present, otherwise a hash of title and publish time.
func DedupeKey(item NormalizedItem) string {
	if item.URL != "" {
		return item.URL
	}
	h := sha1.Sum([]byte(fmt.Sprintf("%s|%s", item.Title, item.PublishedAt.UTC().Format(time.RFC3339))))
	return hex.EncodeToString(h[:])
}
