package insights

import (
	"crypto/md5"
	"encoding/hex"
)

// RecommendationID derives the stable identity for a (page URL, category)
// pair: an MD5 of "url_category" truncated to 12 hex characters with a
// "rec_" prefix. Identical inputs always produce identical IDs, which is
// what makes recommendations idempotent across runs.
func RecommendationID(pageURL, category string) string {
	sum := md5.Sum([]byte(pageURL + "_" + category))
	return "rec_" + hex.EncodeToString(sum[:])[:12]
}
