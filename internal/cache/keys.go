package cache

import (
	"crypto/md5"
	"encoding/hex"
)

// Key prefixes. Entries written by older releases under LegacyStatusPrefix are
// never read but are removed by ClearAll.
const (
	StatusPrefix       = "kspb_status_v2_"
	LegacyStatusPrefix = "kspb_status_"
	TitlePrefix        = "kspb_title_"
)

// StatusKey derives the status cache key for url.
func StatusKey(url string) string {
	return StatusPrefix + digest(url)
}

// TitleKey derives the title cache key for url.
func TitleKey(url string) string {
	return TitlePrefix + digest(url)
}

func digest(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
