package cache

import "strings"

// Key layout shared by every instance of the service.
const (
	videoKeyPrefix = "video:"
	ownerKeyPrefix = "videos:owner:"
	titleKeyPrefix = "videos:title:"
	queryKeyPrefix = "videos:query:"

	// VideoListKey caches the full catalog listing.
	VideoListKey = "videos"

	// LookupRegistryKey is the set of every cached title and search key, which
	// are unbounded and can only be invalidated by enumeration.
	LookupRegistryKey = "videos:lookup-keys"
)

// VideoKey is the per-entity key.
func VideoKey(id string) string {
	return videoKeyPrefix + id
}

// OwnerKey caches the videos of one owner.
func OwnerKey(ownerID string) string {
	return ownerKeyPrefix + ownerID
}

// TitleKey caches an exact, case-insensitive title lookup.
func TitleKey(title string) string {
	return titleKeyPrefix + normalize(title)
}

// QueryKey caches a free-text search result.
func QueryKey(query string) string {
	return queryKeyPrefix + normalize(query)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
