package arraycache

import "strconv"

// FeatureKey returns the cache key for a feature column.
// A downsample of zero or less names the full-resolution column.
func FeatureKey(name string, downsample int) string {
	if downsample > 0 {
		return "feature:" + name + "/downsample/" + strconv.Itoa(downsample)
	}
	return "feature:" + name
}

// SubsetKey returns the cache key for the rows of a feature selected by a named subset.
func SubsetKey(name, subset string, downsample int) string {
	return FeatureKey(name, downsample) + "/subset/" + subset
}
