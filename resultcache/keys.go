package resultcache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/goliatone/go-record-query/cache"
	"github.com/goliatone/go-record-query/query"
)

var defaultSerializer = cache.NewDefaultKeySerializer()

// Key composes the cache key for a cached query on entityType. An empty
// discriminator yields the entity type alone, the natural key for a single
// cached query per entity. Entity types are used as given: "OrderItem" and
// "Order_Item" are different namespaces.
func Key(entityType, discriminator string) string {
	if discriminator == "" {
		return entityType
	}
	return defaultSerializer.SerializeKey(entityType, discriminator)
}

// FingerprintKey derives a key from the rendered text and bound parameters of
// b. Builders that render the same text with equal parameters share a key.
// A nil serializer uses the default one.
func FingerprintKey(b *query.Builder, serializer cache.KeySerializer) (string, error) {
	text, err := b.Render()
	if err != nil {
		return "", err
	}
	if serializer == nil {
		serializer = defaultSerializer
	}

	digest := xxhash.New()
	_, _ = digest.WriteString(text)
	_, _ = digest.WriteString(cache.KeySeparator)
	_, _ = digest.WriteString(serializer.SerializeKey("bindings", b.Bindings()))

	return Key(b.EntityType(), "q"+strconv.FormatUint(digest.Sum64(), 16)), nil
}
