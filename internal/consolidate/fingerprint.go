package consolidate

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// Bucket sizes for the deduplication fingerprint. 0.05 degrees is roughly
// 5.5 km of latitude; six hours groups an evening's reporting wave. Two
// reports of one event can still land in neighboring buckets, which is
// fine: the fingerprint only scopes write serialization, correctness comes
// from the tier checks run under the lock.
const (
	coordBucketDegrees = 0.05
	timeBucketSeconds  = 6 * 60 * 60
)

// Fingerprint buckets an incident into a coarse identity used to serialize
// concurrent writers of the same real-world event.
func Fingerprint(lat, lon float64, occurred time.Time, country, assetType string) string {
	latB := int(math.Floor(lat / coordBucketDegrees))
	lonB := int(math.Floor(lon / coordBucketDegrees))
	timeB := occurred.UTC().Unix() / timeBucketSeconds
	return fmt.Sprintf("%d:%d:%d:%s:%s",
		latB, lonB, timeB, strings.ToUpper(country), strings.ToLower(assetType))
}

// LockKey maps a fingerprint into the signed 64-bit keyspace of Postgres
// advisory locks.
func LockKey(fingerprint string) int64 {
	sum := sha256.Sum256([]byte(fingerprint))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
