package formstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"formstore/internal/utils"
)

// Cache key shapes. Every key a manager writes is built here; nothing else in
// the package concatenates key strings.
//
//	record:{id}              one serialized record
//	meta:{owner_id}          the owner's full meta map
//	query:{generation}:{hash} an id-list query result
//	last_changed             the group's current generation token
const lastChangedKey = "last_changed"

func recordKey(id int64) string {
	return fmt.Sprintf("record:%d", id)
}

func metaKey(ownerID int64) string {
	return fmt.Sprintf("meta:%d", ownerID)
}

// queryKey embeds the generation token so a single token refresh orphans every
// previously cached query in the group. Orphaned entries are never deleted;
// they age out through the TTL.
func queryKey(generation, hash string) string {
	return fmt.Sprintf("query:%s:%s", generation, hash)
}

// hashCriteria digests compiled criteria into a stable hex string. Condition
// values are normalized first so equivalent queries share a hash regardless of
// the caller's integer widths or map ordering.
func hashCriteria(c Criteria) (string, error) {
	canonical := c
	canonical.Where = make([]Condition, len(c.Where))
	for i, cond := range c.Where {
		values := make([]any, len(cond.Values))
		for j, v := range cond.Values {
			values[j] = utils.NormalizeValue(v)
		}
		canonical.Where[i] = Condition{Column: cond.Column, Values: values}
	}
	payload, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("formstore: hashing query criteria: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

var generationSeq atomic.Uint64

// newGenerationToken returns a token unique within the process even when the
// clock is coarse.
func newGenerationToken() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(generationSeq.Add(1), 36)
}
