package qdrant

const (
	payloadTextKey       = "text"
	payloadOwnerIDKey    = "owner_id"
	payloadDocumentIDKey = "document_id"
	payloadChunkIndexKey = "chunk_index"
	payloadCreatedAtKey  = "created_at"
)

// SearchFilter narrows a nearest-neighbor search. OwnerID is mandatory — it is
// the sole access-control boundary at search time, since the index has no
// per-user namespacing. DocumentIDs, when non-empty, restricts matching points
// to that set via a single set-membership condition.
type SearchFilter struct {
	OwnerID     string
	DocumentIDs []string
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

func matchAnyCondition(key string, values []string) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"any": values,
		},
	}
}

func (f SearchFilter) asMap() map[string]any {
	must := []any{
		matchCondition(payloadOwnerIDKey, f.OwnerID),
	}
	if len(f.DocumentIDs) > 0 {
		must = append(must, matchAnyCondition(payloadDocumentIDKey, f.DocumentIDs))
	}
	return map[string]any{"must": must}
}

func documentFilter(ownerID, documentID string) map[string]any {
	return map[string]any{
		"must": []any{
			matchCondition(payloadOwnerIDKey, ownerID),
			matchCondition(payloadDocumentIDKey, documentID),
		},
	}
}

func documentOnlyFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []any{
			matchCondition(payloadDocumentIDKey, documentID),
		},
	}
}
