package services

import "github.com/google/uuid"

// SourceEntry is one attributed source of a search answer.
type SourceEntry struct {
  ID             uuid.UUID `json:"id"`
  Title          string    `json:"title"`
  SourceType     string    `json:"source_type"`
  RelevanceScore float64   `json:"relevance_score"`
}

// DedupeSources collapses retrieved chunks to one entry per source. The
// highest chunk score wins; entries keep first-seen order and are never
// re-sorted, so the caller sees the index's own ranking.
func DedupeSources(chunks []RetrievedChunk) []SourceEntry {
  if len(chunks) == 0 {
    return []SourceEntry{}
  }

  entries := make([]SourceEntry, 0, len(chunks))
  byID := make(map[uuid.UUID]int, len(chunks))
  for _, chunk := range chunks {
    if idx, ok := byID[chunk.SourceID]; ok {
      if chunk.Score > entries[idx].RelevanceScore {
        entries[idx].RelevanceScore = chunk.Score
      }
      continue
    }
    byID[chunk.SourceID] = len(entries)
    entries = append(entries, SourceEntry{
      ID:             chunk.SourceID,
      SourceType:     chunk.SourceType,
      RelevanceScore: chunk.Score,
    })
  }
  return entries
}
