package services

import (
  "testing"

  "github.com/google/uuid"
)

func TestDedupeSourcesMaxScoreWinsFirstSeenOrder(t *testing.T) {
  a := uuid.New()
  b := uuid.New()
  chunks := []RetrievedChunk{
    {SourceID: a, SourceType: "capture", Score: 0.9},
    {SourceID: b, SourceType: "capture", Score: 0.4},
    {SourceID: a, SourceType: "capture", Score: 0.95},
  }

  sources := DedupeSources(chunks)
  if len(sources) != 2 {
    t.Fatalf("sources: want=2 got=%d", len(sources))
  }
  if sources[0].ID != a || sources[0].RelevanceScore != 0.95 {
    t.Fatalf("first source: want A@0.95 got=%+v", sources[0])
  }
  if sources[1].ID != b || sources[1].RelevanceScore != 0.4 {
    t.Fatalf("second source: want B@0.4 got=%+v", sources[1])
  }
}

func TestDedupeSourcesLowerLaterScoreIgnored(t *testing.T) {
  a := uuid.New()
  chunks := []RetrievedChunk{
    {SourceID: a, Score: 0.8},
    {SourceID: a, Score: 0.3},
  }
  sources := DedupeSources(chunks)
  if len(sources) != 1 || sources[0].RelevanceScore != 0.8 {
    t.Fatalf("sources: %+v", sources)
  }
}

func TestDedupeSourcesNeverResorts(t *testing.T) {
  low := uuid.New()
  high := uuid.New()
  chunks := []RetrievedChunk{
    {SourceID: low, Score: 0.1},
    {SourceID: high, Score: 0.99},
  }
  sources := DedupeSources(chunks)
  if sources[0].ID != low {
    t.Fatalf("first-seen order lost: %+v", sources)
  }
}

func TestDedupeSourcesEmpty(t *testing.T) {
  sources := DedupeSources(nil)
  if sources == nil || len(sources) != 0 {
    t.Fatalf("want empty non-nil slice, got=%v", sources)
  }
}
