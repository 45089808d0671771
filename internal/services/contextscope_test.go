package services

import (
  "context"
  "testing"
  "time"

  "github.com/google/uuid"
  "github.com/deepen-live/deepen-backend/internal/repos"
  "github.com/deepen-live/deepen-backend/internal/types"
)

func newCapture(owner uuid.UUID, opts func(*types.Capture)) *types.Capture {
  c := &types.Capture{
    ID:        uuid.New(),
    OwnerID:   owner,
    Status:    types.CaptureStatusActive,
    CreatedAt: time.Now(),
  }
  if opts != nil {
    opts(c)
  }
  return c
}

func TestResolveAllAppliesCap(t *testing.T) {
  owner := uuid.New()
  captureRepo := newFakeCaptureRepo()
  for i := 0; i < 5; i++ {
    captureRepo.add(newCapture(owner, nil))
  }
  svc := NewContextScopeService(newTestLogger(t), captureRepo, newFakeCollectionRepo())

  ids, err := svc.Resolve(context.Background(), owner, ContextAll, nil, ScopeFilters{})
  if err != nil {
    t.Fatalf("Resolve: %v", err)
  }
  if len(ids) != 5 {
    t.Fatalf("ids: want=5 got=%d", len(ids))
  }
  if len(captureRepo.getOwnedIDCalls) != 1 {
    t.Fatalf("repo calls: want=1 got=%d", len(captureRepo.getOwnedIDCalls))
  }
  if captureRepo.getOwnedIDCalls[0].Limit != MaxAllScope {
    t.Fatalf("all-scope cap: want=%d got=%d", MaxAllScope, captureRepo.getOwnedIDCalls[0].Limit)
  }
}

func TestResolveAllExcludesForeignAndDeleted(t *testing.T) {
  owner := uuid.New()
  other := uuid.New()
  captureRepo := newFakeCaptureRepo()
  mine := newCapture(owner, nil)
  captureRepo.add(mine)
  captureRepo.add(newCapture(other, nil))
  captureRepo.add(newCapture(owner, func(c *types.Capture) { c.Status = types.CaptureStatusDeleted }))
  svc := NewContextScopeService(newTestLogger(t), captureRepo, newFakeCollectionRepo())

  ids, err := svc.Resolve(context.Background(), owner, ContextAll, nil, ScopeFilters{})
  if err != nil {
    t.Fatalf("Resolve: %v", err)
  }
  if len(ids) != 1 || ids[0] != mine.ID {
    t.Fatalf("ids: want only owned active capture, got=%v", ids)
  }
}

func TestResolveBookmarksAppliesCap(t *testing.T) {
  owner := uuid.New()
  captureRepo := newFakeCaptureRepo()
  captureRepo.add(newCapture(owner, func(c *types.Capture) { c.Bookmarked = true }))
  captureRepo.add(newCapture(owner, nil))
  svc := NewContextScopeService(newTestLogger(t), captureRepo, newFakeCollectionRepo())

  ids, err := svc.Resolve(context.Background(), owner, ContextBookmarks, nil, ScopeFilters{})
  if err != nil {
    t.Fatalf("Resolve: %v", err)
  }
  if len(ids) != 1 {
    t.Fatalf("ids: want=1 got=%d", len(ids))
  }
  call := captureRepo.getOwnedIDCalls[0]
  if call.Limit != MaxBookmarkScope {
    t.Fatalf("bookmark cap: want=%d got=%d", MaxBookmarkScope, call.Limit)
  }
  if call.Bookmarked == nil || !*call.Bookmarked {
    t.Fatalf("bookmark filter not applied: %+v", call)
  }
}

func TestResolveSpecificDropsForeignIDs(t *testing.T) {
  owner := uuid.New()
  other := uuid.New()
  captureRepo := newFakeCaptureRepo()
  mine := newCapture(owner, nil)
  theirs := newCapture(other, nil)
  deleted := newCapture(owner, func(c *types.Capture) { c.Status = types.CaptureStatusDeleted })
  captureRepo.add(mine)
  captureRepo.add(theirs)
  captureRepo.add(deleted)
  svc := NewContextScopeService(newTestLogger(t), captureRepo, newFakeCollectionRepo())

  items := []ContextItem{
    {Type: ContextItemCapture, ID: mine.ID},
    {Type: ContextItemCapture, ID: theirs.ID},
    {Type: ContextItemCapture, ID: deleted.ID},
    {Type: ContextItemCapture, ID: uuid.New()},
  }
  ids, err := svc.Resolve(context.Background(), owner, ContextSpecific, items, ScopeFilters{})
  if err != nil {
    t.Fatalf("Resolve: %v", err)
  }
  if len(ids) != 1 || ids[0] != mine.ID {
    t.Fatalf("ids: want exactly owned subset, got=%v", ids)
  }
}

func TestResolveCollectionSkipsForeignCollections(t *testing.T) {
  owner := uuid.New()
  other := uuid.New()
  captureRepo := newFakeCaptureRepo()
  mine := newCapture(owner, nil)
  alsoMine := newCapture(owner, nil)
  captureRepo.add(mine)
  captureRepo.add(alsoMine)

  collectionRepo := newFakeCollectionRepo()
  ownedIDs, err := repos.EncodeCaptureIDs([]uuid.UUID{mine.ID, alsoMine.ID})
  if err != nil {
    t.Fatalf("EncodeCaptureIDs: %v", err)
  }
  ownedCollection := &types.Collection{ID: uuid.New(), OwnerID: owner, CaptureIDs: ownedIDs}
  foreignCollection := &types.Collection{ID: uuid.New(), OwnerID: other, CaptureIDs: ownedIDs}
  collectionRepo.add(ownedCollection)
  collectionRepo.add(foreignCollection)

  svc := NewContextScopeService(newTestLogger(t), captureRepo, collectionRepo)

  items := []ContextItem{
    {Type: ContextItemCollection, ID: ownedCollection.ID},
    {Type: ContextItemCollection, ID: foreignCollection.ID},
  }
  ids, err := svc.Resolve(context.Background(), owner, ContextCollection, items, ScopeFilters{})
  if err != nil {
    t.Fatalf("Resolve: %v", err)
  }
  if len(ids) != 2 {
    t.Fatalf("ids: want=2 got=%v", ids)
  }
}

func TestResolveCollectionDropsDeletedMembers(t *testing.T) {
  owner := uuid.New()
  captureRepo := newFakeCaptureRepo()
  alive := newCapture(owner, nil)
  gone := newCapture(owner, func(c *types.Capture) { c.Status = types.CaptureStatusDeleted })
  captureRepo.add(alive)
  captureRepo.add(gone)

  collectionRepo := newFakeCollectionRepo()
  memberIDs, err := repos.EncodeCaptureIDs([]uuid.UUID{alive.ID, gone.ID})
  if err != nil {
    t.Fatalf("EncodeCaptureIDs: %v", err)
  }
  collection := &types.Collection{ID: uuid.New(), OwnerID: owner, CaptureIDs: memberIDs}
  collectionRepo.add(collection)

  svc := NewContextScopeService(newTestLogger(t), captureRepo, collectionRepo)

  ids, err := svc.Resolve(context.Background(), owner, ContextCollection, []ContextItem{{Type: ContextItemCollection, ID: collection.ID}}, ScopeFilters{})
  if err != nil {
    t.Fatalf("Resolve: %v", err)
  }
  if len(ids) != 1 || ids[0] != alive.ID {
    t.Fatalf("ids: want only active member, got=%v", ids)
  }
}

func TestResolveMixedUnionsAndDedupes(t *testing.T) {
  owner := uuid.New()
  captureRepo := newFakeCaptureRepo()
  shared := newCapture(owner, nil)
  direct := newCapture(owner, nil)
  captureRepo.add(shared)
  captureRepo.add(direct)

  collectionRepo := newFakeCollectionRepo()
  memberIDs, err := repos.EncodeCaptureIDs([]uuid.UUID{shared.ID})
  if err != nil {
    t.Fatalf("EncodeCaptureIDs: %v", err)
  }
  collection := &types.Collection{ID: uuid.New(), OwnerID: owner, CaptureIDs: memberIDs}
  collectionRepo.add(collection)

  svc := NewContextScopeService(newTestLogger(t), captureRepo, collectionRepo)

  items := []ContextItem{
    {Type: ContextItemCollection, ID: collection.ID},
    {Type: ContextItemCapture, ID: shared.ID},
    {Type: ContextItemCapture, ID: direct.ID},
  }
  ids, err := svc.Resolve(context.Background(), owner, ContextMixed, items, ScopeFilters{})
  if err != nil {
    t.Fatalf("Resolve: %v", err)
  }
  if len(ids) != 2 {
    t.Fatalf("ids: want=2 (deduped union) got=%v", ids)
  }
  seen := map[uuid.UUID]bool{}
  for _, id := range ids {
    if seen[id] {
      t.Fatalf("duplicate id in result: %s", id)
    }
    seen[id] = true
  }
}

func TestResolveEmptyIsNotAnError(t *testing.T) {
  owner := uuid.New()
  svc := NewContextScopeService(newTestLogger(t), newFakeCaptureRepo(), newFakeCollectionRepo())

  for _, contextType := range []ContextType{ContextAll, ContextBookmarks, ContextCollection, ContextSpecific, ContextMixed} {
    ids, err := svc.Resolve(context.Background(), owner, contextType, nil, ScopeFilters{})
    if err != nil {
      t.Fatalf("Resolve(%s): %v", contextType, err)
    }
    if len(ids) != 0 {
      t.Fatalf("Resolve(%s): want empty, got=%v", contextType, ids)
    }
  }
}

func TestResolveUnknownTypeFails(t *testing.T) {
  svc := NewContextScopeService(newTestLogger(t), newFakeCaptureRepo(), newFakeCollectionRepo())
  if _, err := svc.Resolve(context.Background(), uuid.New(), ContextType("everything"), nil, ScopeFilters{}); err == nil {
    t.Fatalf("expected error for unknown context type")
  }
}

func TestResolveAllFansOutContentTypes(t *testing.T) {
  owner := uuid.New()
  captureRepo := newFakeCaptureRepo()
  article := newCapture(owner, func(c *types.Capture) { c.ContentType = "article" })
  video := newCapture(owner, func(c *types.Capture) { c.ContentType = "video" })
  note := newCapture(owner, func(c *types.Capture) { c.ContentType = "note" })
  captureRepo.add(article)
  captureRepo.add(video)
  captureRepo.add(note)
  svc := NewContextScopeService(newTestLogger(t), captureRepo, newFakeCollectionRepo())

  ids, err := svc.Resolve(context.Background(), owner, ContextAll, nil, ScopeFilters{ContentTypes: []string{"article", "video"}})
  if err != nil {
    t.Fatalf("Resolve: %v", err)
  }
  if len(ids) != 2 {
    t.Fatalf("ids: want=2 got=%v", ids)
  }
}
