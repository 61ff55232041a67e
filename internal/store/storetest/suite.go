// Package storetest is a compliance suite shared by every store.Store driver.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/store"
)

// Run exercises the store contract against a fresh store returned by makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	concurrentDisjointUpdates(t, s)
	userID := "u-" + uuid.New().String()
	base := time.Now().UTC().Truncate(time.Millisecond)

	mood := 0.25
	e1, err := s.Entries().Create(ctx, &model.Entry{
		UserID:            userID,
		Text:              "hello",
		Category:          model.CategoryPersonal,
		CreatedAt:         base.Add(-3 * time.Minute),
		EffectiveDate:     base.Add(-27 * time.Hour),
		Embedding:         []float32{0.1, 0.2, 0.3},
		AnalysisStatus:    model.AnalysisPending,
		EntryType:         model.EntryReflection,
		Tags:              []string{},
		MoodScore:         &mood,
		SafetyFlagged:     true,
		WarningIndicators: true,
		TemporalContext:   &model.TemporalContext{Detected: true, OriginalPhrase: "yesterday", Confidence: 0.95, Backdated: true},
	})
	if err != nil {
		t.Fatalf("Create e1: %v", err)
	}
	if e1.ID == "" {
		t.Fatalf("Create e1: empty id")
	}

	got, err := s.Entries().GetByID(ctx, userID, e1.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Text != "hello" || !got.SafetyFlagged || !got.WarningIndicators || got.AnalysisStatus != model.AnalysisPending {
		t.Fatalf("GetByID: unexpected entry %+v", got)
	}
	if len(got.Embedding) != 3 || got.Embedding[2] != 0.3 {
		t.Fatalf("GetByID: embedding round trip: %v", got.Embedding)
	}
	if got.MoodScore == nil || *got.MoodScore != mood {
		t.Fatalf("GetByID: mood round trip: %v", got.MoodScore)
	}
	if !got.EffectiveDate.Equal(base.Add(-27 * time.Hour)) {
		t.Fatalf("GetByID: effective date %v", got.EffectiveDate)
	}
	if got.TemporalContext == nil || got.TemporalContext.OriginalPhrase != "yesterday" {
		t.Fatalf("GetByID: temporal context %+v", got.TemporalContext)
	}

	if _, err := s.Entries().GetByID(ctx, "someone-else", e1.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByID other user: want ErrNotFound, got %v", err)
	}
	if _, err := s.Entries().GetByID(ctx, userID, uuid.New().String()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByID missing: want ErrNotFound, got %v", err)
	}

	// Partial update touches only the patched fields.
	title := "My title"
	if _, err := s.Entries().Update(ctx, userID, e1.ID, model.EntryPatch{Title: &title}); err != nil {
		t.Fatalf("Update title: %v", err)
	}
	status := model.AnalysisComplete
	et := model.EntryVent
	tags := []string{"work", "sleep"}
	def := "generated"
	v2 := 2
	upd, err := s.Entries().Update(ctx, userID, e1.ID, model.EntryPatch{
		AnalysisStatus: &status,
		EntryType:      &et,
		Tags:           &tags,
		DefaultTitle:   &def,
		ContextVersion: &v2,
		Analysis:       &model.Analysis{Framework: "vent", VentSupport: "ok"},
	})
	if err != nil {
		t.Fatalf("Update enrichment: %v", err)
	}
	if upd.Title != title {
		t.Fatalf("DefaultTitle overwrote user title: %q", upd.Title)
	}
	if upd.AnalysisStatus != model.AnalysisComplete || upd.EntryType != model.EntryVent || len(upd.Tags) != 2 {
		t.Fatalf("Update enrichment: unexpected %+v", upd)
	}
	if upd.Text != "hello" || !upd.SafetyFlagged || upd.Embedding == nil {
		t.Fatalf("Update clobbered unpatched fields: %+v", upd)
	}
	if upd.Analysis == nil || upd.Analysis.VentSupport != "ok" {
		t.Fatalf("Update analysis: %+v", upd.Analysis)
	}

	v1 := 1
	if upd, err = s.Entries().Update(ctx, userID, e1.ID, model.EntryPatch{ContextVersion: &v1}); err != nil {
		t.Fatalf("Update lower version: %v", err)
	}
	if upd.ContextVersion != 2 {
		t.Fatalf("context version went backwards: %d", upd.ContextVersion)
	}

	if _, err := s.Entries().Update(ctx, userID, uuid.New().String(), model.EntryPatch{Title: &title}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Update missing: want ErrNotFound, got %v", err)
	}

	// An entry without embedding round-trips as nil.
	e2, err := s.Entries().Create(ctx, &model.Entry{
		UserID: userID, Text: "no vector", Category: model.CategoryWork,
		CreatedAt: base.Add(-2 * time.Minute), AnalysisStatus: model.AnalysisPending, EntryType: model.EntryReflection,
	})
	if err != nil {
		t.Fatalf("Create e2: %v", err)
	}
	if got, err := s.Entries().GetByID(ctx, userID, e2.ID); err != nil || got.HasEmbedding() {
		t.Fatalf("GetByID e2: got=%+v err=%v", got, err)
	}
	if _, err := s.Entries().Create(ctx, &model.Entry{
		UserID: userID, Text: "third", Category: model.CategoryPersonal,
		CreatedAt: base.Add(-1 * time.Minute), AnalysisStatus: model.AnalysisPending, EntryType: model.EntryReflection,
	}); err != nil {
		t.Fatalf("Create e3: %v", err)
	}

	all, err := s.Entries().List(ctx, model.ListEntriesRequest{UserID: userID})
	if err != nil || len(all) != 3 {
		t.Fatalf("List: n=%d err=%v", len(all), err)
	}
	if all[0].Text != "third" || all[2].Text != "hello" {
		t.Fatalf("List: want newest first, got %q..%q", all[0].Text, all[2].Text)
	}
	if lst, err := s.Entries().List(ctx, model.ListEntriesRequest{UserID: userID, Limit: 2}); err != nil || len(lst) != 2 {
		t.Fatalf("List limit: n=%d err=%v", len(lst), err)
	}
	before := all[0].CreatedAt
	if lst, err := s.Entries().List(ctx, model.ListEntriesRequest{UserID: userID, Before: &before}); err != nil || len(lst) != 2 {
		t.Fatalf("List before: n=%d err=%v", len(lst), err)
	}
	after := all[2].CreatedAt
	if lst, err := s.Entries().List(ctx, model.ListEntriesRequest{UserID: userID, After: &after}); err != nil || len(lst) != 2 {
		t.Fatalf("List after: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Entries().List(ctx, model.ListEntriesRequest{UserID: "nobody-" + uuid.New().String()}); err != nil || len(lst) != 0 {
		t.Fatalf("List other user: n=%d err=%v", len(lst), err)
	}

	// Subscribe delivers an initial snapshot and a fresh one after a change.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := s.Entries().Subscribe(subCtx, model.ListEntriesRequest{UserID: userID})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if snap := recv(t, ch); len(snap) != 3 {
		t.Fatalf("Subscribe initial: n=%d", len(snap))
	}
	newTitle := "renamed"
	if _, err := s.Entries().Update(ctx, userID, e2.ID, model.EntryPatch{Title: &newTitle}); err != nil {
		t.Fatalf("Update for subscribe: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatalf("Subscribe: channel closed early")
			}
			for _, e := range snap {
				if e.ID == e2.ID && e.Title == newTitle {
					return
				}
			}
		case <-deadline:
			t.Fatalf("Subscribe: no snapshot with the update")
		}
	}
}

// concurrentDisjointUpdates races a title edit against an enrichment status write on the same
// entry; both must land.
func concurrentDisjointUpdates(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	userID := "race-" + uuid.New().String()
	for round := 0; round < 20; round++ {
		e, err := s.Entries().Create(ctx, &model.Entry{
			UserID: userID, Text: "race", Category: model.CategoryPersonal,
			AnalysisStatus: model.AnalysisPending, EntryType: model.EntryReflection,
		})
		if err != nil {
			t.Fatalf("Create race entry: %v", err)
		}
		title := "edited"
		status := model.AnalysisComplete
		patches := []model.EntryPatch{{Title: &title}, {AnalysisStatus: &status}}
		errs := make([]error, len(patches))
		var wg sync.WaitGroup
		for i, p := range patches {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.Entries().Update(ctx, userID, e.ID, p)
			}()
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				t.Fatalf("round %d: concurrent update: %v", round, err)
			}
		}
		got, err := s.Entries().GetByID(ctx, userID, e.ID)
		if err != nil {
			t.Fatalf("round %d: GetByID: %v", round, err)
		}
		if got.Title != title || got.AnalysisStatus != model.AnalysisComplete {
			t.Fatalf("round %d: lost update: title=%q status=%s", round, got.Title, got.AnalysisStatus)
		}
	}
}

func recv(t *testing.T, ch <-chan []*model.Entry) []*model.Entry {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(5 * time.Second):
		t.Fatalf("Subscribe: no snapshot")
		return nil
	}
}
