package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/studysimplify/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestSession(t *testing.T, s *Store) *model.SessionState {
	t.Helper()
	sess, err := s.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func testQuestionSet() model.QuestionSet {
	return model.QuestionSet{
		TotalCount: 2,
		Items: model.QuestionItems{
			{Key: "2", Question: model.Question{Text: "Second?", CorrectAnswer: "b", Options: []string{"a", "b"}}},
			{Key: "1", Question: model.Question{Text: "First?", CorrectAnswer: "free"}},
		},
	}
}

func TestSessionCRUD(t *testing.T) {
	s := newTestStore(t)

	// Missing session.
	got, err := s.GetSession("does-not-exist")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing session, got %+v", got)
	}

	sess := newTestSession(t, s)
	if sess.ID == "" {
		t.Fatal("expected session ID")
	}

	got, err = s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil || got.Transcript != nil || got.Epoch != 0 {
		t.Fatalf("expected empty session, got %+v", got)
	}

	sess.SetTranscript(model.Transcript{Text: "Lorem ipsum", SourceFileName: "notes.pdf"})
	sess.SetSummary(model.Summary{ImportantWords: []string{"lorem"}, Text: "short"})
	sess.SetObjective(testQuestionSet())
	sess.SetQuiz(model.QuizSession{Answers: map[string]string{"2": "b"}, CurrentIndex: 1, Phase: model.PhaseAnswering})
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err = s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Transcript == nil || got.Transcript.SourceFileName != "notes.pdf" {
		t.Errorf("transcript not stored: %+v", got.Transcript)
	}
	if got.Summary == nil || got.Summary.Text != "short" {
		t.Errorf("summary not stored: %+v", got.Summary)
	}
	if got.Objective == nil || got.Objective.Keys()[0] != "2" {
		t.Errorf("objective order not preserved: %+v", got.Objective)
	}
	if got.Subjective != nil {
		t.Errorf("subjective should be empty, got %+v", got.Subjective)
	}
	if got.Quiz == nil || got.Quiz.Answers["2"] != "b" || got.Quiz.CurrentIndex != 1 {
		t.Errorf("quiz not stored: %+v", got.Quiz)
	}
}

func TestClearSessionAdvancesEpoch(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)
	sess.SetTranscript(model.Transcript{Text: "x", SourceFileName: "a.pdf"})
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	// A request loads the session before the user starts over.
	inFlight, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	if err := s.ClearSession(sess); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if sess.Epoch != 1 || sess.Transcript != nil {
		t.Errorf("expected cleared session at epoch 1, got %+v", sess)
	}

	// The late response must be discarded.
	inFlight.SetSummary(model.Summary{Text: "late"})
	if err := s.SaveSession(inFlight); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession, got %v", err)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Transcript != nil || got.Summary != nil {
		t.Errorf("stale write leaked into session: %+v", got)
	}

	// Writes at the new epoch succeed.
	sess.SetTranscript(model.Transcript{Text: "y", SourceFileName: "b.pdf"})
	if err := s.SaveSession(sess); err != nil {
		t.Errorf("SaveSession after clear: %v", err)
	}
}

func TestSaveMissingSession(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveSession(&model.SessionState{ID: "gone"})
	if !errors.Is(err, ErrStaleSession) {
		t.Errorf("expected ErrStaleSession, got %v", err)
	}
	if err := s.ClearSession(&model.SessionState{ID: "gone"}); !errors.Is(err, ErrStaleSession) {
		t.Errorf("expected ErrStaleSession from ClearSession, got %v", err)
	}
}

func TestExpiredSessions(t *testing.T) {
	s := newTestStore(t)
	s.SetSessionTTL(time.Millisecond)
	expired := newTestSession(t, s)

	s.SetSessionTTL(time.Hour)
	alive := newTestSession(t, s)

	time.Sleep(10 * time.Millisecond)

	got, err := s.GetSession(expired.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Error("expired session should not be returned")
	}

	s.SetSessionTTL(time.Millisecond)
	newTestSession(t, s)
	time.Sleep(10 * time.Millisecond)

	n, err := s.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 session removed, got %d", n)
	}
	count, err := s.SessionCount()
	if err != nil {
		t.Fatalf("SessionCount: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 remaining session, got %d", count)
	}
	if got, _ := s.GetSession(alive.ID); got == nil {
		t.Error("live session was removed")
	}
}

func TestBusyActions(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	ok, err := s.BeginAction(sess.ID, model.ActionSummary, sess.Epoch)
	if err != nil {
		t.Fatalf("BeginAction: %v", err)
	}
	if !ok {
		t.Fatal("first BeginAction should claim the flag")
	}

	ok, err = s.BeginAction(sess.ID, model.ActionSummary, sess.Epoch)
	if err != nil {
		t.Fatalf("BeginAction: %v", err)
	}
	if ok {
		t.Error("second BeginAction must be rejected while in flight")
	}

	// Other actions are independent.
	ok, _ = s.BeginAction(sess.ID, model.ActionObjective, sess.Epoch)
	if !ok {
		t.Error("objective should be claimable while summary is busy")
	}

	busy, err := s.BusyActions(sess.ID)
	if err != nil {
		t.Fatalf("BusyActions: %v", err)
	}
	if !busy[model.ActionSummary] || !busy[model.ActionObjective] || busy[model.ActionSubjective] {
		t.Errorf("unexpected busy set %v", busy)
	}

	if err := s.EndAction(sess.ID, model.ActionSummary, sess.Epoch); err != nil {
		t.Fatalf("EndAction: %v", err)
	}
	ok, _ = s.BeginAction(sess.ID, model.ActionSummary, sess.Epoch)
	if !ok {
		t.Error("flag should be claimable after EndAction")
	}

	// Starting over releases every flag.
	if err := s.ClearSession(sess); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	busy, _ = s.BusyActions(sess.ID)
	if len(busy) != 0 {
		t.Errorf("expected no busy actions after clear, got %v", busy)
	}
}

func TestAbandonedBusyFlag(t *testing.T) {
	s := newTestStore(t)
	s.SetBusyTimeout(time.Millisecond)
	sess := newTestSession(t, s)

	if ok, _ := s.BeginAction(sess.ID, model.ActionTranscribe, 0); !ok {
		t.Fatal("BeginAction should claim the flag")
	}
	time.Sleep(10 * time.Millisecond)

	busy, _ := s.BusyActions(sess.ID)
	if busy[model.ActionTranscribe] {
		t.Error("abandoned flag should not be reported busy")
	}
	if ok, _ := s.BeginAction(sess.ID, model.ActionTranscribe, 0); !ok {
		t.Error("abandoned flag should be claimable")
	}
}

func TestEndActionIgnoresNewerEpoch(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)
	oldEpoch := sess.Epoch

	if ok, _ := s.BeginAction(sess.ID, model.ActionObjective, oldEpoch); !ok {
		t.Fatal("BeginAction should claim the flag")
	}
	if err := s.ClearSession(sess); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if ok, _ := s.BeginAction(sess.ID, model.ActionObjective, sess.Epoch); !ok {
		t.Fatal("flag should be claimable after clear")
	}

	// The request from before the clear finishes late.
	if err := s.EndAction(sess.ID, model.ActionObjective, oldEpoch); err != nil {
		t.Fatalf("EndAction: %v", err)
	}
	busy, _ := s.BusyActions(sess.ID)
	if !busy[model.ActionObjective] {
		t.Error("late EndAction must not release the newer flag")
	}
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	got, err := s.Update(sess.ID, sess.Epoch, func(st *model.SessionState) error {
		st.SetTranscript(model.Transcript{Text: "a b c", SourceFileName: "notes.pdf"})
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Transcript == nil || got.Transcript.WordCount() != 3 {
		t.Errorf("unexpected result %+v", got)
	}

	// Updates see the stored state, not the caller's copy.
	_, err = s.Update(sess.ID, sess.Epoch, func(st *model.SessionState) error {
		if st.Transcript == nil {
			t.Error("update should observe the stored transcript")
		}
		st.SetSummary(model.Summary{Text: "sum"})
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// An error from fn leaves the row untouched.
	boom := errors.New("boom")
	_, err = s.Update(sess.ID, sess.Epoch, func(st *model.SessionState) error {
		st.Clear()
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	stored, _ := s.GetSession(sess.ID)
	if stored.Summary == nil || stored.Transcript == nil {
		t.Errorf("aborted update should not be written: %+v", stored)
	}

	if err := s.ClearSession(stored); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	called := false
	_, err = s.Update(sess.ID, sess.Epoch, func(*model.SessionState) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrStaleSession) {
		t.Errorf("expected ErrStaleSession, got %v", err)
	}
	if called {
		t.Error("fn must not run for a stale epoch")
	}
	if _, err := s.Update("missing", 0, func(*model.SessionState) error { return nil }); !errors.Is(err, ErrStaleSession) {
		t.Errorf("expected ErrStaleSession for missing session, got %v", err)
	}
}

func TestTouchExtendsLifetime(t *testing.T) {
	s := newTestStore(t)
	s.SetSessionTTL(50 * time.Millisecond)
	sess := newTestSession(t, s)

	time.Sleep(30 * time.Millisecond)
	s.SetSessionTTL(time.Hour)
	if err := s.Touch(sess); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("touched session expired")
	}
	if got.Epoch != sess.Epoch {
		t.Errorf("Touch changed epoch: %d", got.Epoch)
	}
}

func TestReplaceAdvancesEpoch(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	if _, err := s.Update(sess.ID, sess.Epoch, func(st *model.SessionState) error {
		st.SetTranscript(model.Transcript{Text: "old", SourceFileName: "notes.pdf"})
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if ok, err := s.BeginAction(sess.ID, model.ActionSummary, sess.Epoch); err != nil || !ok {
		t.Fatalf("BeginAction: ok=%v err=%v", ok, err)
	}

	got, err := s.Replace(sess.ID, sess.Epoch, func(st *model.SessionState) error {
		st.SetTranscript(model.Transcript{Text: "new", SourceFileName: "other.pdf"})
		return nil
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got.Epoch != sess.Epoch+1 {
		t.Errorf("epoch = %d, want %d", got.Epoch, sess.Epoch+1)
	}

	// A response computed for the old transcript no longer lands.
	_, err = s.Update(sess.ID, sess.Epoch, func(st *model.SessionState) error {
		st.SetSummary(model.Summary{Text: "summary of notes.pdf"})
		return nil
	})
	if !errors.Is(err, ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession, got %v", err)
	}

	stored, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stored.Epoch != got.Epoch || stored.FileName() != "other.pdf" || stored.Summary != nil {
		t.Errorf("unexpected stored session %+v", stored)
	}
	busy, err := s.BusyActions(sess.ID)
	if err != nil {
		t.Fatalf("BusyActions: %v", err)
	}
	if busy[model.ActionSummary] {
		t.Error("busy flag of the replaced transcript should be dropped")
	}

	if _, err := s.Replace(sess.ID, sess.Epoch, func(*model.SessionState) error { return nil }); !errors.Is(err, ErrStaleSession) {
		t.Errorf("Replace with old epoch: expected ErrStaleSession, got %v", err)
	}
}
