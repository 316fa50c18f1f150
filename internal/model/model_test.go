package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestClampQuestionCount(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{5, 5},
		{10, 10},
		{15, 10},
	}
	for _, tt := range tests {
		if got := ClampQuestionCount(tt.in); got != tt.want {
			t.Errorf("ClampQuestionCount(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOptionsNormalized(t *testing.T) {
	o := ObjectiveOptions{QuestionCount: 0}.Normalized()
	if o.QuestionCount != 1 || o.OptionCount != DefaultOptionCount {
		t.Errorf("objective normalized = %+v", o)
	}

	s := SubjectiveOptions{QuestionCount: 15, AnswerStyle: "verbose"}.Normalized()
	if s.QuestionCount != 10 {
		t.Errorf("QuestionCount = %d, want 10", s.QuestionCount)
	}
	if s.AnswerStyle != AnswerStyleAll {
		t.Errorf("AnswerStyle = %q, want all", s.AnswerStyle)
	}
	if got := ParseAnswerStyle(" Detailed "); got != AnswerStyleDetailed {
		t.Errorf("ParseAnswerStyle = %q, want detailed", got)
	}
}

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{"no file", Document{}, true},
		{"empty data", Document{Name: "notes.pdf"}, true},
		{"pdf", Document{Name: "notes.pdf", Data: []byte("%PDF")}, false},
		{"upper case ext", Document{Name: "SLIDES.PPTX", Data: []byte("x")}, false},
		{"image", Document{Name: "board.jpeg", Data: []byte("x")}, false},
		{"unsupported", Document{Name: "song.mp3", Data: []byte("x")}, true},
		{"no ext", Document{Name: "README", Data: []byte("x")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestTranscriptCounts(t *testing.T) {
	tr := Transcript{Text: "  Lorem ipsum\n dolor  sit amet ", SourceFileName: "notes.pdf"}
	if got := tr.WordCount(); got != 5 {
		t.Errorf("WordCount() = %d, want 5", got)
	}
	tr = Transcript{Text: "héllo"}
	if got := tr.CharCount(); got != 5 {
		t.Errorf("CharCount() = %d, want 5", got)
	}
}

func TestQuestionItemsKeepOrder(t *testing.T) {
	raw := `{
		"3": {"question": "Third?", "answer": "c", "options": ["a", "b", "c"]},
		"1": {"question": "First?", "answer": "free"},
		"10": {"question": "Tenth?", "answer": "x", "options": ["x", "y"], "explanation": "because"}
	}`
	var items QuestionItems
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	set := QuestionSet{Items: items}
	if got, want := set.Keys(), []string{"3", "1", "10"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	q, ok := set.Get("1")
	if !ok || !q.IsFreeResponse() {
		t.Errorf("question 1 should be free response, got %+v", q)
	}
	q, _ = set.Get("10")
	if q.Explanation != "because" {
		t.Errorf("explanation = %q", q.Explanation)
	}

	out, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var again QuestionItems
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("Unmarshal again: %v", err)
	}
	if !reflect.DeepEqual(again, items) {
		t.Errorf("order not preserved through marshal: %s", out)
	}
}

func TestQuestionItemsDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"string", `"nope"`},
		{"duplicate key", `{"1": {"question": "a"}, "1": {"question": "b"}}`},
		{"bad question", `{"1": 42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items QuestionItems
			if err := json.Unmarshal([]byte(tt.raw), &items); err == nil {
				t.Errorf("expected error for %s", tt.raw)
			}
		})
	}
}

func TestQuestionItemsFromArray(t *testing.T) {
	var items QuestionItems
	if err := json.Unmarshal([]byte(`[{"question": "a?"}, {"question": "b?"}]`), &items); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(items) != 2 || items[0].Key != "1" || items[1].Key != "2" {
		t.Errorf("unexpected items %+v", items)
	}
}

func TestSessionStateSetTranscriptDropsArtifacts(t *testing.T) {
	s := &SessionState{}
	s.SetTranscript(Transcript{Text: "one", SourceFileName: "a.pdf"})
	s.SetSummary(Summary{Text: "sum"})
	s.SetObjective(QuestionSet{TotalCount: 1})
	s.SetQuiz(QuizSession{Phase: PhaseAnswering})

	s.SetTranscript(Transcript{Text: "two", SourceFileName: "b.pdf"})
	if s.Summary != nil || s.Objective != nil || s.Quiz != nil {
		t.Error("artifacts should be dropped when the transcript changes")
	}
	if s.FileName() != "b.pdf" {
		t.Errorf("FileName() = %q", s.FileName())
	}

	s.Clear()
	if s.Transcript != nil || s.FileName() != "" {
		t.Error("Clear should drop the transcript")
	}
}
