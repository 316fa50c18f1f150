package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/studysimplify/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("decode request body: %v", err)
	}
	return body
}

func TestTranscribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transcribe" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "notes.pdf" || string(data) != "%PDF-1.4" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		_, _ = io.WriteString(w, `{"success": true, "transcript": "Lorem ipsum dolor"}`)
	})

	tr, err := c.Transcribe(context.Background(), model.Document{Name: "notes.pdf", Data: []byte("%PDF-1.4")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "Lorem ipsum dolor" || tr.SourceFileName != "notes.pdf" {
		t.Errorf("unexpected transcript %+v", tr)
	}
}

func TestTranscribeValidation(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	for _, doc := range []model.Document{{}, {Name: "tune.mp3", Data: []byte("x")}} {
		_, err := c.Transcribe(context.Background(), doc)
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Transcribe(%q): expected ValidationError, got %v", doc.Name, err)
		}
	}
	if called {
		t.Error("no request should be sent for invalid documents")
	}
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"http 500 with detail", 500, `{"detail": "Error summarizing text: boom"}`, 500, "Error summarizing text: boom"},
		{"http 400 plain", 400, `bad input`, 400, "bad input"},
		{"success false", 200, `{"success": false}`, 0, "failed to generate summary"},
		{"success false with message", 200, `{"success": false, "message": "quota exceeded"}`, 0, "quota exceeded"},
		{"malformed json", 200, `{"success": tru`, 200, "malformed response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Summarize(context.Background(), "text")
			var re *model.RequestError
			if !errors.As(err, &re) {
				t.Fatalf("expected RequestError, got %v", err)
			}
			if re.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", re.Status, tt.wantStatus)
			}
			if re.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", re.Message, tt.wantMsg)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second)
	_, err := c.Summarize(context.Background(), "text")
	var re *model.RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if re.Status != 0 || re.Err == nil {
		t.Errorf("expected transport error without status, got %+v", re)
	}
}

func TestSummarize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/summarize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body := decodeBody(t, r)
		if body["text"] != "some text" {
			t.Errorf("text = %v", body["text"])
		}
		_, _ = io.WriteString(w, `{"success": true, "important_words": ["cell", "mitosis"], "summary": "Cells divide."}`)
	})

	sum, err := c.Summarize(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(sum.ImportantWords) != 2 || sum.ImportantWords[1] != "mitosis" || sum.Text != "Cells divide." {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestGenerateObjectiveClampsCount(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{15, 10},
		{3, 3},
	}
	for _, tt := range tests {
		var got float64
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/generate-questions" {
				t.Errorf("path = %s", r.URL.Path)
			}
			body := decodeBody(t, r)
			got, _ = body["num_questions"].(float64)
			if body["num_options"] != float64(4) {
				t.Errorf("num_options = %v", body["num_options"])
			}
			_, _ = io.WriteString(w, `{"success": true, "questions": {}, "total_questions": 0}`)
		})
		if _, err := c.GenerateObjective(context.Background(), "text", model.ObjectiveOptions{QuestionCount: tt.in}); err != nil {
			t.Fatalf("GenerateObjective: %v", err)
		}
		if int(got) != tt.want {
			t.Errorf("count %d sent as %v, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGenerateObjective(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"success": true,
			"questions": {
				"2": {"question": "B?", "answer": "b1", "options": ["b1", "b2"]},
				"1": {"question": "A?", "answer": "a2", "options": ["a1", "a2"]}
			},
			"total_questions": 2
		}`)
	})
	set, err := c.GenerateObjective(context.Background(), "text", model.ObjectiveOptions{QuestionCount: 2, OptionCount: 2})
	if err != nil {
		t.Fatalf("GenerateObjective: %v", err)
	}
	if set.TotalCount != 2 || strings.Join(set.Keys(), ",") != "2,1" {
		t.Errorf("unexpected set %+v", set)
	}
	q, _ := set.Get("1")
	if q.CorrectAnswer != "a2" {
		t.Errorf("answer = %q", q.CorrectAnswer)
	}
}

func TestGenerateSubjective(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-subjective-questions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["answer_style"] != "detailed" || body["use_evaluator"] != true || body["num_questions"] != float64(10) {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = io.WriteString(w, `{"success": true, "questions": {"1": {"question": "Why?", "answer": "Because.", "options": [], "type": "subjective"}}}`)
	})

	set, err := c.GenerateSubjective(context.Background(), "text", model.SubjectiveOptions{
		QuestionCount: 12,
		AnswerStyle:   model.AnswerStyleDetailed,
		UseEvaluator:  true,
	})
	if err != nil {
		t.Fatalf("GenerateSubjective: %v", err)
	}
	if set.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want fallback to item count", set.TotalCount)
	}
	if set.AnswerStyle != model.AnswerStyleDetailed {
		t.Errorf("AnswerStyle = %q", set.AnswerStyle)
	}
	q, _ := set.Get("1")
	if !q.IsFreeResponse() || q.Type != "subjective" {
		t.Errorf("unexpected question %+v", q)
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message": "Study Material Processor API"}`)
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
