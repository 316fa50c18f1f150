package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/studysimplify/internal/backend"
	appI18n "github.com/pavelanni/studysimplify/internal/i18n"
	"github.com/pavelanni/studysimplify/internal/model"
	"github.com/pavelanni/studysimplify/internal/store"
)

const testTranscript = "Photosynthesis converts light energy into chemical energy stored in glucose."

// fakeBackend serves the backend API and records what it was asked.
type fakeBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	requests map[string]map[string]any

	// onSummarize runs before the summary response is written.
	onSummarize func()
	// summaryFailure, when set, is reported as an unsuccessful summary.
	summaryFailure string
}

func (f *fakeBackend) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// request returns the last JSON body posted to path.
func (f *fakeBackend) request(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeBackend) configure(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeBackend) record(r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requests == nil {
		f.requests = make(map[string]map[string]any)
	}
	f.requests[r.URL.Path] = body
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[r.URL.Path]++
	hook, failure := f.onSummarize, f.summaryFailure
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/transcribe":
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"detail": "no file"}`, http.StatusUnprocessableEntity)
			return
		}
		file.Close()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"transcript": testTranscript + " (" + header.Filename + ")",
		})
	case "/summarize":
		if hook != nil {
			hook()
		}
		if failure != "" {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": failure})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"important_words": []string{"photosynthesis", "glucose"},
			"summary":         "Plants store light as sugar.",
		})
	case "/generate-questions":
		f.record(r)
		fmt.Fprint(w, `{"success": true, "total_questions": 3, "questions": {
			"1": {"question": "What is converted?", "answer": "Light", "options": ["Light", "Sound", "Heat", "Wind"]},
			"2": {"question": "What stores energy?", "answer": "Glucose", "options": ["Water", "Glucose", "Oxygen", "Soil"], "explanation": "Glucose is the product."},
			"3": {"question": "Which process?", "answer": "Photosynthesis", "options": ["Respiration", "Digestion", "Photosynthesis", "Osmosis"]}
		}}`)
	case "/generate-subjective-questions":
		f.record(r)
		fmt.Fprint(w, `{"success": true, "total_questions": 1, "answer_style": "short", "questions": {
			"1": {"question": "Explain photosynthesis.", "answer": "Light becomes chemical energy."}
		}}`)
	default:
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status": "ok"}`)
	}
}

type testEnv struct {
	t       *testing.T
	store   *store.Store
	backend *fakeBackend
	server  *httptest.Server
	client  *http.Client
}

func newTestEnv(t *testing.T, cfg model.Config) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("init i18n: %v", err)
	}

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	fb := &fakeBackend{}
	bs := httptest.NewServer(fb)
	t.Cleanup(bs.Close)
	bc := backend.New(bs.URL, 0)

	h, err := New(s, bc, bc, cfg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	r.Use(h.BasePathMiddleware)
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &testEnv{t: t, store: s, backend: fb, server: srv, client: &http.Client{Jar: jar}}
}

func (e *testEnv) cookie(name string) string {
	u, _ := url.Parse(e.server.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (e *testEnv) do(req *http.Request) (*http.Response, string) {
	e.t.Helper()
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func (e *testEnv) get(path string) (*http.Response, string) {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	if err != nil {
		e.t.Fatal(err)
	}
	return e.do(req)
}

// postRequest builds a form submission carrying the current CSRF token.
func (e *testEnv) postRequest(path string, form url.Values) *http.Request {
	e.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", e.cookie(csrfCookieName))
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		e.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (e *testEnv) post(path string, form url.Values) (*http.Response, string) {
	e.t.Helper()
	return e.do(e.postRequest(path, form))
}

func (e *testEnv) upload(name string, data []byte) (*http.Response, string) {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		e.t.Fatal(err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	target := e.server.URL + "/transcribe?csrf_token=" + url.QueryEscape(e.cookie(csrfCookieName))
	req, err := http.NewRequest(http.MethodPost, target, &buf)
	if err != nil {
		e.t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

// start opens the home page and uploads notes.pdf.
func (e *testEnv) start() {
	e.t.Helper()
	e.get("/")
	resp, body := e.upload("notes.pdf", []byte("%PDF-1.4 fake"))
	if resp.StatusCode != http.StatusOK || resp.Request.URL.Path != "/results" {
		e.t.Fatalf("upload landed on %s with %d: %s", resp.Request.URL.Path, resp.StatusCode, body)
	}
}

func (e *testEnv) session() *model.SessionState {
	e.t.Helper()
	sess, err := e.store.GetSession(e.cookie(sessionCookieName))
	if err != nil || sess == nil {
		e.t.Fatalf("load session: %v (%v)", sess, err)
	}
	return sess
}

func wantPath(t *testing.T, resp *http.Response, path string) {
	t.Helper()
	if got := resp.Request.URL.Path; got != path {
		t.Fatalf("landed on %s, want %s", got, path)
	}
}

func TestObjectiveQuizEndToEnd(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()

	_, body := env.get("/results")
	if !strings.Contains(body, "notes.pdf") {
		t.Errorf("results page does not show the file name")
	}

	resp, body := env.post("/objective", url.Values{"count": {"3"}})
	wantPath(t, resp, "/objective")
	req := env.backend.request("/generate-questions")
	if got := req["num_questions"]; got != float64(3) {
		t.Errorf("num_questions = %v, want 3", got)
	}
	if got := req["num_options"]; got != float64(model.DefaultOptionCount) {
		t.Errorf("num_options = %v, want %d", got, model.DefaultOptionCount)
	}
	if !strings.Contains(body, "What stores energy?") {
		t.Errorf("preview does not list the questions")
	}

	resp, body = env.post("/objective/quiz/start", nil)
	wantPath(t, resp, "/objective/quiz")
	if !strings.Contains(body, "Question 1 of 3") {
		t.Errorf("quiz did not start on the first question: %s", body)
	}

	answers := []struct{ key, answer string }{
		{"1", "Light"},
		{"2", "Glucose"},
		{"3", "Photosynthesis"},
	}
	for _, a := range answers {
		resp, body = env.post("/objective/quiz/answer", url.Values{
			"key": {a.key}, "answer": {a.answer}, "nav": {"next"},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("answer %s: status %d", a.key, resp.StatusCode)
		}
	}
	if !strings.Contains(body, "You scored 3 out of 3") || !strings.Contains(body, "100%") {
		t.Errorf("review page does not show a perfect score: %s", body)
	}
	if !strings.Contains(body, "Glucose is the product.") {
		t.Errorf("review page does not show the explanation")
	}

	_, body = env.get("/api/quiz")
	var state struct {
		Phase      model.QuizPhase `json:"phase"`
		Score      *int            `json:"score"`
		Percentage *int            `json:"percentage"`
	}
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		t.Fatalf("decode quiz state: %v", err)
	}
	if state.Phase != model.PhaseReviewing || state.Score == nil || *state.Score != 3 || *state.Percentage != 100 {
		t.Errorf("api quiz = %+v", state)
	}

	// Answers are frozen once the quiz is scored.
	resp, _ = env.post("/objective/quiz/answer", url.Values{"key": {"1"}, "answer": {"Heat"}, "nav": {"prev"}})
	wantPath(t, resp, "/objective/quiz")
	if got := env.session().Quiz.Answers["1"]; got != "Light" {
		t.Errorf("answer changed after scoring: %q", got)
	}

	resp, body = env.post("/objective/quiz/reset", nil)
	wantPath(t, resp, "/objective/quiz")
	if !strings.Contains(body, "Question 1 of 3") || !strings.Contains(body, "0 of 3 answered") {
		t.Errorf("reset did not restart the quiz: %s", body)
	}
}

func TestQuizNavigation(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()
	env.post("/objective", url.Values{"count": {"3"}})
	env.post("/objective/quiz/start", nil)

	resp, body := env.post("/objective/quiz/answer", url.Values{"key": {"1"}, "nav": {"next"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("advance without answer: status %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(body, "Please answer the question before moving on.") {
		t.Errorf("missing unanswered banner")
	}

	resp, body = env.post("/objective/quiz/answer", url.Values{"key": {"9"}, "answer": {"x"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown key: status %d, want 400", resp.StatusCode)
	}

	env.post("/objective/quiz/answer", url.Values{"key": {"1"}, "answer": {"Sound"}, "nav": {"next"}})
	_, body = env.post("/objective/quiz/answer", url.Values{"key": {"2"}, "nav": {"prev"}})
	if !strings.Contains(body, "Question 1 of 3") {
		t.Errorf("prev did not return to the first question")
	}
	if !strings.Contains(body, `value="Sound" checked`) {
		t.Errorf("previous answer not preselected: %s", body)
	}

	// Previous on the first question stays put.
	_, body = env.post("/objective/quiz/answer", url.Values{"key": {"1"}, "nav": {"prev"}})
	if !strings.Contains(body, "Question 1 of 3") {
		t.Errorf("prev on first question moved")
	}
}

func TestMissingHandoffRedirectsHome(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.get("/")

	for _, path := range []string{"/results", "/summary", "/objective", "/objective/quiz", "/subjective"} {
		resp, _ := env.get(path)
		if got := resp.Request.URL.Path; got != "/" {
			t.Errorf("GET %s landed on %s, want /", path, got)
		}
	}

	env.start()
	for _, path := range []string{"/summary", "/objective", "/objective/quiz", "/subjective"} {
		resp, _ := env.get(path)
		if got := resp.Request.URL.Path; got != "/" {
			t.Errorf("after upload GET %s landed on %s, want /", path, got)
		}
	}
}

func TestBusyActionRejected(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()

	sess := env.session()
	ok, err := env.store.BeginAction(sess.ID, model.ActionSummary, sess.Epoch)
	if err != nil || !ok {
		t.Fatalf("BeginAction = %v, %v", ok, err)
	}

	resp, body := env.post("/summary", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status %d, want 409", resp.StatusCode)
	}
	if !strings.Contains(body, "already in progress") {
		t.Errorf("missing busy banner")
	}
	if n := env.backend.count("/summarize"); n != 0 {
		t.Errorf("backend called %d times while busy", n)
	}

	_, body = env.get("/results")
	if !strings.Contains(body, "disabled>Processing") {
		t.Errorf("summary control not shown as busy")
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()

	// The user starts over while the summary request is in flight.
	id := env.cookie(sessionCookieName)
	env.backend.configure(func(f *fakeBackend) {
		f.onSummarize = func() {
			sess, err := env.store.GetSession(id)
			if err != nil || sess == nil {
				t.Errorf("load session: %v", err)
				return
			}
			if err := env.store.ClearSession(sess); err != nil {
				t.Errorf("clear session: %v", err)
			}
		}
	})

	resp, _ := env.post("/summary", nil)
	wantPath(t, resp, "/")
	sess := env.session()
	if sess.Summary != nil || sess.Transcript != nil {
		t.Errorf("stale response was stored: %+v", sess)
	}
	busy, err := env.store.BusyActions(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(busy) != 0 {
		t.Errorf("busy flags left behind: %v", busy)
	}
}

func TestSummaryFlow(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()

	resp, body := env.post("/summary", nil)
	wantPath(t, resp, "/summary")
	for _, want := range []string{"photosynthesis", "glucose", "Plants store light as sugar."} {
		if !strings.Contains(body, want) {
			t.Errorf("summary page missing %q", want)
		}
	}

	env.backend.configure(func(f *fakeBackend) { f.summaryFailure = "model overloaded" })
	resp, body = env.post("/summary", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status %d, want 502", resp.StatusCode)
	}
	if !strings.Contains(body, "model overloaded") {
		t.Errorf("missing backend message in banner")
	}
}

func TestSubjectiveSettings(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()

	resp, body := env.post("/subjective", url.Values{
		"count":         {"15"},
		"answer_style":  {"short"},
		"use_evaluator": {"false"},
	})
	wantPath(t, resp, "/subjective")
	got := env.backend.request("/generate-subjective-questions")
	if got["num_questions"] != float64(10) || got["answer_style"] != "short" || got["use_evaluator"] != false {
		t.Errorf("subjective request = %v", got)
	}
	if !strings.Contains(body, "Explain photosynthesis.") {
		t.Errorf("subjective page missing question")
	}

	env.post("/subjective", url.Values{"use_evaluator": {"false", "true"}})
	if got := env.backend.request("/generate-subjective-questions"); got["use_evaluator"] != true {
		t.Errorf("checked evaluator box ignored: %v", got)
	}
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name string
		file string
		size int
		want string
	}{
		{"unsupported type", "song.mp3", 10, "unsupported file type .mp3"},
		{"too large", "notes.pdf", 2 << 20, "larger than 1 MB"},
		{"empty file", "notes.pdf", 0, "no file selected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, model.Config{MaxUploadSize: 1 << 20})
			env.get("/")
			resp, body := env.upload(tt.file, bytes.Repeat([]byte("x"), tt.size))
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status %d, want 400", resp.StatusCode)
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("banner missing %q", tt.want)
			}
			if n := env.backend.count("/transcribe"); n != 0 {
				t.Errorf("backend called %d times", n)
			}
		})
	}
}

func TestCSRFRequired(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.get("/")

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/restart", strings.NewReader("csrf_token=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, _ := env.do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status %d, want 403", resp.StatusCode)
	}
}

func TestRestartClearsSession(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()
	before := env.session().Epoch

	resp, _ := env.post("/restart", nil)
	wantPath(t, resp, "/")
	sess := env.session()
	if sess.Transcript != nil {
		t.Errorf("transcript survived restart")
	}
	if sess.Epoch <= before {
		t.Errorf("epoch = %d, want past %d", sess.Epoch, before)
	}
	resp, _ = env.get("/results")
	wantPath(t, resp, "/")
}

func TestNewUploadDropsArtifacts(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()
	env.post("/summary", nil)
	env.post("/objective", nil)

	resp, _ := env.upload("slides.pptx", []byte("pptx"))
	wantPath(t, resp, "/results")
	sess := env.session()
	if sess.FileName() != "slides.pptx" {
		t.Errorf("FileName = %q", sess.FileName())
	}
	if sess.Summary != nil || sess.Objective != nil {
		t.Errorf("artifacts of the previous document kept")
	}
}

func TestAPISession(t *testing.T) {
	env := newTestEnv(t, model.Config{CORSOrigins: []string{"http://example.com"}})

	resp, _ := env.get("/api/session")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("without session: status %d, want 404", resp.StatusCode)
	}

	env.start()
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/session", nil)
	req.Header.Set("Origin", "http://example.com")
	resp, body := env.do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	var snap struct {
		FileName  string         `json:"file_name"`
		WordCount int            `json:"word_count"`
		HasQuiz   bool           `json:"has_quiz"`
		Busy      []model.Action `json:"busy"`
	}
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.FileName != "notes.pdf" || snap.WordCount != 11 || snap.HasQuiz || len(snap.Busy) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}

	resp, _ = env.get("/api/quiz")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("quiz without questions: status %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	resp, body := env.get("/healthz")
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestResponseForReplacedDocumentDiscarded(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()

	// Another document is uploaded while the summary of notes.pdf is in flight.
	id := env.cookie(sessionCookieName)
	env.backend.configure(func(f *fakeBackend) {
		f.onSummarize = func() {
			sess, err := env.store.GetSession(id)
			if err != nil || sess == nil {
				t.Errorf("load session: %v", err)
				return
			}
			_, err = env.store.Replace(id, sess.Epoch, func(s *model.SessionState) error {
				s.SetTranscript(model.Transcript{Text: "Other notes.", SourceFileName: "other.pdf"})
				return nil
			})
			if err != nil {
				t.Errorf("replace transcript: %v", err)
			}
		}
	})

	resp, body := env.post("/summary", nil)
	wantPath(t, resp, "/results")
	if !strings.Contains(body, "other.pdf") {
		t.Errorf("results page should show the new document")
	}
	sess := env.session()
	if sess.FileName() != "other.pdf" {
		t.Errorf("FileName = %q, want other.pdf", sess.FileName())
	}
	if sess.Summary != nil {
		t.Errorf("summary of notes.pdf stored against other.pdf: %+v", sess.Summary)
	}
}

func TestStartScreenClearsSession(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()
	env.post("/objective", nil)
	before := env.session().Epoch

	resp, body := env.get("/")
	wantPath(t, resp, "/")
	if strings.Contains(body, "notes.pdf") {
		t.Errorf("start screen still offers the previous document")
	}
	sess := env.session()
	if sess.Transcript != nil || sess.Objective != nil {
		t.Errorf("session not cleared: %+v", sess)
	}
	if sess.Epoch <= before {
		t.Errorf("epoch = %d, want past %d", sess.Epoch, before)
	}

	resp, _ = env.get("/results")
	wantPath(t, resp, "/")
}

func TestSubmitDisablesControl(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()

	_, body := env.get("/results")
	if n := strings.Count(body, `onsubmit="disableSubmit(this)"`); n != 4 {
		t.Errorf("%d forms disable their control on submit, want 4", n)
	}
	if !strings.Contains(body, `data-busy="Processing…"`) {
		t.Errorf("submit control has no busy label")
	}
}

func TestDoubleSubmitSendsOneRequest(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	env.backend.configure(func(f *fakeBackend) {
		f.onSummarize = func() {
			entered <- struct{}{}
			<-release
		}
	})

	first := env.postRequest("/summary", nil)
	done := make(chan string, 1)
	go func() {
		resp, err := env.client.Do(first)
		if err != nil {
			done <- err.Error()
			return
		}
		resp.Body.Close()
		done <- resp.Request.URL.Path
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("first summary request never reached the backend")
	}

	resp, _ := env.post("/summary", nil)
	close(release)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second submit status %d, want 409", resp.StatusCode)
	}
	if got := <-done; got != "/summary" {
		t.Errorf("first submit landed on %s, want /summary", got)
	}
	if n := env.backend.count("/summarize"); n != 1 {
		t.Errorf("backend called %d times, want 1", n)
	}
}

func TestResultsLinksOnlyReusableArtifacts(t *testing.T) {
	env := newTestEnv(t, model.Config{})
	env.start()
	env.post("/summary", nil)
	env.post("/objective", nil)

	_, body := env.get("/results")
	if strings.Contains(body, `href="/summary"`) {
		t.Errorf("results page links to a stored summary")
	}
	if !strings.Contains(body, `href="/objective"`) {
		t.Errorf("results page does not link to the objective questions")
	}
}

func TestUseEvaluator(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"absent", "count=3", true},
		{"hidden default only", "use_evaluator=false", false},
		{"checked", "use_evaluator=false&use_evaluator=true", true},
		{"garbage", "use_evaluator=maybe", true},
		{"malformed body", "use_evaluator=%zz", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/subjective", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if got := useEvaluator(r); got != tt.want {
				t.Errorf("useEvaluator(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}
