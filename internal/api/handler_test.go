package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"wira/internal/ai"
	"wira/internal/auth"
	"wira/internal/provider"
	"wira/internal/queue"
	"wira/internal/store"
)

// stubStore serves canned rows and records writes.
type stubStore struct {
	profiles  map[string]store.UserProfile
	chatbots  map[string]store.Chatbot
	knowledge []store.KnowledgeItem
	logged    []store.Conversation
	analytics store.Analytics
	pingErr   error
}

func (s *stubStore) CreateUserProfile(_ context.Context, p store.UserProfile) (store.UserProfile, error) {
	if s.profiles == nil {
		s.profiles = map[string]store.UserProfile{}
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	s.profiles[p.ID] = p
	return p, nil
}

func (s *stubStore) GetUserProfile(_ context.Context, id string) (store.UserProfile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return store.UserProfile{}, store.ErrNotFound
	}
	return p, nil
}

func (s *stubStore) CreateChatbot(_ context.Context, userID, name string, description, industry *string) (store.Chatbot, error) {
	bot := store.Chatbot{
		ID:          "bot-new",
		UserID:      userID,
		Name:        name,
		Description: description,
		Industry:    industry,
		Status:      "draft",
		CreatedAt:   time.Now(),
	}
	if s.chatbots == nil {
		s.chatbots = map[string]store.Chatbot{}
	}
	s.chatbots[bot.ID] = bot
	return bot, nil
}

func (s *stubStore) ListChatbots(_ context.Context, userID string) ([]store.Chatbot, error) {
	var out []store.Chatbot
	for _, b := range s.chatbots {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubStore) GetChatbot(_ context.Context, id, userID string) (store.Chatbot, error) {
	b, ok := s.chatbots[id]
	if !ok || b.UserID != userID {
		return store.Chatbot{}, store.ErrNotFound
	}
	return b, nil
}

func (s *stubStore) UpdateChatbot(_ context.Context, id, userID string, upd store.ChatbotUpdate) (store.Chatbot, error) {
	b, err := s.GetChatbot(context.Background(), id, userID)
	if err != nil {
		return store.Chatbot{}, err
	}
	if upd.Name != nil {
		b.Name = *upd.Name
	}
	if upd.Status != nil {
		b.Status = *upd.Status
	}
	s.chatbots[id] = b
	return b, nil
}

func (s *stubStore) AddKnowledgeItem(_ context.Context, chatbotID, content string, source, category *string) (store.KnowledgeItem, error) {
	item := store.KnowledgeItem{ID: "ki-1", ChatbotID: chatbotID, Content: content, Source: source, Category: category}
	s.knowledge = append(s.knowledge, item)
	return item, nil
}

func (s *stubStore) ListKnowledge(_ context.Context, chatbotID string) ([]store.KnowledgeItem, error) {
	var out []store.KnowledgeItem
	for _, item := range s.knowledge {
		if item.ChatbotID == chatbotID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *stubStore) LogConversation(_ context.Context, conv store.Conversation) (store.Conversation, error) {
	s.logged = append(s.logged, conv)
	return conv, nil
}

func (s *stubStore) SentimentAnalytics(_ context.Context, _ string, days int) (store.Analytics, error) {
	a := s.analytics
	a.PeriodDays = days
	return a, nil
}

func (s *stubStore) Ping(context.Context) error { return s.pingErr }

type stubQueue struct {
	mu      sync.Mutex
	jobs    []queue.ConversationJob
	pingErr error

	// When set, PushConversationLog waits until the channel is closed.
	gate chan struct{}
}

func (q *stubQueue) PushConversationLog(_ context.Context, job queue.ConversationJob) error {
	if q.gate != nil {
		<-q.gate
	}
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	return nil
}

func (q *stubQueue) snapshot() []queue.ConversationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.ConversationJob(nil), q.jobs...)
}

func (q *stubQueue) Depth(context.Context) (int64, error) {
	return int64(len(q.snapshot())), nil
}

func (q *stubQueue) Ping(context.Context) error { return q.pingErr }

// waitForJobs polls until the queue has seen n jobs; logging runs off the
// request goroutine, so tests cannot read the slice right after a request.
func waitForJobs(t *testing.T, q *stubQueue, n int) []queue.ConversationJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if jobs := q.snapshot(); len(jobs) >= n {
			return jobs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("queue never received %d jobs, got %d", n, len(q.snapshot()))
	return nil
}

type stubAuth struct {
	principal auth.Principal
	err       error
}

func (a *stubAuth) AuthenticateRequest(*http.Request) (auth.Principal, error) {
	return a.principal, a.err
}

// scriptedProvider answers every capability from fixed results.
type scriptedProvider struct {
	chat      provider.GenerationResult
	hoax      provider.HoaxResult
	sentiment provider.SentimentResult

	hoaxCalls int
	lastChat  provider.ChatRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) GenerateChatResponse(_ context.Context, req provider.ChatRequest) provider.GenerationResult {
	p.lastChat = req
	return p.chat
}

func (p *scriptedProvider) DetectHoax(context.Context, string) provider.HoaxResult {
	p.hoaxCalls++
	return p.hoax
}

func (p *scriptedProvider) AnalyzeSentiment(context.Context, string) provider.SentimentResult {
	return p.sentiment
}

func newTestHandler(t *testing.T, st *stubStore, q *stubQueue, prov provider.Client) (*Handler, http.Handler) {
	t.Helper()
	h := NewHandler(
		ai.NewService(prov, nil, nil),
		st,
		q,
		&stubAuth{principal: auth.Principal{UserID: "user-1", Role: "owner"}},
		2,
	)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return h, r
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func defaultProvider() *scriptedProvider {
	return &scriptedProvider{
		chat: provider.GenerationResult{
			Response:   "Tentu, berikut langkah-langkah mendaftarkan UMKM Anda.",
			Confidence: 0.9,
			Model:      "test-model",
		},
		hoax:      provider.HoaxResult{IsHoax: true, Confidence: 0.8},
		sentiment: provider.SentimentResult{Sentiment: provider.SentimentPositive, Confidence: 0.7},
	}
}

func TestChatHappyPath(t *testing.T) {
	prov := defaultProvider()
	q := &stubQueue{}
	_, router := newTestHandler(t, &stubStore{}, q, prov)

	rec := doJSON(t, router, "POST", "/chat", `{"message":"bagaimana cara daftar?","chatbot_id":"bot-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != prov.chat.Response || resp.Confidence != 0.9 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Sentiment != provider.SentimentPositive {
		t.Fatalf("sentiment missing, got %q", resp.Sentiment)
	}
	if resp.IsHoaxDetected {
		t.Fatalf("plain question must not trigger hoax screening")
	}
	if prov.hoaxCalls != 0 {
		t.Fatalf("hoax detection must be skipped without trigger words")
	}

	jobs := waitForJobs(t, q, 1)
	job := jobs[0]
	if job.ChatbotID != "bot-1" || job.Tier != "primary" || job.Provider != "scripted" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestChatHoaxTriggerScreensMessage(t *testing.T) {
	prov := defaultProvider()
	_, router := newTestHandler(t, &stubStore{}, &stubQueue{}, prov)

	rec := doJSON(t, router, "POST", "/chat", `{"message":"katanya saya menang hadiah gratis?","chatbot_id":"bot-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp chatResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.IsHoaxDetected {
		t.Fatalf("trigger words must run hoax screening")
	}
	if prov.hoaxCalls != 1 {
		t.Fatalf("expected one hoax call, got %d", prov.hoaxCalls)
	}
}

func TestChatUsesKnowledgeContextWhenNoneGiven(t *testing.T) {
	prov := defaultProvider()
	st := &stubStore{knowledge: []store.KnowledgeItem{
		{ChatbotID: "bot-1", Content: "Jam buka: 09.00-17.00"},
		{ChatbotID: "bot-1", Content: "Gratis ongkir area Bandung"},
		{ChatbotID: "bot-1", Content: "item ketiga melewati batas"},
	}}
	_, router := newTestHandler(t, st, &stubQueue{}, prov)

	doJSON(t, router, "POST", "/chat", `{"message":"jam operasional?","chatbot_id":"bot-1"}`)

	got := prov.lastChat.Context
	if !strings.Contains(got, "Jam buka") || !strings.Contains(got, "Gratis ongkir") {
		t.Fatalf("knowledge items missing from context: %q", got)
	}
	if strings.Contains(got, "item ketiga") {
		t.Fatalf("context must be capped at the configured item count: %q", got)
	}
}

func TestChatExplicitContextSkipsKnowledgeLookup(t *testing.T) {
	prov := defaultProvider()
	st := &stubStore{knowledge: []store.KnowledgeItem{{ChatbotID: "bot-1", Content: "dari basis data"}}}
	_, router := newTestHandler(t, st, &stubQueue{}, prov)

	doJSON(t, router, "POST", "/chat", `{"message":"halo","chatbot_id":"bot-1","context":"konteks langsung"}`)
	if prov.lastChat.Context != "konteks langsung" {
		t.Fatalf("explicit context must win, got %q", prov.lastChat.Context)
	}
}

func TestChatValidation(t *testing.T) {
	_, router := newTestHandler(t, &stubStore{}, &stubQueue{}, defaultProvider())

	for name, body := range map[string]string{
		"empty body":       "",
		"not json":         "{",
		"missing message":  `{"chatbot_id":"bot-1"}`,
		"empty message":    `{"message":"","chatbot_id":"bot-1"}`,
		"unknown property": `{"message":"halo","chatbot_id":"bot-1","extra":1}`,
	} {
		rec := doJSON(t, router, "POST", "/chat", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestChatDegradedAINeverErrors(t *testing.T) {
	prov := &scriptedProvider{
		chat:      provider.GenerationResult{Err: "connection refused"},
		sentiment: provider.SentimentResult{Err: "connection refused"},
	}
	_, router := newTestHandler(t, &stubStore{}, &stubQueue{}, prov)

	rec := doJSON(t, router, "POST", "/chat", `{"message":"halo","chatbot_id":"bot-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded AI must still answer 200, got %d", rec.Code)
	}

	var resp chatResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Confidence != 0 || resp.Response == "" {
		t.Fatalf("expected zero-confidence apology, got %+v", resp)
	}
}

func TestChatLoggingDoesNotBlockResponse(t *testing.T) {
	prov := defaultProvider()
	q := &stubQueue{gate: make(chan struct{})}
	_, router := newTestHandler(t, &stubStore{}, q, prov)

	rec := doJSON(t, router, "POST", "/chat", `{"message":"halo apa kabar","chatbot_id":"bot-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if len(q.snapshot()) != 0 {
		t.Fatalf("response must not wait for the enqueue")
	}

	close(q.gate)
	jobs := waitForJobs(t, q, 1)
	if jobs[0].ChatbotID != "bot-1" {
		t.Fatalf("unexpected job %+v", jobs[0])
	}
}

func TestProfileEndpoints(t *testing.T) {
	_, router := newTestHandler(t, &stubStore{}, &stubQueue{}, defaultProvider())

	rec := doJSON(t, router, "GET", "/profile", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("absent profile: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/profile", `{"full_name":"Budi Santoso","business_name":"Batik Nusantara","industry":"fashion"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create profile: status %d: %s", rec.Code, rec.Body)
	}
	var created profileDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID != "user-1" {
		t.Fatalf("profile id must come from the token, got %q", created.ID)
	}
	if created.BusinessName == nil || *created.BusinessName != "Batik Nusantara" {
		t.Fatalf("unexpected profile %+v", created)
	}

	rec = doJSON(t, router, "GET", "/profile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get profile: status %d", rec.Code)
	}
	var fetched profileDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &fetched)
	if fetched.ID != "user-1" || fetched.BusinessName == nil {
		t.Fatalf("unexpected fetched profile %+v", fetched)
	}

	rec = doJSON(t, router, "POST", "/profile", `{"id":"user-9"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown property: expected 400, got %d", rec.Code)
	}
}

func TestHoaxDetectionEndpoint(t *testing.T) {
	_, router := newTestHandler(t, &stubStore{}, &stubQueue{}, defaultProvider())

	rec := doJSON(t, router, "POST", "/ai/hoax-detection", `{"text":"menang undian jutaan rupiah"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["is_hoax"] != true {
		t.Fatalf("unexpected verdict %v", resp)
	}
	if resp["ai_tier"] != "primary" || resp["ai_provider"] != "scripted" {
		t.Fatalf("verdict must carry its origin, got %v", resp)
	}
}

func TestSentimentEndpoint(t *testing.T) {
	_, router := newTestHandler(t, &stubStore{}, &stubQueue{}, defaultProvider())

	rec := doJSON(t, router, "POST", "/ai/sentiment-analysis", `{"text":"pelayanannya memuaskan"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["sentiment"] != provider.SentimentPositive {
		t.Fatalf("unexpected sentiment %v", resp["sentiment"])
	}
	if _, ok := resp["emotions"].(map[string]any); !ok {
		t.Fatalf("emotions must always be an object, got %T", resp["emotions"])
	}
}

func TestAIStatusEndpoint(t *testing.T) {
	_, router := newTestHandler(t, &stubStore{}, &stubQueue{}, defaultProvider())

	rec := doJSON(t, router, "GET", "/ai/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["primary_service"] != "scripted" || resp["total_providers"] != float64(1) {
		t.Fatalf("unexpected status body %v", resp)
	}
}

func TestReadyzReportsDependencyFailure(t *testing.T) {
	st := &stubStore{pingErr: errors.New("db down")}
	_, router := newTestHandler(t, st, &stubQueue{}, defaultProvider())

	rec := doJSON(t, router, "GET", "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	st.pingErr = nil
	rec = doJSON(t, router, "GET", "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when dependencies are up, got %d", rec.Code)
	}
}

func TestChatbotCRUDAndOwnership(t *testing.T) {
	st := &stubStore{chatbots: map[string]store.Chatbot{
		"bot-1":     {ID: "bot-1", UserID: "user-1", Name: "Toko Batik", Status: "active"},
		"bot-other": {ID: "bot-other", UserID: "user-2", Name: "Milik Orang Lain", Status: "active"},
	}}
	_, router := newTestHandler(t, st, &stubQueue{}, defaultProvider())

	rec := doJSON(t, router, "POST", "/chatbots", `{"name":"Warung Kopi","industry":"F&B"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body)
	}
	var created chatbotDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.Name != "Warung Kopi" || created.Status != "draft" {
		t.Fatalf("unexpected created chatbot %+v", created)
	}

	rec = doJSON(t, router, "GET", "/chatbots/bot-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	// Another user's chatbot reads as absent, not forbidden.
	rec = doJSON(t, router, "GET", "/chatbots/bot-other", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign chatbot: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, router, "PATCH", "/chatbots/bot-1", `{"status":"archived"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", rec.Code, rec.Body)
	}
	var updated chatbotDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Status != "archived" {
		t.Fatalf("status not updated: %+v", updated)
	}

	rec = doJSON(t, router, "PATCH", "/chatbots/bot-1", `{"status":"launched"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status enum: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, router, "PATCH", "/chatbots/bot-1", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch: expected 400, got %d", rec.Code)
	}
}

func TestKnowledgeEndpointsCheckOwnership(t *testing.T) {
	st := &stubStore{chatbots: map[string]store.Chatbot{
		"bot-1":     {ID: "bot-1", UserID: "user-1", Name: "Toko Batik"},
		"bot-other": {ID: "bot-other", UserID: "user-2", Name: "Bukan Milik"},
	}}
	_, router := newTestHandler(t, st, &stubQueue{}, defaultProvider())

	rec := doJSON(t, router, "POST", "/chatbots/bot-1/knowledge", `{"content":"Katalog produk batik tulis","category":"produk"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add knowledge: status %d: %s", rec.Code, rec.Body)
	}
	if len(st.knowledge) != 1 || st.knowledge[0].ChatbotID != "bot-1" {
		t.Fatalf("knowledge not stored: %+v", st.knowledge)
	}

	rec = doJSON(t, router, "POST", "/chatbots/bot-other/knowledge", `{"content":"tidak boleh"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign chatbot knowledge: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/chatbots/bot-1/knowledge", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list knowledge: status %d", rec.Code)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	st := &stubStore{
		chatbots: map[string]store.Chatbot{
			"bot-1": {ID: "bot-1", UserID: "user-1", Name: "Toko Batik"},
		},
		analytics: store.Analytics{
			TotalConversations:    10,
			SentimentDistribution: map[string]float64{"positive": 70, "negative": 30},
		},
	}
	_, router := newTestHandler(t, st, &stubQueue{}, defaultProvider())

	rec := doJSON(t, router, "GET", "/chatbots/bot-1/analytics?days=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["total_conversations"] != float64(10) || resp["period_days"] != float64(7) {
		t.Fatalf("unexpected analytics %v", resp)
	}
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	h := NewHandler(
		ai.NewService(defaultProvider(), nil, nil),
		&stubStore{},
		&stubQueue{},
		&stubAuth{err: auth.ErrUnauthorized},
		3,
	)
	router := chi.NewRouter()
	h.RegisterRoutes(router)

	for _, route := range []struct{ method, path string }{
		{"GET", "/profile"},
		{"GET", "/chatbots"},
		{"POST", "/chatbots"},
		{"GET", "/chatbots/bot-1"},
		{"GET", "/chatbots/bot-1/analytics"},
	} {
		rec := doJSON(t, router, route.method, route.path, `{"name":"x"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, rec.Code)
		}
	}

	// Chat stays public.
	rec := doJSON(t, router, "POST", "/chat", `{"message":"halo semua","chatbot_id":"bot-1"}`)
	if rec.Code == http.StatusUnauthorized {
		t.Fatalf("chat must not require auth")
	}
}
