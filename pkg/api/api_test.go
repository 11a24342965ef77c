package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/fgb-andu/reelprompt-api/pkg/kvstore"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/community"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/database/dbtest"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/promptstore"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/userprovider"
	"github.com/fgb-andu/reelprompt-api/pkg/service/auth"
	"github.com/fgb-andu/reelprompt-api/pkg/service/billing"
	"github.com/fgb-andu/reelprompt-api/pkg/service/promptgen"
	"github.com/fgb-andu/reelprompt-api/pkg/service/ratelimit"
	"github.com/sashabaranov/go-openai"
)

const (
	testSecret        = "0123456789abcdef0123456789abcdef"
	testWebhookSecret = "whsec_api_test"
	adminEmail        = "admin@example.com"
	testPassword      = "correct horse battery"
)

const cityAnswer = `{"title":"Sky Traffic","prompt":"A futuristic city at dusk.","subject":"flying cars","setting":"futuristic city","camera":"aerial drone","lighting":"dusk","style":"cinematic","mood":"awe","duration":"8s"}`

type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	content string
	err     error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeProvider struct {
	mu        sync.Mutex
	customers int
}

func (f *fakeProvider) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers++
	return fmt.Sprintf("cus_%d", f.customers), nil
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, p billing.CheckoutParams) (*billing.CheckoutSession, error) {
	return &billing.CheckoutSession{ID: "cs_" + p.Plan.ID, URL: "https://checkout.stripe.test/" + p.Plan.ID}, nil
}

func (f *fakeProvider) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://billing.stripe.test/p/" + customerID, nil
}

type discardAudit struct{}

func (discardAudit) Record(context.Context, billing.AuditEntry) error { return nil }

type testServer struct {
	handler  http.Handler
	users    *userprovider.UserProvider
	llm      *fakeCompleter
	provider *fakeProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	users := userprovider.NewUserProvider(db)
	store := kvstore.NewMemory(kvstore.MemoryConfig{})

	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	authSvc := auth.NewService(users, tokens, auth.Options{
		Hasher:   &auth.Argon2{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		Policy:   domain.NewEntitlementPolicy(nil, "", []string{adminEmail}),
		ResetURL: "http://localhost:5173/reset-password",
	})

	llm := &fakeCompleter{content: cityAnswer}
	provider := &fakeProvider{}
	billingSvc := billing.New(provider, users, billing.NewCatalog("price_month", "price_year", "price_life"), discardAudit{}, billing.Config{
		WebhookSecret: testWebhookSecret,
	}, nil)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}

	h := NewHandler(Deps{
		Auth:      authSvc,
		Users:     users,
		Prompts:   promptstore.New(db),
		Community: community.New(db),
		Generator: promptgen.New(llm, store, promptgen.Config{MaxAttempts: 1}, nil),
		Limiter:   ratelimit.New(store, ratelimit.Config{}),
		Billing:   billingSvc,
		DB:        sqlDB,
		Cache:     store,
	})
	return &testServer{handler: h.Router(), users: users, llm: llm, provider: provider}
}

// do sends a JSON request. token may be empty for a guest.
func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type authResult struct {
	OK    bool   `json:"ok"`
	Token string `json:"token"`
	User  struct {
		ID                 string                    `json:"id"`
		Email              string                    `json:"email"`
		SubscriptionStatus domain.SubscriptionStatus `json:"subscription_status"`
		IsAdmin            bool                      `json:"is_admin"`
	} `json:"user"`
}

func (s *testServer) register(t *testing.T, email string) authResult {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{Email: email, Password: testPassword, Name: "Test"}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %s", email, rec.Code, rec.Body)
	}
	var res authResult
	decode(t, rec, &res)
	return res
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var res messageResponse
	decode(t, rec, &res)
	return res.Message
}

// signPayload builds a Stripe-Signature header the way Stripe does.
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
