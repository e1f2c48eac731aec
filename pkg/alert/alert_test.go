package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gomail "gopkg.in/mail.v2"

	"stock-news/pkg/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var record = &domain.NewsRecord{
	Title:       "Fed raises interest rates",
	Summary:     "The Fed raised rates by 25bp.",
	URL:         "https://example.com/fed",
	ImpactScore: 5,
}

func TestMessage(t *testing.T) {
	want := "📰 *Stock News Alert*\n\nFed raises interest rates\n\nImpact Score: 5/5\n\nThe Fed raised rates by 25bp.\n\nRead more: https://example.com/fed"
	if got := Message(record); got != want {
		t.Errorf("Message() =\n%q\nwant\n%q", got, want)
	}
	if got := Subject(record); got != "Stock Alert: Fed raises interest rates" {
		t.Errorf("Subject() = %q", got)
	}
}

// Test Case 1: TestTelegramSender_Send
// Input: httptest Bot API server returning 200
// Expected Output: POST to /bot<token>/sendMessage with chat id, text and Markdown parse mode
func TestTelegramSender_Send(t *testing.T) {
	var got telegramMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	sender := NewTelegramSender("TOKEN", "42", server.URL)
	if err := sender.Send(context.Background(), record); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ChatID != "42" || got.ParseMode != "Markdown" || got.Text != Message(record) {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestTelegramSender_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	if err := NewTelegramSender("TOKEN", "42", server.URL).Send(context.Background(), record); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestTelegramSender_MissingConfig(t *testing.T) {
	if err := NewTelegramSender("", "42", "").Send(context.Background(), record); err == nil {
		t.Error("expected error without token")
	}
	if err := NewTelegramSender("TOKEN", "", "").Send(context.Background(), record); err == nil {
		t.Error("expected error without chat id")
	}
}

func TestEmailSender_Send(t *testing.T) {
	sender := NewEmailSender(EmailConfig{
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		FromEmail:  "alerts@example.com",
		ToEmail:    "me@example.com",
	})

	var sent *gomail.Message
	sender.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	if err := sender.Send(context.Background(), record); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent == nil {
		t.Fatal("message not sent")
	}
	if subj := sent.GetHeader("Subject"); len(subj) != 1 || subj[0] != "Stock Alert: Fed raises interest rates" {
		t.Errorf("subject = %v", subj)
	}
	if to := sent.GetHeader("To"); len(to) != 1 || to[0] != "me@example.com" {
		t.Errorf("to = %v", to)
	}
}

func TestEmailSender_RequiresServer(t *testing.T) {
	if err := NewEmailSender(EmailConfig{}).Send(context.Background(), record); err == nil {
		t.Fatal("expected error without SMTP server")
	}
}

// mockSender is a mock implementation of Sender for testing
type mockSender struct {
	name      string
	err       error
	delay     time.Duration
	mu        sync.Mutex
	callCount int
	ctxErr    error
}

func (m *mockSender) Name() string { return m.name }

func (m *mockSender) Send(ctx context.Context, record *domain.NewsRecord) error {
	time.Sleep(m.delay)
	m.mu.Lock()
	m.callCount++
	m.ctxErr = ctx.Err()
	m.mu.Unlock()
	return m.err
}

// Test Case 2: TestDispatcher_Dispatch
// Input: three senders, one failing
// Expected Output: all three attempted, the failure returned with the sender name
func TestDispatcher_Dispatch(t *testing.T) {
	ok1 := &mockSender{name: "ok1"}
	bad := &mockSender{name: "bad", err: errors.New("smtp down")}
	ok2 := &mockSender{name: "ok2"}
	d := NewDispatcher([]Sender{ok1, bad, ok2}, 0, discardLogger)

	err := d.Dispatch(context.Background(), record)
	if err == nil || !strings.Contains(err.Error(), "bad: smtp down") {
		t.Errorf("unexpected error: %v", err)
	}
	for _, s := range []*mockSender{ok1, bad, ok2} {
		if s.callCount != 1 {
			t.Errorf("%s called %d times, want 1", s.name, s.callCount)
		}
	}
}

func TestDispatcher_FailureDoesNotCancelOthers(t *testing.T) {
	bad := &mockSender{name: "bad", err: errors.New("telegram down")}
	slow := &mockSender{name: "slow", delay: 50 * time.Millisecond}
	d := NewDispatcher([]Sender{bad, slow}, 0, discardLogger)

	if err := d.Dispatch(context.Background(), record); err == nil {
		t.Fatal("expected the telegram failure")
	}
	if slow.callCount != 1 || slow.ctxErr != nil {
		t.Errorf("slow sender: calls %d, ctx err %v", slow.callCount, slow.ctxErr)
	}
}

func TestDispatcher_AllSucceed(t *testing.T) {
	d := NewDispatcher([]Sender{&mockSender{name: "a"}, &mockSender{name: "b"}}, 0, discardLogger)
	if err := d.Dispatch(context.Background(), record); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDispatcher_HookThreshold(t *testing.T) {
	sender := &mockSender{name: "s"}
	d := NewDispatcher([]Sender{sender}, 4, discardLogger)

	d.Hook(context.Background(), &domain.NewsRecord{ImpactScore: 3})
	if sender.callCount != 0 {
		t.Errorf("below-threshold record sent")
	}
	d.Hook(context.Background(), &domain.NewsRecord{ImpactScore: 4})
	if sender.callCount != 1 {
		t.Errorf("at-threshold record not sent")
	}
}

func TestDispatcher_DefaultThreshold(t *testing.T) {
	sender := &mockSender{name: "s"}
	d := NewDispatcher([]Sender{sender}, 0, discardLogger)

	d.Hook(context.Background(), &domain.NewsRecord{ImpactScore: 4})
	d.Hook(context.Background(), &domain.NewsRecord{ImpactScore: 5})
	if sender.callCount != 1 {
		t.Errorf("expected only the score-5 record sent, got %d sends", sender.callCount)
	}
}
