package deposit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"lucky/internal/apiclient"
	"lucky/internal/envelope"
	"lucky/internal/session"

	"github.com/shopspring/decimal"
)

func newTestCodec(t *testing.T) *envelope.Codec {
	t.Helper()
	c, err := envelope.NewCodec([]byte("0123456789abcdef0123456789abcdef"), []byte("abcdef9876543210"))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return c
}

func seal(t *testing.T, c *envelope.Codec, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	enc, err := c.Encrypt(raw)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return enc
}

func writeEnvelope(w http.ResponseWriter, code int, msg, data string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": map[string]any{"errorCode": code, "msg": msg, "mess": ""},
		"data":   data,
	})
}

func loggedInStore(t *testing.T) *session.Store {
	t.Helper()
	store := session.NewStore(nil, nil)
	store.SetIdentity(&session.Identity{ID: 1, Name: "alice", Token: "tok"})
	return store
}

func openChannel() apiclient.Channel {
	return apiclient.Channel{
		ID:            3,
		BankName:      "First Bank",
		AccountName:   "Lucky Holdings",
		AccountNumber: "111222",
		SingleMin:     decimal.NewFromInt(10),
		SingleMax:     decimal.NewFromInt(1000),
	}
}

func TestAmountStepGuards(t *testing.T) {
	w := NewWizard(nil, loggedInStore(t))
	ctx := context.Background()

	if err := w.Advance(ctx); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("no channel: got %v", err)
	}

	w.SelectChannel(openChannel())
	if err := w.Advance(ctx); !errors.Is(err, ErrNoAmount) {
		t.Fatalf("no amount: got %v", err)
	}

	w.SetAmount(decimal.NewFromInt(9))
	err := w.Advance(ctx)
	if err == nil || !strings.Contains(err.Error(), "minimum") {
		t.Fatalf("below minimum: got %v", err)
	}
	if w.Step() != StepAmount {
		t.Fatalf("rejected amount must keep step at amount, got %s", w.Step())
	}

	w.SetAmount(decimal.NewFromInt(1001))
	if err := w.Advance(ctx); err == nil || !strings.Contains(err.Error(), "maximum") {
		t.Fatalf("above maximum: got %v", err)
	}

	w.SetAmount(decimal.NewFromInt(1000))
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("boundary amount should pass: %v", err)
	}
	if w.Step() != StepDetail {
		t.Fatalf("step = %s, want detail", w.Step())
	}
}

func TestClosedChannelBlocksAmountStep(t *testing.T) {
	w := NewWizard(nil, loggedInStore(t))
	ch := openChannel()
	ch.StartTime = "01:00"
	ch.EndTime = "03:00"
	w.SelectChannel(ch)
	w.SetAmount(decimal.NewFromInt(100))
	w.now = func() time.Time {
		tm, _ := time.Parse("15:04", "02:00")
		return tm
	}
	if err := w.Advance(context.Background()); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("closed channel: got %v", err)
	}
}

func TestDetailStepGuards(t *testing.T) {
	w := NewWizard(nil, loggedInStore(t))
	ctx := context.Background()
	w.SelectChannel(openChannel())
	w.SetAmount(decimal.NewFromInt(100))
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("amount step: %v", err)
	}

	w.SetTransactionID("abc123")
	if err := w.Advance(ctx); !errors.Is(err, ErrTransIDDigits) {
		t.Fatalf("non-digit trans id: got %v", err)
	}

	w.SetTransactionID("123456")
	if err := w.Advance(ctx); !errors.Is(err, ErrNoPayerName) {
		t.Fatalf("missing payer name: got %v", err)
	}

	w.SetPayerName("Alice")
	if err := w.Advance(ctx); !errors.Is(err, ErrNoReceipt) {
		t.Fatalf("missing receipt: got %v", err)
	}

	if err := w.AttachReceipt("receipt.png", []byte("png-bytes")); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("detail step should pass: %v", err)
	}
	if w.Step() != StepConfirm {
		t.Fatalf("step = %s, want confirm", w.Step())
	}
	w.Reset()
}

// walk a wizard to the confirm step with standard fixture values
func toConfirm(t *testing.T, api *apiclient.Client) *Wizard {
	t.Helper()
	w := NewWizard(api, loggedInStore(t))
	ctx := context.Background()
	w.SelectChannel(openChannel())
	w.SetAmount(decimal.NewFromInt(150))
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("amount: %v", err)
	}
	w.SetTransactionID("987654")
	w.SetPayerName("Alice")
	if err := w.AttachReceipt("receipt.png", []byte("png-bytes")); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("detail: %v", err)
	}
	return w
}

func TestSubmitSuccess(t *testing.T) {
	codec := newTestCodec(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "ok", seal(t, codec, map[string]any{
			"order_no": "D-001",
			"amount":   "150",
		}))
	}))
	defer srv.Close()

	w := toConfirm(t, apiclient.New(srv.URL, codec))
	defer w.Reset()
	if err := w.Advance(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if w.Step() != StepSuccess {
		t.Fatalf("step = %s, want success", w.Step())
	}
	if w.Order() == nil || w.Order().OrderNo != "D-001" {
		t.Fatalf("order = %+v", w.Order())
	}
}

func TestFailedSubmitRetriesIdentically(t *testing.T) {
	codec := newTestCodec(t)
	var amounts, payers []string
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		amounts = append(amounts, r.FormValue("amount"))
		payers = append(payers, r.FormValue("payer_name"))
		if attempts == 1 {
			writeEnvelope(w, 1009, "order rejected", "")
			return
		}
		writeEnvelope(w, 0, "ok", seal(t, codec, map[string]any{"order_no": "D-002"}))
	}))
	defer srv.Close()

	w := toConfirm(t, apiclient.New(srv.URL, codec))
	defer w.Reset()
	ctx := context.Background()

	if err := w.Advance(ctx); err == nil {
		t.Fatal("first submit should fail")
	}
	if w.Step() != StepFailed || w.LastError() == nil {
		t.Fatalf("step = %s, lastErr = %v", w.Step(), w.LastError())
	}

	// edits after the failure must not leak into the retry
	w.SetAmount(decimal.NewFromInt(999))
	w.SetPayerName("Mallory")

	if err := w.Advance(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if w.Step() != StepSuccess || w.LastError() != nil {
		t.Fatalf("step = %s, lastErr = %v", w.Step(), w.LastError())
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if amounts[0] != amounts[1] || payers[0] != payers[1] {
		t.Fatalf("retry payload drifted: amounts %v payers %v", amounts, payers)
	}
	if amounts[1] != "150" || payers[1] != "Alice" {
		t.Fatalf("retry payload = %s/%s, want original values", amounts[1], payers[1])
	}
}

func TestSubmitRequiresLogin(t *testing.T) {
	w := NewWizard(nil, session.NewStore(nil, nil))
	w.SelectChannel(openChannel())
	w.SetAmount(decimal.NewFromInt(100))
	ctx := context.Background()
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("amount: %v", err)
	}
	w.SetTransactionID("123")
	w.SetPayerName("Alice")
	if err := w.AttachReceipt("r.png", []byte("x")); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer w.Reset()
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("detail: %v", err)
	}
	if err := w.Advance(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestUnauthorizedSubmitDeauthenticates(t *testing.T) {
	codec := newTestCodec(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 401, "unauthenticated", "")
	}))
	defer srv.Close()

	store := loggedInStore(t)
	w := NewWizard(apiclient.New(srv.URL, codec), store)
	defer w.Reset()
	w.SelectChannel(openChannel())
	w.SetAmount(decimal.NewFromInt(100))
	ctx := context.Background()
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("amount: %v", err)
	}
	w.SetTransactionID("123")
	w.SetPayerName("Alice")
	if err := w.AttachReceipt("r.png", []byte("x")); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := w.Advance(ctx); err != nil {
		t.Fatalf("detail: %v", err)
	}
	if err := w.Advance(ctx); !apiclient.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if store.Identity() != nil {
		t.Fatal("401 on submit must clear the session")
	}
}

func TestReceiptLifecycle(t *testing.T) {
	r, err := NewReceipt("receipt.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("new receipt: %v", err)
	}
	path := r.PreviewPath()
	if path == "" {
		t.Fatal("preview path missing")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("preview file: %v", err)
	}
	if err := r.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if r.PreviewPath() != "" {
		t.Fatal("released preview must report empty path")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("preview file still present: %v", err)
	}
	if err := r.Release(); !errors.Is(err, ErrReleased) {
		t.Fatalf("double release: got %v", err)
	}
}

func TestAttachReplacesAndReleasesPrevious(t *testing.T) {
	w := NewWizard(nil, loggedInStore(t))
	if err := w.AttachReceipt("a.png", []byte("a")); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	first := w.Receipt().PreviewPath()
	if err := w.AttachReceipt("b.png", []byte("b")); err != nil {
		t.Fatalf("attach b: %v", err)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Fatalf("previous preview must be removed on replace: %v", err)
	}
	second := w.Receipt().PreviewPath()
	if second == "" || second == first {
		t.Fatalf("second preview path = %q", second)
	}
	if err := w.ClearReceipt(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(second); !os.IsNotExist(err) {
		t.Fatalf("cleared preview must be removed: %v", err)
	}
	if w.Receipt() != nil {
		t.Fatal("receipt must be nil after clear")
	}
	if err := w.ClearReceipt(); err != nil {
		t.Fatalf("clearing nothing should be a no-op: %v", err)
	}
}

func TestResetClearsEverything(t *testing.T) {
	w := NewWizard(nil, loggedInStore(t))
	w.SelectChannel(openChannel())
	w.SetAmount(decimal.NewFromInt(100))
	if err := w.Advance(context.Background()); err != nil {
		t.Fatalf("amount: %v", err)
	}
	if err := w.AttachReceipt("r.png", []byte("x")); err != nil {
		t.Fatalf("attach: %v", err)
	}
	path := w.Receipt().PreviewPath()

	w.Reset()
	if w.Step() != StepAmount {
		t.Fatalf("step = %s, want amount", w.Step())
	}
	if w.Channel() != nil || w.Receipt() != nil || w.Order() != nil || w.LastError() != nil {
		t.Fatal("reset must clear wizard state")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("reset must release the preview: %v", err)
	}
}
