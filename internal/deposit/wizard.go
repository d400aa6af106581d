// Package deposit drives the guided deposit claim: pick a channel and amount,
// attach the transfer evidence, confirm, then land on a terminal success or
// failed screen. Failed submissions replay the retained request untouched.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"lucky/internal/apiclient"
	"lucky/internal/session"

	"github.com/shopspring/decimal"
)

type Step int

const (
	StepAmount Step = iota
	StepDetail
	StepConfirm
	StepSuccess
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepAmount:
		return "amount"
	case StepDetail:
		return "detail"
	case StepConfirm:
		return "confirm"
	case StepSuccess:
		return "success"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrNoChannel     = errors.New("select a payment channel first")
	ErrChannelClosed = errors.New("this payment channel is closed right now")
	ErrNoAmount      = errors.New("enter a deposit amount")
	ErrTransIDDigits = errors.New("transaction id must contain digits only")
	ErrNoPayerName   = errors.New("enter the sender name")
	ErrNoReceipt     = errors.New("attach the transfer receipt image")
	ErrNotLoggedIn   = errors.New("login required")
	ErrWrongStep     = errors.New("operation not valid in this step")
)

var digitsRE = regexp.MustCompile(`^[0-9]+$`)

type Wizard struct {
	api   *apiclient.Client
	store *session.Store
	now   func() time.Time

	step      Step
	channel   *apiclient.Channel
	amount    decimal.Decimal
	amountSet bool
	payerName string
	transID   string
	receipt   *Receipt

	// pending is the immutable submission built at confirm time; Retry
	// replays it without re-deriving from possibly-edited fields.
	pending *apiclient.DepositRequest
	order   *apiclient.Order
	lastErr error
}

func NewWizard(api *apiclient.Client, store *session.Store) *Wizard {
	return &Wizard{api: api, store: store, now: time.Now, step: StepAmount}
}

func (w *Wizard) Step() Step                  { return w.step }
func (w *Wizard) Channel() *apiclient.Channel { return w.channel }
func (w *Wizard) Order() *apiclient.Order     { return w.order }
func (w *Wizard) LastError() error            { return w.lastErr }
func (w *Wizard) Receipt() *Receipt           { return w.receipt }

func (w *Wizard) SelectChannel(ch apiclient.Channel) {
	cp := ch
	w.channel = &cp
}

func (w *Wizard) SetAmount(v decimal.Decimal) {
	w.amount = v
	w.amountSet = true
}

func (w *Wizard) SetPayerName(name string)  { w.payerName = name }
func (w *Wizard) SetTransactionID(id string) { w.transID = id }

// AttachReceipt installs a new receipt, releasing the previous preview first.
func (w *Wizard) AttachReceipt(name string, data []byte) error {
	r, err := NewReceipt(name, data)
	if err != nil {
		return err
	}
	if w.receipt != nil {
		if err := w.receipt.Release(); err != nil {
			return err
		}
	}
	w.receipt = r
	return nil
}

// ClearReceipt drops the attachment and its preview.
func (w *Wizard) ClearReceipt() error {
	if w.receipt == nil {
		return nil
	}
	err := w.receipt.Release()
	w.receipt = nil
	return err
}

// Advance applies the current step's guard and moves forward. From confirm it
// submits; from failed it retries the retained submission.
func (w *Wizard) Advance(ctx context.Context) error {
	switch w.step {
	case StepAmount:
		return w.advanceAmount()
	case StepDetail:
		return w.advanceDetail()
	case StepConfirm:
		return w.Submit(ctx)
	case StepFailed:
		return w.Retry(ctx)
	default:
		return ErrWrongStep
	}
}

func (w *Wizard) advanceAmount() error {
	if w.channel == nil {
		return ErrNoChannel
	}
	if w.channel.DisabledAt(w.now()) {
		return ErrChannelClosed
	}
	if !w.amountSet {
		return ErrNoAmount
	}
	if w.amount.LessThan(w.channel.SingleMin) {
		return fmt.Errorf("minimum single deposit is %s", w.channel.SingleMin)
	}
	if w.amount.GreaterThan(w.channel.SingleMax) {
		return fmt.Errorf("maximum single deposit is %s", w.channel.SingleMax)
	}
	w.step = StepDetail
	return nil
}

func (w *Wizard) advanceDetail() error {
	if !digitsRE.MatchString(strings.TrimSpace(w.transID)) {
		return ErrTransIDDigits
	}
	if strings.TrimSpace(w.payerName) == "" {
		return ErrNoPayerName
	}
	if w.receipt == nil {
		return ErrNoReceipt
	}
	w.step = StepConfirm
	return nil
}

// Submit sends the claim. The request value is built once here and retained
// for retry; success and failed are both terminal without a reset.
func (w *Wizard) Submit(ctx context.Context) error {
	if w.step != StepConfirm {
		return ErrWrongStep
	}
	token := w.store.Token()
	if token == "" {
		return ErrNotLoggedIn
	}
	if w.pending == nil {
		w.pending = &apiclient.DepositRequest{
			Token:         token,
			ChannelID:     w.channel.ID,
			PayerAccount:  w.channel.AccountNumber,
			PayerName:     strings.TrimSpace(w.payerName),
			BankName:      w.channel.BankName,
			Amount:        w.amount,
			TransactionID: strings.TrimSpace(w.transID),
			ReceiptName:   w.receipt.Name,
			Receipt:       w.receipt.Data,
		}
	}
	return w.send(ctx)
}

// Retry re-attempts the identical submission.
func (w *Wizard) Retry(ctx context.Context) error {
	if w.step != StepFailed {
		return ErrWrongStep
	}
	if w.pending == nil {
		return ErrWrongStep
	}
	w.step = StepConfirm
	return w.send(ctx)
}

func (w *Wizard) send(ctx context.Context) error {
	order, err := w.api.SubmitDeposit(ctx, *w.pending)
	if err != nil {
		w.step = StepFailed
		w.lastErr = err
		if apiclient.IsUnauthorized(err) {
			w.store.Deauth("session expired, please log in again")
		}
		return err
	}
	w.order = order
	w.step = StepSuccess
	w.lastErr = nil
	return nil
}

// Reset returns to the amount step and clears every wizard-local field,
// including the receipt preview. Also the teardown path.
func (w *Wizard) Reset() {
	if w.receipt != nil {
		_ = w.receipt.Release()
		w.receipt = nil
	}
	w.step = StepAmount
	w.channel = nil
	w.amount = decimal.Zero
	w.amountSet = false
	w.payerName = ""
	w.transID = ""
	w.pending = nil
	w.order = nil
	w.lastErr = nil
}
