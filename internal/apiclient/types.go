package apiclient

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Channel is one payment rail. Immutable once fetched; refreshed wholesale.
type Channel struct {
	ID            int64           `json:"id"`
	BankName      string          `json:"bank_name"`
	AccountName   string          `json:"account_name"`
	AccountNumber string          `json:"account_number"`
	SingleMin     decimal.Decimal `json:"single_min"`
	SingleMax     decimal.Decimal `json:"single_max"`
	StartTime     string          `json:"start_time"` // "15:04", empty = always open
	EndTime       string          `json:"end_time"`
	QRCode        string          `json:"qr_code"`
}

// DisabledAt reports whether t falls inside the channel's disabled window.
func (c Channel) DisabledAt(t time.Time) bool {
	if c.StartTime == "" || c.EndTime == "" {
		return false
	}
	start, err1 := time.Parse("15:04", strings.TrimSpace(c.StartTime))
	end, err2 := time.Parse("15:04", strings.TrimSpace(c.EndTime))
	if err1 != nil || err2 != nil {
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()
	if s <= e {
		return mins >= s && mins < e
	}
	// window crosses midnight
	return mins >= s || mins < e
}

// Order is a deposit claim accepted by the backend.
type Order struct {
	OrderNo   string          `json:"order_no"`
	Amount    decimal.Decimal `json:"amount"`
	PayerName string          `json:"payer_name"`
	Account   string          `json:"account"`
}

type Game struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	GameType     string `json:"gameType"`
	ProductCode  string `json:"productCode"`
	ImageMobile  string `json:"image_mobile"`
	ImageDesktop string `json:"image_desktop"`
	Online       int    `json:"online"`
}

type GamePage struct {
	CurrentPage int    `json:"current_page"`
	LastPage    int    `json:"last_page"`
	Data        []Game `json:"data"`
}

type DepositRecord struct {
	OrderNo   string          `json:"order_no"`
	Amount    decimal.Decimal `json:"amount"`
	BankName  string          `json:"bank_name"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
}

type DepositPage struct {
	CurrentPage int             `json:"current_page"`
	LastPage    int             `json:"last_page"`
	Data        []DepositRecord `json:"data"`
}

type LaunchInfo struct {
	URL string `json:"url"`
}
