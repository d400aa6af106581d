package session

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UserInfo is the authoritative balance view fetched from /player_info. The
// backend emits amounts as numeric strings; decimal.Decimal accepts both forms.
type UserInfo struct {
	Balance      decimal.Decimal `json:"balance"`
	GameBalance  decimal.Decimal `json:"game_balance"`
	BankName     string          `json:"bank_name"`
	BankCard     string          `json:"bank_card"`
	BankUsername string          `json:"bank_username"`
	BankBranch   string          `json:"bank_branch"`
}

// Identity is the player record returned by login/registration. It is owned
// exclusively by the Store and replaced wholesale, never patched in place.
type Identity struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Token       string          `json:"token"`
	Balance     decimal.Decimal `json:"balance"`
	BankBalance decimal.Decimal `json:"bank_balance"`
	UserInfo    *UserInfo       `json:"userInfo"`
}

// Authenticated reports whether the identity holds a token. An identity
// without a token is unauthenticated regardless of its other fields.
func (id *Identity) Authenticated() bool {
	return id != nil && strings.TrimSpace(id.Token) != ""
}

func (id *Identity) clone() *Identity {
	if id == nil {
		return nil
	}
	out := *id
	if id.UserInfo != nil {
		info := *id.UserInfo
		out.UserInfo = &info
	}
	return &out
}
