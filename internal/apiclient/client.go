// Package apiclient wraps every backend call behind the shared response
// envelope: {status:{errorCode,msg,mess}, data} with data encrypted.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lucky/internal/envelope"
	"lucky/internal/session"

	"github.com/shopspring/decimal"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	codec   *envelope.Codec
}

func New(baseURL string, codec *envelope.Codec) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
		codec: codec,
	}
}

func (c *Client) Login(ctx context.Context, name, password string) (*session.Identity, error) {
	var out session.Identity
	err := c.call(ctx, "/login", map[string]any{
		"name":     name,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.call(ctx, "/logout", map[string]any{"token": token}, nil)
}

func (c *Client) Register(ctx context.Context, email, otp, password, confirm string) (*session.Identity, error) {
	var out session.Identity
	err := c.call(ctx, "/register_player", map[string]any{
		"email":            email,
		"otp":              otp,
		"password":         password,
		"confirm_password": confirm,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckRegister(ctx context.Context, typ, email string) error {
	return c.call(ctx, "/check_register_player", map[string]any{
		"type":  typ,
		"email": email,
	}, nil)
}

func (c *Client) CheckOTP(ctx context.Context, typ, email, otp string) error {
	return c.call(ctx, "/check_otp_code", map[string]any{
		"type":  typ,
		"email": email,
		"otp":   otp,
	}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, token, typ, email, password string) error {
	return c.call(ctx, "/reset_pass", map[string]any{
		"token":    token,
		"type":     typ,
		"email":    email,
		"password": password,
	}, nil)
}

func (c *Client) PlayerInfo(ctx context.Context, token string) (*session.UserInfo, error) {
	var out session.UserInfo
	if err := c.call(ctx, "/player_info", map[string]any{"token": token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TransferToGame(ctx context.Context, token string, amount decimal.Decimal) (*session.UserInfo, error) {
	var out session.UserInfo
	err := c.call(ctx, "/transfer_to_game", map[string]any{
		"token":  token,
		"amount": amount.String(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DepositChannels(ctx context.Context, token string) ([]Channel, error) {
	var out []Channel
	if err := c.call(ctx, "/deposit_channel_list", map[string]any{"token": token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DepositListing(ctx context.Context, token string, page int) (*DepositPage, error) {
	var out DepositPage
	err := c.call(ctx, "/player_deposit_listing", map[string]any{
		"token": token,
		"page":  page,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GameVendors(ctx context.Context, token, gameType string, isMobile bool) ([]string, error) {
	var out []string
	err := c.call(ctx, "/get_game_vendor", map[string]any{
		"token":    token,
		"gameType": gameType,
		"isMobile": isMobile,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GameList(ctx context.Context, token string, page int, gameType, productCode string, isMobile bool) (*GamePage, error) {
	var out GamePage
	err := c.call(ctx, "/get_game_list", map[string]any{
		"token":       token,
		"page":        page,
		"gameType":    gameType,
		"productCode": productCode,
		"isMobile":    isMobile,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GameInit(ctx context.Context, token string, gameID int64) (*LaunchInfo, error) {
	var out LaunchInfo
	err := c.call(ctx, "/game_init", map[string]any{
		"token":  token,
		"gameId": gameID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DepositRequest is the multipart payload for /player_deposit.
type DepositRequest struct {
	Token         string
	ChannelID     int64
	PayerAccount  string
	PayerName     string
	BankName      string
	Amount        decimal.Decimal
	TransactionID string
	ReceiptName   string
	Receipt       []byte
}

func (c *Client) SubmitDeposit(ctx context.Context, in DepositRequest) (*Order, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("qr_code", in.ReceiptName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(in.Receipt); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"token":      in.Token,
		"card_id":    strconv.FormatInt(in.ChannelID, 10),
		"payer_acc":  in.PayerAccount,
		"payer_name": in.PayerName,
		"bank_name":  in.BankName,
		"amount":     in.Amount.String(),
		"trans_id":   in.TransactionID,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/player_deposit", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out Order
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type wireStatus struct {
	ErrorCode int    `json:"errorCode"`
	Msg       string `json:"msg"`
	Mess      string `json:"mess"`
}

type wireEnvelope struct {
	Status wireStatus `json:"status"`
	Data   string     `json:"data"`
}

// call posts a JSON body (the bearer token travels in the body, not a header)
// and decodes the envelope into out.
func (c *Client) call(ctx context.Context, path string, body map[string]any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	var env wireEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return fmt.Errorf("decode envelope for %s: %w", req.URL.Path, err)
	}
	if env.Status.ErrorCode != 0 && env.Status.ErrorCode != 200 {
		return &APIError{
			Message:       env.Status.Msg,
			StatusCode:    env.Status.ErrorCode,
			ServerMessage: env.Status.Mess,
		}
	}
	if out == nil || env.Data == "" {
		return nil
	}
	plain, err := c.codec.Decrypt(env.Data)
	if err != nil {
		return fmt.Errorf("decrypt payload for %s: %w", req.URL.Path, err)
	}
	if err := json.Unmarshal(plain, out); err != nil {
		return fmt.Errorf("parse payload for %s: %w", req.URL.Path, err)
	}
	return nil
}
