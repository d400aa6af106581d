package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lucky/internal/apiclient"
	"lucky/internal/catalog"
	"lucky/internal/config"
	"lucky/internal/deposit"
	"lucky/internal/envelope"
	"lucky/internal/payprovider"
	"lucky/internal/session"
	"lucky/internal/wallet"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
)

type app struct {
	cfg    config.CLIConfig
	api    *apiclient.Client
	lock   *session.Lock
	store  *session.Store
	engine *wallet.Engine
	pager  *catalog.Pager
}

func main() {
	root := &cobra.Command{
		Use:          "lky",
		Short:        "Lucky casino client",
		SilenceUsage: true,
	}

	var a *app
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = newApp()
		return err
	}

	root.AddCommand(
		newRegisterCmd(&a),
		newLoginCmd(&a),
		newLogoutCmd(&a),
		newInfoCmd(&a),
		newSweepCmd(&a),
		newChannelsCmd(&a),
		newDepositCmd(&a),
		newDepositsCmd(&a),
		newGamesCmd(&a),
		newPlayCmd(&a),
		newPayCmd(&a),
		newResetPassCmd(&a),
		newPrefsCmd(&a),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() (*app, error) {
	cfg, err := config.LoadCLIFromEnv()
	if err != nil {
		return nil, err
	}
	codec, err := newCodec(cfg)
	if err != nil {
		return nil, err
	}

	api := apiclient.New(cfg.APIBaseURL, codec)
	lock := session.NewLock(session.NewFileSharedStore(cfg.DataDir), nil)
	store := session.NewStore(lock, nil)
	store.OnNotice(printWarn)
	session.Rehydrate(store, lock, cfg.DataDir)

	engine := wallet.New(api, store, nil)
	engine.SetSettleDelay(cfg.SettleDelay)
	engine.SetNotify(printWarn)

	return &app{
		cfg:    cfg,
		api:    api,
		lock:   lock,
		store:  store,
		engine: engine,
		pager:  catalog.NewPager(api, store, cfg.IsMobile),
	}, nil
}

func newCodec(cfg config.CLIConfig) (*envelope.Codec, error) {
	if cfg.EnvelopeKey != "" {
		return envelope.NewCodec([]byte(cfg.EnvelopeKey), []byte(cfg.EnvelopeIV))
	}
	return envelope.DeriveCodec(cfg.EnvelopePass, cfg.EnvelopeSalt, []byte(cfg.EnvelopeIV))
}

// save writes the session snapshot, or clears it after a logout or takeover.
func (a *app) save() {
	if id := a.store.Identity(); id != nil {
		err := session.SaveSnapshot(a.cfg.DataDir, session.Snapshot{
			Identity:  id,
			LockToken: a.lock.LocalToken(),
		})
		if err != nil {
			printWarn("could not persist session: " + err.Error())
		}
		return
	}
	if err := session.ClearSnapshot(a.cfg.DataDir); err != nil {
		printWarn("could not clear session: " + err.Error())
	}
}

// requireSession validates the lock and rejects logged-out invocations.
func (a *app) requireSession() error {
	if err := a.store.Validate(); err != nil {
		a.save()
		return err
	}
	if a.store.Token() == "" {
		return fmt.Errorf("login required: run `lky login`")
	}
	return nil
}

func opCtx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newRegisterCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create a player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if err := (*a).api.CheckRegister(ctx, "register", email); err != nil {
				return err
			}
			printInfo("Verification code sent to " + email + ".")
			otp, err := promptRequired("Code")
			if err != nil {
				return err
			}
			if err := (*a).api.CheckOTP(ctx, "register", email, otp); err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm password")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}
			id, err := (*a).api.Register(ctx, email, otp, password, confirm)
			if err != nil {
				return err
			}
			if err := (*a).store.Login(id); err != nil {
				return err
			}
			if err := (*a).engine.Reconcile(ctx); err != nil {
				printWarn(err.Error())
			}
			(*a).save()
			printSuccess("Account created. You are logged in.")
			return nil
		},
	}
}

func newLoginCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login and sweep the wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := promptRequired("Username")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			id, err := (*a).api.Login(ctx, name, password)
			if err != nil {
				return err
			}
			if err := (*a).store.Login(id); err != nil {
				return err
			}
			if err := (*a).engine.Reconcile(ctx); err != nil {
				printWarn(err.Error())
			}
			(*a).save()
			if id := (*a).store.Identity(); id != nil {
				printSuccess("Login successful.")
				renderIdentity(id)
			}
			return nil
		},
	}
}

func newLogoutCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session everywhere",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token := (*a).store.Token(); token != "" {
				ctx, cancel := opCtx(cmd)
				defer cancel()
				if err := (*a).api.Logout(ctx, token); err != nil {
					printWarn("server logout failed: " + err.Error())
				}
			}
			(*a).store.Deauth("")
			(*a).save()
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newInfoCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show player and wallet state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).requireSession(); err != nil {
				return err
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if err := (*a).engine.Reconcile(ctx); err != nil {
				(*a).save()
				return err
			}
			(*a).save()
			id := (*a).store.Identity()
			if id == nil {
				return fmt.Errorf("login required: run `lky login`")
			}
			renderIdentity(id)
			return nil
		},
	}
}

func newSweepCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Move the cash balance into the game wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).requireSession(); err != nil {
				return err
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if err := (*a).engine.Reconcile(ctx); err != nil {
				(*a).save()
				return err
			}
			(*a).save()
			id := (*a).store.Identity()
			if id == nil || id.UserInfo == nil {
				return fmt.Errorf("login required: run `lky login`")
			}
			printSuccess(fmt.Sprintf("Wallet %s / in game %s", money(id.UserInfo.Balance), money(id.UserInfo.GameBalance)))
			return nil
		},
	}
}

func newChannelsCmd(a **app) *cobra.Command {
	var showQR bool
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List deposit channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).requireSession(); err != nil {
				return err
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			channels, err := (*a).engine.Channels(ctx)
			if err != nil {
				(*a).save()
				return err
			}
			renderChannels(channels)
			if showQR {
				for _, ch := range channels {
					if strings.TrimSpace(ch.QRCode) == "" {
						continue
					}
					accent.Printf("%s %s\n", ch.BankName, ch.AccountNumber)
					qrterminal.GenerateWithConfig(ch.QRCode, qrterminal.Config{
						Level:     qrterminal.L,
						Writer:    os.Stdout,
						BlackChar: qrterminal.BLACK,
						WhiteChar: qrterminal.WHITE,
						QuietZone: 1,
					})
					fmt.Println()
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showQR, "qr", false, "render channel QR codes in the terminal")
	return cmd
}

func newDepositCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit",
		Short: "Claim a bank transfer as a deposit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).requireSession(); err != nil {
				return err
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			channels, err := (*a).engine.Channels(ctx)
			if err != nil {
				(*a).save()
				return err
			}
			if len(channels) == 0 {
				return fmt.Errorf("no deposit channels available")
			}

			wiz := deposit.NewWizard((*a).api, (*a).store)
			final, err := tea.NewProgram(newWizardModel(wiz, channels)).Run()
			if err != nil {
				wiz.Reset()
				return err
			}
			(*a).save()
			m := final.(wizardModel)
			if m.cancelled {
				printInfo("Deposit abandoned.")
				return nil
			}
			if order := wiz.Order(); order != nil {
				renderOrder(order)
			}
			wiz.Reset()
			return nil
		},
	}
}

func newDepositsCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "deposits [page]",
		Short: "List past deposit claims",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).requireSession(); err != nil {
				return err
			}
			page := 1
			if len(args) > 0 {
				v, err := strconv.Atoi(strings.TrimSpace(args[0]))
				if err != nil || v < 1 {
					return fmt.Errorf("invalid page")
				}
				page = v
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := (*a).api.DepositListing(ctx, (*a).store.Token(), page)
			if err != nil {
				if apiclient.IsUnauthorized(err) {
					(*a).store.Deauth("session expired, please log in again")
					(*a).save()
				}
				return err
			}
			renderDeposits(out)
			return nil
		},
	}
}

func newGamesCmd(a **app) *cobra.Command {
	var category, vendor string
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Browse and launch games",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).requireSession(); err != nil {
				return err
			}
			final, err := tea.NewProgram(newGamesModel(*a, category, vendor), tea.WithAltScreen()).Run()
			if err != nil {
				return err
			}
			(*a).save()
			m := final.(gamesModel)
			if m.launch != nil {
				printSuccess("Game ready:")
				fmt.Println(m.launch.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "game category, e.g. slots")
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor product code, e.g. PG")
	return cmd
}

func newPlayCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "play [game_id]",
		Short: "Print the launch URL for a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid game id")
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			info, err := (*a).api.GameInit(ctx, (*a).store.Token(), id)
			if err != nil {
				if apiclient.IsUnauthorized(err) {
					(*a).store.Deauth("session expired, please log in again")
					(*a).save()
				}
				return err
			}
			fmt.Println(info.URL)
			return nil
		},
	}
}

func newPayCmd(a **app) *cobra.Command {
	provider := func() (*payprovider.Client, error) {
		cfg := (*a).cfg
		if cfg.PayBaseURL == "" || cfg.PayMerchantID == "" || cfg.PaySecret == "" {
			return nil, fmt.Errorf("online payments not configured: set LKY_PAY_BASE_URL, LKY_PAY_MERCHANT_ID and LKY_PAY_SECRET")
		}
		return payprovider.New(cfg.PayBaseURL, cfg.PayMerchantID, cfg.PaySecret), nil
	}
	printResponse := func(resp *payprovider.Response) error {
		if resp.Code != 0 {
			return fmt.Errorf("provider error %d: %s", resp.Code, resp.Message)
		}
		if len(resp.Data) > 0 {
			fmt.Println(string(resp.Data))
		}
		return nil
	}

	pay := &cobra.Command{
		Use:   "pay",
		Short: "Online payment collection",
	}
	var notifyURL string
	create := &cobra.Command{
		Use:   "create [amount]",
		Short: "Open a collection order with the payment provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).requireSession(); err != nil {
				return err
			}
			p, err := provider()
			if err != nil {
				return err
			}
			orderNo := uuid.NewString()
			ctx, cancel := opCtx(cmd)
			defer cancel()
			resp, err := p.CreateCollection(ctx, orderNo, strings.TrimSpace(args[0]), notifyURL)
			if err != nil {
				return err
			}
			if err := printResponse(resp); err != nil {
				return err
			}
			printSuccess("Collection order " + orderNo + " created.")
			return nil
		},
	}
	create.Flags().StringVar(&notifyURL, "notify-url", "", "callback URL the provider notifies on completion")
	pay.AddCommand(create)
	pay.AddCommand(&cobra.Command{
		Use:   "status [order_no]",
		Short: "Query a collection order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := provider()
			if err != nil {
				return err
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			resp, err := p.QueryOrder(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	})
	return pay
}

func newResetPassCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-pass",
		Short: "Reset a forgotten password",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if err := (*a).api.CheckRegister(ctx, "forget", email); err != nil {
				return err
			}
			printInfo("Verification code sent to " + email + ".")
			otp, err := promptRequired("Code")
			if err != nil {
				return err
			}
			if err := (*a).api.CheckOTP(ctx, "forget", email, otp); err != nil {
				return err
			}
			password, err := promptPassword("New password")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm password")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}
			if err := (*a).api.ResetPassword(ctx, (*a).store.Token(), "forget", email, password); err != nil {
				return err
			}
			printSuccess("Password updated. Login with the new password.")
			return nil
		},
	}
}

func newPrefsCmd(a **app) *cobra.Command {
	prefs := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change local preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := session.LoadPrefs((*a).cfg.DataDir)
			fmt.Printf("locale: %s\n", p.Locale)
			fmt.Printf("volume: %.2f\n", p.Volume)
			fmt.Printf("muted:  %t\n", p.Muted)
			return nil
		},
	}
	prefs.AddCommand(&cobra.Command{
		Use:   "set [locale|volume|muted] [value]",
		Short: "Set one preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := session.LoadPrefs((*a).cfg.DataDir)
			key := strings.ToLower(strings.TrimSpace(args[0]))
			value := strings.TrimSpace(args[1])
			switch key {
			case "locale":
				if value == "" {
					return fmt.Errorf("locale cannot be empty")
				}
				p.Locale = value
			case "volume":
				v, err := strconv.ParseFloat(value, 64)
				if err != nil || v < 0 || v > 1 {
					return fmt.Errorf("volume must be between 0 and 1")
				}
				p.Volume = v
			case "muted":
				v, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("muted must be true or false")
				}
				p.Muted = v
			default:
				return fmt.Errorf("unknown preference %q", key)
			}
			if err := session.SavePrefs((*a).cfg.DataDir, p); err != nil {
				return err
			}
			printSuccess("Preferences saved.")
			return nil
		},
	})
	return prefs
}
