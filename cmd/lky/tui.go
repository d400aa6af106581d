package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lucky/internal/apiclient"
	"lucky/internal/deposit"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	selStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// --- deposit wizard ---

type wizardPhase int

const (
	phasePickChannel wizardPhase = iota
	phaseAmount
	phaseTransID
	phasePayer
	phaseReceipt
	phaseConfirm
	phaseDone
)

type submitResult struct {
	err error
}

type wizardModel struct {
	wiz      *deposit.Wizard
	channels []apiclient.Channel

	phase     wizardPhase
	cursor    int
	input     textinput.Model
	spin      spinner.Model
	busy      bool
	errMsg    string
	cancelled bool
}

func newWizardModel(wiz *deposit.Wizard, channels []apiclient.Channel) wizardModel {
	in := textinput.New()
	in.Placeholder = "amount"
	in.CharLimit = 64
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return wizardModel{wiz: wiz, channels: channels, input: in, spin: sp}
}

func (m wizardModel) Init() tea.Cmd {
	return nil
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case submitResult:
		m.busy = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.phase = phaseDone
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.phase != phaseDone {
				m.wiz.Reset()
				m.cancelled = true
			}
			return m, tea.Quit
		case tea.KeyEnter:
			return m.advance()
		case tea.KeyUp:
			if m.phase == phasePickChannel && m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case tea.KeyDown:
			if m.phase == phasePickChannel && m.cursor < len(m.channels)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m wizardModel) advance() (tea.Model, tea.Cmd) {
	m.errMsg = ""
	switch m.phase {
	case phasePickChannel:
		if len(m.channels) == 0 {
			m.errMsg = deposit.ErrNoChannel.Error()
			return m, nil
		}
		ch := m.channels[m.cursor]
		if ch.DisabledAt(time.Now()) {
			m.errMsg = deposit.ErrChannelClosed.Error()
			return m, nil
		}
		m.wiz.SelectChannel(ch)
		m.phase = phaseAmount
		return m.focusInput(fmt.Sprintf("amount (%s - %s)", money(ch.SingleMin), money(ch.SingleMax)))

	case phaseAmount:
		v, err := decimal.NewFromString(strings.TrimSpace(m.input.Value()))
		if err != nil {
			m.errMsg = "enter a valid amount"
			return m, nil
		}
		m.wiz.SetAmount(v)
		if err := m.wiz.Advance(context.Background()); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.phase = phaseTransID
		return m.focusInput("bank transaction id (digits)")

	case phaseTransID:
		m.wiz.SetTransactionID(m.input.Value())
		m.phase = phasePayer
		return m.focusInput("sender name on the transfer")

	case phasePayer:
		m.wiz.SetPayerName(m.input.Value())
		m.phase = phaseReceipt
		return m.focusInput("path to receipt image")

	case phaseReceipt:
		path := strings.TrimSpace(m.input.Value())
		data, err := os.ReadFile(path)
		if err != nil {
			m.errMsg = "cannot read receipt: " + err.Error()
			return m, nil
		}
		if err := m.wiz.AttachReceipt(filepath.Base(path), data); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		if err := m.wiz.Advance(context.Background()); err != nil {
			// route the detail guard back to the field that failed
			switch err {
			case deposit.ErrTransIDDigits:
				m.phase = phaseTransID
				m.errMsg = err.Error()
				return m.focusInput("bank transaction id (digits)")
			case deposit.ErrNoPayerName:
				m.phase = phasePayer
				m.errMsg = err.Error()
				return m.focusInput("sender name on the transfer")
			default:
				m.errMsg = err.Error()
				return m, nil
			}
		}
		m.input.Blur()
		m.phase = phaseConfirm
		return m, nil

	case phaseConfirm:
		m.busy = true
		wiz := m.wiz
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			return submitResult{err: wiz.Advance(ctx)}
		})

	case phaseDone:
		return m, tea.Quit
	}
	return m, nil
}

func (m wizardModel) focusInput(placeholder string) (tea.Model, tea.Cmd) {
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.Focus()
	return m, textinput.Blink
}

func (m wizardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Deposit") + "\n\n")

	switch m.phase {
	case phasePickChannel:
		b.WriteString(promptStyle.Render("Pick a payment channel") + "\n")
		for i, ch := range m.channels {
			line := fmt.Sprintf("%s  %s  (%s - %s)", ch.BankName, ch.AccountNumber, money(ch.SingleMin), money(ch.SingleMax))
			if ch.DisabledAt(time.Now()) {
				line += dimStyle.Render("  closed")
			}
			if i == m.cursor {
				b.WriteString(selStyle.Render("> "+line) + "\n")
			} else {
				b.WriteString("  " + line + "\n")
			}
		}
	case phaseAmount, phaseTransID, phasePayer, phaseReceipt:
		if ch := m.wiz.Channel(); ch != nil {
			b.WriteString(dimStyle.Render("channel: "+ch.BankName+" "+ch.AccountNumber) + "\n")
		}
		b.WriteString(m.input.View() + "\n")
	case phaseConfirm:
		ch := m.wiz.Channel()
		b.WriteString(promptStyle.Render("Confirm deposit claim") + "\n")
		if ch != nil {
			b.WriteString(fmt.Sprintf("  channel: %s %s\n", ch.BankName, ch.AccountNumber))
		}
		if r := m.wiz.Receipt(); r != nil {
			b.WriteString(fmt.Sprintf("  receipt: %s (%s)\n", r.Name, r.PreviewPath()))
		}
		if m.busy {
			b.WriteString("\n" + m.spin.View() + " submitting...\n")
		} else {
			b.WriteString("\n" + dimStyle.Render("enter to submit, esc to abandon") + "\n")
		}
	case phaseDone:
		b.WriteString(okStyle.Render("Deposit submitted.") + "\n")
		if o := m.wiz.Order(); o != nil {
			b.WriteString(fmt.Sprintf("  order %s for %s\n", o.OrderNo, money(o.Amount)))
		}
		b.WriteString(dimStyle.Render("enter to close") + "\n")
	}

	if m.errMsg != "" {
		b.WriteString("\n" + errStyle.Render(m.errMsg) + "\n")
	}
	if m.phase != phaseDone {
		b.WriteString("\n" + dimStyle.Render("esc cancels") + "\n")
	}
	return b.String()
}

// --- game browser ---

type fillResult struct {
	fresh int
	err   error
}

type launchResult struct {
	info *apiclient.LaunchInfo
	err  error
}

type gamesModel struct {
	app      *app
	category string
	vendor   string

	filter    textinput.Model
	filtering bool
	spin      spinner.Model
	loading   bool
	cursor    int
	height    int
	errMsg    string

	launch *apiclient.LaunchInfo
}

func newGamesModel(a *app, category, vendor string) gamesModel {
	f := textinput.New()
	f.Placeholder = "filter by name"
	f.CharLimit = 64
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return gamesModel{app: a, category: category, vendor: vendor, filter: f, spin: sp, height: 20, loading: true}
}

func (m gamesModel) visible() []apiclient.Game {
	return m.app.pager.Filter(m.filter.Value())
}

func (m gamesModel) fillCmd() tea.Cmd {
	a, cat, vendor, query := m.app, m.category, m.vendor, m.filter.Value()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		fresh, err := a.pager.Fill(ctx, cat, vendor, query, func() bool { return true })
		return fillResult{fresh: fresh, err: err}
	}
}

func (m gamesModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fillCmd())
}

func (m gamesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case fillResult:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
		return m, nil

	case launchResult:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.launch = msg.info
		return m, tea.Quit

	case tea.KeyMsg:
		if m.filtering {
			switch msg.Type {
			case tea.KeyEnter, tea.KeyEsc:
				m.filtering = false
				m.filter.Blur()
				m.cursor = 0
				return m, m.maybeFill()
			default:
				var cmd tea.Cmd
				m.filter, cmd = m.filter.Update(msg)
				return m, cmd
			}
		}
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "/":
			m.filtering = true
			m.filter.Focus()
			return m, textinput.Blink
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.visible())-1 {
				m.cursor++
			}
			return m, m.maybeFill()
		case "enter":
			games := m.visible()
			if m.cursor >= len(games) {
				return m, nil
			}
			m.loading = true
			a, id := m.app, games[m.cursor].ID
			return m, tea.Batch(m.spin.Tick, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				info, err := a.api.GameInit(ctx, a.store.Token(), id)
				return launchResult{info: info, err: err}
			})
		}
	}
	return m, nil
}

// maybeFill pulls more pages when the cursor nears the end of the loaded set.
func (m *gamesModel) maybeFill() tea.Cmd {
	if m.loading || m.app.pager.Done(m.category, m.vendor) {
		return nil
	}
	if len(m.visible())-m.cursor > 5 {
		return nil
	}
	m.loading = true
	return tea.Batch(m.spin.Tick, m.fillCmd())
}

func (m gamesModel) View() string {
	var b strings.Builder
	title := "Games"
	if m.category != "" {
		title += " / " + m.category
	}
	if m.vendor != "" {
		title += " / " + m.vendor
	}
	b.WriteString(titleStyle.Render(title) + "\n")
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View() + "\n")
	}

	games := m.visible()
	rows := m.height - 6
	if rows < 5 {
		rows = 5
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := start + rows
	if end > len(games) {
		end = len(games)
	}
	for i := start; i < end; i++ {
		g := games[i]
		line := fmt.Sprintf("%-30s %-10s %-8s", truncate(g.Name, 30), g.GameType, g.ProductCode)
		if i == m.cursor {
			b.WriteString(selStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	if len(games) == 0 && !m.loading {
		b.WriteString(dimStyle.Render("  nothing matches") + "\n")
	}

	if m.loading {
		b.WriteString(m.spin.View() + " loading...\n")
	}
	if m.errMsg != "" {
		b.WriteString(errStyle.Render(m.errMsg) + "\n")
	}
	b.WriteString(dimStyle.Render("enter launch  / filter  q quit") + "\n")
	return b.String()
}
