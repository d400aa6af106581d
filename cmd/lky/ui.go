package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"lucky/internal/apiclient"
	"lucky/internal/session"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptPassword reads without echo when stdin is a terminal, otherwise falls
// back to a plain line read so piped input still works.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(string(raw))
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptInt(label string, min int) (int, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(text)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func renderIdentity(id *session.Identity) {
	accent.Printf("\n== %s ==\n", id.Name)
	fmt.Printf("ID:       %d\n", id.ID)
	if id.Email != "" {
		fmt.Printf("Email:    %s\n", id.Email)
	}
	if id.Phone != "" {
		fmt.Printf("Phone:    %s\n", id.Phone)
	}
	if info := id.UserInfo; info != nil {
		fmt.Printf("Wallet:   %s\n", money(info.Balance))
		fmt.Printf("In game:  %s\n", money(info.GameBalance))
		if info.BankName != "" {
			fmt.Printf("Bank:     %s %s\n", info.BankName, info.BankCard)
		}
	} else {
		fmt.Printf("Wallet:   %s\n", money(id.Balance))
	}
	fmt.Println()
}

func renderChannels(channels []apiclient.Channel) {
	accent.Println("\n== DEPOSIT CHANNELS ==")
	if len(channels) == 0 {
		printInfo("No deposit channels available.")
		return
	}
	fmt.Printf("%-4s %-18s %-18s %-16s %10s %10s %-12s\n", "ID", "BANK", "ACCOUNT NAME", "ACCOUNT NO", "MIN", "MAX", "CLOSED")
	for _, ch := range channels {
		window := "-"
		if ch.StartTime != "" && ch.EndTime != "" {
			window = ch.StartTime + "-" + ch.EndTime
		}
		fmt.Printf("%-4d %-18s %-18s %-16s %10s %10s %-12s\n",
			ch.ID,
			truncate(ch.BankName, 18),
			truncate(ch.AccountName, 18),
			ch.AccountNumber,
			money(ch.SingleMin),
			money(ch.SingleMax),
			window,
		)
	}
	fmt.Println()
}

func renderDeposits(page *apiclient.DepositPage) {
	accent.Printf("\n== DEPOSITS (page %d/%d) ==\n", page.CurrentPage, page.LastPage)
	if len(page.Data) == 0 {
		printInfo("No deposits on this page.")
		return
	}
	fmt.Printf("%-20s %10s %-18s %-10s %-20s\n", "ORDER", "AMOUNT", "BANK", "STATUS", "CREATED")
	for _, d := range page.Data {
		fmt.Printf("%-20s %10s %-18s %-10s %-20s\n",
			truncate(d.OrderNo, 20),
			money(d.Amount),
			truncate(d.BankName, 18),
			d.Status,
			d.CreatedAt,
		)
	}
	fmt.Println()
}

func renderOrder(order *apiclient.Order) {
	accent.Println("\n== DEPOSIT SUBMITTED ==")
	fmt.Printf("Order:   %s\n", order.OrderNo)
	fmt.Printf("Amount:  %s\n", money(order.Amount))
	if order.PayerName != "" {
		fmt.Printf("Payer:   %s\n", order.PayerName)
	}
	if order.Account != "" {
		fmt.Printf("Account: %s\n", order.Account)
	}
	fmt.Println()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
