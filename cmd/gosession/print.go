package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/permission"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Width(18)
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func printKV(w io.Writer, key, value string) {
	fmt.Fprintln(w, keyStyle.Render(key)+value)
}

func printState(w io.Writer, s goSession.State) {
	fmt.Fprintln(w, titleStyle.Render("Session"))
	switch {
	case s.IsAuthenticated:
		printKV(w, "status", okStyle.Render("authenticated"))
	case s.OTPRequired:
		printKV(w, "status", warnStyle.Render("verification code pending"))
	case s.User != nil:
		printKV(w, "status", warnStyle.Render("multi-factor confirmation pending"))
	default:
		printKV(w, "status", mutedStyle.Render("signed out"))
	}
	if s.Error != "" {
		printKV(w, "error", errStyle.Render(s.Error))
	}
	if u := s.User; u != nil {
		printKV(w, "user", fmt.Sprintf("%s <%s>", u.Username, u.Email))
		printKV(w, "role", string(u.Role))
		switch {
		case u.IsSolo():
			printKV(w, "work mode", "solo")
		case u.FirmID != "":
			printKV(w, "firm", u.FirmID)
		}
		if u.Plan != "" {
			printKV(w, "plan", u.Plan)
		}
		if u.MustChangePassword {
			printKV(w, "password", warnStyle.Render("change required"))
		}
	}
	if bw := s.PasswordBreachWarning; bw != nil && bw.Breached {
		msg := bw.Message
		if msg == "" {
			msg = fmt.Sprintf("password seen in %d known breaches", bw.Count)
		}
		printKV(w, "breach warning", warnStyle.Render(msg))
	}
	if ev := s.EmailVerification; ev != nil && ev.RequiresVerification && !ev.IsVerified {
		printKV(w, "email", warnStyle.Render("verification required"))
	}
}

func printPermissions(w io.Writer, c *permission.Cache, now time.Time) {
	fmt.Fprintln(w, titleStyle.Render("Permissions"))
	if c.NoFirmAssociated() {
		printKV(w, "firm", mutedStyle.Render("no firm associated"))
	}
	if err := c.Error(); err != nil {
		printKV(w, "error", errStyle.Render(goSession.UserMessage(err)))
	}
	s := c.Snapshot()
	if s == nil {
		printKV(w, "grants", mutedStyle.Render("none loaded"))
		return
	}

	role := string(s.Role)
	if s.IsDeparted {
		role += " " + errStyle.Render("(departed)")
	}
	printKV(w, "role", role)
	age := now.Sub(s.FetchedAt).Truncate(time.Second)
	printKV(w, "source", fmt.Sprintf("%s, %s ago", s.Origin, age))

	modules := make([]string, 0, len(s.Modules))
	for m := range s.Modules {
		modules = append(modules, m)
	}
	sort.Strings(modules)
	for _, m := range modules {
		printKV(w, "  "+m, s.Modules[m].String())
	}

	var special []string
	for k, granted := range s.Special {
		if granted {
			special = append(special, k)
		}
	}
	if len(special) > 0 {
		sort.Strings(special)
		printKV(w, "special", strings.Join(special, ", "))
	}
}
