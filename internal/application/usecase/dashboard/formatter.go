package dashboard

import (
	"fmt"
	"strings"

	"pulseboard/internal/domain/model"
	dsvc "pulseboard/internal/domain/service"

	"github.com/shopspring/decimal"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

// View 一次渲染所需的只读快照
type View struct {
	Coins     []model.Coin
	Favorites map[string]bool
	Cities    []model.City
	Articles  int
	Unread    int
	Stream    string
}

type Formatter struct{}

func NewFormatter() *Formatter { return &Formatter{} }

func (f *Formatter) Render(v View, mode RenderMode) string {
	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}
	sb.WriteString(colorize("[PULSE] ", ansiDim))

	if len(v.Coins) == 0 {
		sb.WriteString(colorize("prices --", ansiYellow))
	}
	for i, c := range v.Coins {
		if i > 0 {
			sb.WriteString(colorize("  ||  ", ansiDim))
		}
		sym := strings.ToUpper(c.Symbol)
		if sym == "" {
			sym = c.ID
		}
		if v.Favorites[c.ID] {
			sym = "*" + sym
		}
		col := ansiYellow
		switch dsvc.MoveColor(c.PriceChange24h) {
		case +1:
			col = ansiGreen
		case -1:
			col = ansiRed
		}
		pct := decimal.NewFromFloat(c.PriceChange24h).StringFixed(2)
		if c.PriceChange24h >= 0 {
			pct = "+" + pct
		}
		sb.WriteString(sym)
		sb.WriteString(" ")
		sb.WriteString(decimal.NewFromFloat(c.Price).StringFixed(2))
		sb.WriteString(" ")
		sb.WriteString(colorize(pct+"%", col))
	}

	for _, c := range v.Cities {
		sb.WriteString(colorize("  |  ", ansiDim))
		sb.WriteString(fmt.Sprintf("%s %s°C %s", c.Name, decimal.NewFromFloat(c.Temperature).StringFixed(1), c.Conditions))
		if c.Alert != "" {
			sb.WriteString(" ")
			sb.WriteString(colorize("!", ansiRed))
		}
	}

	sb.WriteString(colorize("  |  ", ansiDim))
	sb.WriteString(fmt.Sprintf("news %d", v.Articles))

	unread := fmt.Sprintf("unread %d", v.Unread)
	if v.Unread > 0 {
		unread = colorize(unread, ansiYellow)
	}
	sb.WriteString(colorize("  |  ", ansiDim))
	sb.WriteString(unread)

	if v.Stream != "" {
		col := ansiGreen
		if v.Stream != "open" {
			col = ansiYellow
		}
		if v.Stream == "failed" {
			col = ansiRed
		}
		sb.WriteString(colorize("  |  ", ansiDim))
		sb.WriteString(colorize("stream "+v.Stream, col))
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}
