// Package format renders tickets, cost summaries and amounts of money as
// text: plain blocks for logs and the board API, and lipgloss cards for the
// terminal.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Default locale and currency of every cost figure.
const (
	DefaultLocale   = "hu-HU"
	DefaultCurrency = "HUF"
)

// symbols maps ISO codes to the narrow symbol shown next to amounts.
// Codes missing here are shown as the ISO code itself.
var symbols = map[string]string{
	"HUF": "Ft",
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"CHF": "CHF",
	"PLN": "zł",
	"CZK": "Kč",
	"RON": "lei",
}

// prefixLocales put the symbol before the amount.
var prefixLocales = map[string]bool{"en": true, "ja": true, "zh": true}

// Money formats amounts in one locale and currency. The zero value is not
// usable; construct with [NewMoney].
type Money struct {
	printer *message.Printer
	unit    currency.Unit
	symbol  string
	prefix  bool
	digits  int
}

// NewMoney returns a formatter for the BCP 47 locale and ISO 4217 currency.
func NewMoney(locale, code string) (*Money, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("format: parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("format: parse currency %q: %w", code, err)
	}
	sym, ok := symbols[unit.String()]
	if !ok {
		sym = unit.String()
	}
	base, _ := tag.Base()
	digits, _ := currency.Standard.Rounding(unit)
	return &Money{
		printer: message.NewPrinter(tag),
		unit:    unit,
		symbol:  sym,
		prefix:  prefixLocales[base.String()],
		digits:  digits,
	}, nil
}

// Currency returns the ISO code.
func (m *Money) Currency() string { return m.unit.String() }

// Format renders amount with the currency's ISO minor units (two for HUF)
// and the locale's grouping and decimal separator.
func (m *Money) Format(amount float64) string {
	n := m.printer.Sprint(number.Decimal(amount,
		number.MinFractionDigits(m.digits),
		number.MaxFractionDigits(m.digits),
	))
	if m.prefix {
		return m.symbol + n
	}
	return n + " " + m.symbol
}

var defaultMoney = func() *Money {
	m, err := NewMoney(DefaultLocale, DefaultCurrency)
	if err != nil {
		panic("format: default money formatter: " + err.Error())
	}
	return m
}()

// Currency formats amount in Hungarian forints, e.g. "41 000,00 Ft" (the
// separator is the locale's non-breaking space).
func Currency(amount float64) string {
	return defaultMoney.Format(amount)
}

// Hours renders a work-hour figure without trailing zeros: 3, 2.5, 0.25.
func Hours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// PlainSpaces replaces the non-breaking spaces locales use for digit
// grouping with ASCII spaces.
func PlainSpaces(s string) string {
	return strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(s)
}
