package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidSpread     = errors.New("invalid spread")
	ErrInvalidVolume     = errors.New("invalid volume")
	ErrInvalidNOrders    = errors.New("invalid order count")
	ErrInvalidPercentage = errors.New("invalid percentage")
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9/_-]+$`)

const (
	minSymbolLen = 2
	maxSymbolLen = 20
)

// ValidateSymbol checks that a pair symbol has an acceptable length and
// character set. It does not check that the symbol is actually traded
// anywhere — that's the universe builder's job.
func ValidateSymbol(symbol string) error {
	if len(symbol) < minSymbolLen || len(symbol) > maxSymbolLen {
		return fmt.Errorf("%w: %q: length must be between %d and %d", ErrInvalidSymbol, symbol, minSymbolLen, maxSymbolLen)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q: contains disallowed characters", ErrInvalidSymbol, symbol)
	}
	return nil
}

// IsValidSymbol reports whether ValidateSymbol would succeed.
func IsValidSymbol(symbol string) bool {
	return ValidateSymbol(symbol) == nil
}

// NormalizeSymbol uppercases a symbol and strips the separators venues
// use inconsistently (hyphen, underscore, slash), e.g. "btc-usdt" ->
// "BTCUSDT".
func NormalizeSymbol(input string) string {
	s := strings.ToUpper(input)
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	return s
}

// knownQuoteCurrencies is tried in order, first suffix match wins:
// stablecoin quotes first, then BTC/ETH/BNB quote pairs.
var knownQuoteCurrencies = []string{"USDT", "USDC", "BUSD", "TUSD", "FDUSD", "BTC", "ETH", "BNB"}

// ExtractBaseCurrency returns the base asset of a normalized symbol,
// e.g. "BTC-USDT" -> "BTC".
func ExtractBaseCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, quote := range knownQuoteCurrencies {
		if strings.HasSuffix(norm, quote) && len(norm) > len(quote) {
			return norm[:len(norm)-len(quote)]
		}
	}
	return norm
}

// ExtractQuoteCurrency returns the quote asset of a normalized symbol,
// e.g. "BTC-USDT" -> "USDT".
func ExtractQuoteCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, quote := range knownQuoteCurrencies {
		if strings.HasSuffix(norm, quote) && len(norm) > len(quote) {
			return quote
		}
	}
	return ""
}

// ValidateSpread checks a percentage spread value lies in (0, 100].
func ValidateSpread(spread float64) error {
	if spread <= 0 || spread > 100 {
		return fmt.Errorf("%w: %v: must be in (0, 100]", ErrInvalidSpread, spread)
	}
	return nil
}

// ValidateVolume checks a volume is positive and below a sanity
// ceiling that catches unit-conversion mistakes (e.g. satoshis passed
// where whole coins were expected).
func ValidateVolume(volume float64) error {
	if volume <= 0 || volume >= 1e9 {
		return fmt.Errorf("%w: %v: must be in (0, 1e9)", ErrInvalidVolume, volume)
	}
	return nil
}

// ValidateNOrders checks an order-book depth/levels count lies in [1, 100].
func ValidateNOrders(n int) error {
	if n <= 0 || n > 100 {
		return fmt.Errorf("%w: %d: must be in [1, 100]", ErrInvalidNOrders, n)
	}
	return nil
}

// ValidatePercentage checks a percentage value lies in [0, 100].
func ValidatePercentage(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: %v: must be in [0, 100]", ErrInvalidPercentage, pct)
	}
	return nil
}

// ValidationErrors accumulates named field errors from a multi-field
// validation pass (e.g. validating every field of a loaded config
// section before reporting all problems at once).
type ValidationErrors []FieldError

// FieldError pairs a field name with the message describing what's
// wrong with it.
type FieldError struct {
	Field   string
	Message string
}

// Add appends a field error built from a plain message.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// AddError appends a field error built from err, a no-op if err is nil.
func (e *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	*e = append(*e, FieldError{Field: field, Message: err.Error()})
}

// HasErrors reports whether any field error has been recorded.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Error implements the error interface, joining all field errors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return strings.Join(parts, "; ")
}
