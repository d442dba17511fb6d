package ledger

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DisplayAmount renders a minor-unit amount as a localized currency string for
// receipts, such as "$8.90" for 890 USD minor units. Unknown currency codes
// fall back to a plain two-decimal rendering.
func DisplayAmount(code string, minor int64) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %.2f", code, float64(minor)/100)
	}
	scale, _ := currency.Cash.Rounding(unit)
	value := float64(minor) / math.Pow10(scale)
	p := message.NewPrinter(language.English)
	return p.Sprint(currency.NarrowSymbol(unit.Amount(value)))
}
