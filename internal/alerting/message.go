package alerting

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// RenderAlert formats the proximity alert for ticker. The output is stable for identical inputs.
func RenderAlert(ticker string, price, level, distance float64) string {
	sign := "↓"
	if price >= level {
		sign = "↑"
	}
	pct := decimal.NewFromFloat(distance).Mul(decimal.NewFromInt(100))
	return fmt.Sprintf("<b>%s</b> near level %s %s\nPrice: %s | Distance: %s%%",
		ticker,
		decimal.NewFromFloat(level).StringFixed(2),
		sign,
		decimal.NewFromFloat(price).StringFixed(2),
		pct.StringFixed(2),
	)
}

// Digest returns the hex sha256 of text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
