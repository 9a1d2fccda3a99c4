package billing

import "math"

// Telegram Stars pricing: 1 star = 1/113 USD. The floor of one star guards
// against zero-cost invoices from misconfigured catalog rows.
const starsPerUSD = 113

// Sticker prices above this threshold are coin counts, not dollars.
const stickerCoinPriceThreshold = 100

const usdPerCoin = 0.001

func StarsForUSD(usd float64) int64 {
	stars := int64(math.Ceil(usd * starsPerUSD))
	if stars < 1 {
		return 1
	}
	return stars
}

// PriceUSD normalizes a stored catalog price to dollars. Sticker packs keep
// legacy coin-equivalent prices: anything over 100 is a coin count.
func PriceUSD(kind string, stored float64) float64 {
	if kind == KindSticker && stored > stickerCoinPriceThreshold {
		return stored * usdPerCoin
	}
	return stored
}
