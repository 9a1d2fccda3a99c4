package billing

import "testing"

func TestStarsForUSD(t *testing.T) {
	cases := []struct {
		name string
		usd  float64
		want int64
	}{
		{name: "dime", usd: 0.10, want: 12},
		{name: "dollar", usd: 1.00, want: 113},
		{name: "rounds_up", usd: 0.015, want: 2},
		{name: "floor_one_star", usd: 0.001, want: 1},
		{name: "zero", usd: 0, want: 1},
	}

	for _, tc := range cases {
		if got := StarsForUSD(tc.usd); got != tc.want {
			t.Fatalf("%s: StarsForUSD(%v) = %d, want %d", tc.name, tc.usd, got, tc.want)
		}
	}
}

func TestPriceUSDStickerCoinLegacy(t *testing.T) {
	// Sticker prices above 100 are legacy coin counts at $0.001/coin.
	if got := PriceUSD(KindSticker, 250); got != 0.25 {
		t.Fatalf("PriceUSD sticker 250 coins = %v, want 0.25", got)
	}
	// At or below the threshold the stored value is already dollars.
	if got := PriceUSD(KindSticker, 100); got != 100 {
		t.Fatalf("PriceUSD sticker 100 = %v, want 100", got)
	}
	if got := PriceUSD(KindCoins, 250); got != 250 {
		t.Fatalf("PriceUSD coins 250 = %v, want 250", got)
	}
}
