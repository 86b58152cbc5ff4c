package pricing

import "testing"

func TestRedeemCoinsClamps(t *testing.T) {
	cases := []struct {
		name      string
		requested int64
		balance   int64
		subtotal  string
		fraction  string
		coinValue string
		want      int64
	}{
		{name: "limited by policy", requested: 300, balance: 1000, subtotal: "420", fraction: "0.5", coinValue: "1", want: 210},
		{name: "limited by balance", requested: 300, balance: 40, subtotal: "420", fraction: "0.5", coinValue: "1", want: 40},
		{name: "limited by request", requested: 25, balance: 1000, subtotal: "420", fraction: "0.5", coinValue: "1", want: 25},
		{name: "floors fractional coins", requested: 100, balance: 100, subtotal: "10.99", fraction: "0.5", coinValue: "0.10", want: 54},
		{name: "zero subtotal", requested: 100, balance: 100, subtotal: "0", fraction: "0.5", coinValue: "1", want: 0},
		{name: "negative request", requested: -5, balance: 100, subtotal: "50", fraction: "0.5", coinValue: "1", want: 0},
		{name: "negative balance", requested: 5, balance: -100, subtotal: "50", fraction: "0.5", coinValue: "1", want: 0},
		{name: "zero fraction", requested: 5, balance: 100, subtotal: "50", fraction: "0", coinValue: "1", want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RedeemCoins(tc.requested, tc.balance, dec(tc.subtotal), dec(tc.fraction), dec(tc.coinValue))
			if got != tc.want {
				t.Fatalf("expected %d coins, got %d", tc.want, got)
			}
			applied := CoinValue(got, dec(tc.coinValue))
			if applied.GreaterThan(dec(tc.subtotal).Mul(dec(tc.fraction))) {
				t.Fatalf("coin value %s exceeds redemption limit", applied)
			}
		})
	}
}

func TestEarnCoinsFloors(t *testing.T) {
	if got := EarnCoins(dec("199.99"), dec("0.05")); got != 9 {
		t.Fatalf("expected 9 coins, got %d", got)
	}
	if got := EarnCoins(dec("0"), dec("0.05")); got != 0 {
		t.Fatalf("expected 0 coins on zero cash, got %d", got)
	}
	if got := EarnCoins(dec("100"), dec("0")); got != 0 {
		t.Fatalf("expected 0 coins with zero rate, got %d", got)
	}
}

func TestTaxAndShipping(t *testing.T) {
	if got := Tax(dec("10.10"), dec("0.05")); !got.Equal(dec("0.51")) {
		t.Fatalf("expected tax 0.51, got %s", got)
	}
	if got := Shipping(dec("300"), dec("300"), dec("15")); !got.IsZero() {
		t.Fatalf("expected free shipping at threshold, got %s", got)
	}
	if got := Shipping(dec("299.99"), dec("300"), dec("15")); !got.Equal(dec("15")) {
		t.Fatalf("expected flat fee below threshold, got %s", got)
	}
}
