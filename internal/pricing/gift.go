package pricing

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxGiftMessageLength is the longest gift message accepted, in characters.
const MaxGiftMessageLength = 200

// WrapTier is the closed set of gift wrapping options. The zero value means none.
type WrapTier string

const (
	WrapNone    WrapTier = ""
	WrapBasic   WrapTier = "BASIC"
	WrapPremium WrapTier = "PREMIUM"
	WrapLuxury  WrapTier = "LUXURY"
)

// ParseWrapTier converts a wire value into a WrapTier.
func ParseWrapTier(value string) (WrapTier, error) {
	switch tier := WrapTier(strings.ToUpper(strings.TrimSpace(value))); tier {
	case WrapNone, WrapBasic, WrapPremium, WrapLuxury:
		return tier, nil
	default:
		return WrapNone, stageError(StageGift, ErrUnknownGiftTier, "gift.wrapTier", -1, value)
	}
}

// GiftOption describes the gift choices made at checkout.
type GiftOption struct {
	IsGift   bool
	WrapTier WrapTier
	Message  string
}

// GiftFees maps each wrap tier to its fee.
type GiftFees map[WrapTier]Money

// Fee returns the gift fee for opt. The message is checked before the tier.
func (f GiftFees) Fee(opt GiftOption) (Money, error) {
	if !opt.IsGift {
		return zero, nil
	}
	if n := utf8.RuneCountInString(opt.Message); n > MaxGiftMessageLength {
		return zero, stageError(StageGift, ErrGiftMessageTooLong, "gift.message", -1,
			fmt.Sprintf("%d characters, limit %d", n, MaxGiftMessageLength))
	}
	if opt.WrapTier == WrapNone {
		return zero, stageError(StageGift, ErrMissingGiftTier, "gift.wrapTier", -1, "")
	}
	fee, ok := f[opt.WrapTier]
	if !ok {
		return zero, stageError(StageGift, ErrUnknownGiftTier, "gift.wrapTier", -1, string(opt.WrapTier))
	}
	return Round2(NonNegative(fee)), nil
}
