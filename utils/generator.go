package utils

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode"
)

const (
	referralCodeLength = 8
	giftCardCodeLength = 12
	suffixLength       = 3
	maxAttempts        = 20
	letterBytes        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// MaxReferralCodeLength is the widest referral code the store accepts.
const MaxReferralCodeLength = 10

// NormalizeReferralCode upper-cases a user-supplied referral code. ok is
// false when the code could not have been issued here.
func NormalizeReferralCode(raw string) (code string, ok bool) {
	code = strings.ToUpper(strings.TrimSpace(raw))
	if code == "" || len(code) > MaxReferralCodeLength {
		return code, false
	}
	for _, r := range code {
		if !strings.ContainsRune(letterBytes, r) {
			return code, false
		}
	}
	return code, true
}

// CodeExists reports whether a candidate code is already taken.
type CodeExists func(ctx context.Context, code string) (bool, error)

func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}

func firstFree(ctx context.Context, exists CodeExists, next func(attempt int) string) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := next(attempt)
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free code after %d attempts", maxAttempts)
}

func GenerateUniqueReferralCode(ctx context.Context, exists CodeExists) (string, error) {
	return firstFree(ctx, exists, func(int) string { return randomString(referralCodeLength) })
}

// GenerateGiftCardCode returns codes of the form GC-XXXX-XXXX-XXXX.
func GenerateGiftCardCode(ctx context.Context, exists CodeExists) (string, error) {
	return firstFree(ctx, exists, func(int) string {
		raw := randomString(giftCardCodeLength)
		return "GC-" + raw[0:4] + "-" + raw[4:8] + "-" + raw[8:12]
	})
}

// DiscountCodeBase builds {first 4 alphanumerics of the coach name}{percentage}{last 6 digits of epoch ms}.
func DiscountCodeBase(coachName string, percentage float64, now time.Time) string {
	var prefix strings.Builder
	for _, r := range strings.ToUpper(coachName) {
		if prefix.Len() == 4 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			prefix.WriteRune(r)
		}
	}
	millis := fmt.Sprintf("%d", now.UnixMilli())
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}
	return fmt.Sprintf("%s%d%s", prefix.String(), int(percentage), millis)
}

// GenerateDiscountCode keeps the base code when free and re-rolls a random
// three character suffix on collision.
func GenerateDiscountCode(ctx context.Context, coachName string, percentage float64, now time.Time, exists CodeExists) (string, error) {
	base := DiscountCodeBase(coachName, percentage, now)
	return firstFree(ctx, exists, func(attempt int) string {
		if attempt == 0 {
			return base
		}
		return base + randomString(suffixLength)
	})
}
