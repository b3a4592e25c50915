package utils

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func never(context.Context, string) (bool, error) { return false, nil }

func TestDiscountCodeBase(t *testing.T) {
	now := time.UnixMilli(1718000123456)
	assert.Equal(t, "ANNA20123456", DiscountCodeBase("Anna-Lena Müller", 20, now))
	assert.Equal(t, "JO15123456", DiscountCodeBase("j.o.", 15.7, now))
}

func TestGenerateDiscountCodeAddsSuffixOnCollision(t *testing.T) {
	now := time.UnixMilli(1718000123456)
	taken := map[string]bool{"MARC10123456": true}
	code, err := GenerateDiscountCode(context.Background(), "Marco", 10, now, func(_ context.Context, c string) (bool, error) {
		return taken[c], nil
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^MARC10123456[A-Z0-9]{3}$`), code)
}

func TestGenerateDiscountCodeKeepsFreeBase(t *testing.T) {
	code, err := GenerateDiscountCode(context.Background(), "Marco", 10, time.UnixMilli(1718000123456), never)
	require.NoError(t, err)
	assert.Equal(t, "MARC10123456", code)
}

func TestGeneratorsPropagateLookupErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := GenerateUniqueReferralCode(context.Background(), func(context.Context, string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGeneratorsGiveUpWhenEverythingIsTaken(t *testing.T) {
	_, err := GenerateGiftCardCode(context.Background(), func(context.Context, string) (bool, error) { return true, nil })
	assert.Error(t, err)
}

func TestGiftCardCodeFormat(t *testing.T) {
	code, err := GenerateGiftCardCode(context.Background(), never)
	require.NoError(t, err)
	assert.Regexp(t, `^GC-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`, code)

	ref, err := GenerateUniqueReferralCode(context.Background(), never)
	require.NoError(t, err)
	assert.Len(t, ref, 8)
}

func TestNormalizeReferralCode(t *testing.T) {
	code, ok := NormalizeReferralCode("  abcd1234 ")
	assert.True(t, ok)
	assert.Equal(t, "ABCD1234", code)

	for _, raw := range []string{"", "ABCDEFGHIJK", "ABC-123", "ÄBC123"} {
		_, ok := NormalizeReferralCode(raw)
		assert.False(t, ok, raw)
	}
}
