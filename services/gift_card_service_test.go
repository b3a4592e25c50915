package services

import (
	"context"
	"sync"
	"testing"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGiftCardValidateAndUse_DebitsBalance(t *testing.T) {
	m := newMarketplace()
	card := m.giftCard("GC-AAAA-BBBB-CCCC", 100, true)

	use, err := m.gifts.ValidateAndUse(context.Background(), UseGiftCardInput{
		CardCode: card.Code, Amount: 30, CustomerID: "cust-1", CustomerName: "Mia",
	})
	require.NoError(t, err)
	assert.Equal(t, 30.0, use.AmountDebited)
	assert.Equal(t, 70.0, use.RemainingAmount)
	assert.Equal(t, models.GiftCardTxnPartialRedemption, use.Transaction.Type)

	stored := m.giftRepo.cards[card.ID]
	assert.Equal(t, 70.0, stored.RemainingAmount)
	assert.Equal(t, 30.0, stored.UsageAmount)
	assert.False(t, stored.IsUsed)
}

func TestGiftCardValidateAndUse_OverdrawLeavesCardUntouched(t *testing.T) {
	m := newMarketplace()
	card := m.giftCard("GC-AAAA-BBBB-CCCC", 50, true)

	_, err := m.gifts.ValidateAndUse(context.Background(), UseGiftCardInput{CardCode: card.Code, Amount: 50.01})
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "50.00 remaining")

	stored := m.giftRepo.cards[card.ID]
	assert.Equal(t, 50.0, stored.RemainingAmount)
	assert.Zero(t, stored.UsageAmount)
	assert.Empty(t, m.giftRepo.txns)
}

func TestGiftCardValidateAndUse_FullValueCardIsConsumed(t *testing.T) {
	m := newMarketplace()
	card := m.giftCard("GC-FULL-0000-0001", 80, false)

	use, err := m.gifts.ValidateAndUse(context.Background(), UseGiftCardInput{CardCode: card.Code, Amount: 20})
	require.NoError(t, err)
	assert.Equal(t, 20.0, use.AmountApplied)
	assert.Equal(t, 80.0, use.AmountDebited)
	assert.Zero(t, use.RemainingAmount)
	assert.Equal(t, models.GiftCardTxnRedemption, use.Transaction.Type)
	assert.True(t, m.giftRepo.cards[card.ID].IsUsed)

	_, err = m.gifts.ValidateAndUse(context.Background(), UseGiftCardInput{CardCode: card.Code, Amount: 1})
	assert.ErrorIs(t, err, apperrors.ErrCardUsed)
}

func TestGiftCardLookup_Rejections(t *testing.T) {
	m := newMarketplace()
	ctx := context.Background()

	expired := m.giftCard("GC-EXPI-RED0-0001", 40, true)
	past := testNow.AddDate(0, 0, -1)
	expired.ExpirationDate = &past

	inactive := m.giftCard("GC-INAC-TIVE-0001", 40, true)
	inactive.IsActive = false

	scoped := m.giftCard("GC-SHOP-0000-0001", 40, true)
	shop := "shop-1"
	scoped.BusinessID = &shop
	scoped.BusinessName = "Salsa Loft"
	other := "shop-2"

	_, err := m.gifts.Lookup(ctx, "GC-MISSING", nil)
	assert.ErrorIs(t, err, apperrors.ErrCardNotFound)
	_, err = m.gifts.Lookup(ctx, expired.Code, nil)
	assert.ErrorIs(t, err, apperrors.ErrCardExpired)
	_, err = m.gifts.Lookup(ctx, inactive.Code, nil)
	assert.ErrorIs(t, err, apperrors.ErrCardInactive)
	_, err = m.gifts.Lookup(ctx, scoped.Code, &other)
	require.ErrorIs(t, err, apperrors.ErrBusinessMismatch)
	assert.Contains(t, err.Error(), "Salsa Loft")
	_, err = m.gifts.Lookup(ctx, scoped.Code, &shop)
	assert.NoError(t, err)
}

func TestGiftCardValidateAndUse_RejectsNonPositiveAmount(t *testing.T) {
	m := newMarketplace()
	card := m.giftCard("GC-AAAA-BBBB-CCCC", 10, true)

	_, err := m.gifts.ValidateAndUse(context.Background(), UseGiftCardInput{CardCode: card.Code, Amount: 0})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

// Two concurrent redemptions that each fit the balance alone but not
// together: the conditional debit lets exactly one through.
func TestGiftCardValidateAndUse_ConcurrentOverdraw(t *testing.T) {
	m := newMarketplace()
	card := m.giftCard("GC-RACE-0000-0001", 100, true)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.gifts.ValidateAndUse(context.Background(), UseGiftCardInput{CardCode: card.Code, Amount: 60})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 40.0, m.giftRepo.cards[card.ID].RemainingAmount)
}

func TestGiftCardRefund_RestoresBalance(t *testing.T) {
	m := newMarketplace()
	card := m.giftCard("GC-AAAA-BBBB-CCCC", 100, true)
	ctx := context.Background()

	_, err := m.gifts.ValidateAndUse(ctx, UseGiftCardInput{CardCode: card.Code, Amount: 100})
	require.NoError(t, err)
	require.True(t, m.giftRepo.cards[card.ID].IsUsed)

	require.NoError(t, m.gifts.Refund(ctx, card.Code, 40, nil))
	stored := m.giftRepo.cards[card.ID]
	assert.Equal(t, 40.0, stored.RemainingAmount)
	assert.False(t, stored.IsUsed)
}

func TestGiftCardCreate_SendsRecipientEmail(t *testing.T) {
	m := newMarketplace()
	coach := m.users.add("Lena Coach", "lena@example.com", 0)

	card, err := m.gifts.Create(context.Background(), CreateGiftCardInput{
		IssuerID: coach.ID, BusinessName: "Salsa Loft", Amount: 75.555, RecipientEmail: " friend@example.com ",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^GC-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`, card.Code)
	assert.Equal(t, 75.56, card.Amount)
	assert.Equal(t, card.Amount, card.RemainingAmount)
	assert.True(t, card.AllowPartialUse)

	require.Len(t, m.mailer.giftCards, 1)
	assert.Equal(t, "friend@example.com", m.mailer.giftCards[0].Email)
	assert.Equal(t, "Salsa Loft", m.mailer.giftCards[0].From)
}

func TestGiftCardUpdate_OnlyIssuer(t *testing.T) {
	m := newMarketplace()
	card := m.giftCard("GC-AAAA-BBBB-CCCC", 10, true)
	off := false

	_, err := m.gifts.Update(context.Background(), card.IssuerID, card.ID, UpdateGiftCardInput{IsActive: &off})
	require.NoError(t, err)
	assert.False(t, m.giftRepo.cards[card.ID].IsActive)

	_, err = m.gifts.Update(context.Background(), m.users.add("X", "x@example.com", 0).ID, card.ID, UpdateGiftCardInput{IsActive: &off})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}
