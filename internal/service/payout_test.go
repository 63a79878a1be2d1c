package service

import (
	"context"
	"sync"
	"testing"

	"dione/config"
	"dione/internal/broker"
	"dione/internal/models"
	"dione/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidGcashNumber(t *testing.T) {
	valid := []string{
		"09171234567",
		"0917 123 4567",
		"0917-123-4567",
		"9171234567",
	}
	for _, number := range valid {
		assert.True(t, validGcashNumber(number), number)
	}

	invalid := []string{
		"",
		"0917",
		"091712345678",
		"0917123456a",
		"+639171234567",
		"0917.123.4567",
	}
	for _, number := range invalid {
		assert.False(t, validGcashNumber(number), number)
	}
}

func TestValidPayoutStatus(t *testing.T) {
	assert.True(t, validPayoutStatus(models.PayoutStatusPending))
	assert.True(t, validPayoutStatus(models.PayoutStatusPaid))
	assert.True(t, validPayoutStatus(models.PayoutStatusRejected))
	assert.False(t, validPayoutStatus("settled"))
	assert.False(t, validPayoutStatus(""))
}

func payoutTestConfig() *config.Config {
	return &config.Config{Business: config.BusinessConfig{
		PickupRate:   decimal.NewFromInt(100),
		DeliveryRate: decimal.NewFromInt(50),
	}}
}

func TestConcurrentPayoutRequestsSerialize(t *testing.T) {
	// This is a placeholder test - requires actual database connection
	// In real scenarios, use testcontainers or mock database

	t.Skip("Integration test - requires database")

	st, err := store.NewStore(testDSN)
	require.NoError(t, err)
	defer st.Close()

	cfg := payoutTestConfig()
	earnings := NewEarningsService(st, cfg)
	payouts := NewPayoutService(st, nil, cfg)

	ctx := context.Background()

	// fixture: a rider with a positive balance and no pending requests
	const riderUserID = int64(1)

	view, err := earnings.Earnings(ctx, riderUserID)
	require.NoError(t, err)
	require.True(t, view.AvailableBalance.IsPositive())

	// both withdraw the whole balance; the profile row lock admits one
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := payouts.RequestPayout(ctx, riderUserID, view.AvailableBalance,
				"Juan Dela Cruz", "09171234567", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	failures := 0
	for err := range errs {
		if err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	after, err := earnings.Earnings(ctx, riderUserID)
	require.NoError(t, err)
	committed := after.TotalPaid.Add(after.PendingPayouts)
	assert.True(t, committed.LessThanOrEqual(after.TotalEarned))
}

func TestPayoutUnsettleClearsProcessedStamps(t *testing.T) {
	t.Skip("Integration test - requires database")

	st, err := store.NewStore(testDSN)
	require.NoError(t, err)
	defer st.Close()

	publisher := broker.NewEventPublisher(broker.NewProducer([]string{"localhost:9092"}, "dione-test-events"))
	payouts := NewPayoutService(st, publisher, payoutTestConfig())
	ctx := context.Background()

	// fixture: a pending payout request
	const payoutID = int64(1)
	const adminID = int64(42)

	paid, err := payouts.UpdatePayout(ctx, adminID, payoutID, models.PayoutStatusPaid, "", "ref-001")
	require.NoError(t, err)
	require.NotNil(t, paid.ProcessedAt)
	require.True(t, paid.ProcessedByAdminID.Valid)

	reopened, err := payouts.UpdatePayout(ctx, adminID, payoutID, models.PayoutStatusPending, "", "")
	require.NoError(t, err)
	assert.Nil(t, reopened.ProcessedAt)
	assert.False(t, reopened.ProcessedByAdminID.Valid)

	// and it can be settled again
	rejected, err := payouts.UpdatePayout(ctx, adminID, payoutID, models.PayoutStatusRejected, "duplicate", "")
	require.NoError(t, err)
	assert.NotNil(t, rejected.ProcessedAt)
}
