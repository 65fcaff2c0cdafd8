package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/service"
)

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 2)

	_, err := f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: "bitcoin"})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = f.payments.InitiatePayment(ctx, f.other, res.Reservation.ID, service.PaymentRequest{Operator: model.OperatorCard})
	assert.ErrorIs(t, err, service.ErrForbidden)

	p, err := f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: " EcoCash ", Phone: "+25761000000"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, int64(20000), p.Amount)
	require.NotNil(t, p.Operator)
	assert.Equal(t, model.OperatorEcocash, *p.Operator)
	require.NotNil(t, p.ExternalRef)
	assert.Regexp(t, `^PAY-`, *p.ExternalRef)

	_, err = f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: model.OperatorCard})
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestInitiatePayment_RequiresConfirmedReservation(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 1)
	_, err := f.cancel.CancelReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)

	_, err = f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: model.OperatorIhela})
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestCompletePayment(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 1)

	_, err := f.payments.CompletePayment(ctx, f.customer, res.Reservation.ID, true)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: model.OperatorPaypal})
	require.NoError(t, err)

	_, err = f.payments.CompletePayment(ctx, f.other, res.Reservation.ID, true)
	assert.ErrorIs(t, err, service.ErrForbidden)

	p, err := f.payments.CompletePayment(ctx, f.staff, res.Reservation.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, p.Status)

	_, err = f.payments.CompletePayment(ctx, f.customer, res.Reservation.ID, true)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	// a failed payment gives no refund on cancel
	out, err := f.cancel.CancelReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)
	assert.Nil(t, out.Refund)
}

func TestCompletePayment_AfterCancellation(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 1)
	_, err := f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: model.OperatorLumicash})
	require.NoError(t, err)
	_, err = f.cancel.CancelReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)

	_, err = f.payments.CompletePayment(ctx, f.staff, res.Reservation.ID, true)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	got, err := f.booking.GetReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)
	require.NotNil(t, got.Payment)
	assert.NotEqual(t, model.PaymentPaid, got.Payment.Status)
}

func TestInitiatePayment_RetryAfterFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 2)

	first, err := f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: model.OperatorEcocash})
	require.NoError(t, err)
	_, err = f.payments.CompletePayment(ctx, f.customer, res.Reservation.ID, false)
	require.NoError(t, err)

	retry, err := f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: model.OperatorCard})
	require.NoError(t, err)
	assert.Equal(t, first.ID, retry.ID)
	assert.Equal(t, model.PaymentPending, retry.Status)
	require.NotNil(t, retry.Operator)
	assert.Equal(t, model.OperatorCard, *retry.Operator)
	assert.NotEqual(t, *first.ExternalRef, *retry.ExternalRef)

	paid, err := f.payments.CompletePayment(ctx, f.customer, res.Reservation.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, paid.Status)

	// a paid reservation cannot be paid again
	_, err = f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: model.OperatorCard})
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
}
