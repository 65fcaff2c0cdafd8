package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/service"
)

func TestRefundAmount(t *testing.T) {
	assert.Equal(t, int64(8000), service.RefundAmount(10000))
	assert.Equal(t, int64(0), service.RefundAmount(0))
	assert.Equal(t, int64(7), service.RefundAmount(9))
}

func TestCancelReservation_PaidCreatesRefundRequest(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 1)
	f.pay(t, res.Reservation.ID)
	require.Equal(t, 1, f.counter(t))

	out, err := f.cancel.CancelReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, out.Reservation.Status)
	require.NotNil(t, out.Refund)
	assert.Equal(t, int64(8000), out.Refund.Amount)
	assert.False(t, out.Refund.Processed)
	assert.Equal(t, service.RefundReason, out.Refund.Reason)
	assert.Equal(t, 0, f.counter(t))

	// cancelled seats stay sold
	assert.Equal(t, 4, f.seats(t, model.FareStandard))

	pending, err := f.cancel.ListRefunds(ctx, f.staff, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, out.Refund.ID, pending[0].ID)
}

func TestCancelReservation_UnpaidHasNoRefund(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	res := f.book(t, model.FareStandard, 2)

	out, err := f.cancel.CancelReservation(context.Background(), f.customer, res.Reservation.ID)
	require.NoError(t, err)
	assert.Nil(t, out.Refund)
	assert.Equal(t, 0, f.counter(t))

	all, err := f.cancel.ListRefunds(context.Background(), f.staff, false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCancelReservation_CounterFloorsAtZero(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 10})
	f.expectNotify()
	res := f.book(t, model.FareStandard, 5)
	require.Len(t, res.BonusEarned, 1)
	require.Equal(t, 0, f.counter(t))

	_, err := f.cancel.CancelReservation(context.Background(), f.customer, res.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.counter(t))

	// the minted bonus survives the cancellation
	views, err := f.booking.ListBonusTickets(context.Background(), f.customer)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Valid)
}

func TestCancelReservation_TwiceIsInvalidTransition(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 1)
	f.pay(t, res.Reservation.ID)

	_, err := f.cancel.CancelReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)

	_, err = f.cancel.CancelReservation(ctx, f.customer, res.Reservation.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	all, err := f.cancel.ListRefunds(ctx, f.staff, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	got, err := f.booking.GetReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)
}

func TestCancelReservation_OnlyOwner(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 1)

	_, err := f.cancel.CancelReservation(ctx, f.other, res.Reservation.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = f.cancel.CancelReservation(ctx, model.Actor{UserID: 4242, Role: model.RoleCustomer}, res.Reservation.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = f.cancel.CancelReservation(ctx, f.customer, 9999)
	assert.ErrorIs(t, err, service.ErrNotFound)

	got, err := f.booking.GetReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, got.Status)
	assert.Equal(t, 1, f.counter(t))
}

func TestProcessRefund(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 1)
	f.pay(t, res.Reservation.ID)
	out, err := f.cancel.CancelReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)
	refundID := out.Refund.ID

	_, err = f.cancel.ProcessRefund(ctx, f.customer, refundID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	rf, err := f.cancel.ProcessRefund(ctx, f.staff, refundID)
	require.NoError(t, err)
	assert.True(t, rf.Processed)
	require.NotNil(t, rf.ProcessedAt)
	assert.Equal(t, fixedNow, *rf.ProcessedAt)

	got, err := f.booking.GetReservation(ctx, f.staff, res.Reservation.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Payment)
	assert.Equal(t, model.PaymentRefunded, got.Payment.Status)

	_, err = f.cancel.ProcessRefund(ctx, f.staff, refundID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = f.cancel.ProcessRefund(ctx, f.staff, 9999)
	assert.ErrorIs(t, err, service.ErrNotFound)

	pending, err := f.cancel.ListRefunds(ctx, f.staff, true)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.cancel.ListRefunds(ctx, f.customer, false)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestMarkUsed(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 1)

	_, err := f.cancel.MarkUsed(ctx, f.customer, res.Reservation.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	used, err := f.cancel.MarkUsed(ctx, f.staff, res.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationUsed, used.Status)

	_, err = f.cancel.MarkUsed(ctx, f.staff, res.Reservation.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = f.cancel.CancelReservation(ctx, f.customer, res.Reservation.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestCancelReservation_PendingPaymentIsAbandoned(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	res := f.book(t, model.FareStandard, 1)
	_, err := f.payments.InitiatePayment(ctx, f.customer, res.Reservation.ID, service.PaymentRequest{Operator: model.OperatorIhela})
	require.NoError(t, err)

	out, err := f.cancel.CancelReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)
	assert.Nil(t, out.Refund)
	require.NotNil(t, out.Reservation.Payment)
	assert.Equal(t, model.PaymentFailed, out.Reservation.Payment.Status)

	got, err := f.booking.GetReservation(ctx, f.customer, res.Reservation.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Payment)
	assert.Equal(t, model.PaymentFailed, got.Payment.Status)

	all, err := f.cancel.ListRefunds(ctx, f.staff, false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAllReservations(t *testing.T) {
	f := newFixture(t, fixtureOpts{seatsStandard: 5})
	f.expectNotify()
	ctx := context.Background()
	kept := f.book(t, model.FareStandard, 1)
	dropped := f.book(t, model.FareStandard, 1)
	_, err := f.cancel.CancelReservation(ctx, f.customer, dropped.Reservation.ID)
	require.NoError(t, err)

	_, err = f.cancel.AllReservations(ctx, f.customer, "")
	assert.ErrorIs(t, err, service.ErrForbidden)

	all, err := f.cancel.AllReservations(ctx, f.staff, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed, err := f.cancel.AllReservations(ctx, f.staff, model.ReservationConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, kept.Reservation.ID, confirmed[0].ID)

	used, err := f.cancel.AllReservations(ctx, f.staff, model.ReservationUsed)
	require.NoError(t, err)
	assert.NotNil(t, used)
	assert.Empty(t, used)

	_, err = f.cancel.AllReservations(ctx, f.staff, "BOARDED")
	assert.ErrorIs(t, err, service.ErrValidation)
}
