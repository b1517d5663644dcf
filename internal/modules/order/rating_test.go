package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliveredOrder(t *testing.T, f *fixture) *Order {
	t.Helper()
	o := f.mustCreate(t, FulfillmentCourier)
	f.mustTransition(t, o.ID, StatusProcessing)
	f.mustTransition(t, o.ID, StatusShipped)
	return f.mustTransition(t, o.ID, StatusDelivered)
}

func TestSubmitRating(t *testing.T) {
	f := newFixture()
	o := deliveredOrder(t, f)

	got, err := f.svc.SubmitRating(context.Background(), RatingCommand{
		OrderID: o.ID, ProductRating: 5, DeliveryRating: 4, Comments: "quick drop-off",
	})
	require.NoError(t, err)
	require.NotNil(t, got.ProductRating)
	require.NotNil(t, got.DeliveryRating)
	assert.Equal(t, 5, *got.ProductRating)
	assert.Equal(t, 4, *got.DeliveryRating)
	assert.NotNil(t, got.RatedAt)
}

func TestSubmitRatingTwiceConflicts(t *testing.T) {
	f := newFixture()
	o := deliveredOrder(t, f)

	_, err := f.svc.SubmitRating(context.Background(), RatingCommand{OrderID: o.ID, ProductRating: 5, DeliveryRating: 5})
	require.NoError(t, err)

	_, err = f.svc.SubmitRating(context.Background(), RatingCommand{OrderID: o.ID, ProductRating: 1, DeliveryRating: 1})
	assert.ErrorIs(t, err, ErrAlreadyRated)

	got, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, *got.ProductRating, "stored rating must survive the conflicting write")
	assert.Equal(t, 5, *got.DeliveryRating)
}

func TestSubmitRatingBounds(t *testing.T) {
	f := newFixture()
	o := deliveredOrder(t, f)

	for _, bad := range [][2]int{{0, 5}, {6, 5}, {5, 0}, {5, 6}, {-1, 3}} {
		_, err := f.svc.SubmitRating(context.Background(), RatingCommand{
			OrderID: o.ID, ProductRating: bad[0], DeliveryRating: bad[1],
		})
		assert.ErrorIs(t, err, ErrInvalidRating, "ratings %v", bad)
	}
}

func TestSubmitRatingBeforeDelivery(t *testing.T) {
	f := newFixture()
	o := f.mustCreate(t, FulfillmentCourier)
	f.mustTransition(t, o.ID, StatusProcessing)

	_, err := f.svc.SubmitRating(context.Background(), RatingCommand{OrderID: o.ID, ProductRating: 4, DeliveryRating: 4})
	assert.ErrorIs(t, err, ErrNotDelivered)
}
