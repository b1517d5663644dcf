package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sokoni/internal/types"
)

func TestHaversineKnownDistances(t *testing.T) {
	cases := []struct {
		name   string
		a, b   types.Point
		wantKm float64
		tolKm  float64
	}{
		{
			name:   "nairobi cbd to south b",
			a:      types.Point{Lat: -1.2833, Lng: 36.8167},
			b:      types.Point{Lat: -1.3000, Lng: 36.8200},
			wantKm: 1.89,
			tolKm:  0.05,
		},
		{
			name:   "nairobi to mombasa",
			a:      types.Point{Lat: -1.2921, Lng: 36.8219},
			b:      types.Point{Lat: -4.0435, Lng: 39.6682},
			wantKm: 440,
			tolKm:  5,
		},
		{
			name:   "one degree of longitude at the equator",
			a:      types.Point{Lat: 0, Lng: 0},
			b:      types.Point{Lat: 0, Lng: 1},
			wantKm: 111.19,
			tolKm:  0.1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HaversineKm(tc.a, tc.b)
			assert.InDelta(t, tc.wantKm, got, tc.tolKm)
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := types.Point{Lat: -1.2833, Lng: 36.8167}
	b := types.Point{Lat: -1.3000, Lng: 36.8200}
	assert.Equal(t, HaversineKm(a, b), HaversineKm(b, a))
}

func TestHaversineIdentity(t *testing.T) {
	p := types.Point{Lat: -1.2833, Lng: 36.8167}
	assert.Zero(t, HaversineKm(p, p))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(types.Point{Lat: -1.28, Lng: 36.82}))
	assert.ErrorIs(t, Validate(types.Point{Lat: 91, Lng: 0}), ErrInvalidCoordinate)
	assert.ErrorIs(t, Validate(types.Point{Lat: 0, Lng: -181}), ErrInvalidCoordinate)
	assert.ErrorIs(t, Validate(types.Point{Lat: math.NaN(), Lng: 0}), ErrInvalidCoordinate)
	assert.ErrorIs(t, Validate(types.Point{Lat: 0, Lng: math.Inf(1)}), ErrInvalidCoordinate)
}
