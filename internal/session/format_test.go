package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRemaining(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                   "00:00:00",
		-5 * time.Second:                    "00:00:00",
		999 * time.Millisecond:              "00:00:00",
		59*time.Second + 900*time.Millisecond: "00:00:59",
		time.Hour + time.Minute + time.Second: "01:01:01",
		30 * time.Minute:                    "00:30:00",
		100 * time.Hour:                     "100:00:00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatRemaining(in), "FormatRemaining(%s)", in)
	}
}

func TestWeightShare(t *testing.T) {
	tests := []struct {
		weight, total float64
		want          string
	}{
		{33, 100, "0.33"},
		{7, 100, "0.07"},
		{29, 100, "0.28"},
		{57, 100, "0.56"},
		{58, 100, "0.57"},
		{1, 3, "0.33"},
		{2, 3, "0.66"},
		{50, 100, "0.5"},
		{100, 100, "1"},
		{0, 100, "0"},
		{10, 0, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeightShare(tt.weight, tt.total), "WeightShare(%v, %v)", tt.weight, tt.total)
	}
}
