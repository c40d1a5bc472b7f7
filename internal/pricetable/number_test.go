package pricetable_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-configurator/internal/pricetable"
)

func TestParseLoose(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"99.790,00", "99790", true},
		{"99.790", "99790", true},
		{"1.234.567", "1234567", true},
		{"1234.56", "1234.56", true},
		{"0.125", "0.125", true},
		{" 1 789 € ", "1789", true},
		{"2.499,5", "2499.5", true},
		{"1999", "1999", true},
		{"0", "0", true},
		{"", "", false},
		{"  ", "", false},
		{"n/a", "", false},
		{"-5", "", false},
		{"\u22125,00", "", false},
	}
	for _, tc := range cases {
		got, ok := pricetable.ParseLoose(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			require.Equal(t, tc.want, got.String(), "input %q", tc.in)
		}
	}
}
