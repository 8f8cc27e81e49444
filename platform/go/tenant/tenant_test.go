package tenant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCustomerID_Valid(t *testing.T) {
	cases := map[string]string{
		"acme":        "acme",
		"  Acme  ":    "acme",
		"blue42":      "blue42",
		"north_wind":  "north_wind",
		"a":           "a",
		"UPPERCASE":   "uppercase",
		"mix3d_Ten4n": "mix3d_ten4n",
	}

	for input, want := range cases {
		got, err := NormalizeCustomerID(input)
		require.NoError(t, err, "input %q", input)
		require.Equal(t, want, got)
	}
}

func TestNormalizeCustomerID_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"9lives",
		"_lead",
		"has-dash",
		"has.dot",
		"has space",
		"acme;DROP DATABASE acme",
		"<VirtualHost>",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", // 64 chars
	}

	for _, input := range inputs {
		_, err := NormalizeCustomerID(input)
		require.Error(t, err, "input %q", input)
		require.True(t, errors.Is(err, ErrInvalidCustomerID), "input %q", input)
	}
}

func TestDerivedNames(t *testing.T) {
	require.Equal(t, "acme.example.com", FQDN("acme", "example.com"))
	require.Equal(t, "acme.example.com", FQDN("acme", "example.com."))
	require.Equal(t, "acme", DatabaseName("acme"))
	require.Equal(t, "/var/www/clients/acme", DocumentRoot("acme"))
	require.Equal(t, "acme.conf", VhostFileName("acme"))
}
