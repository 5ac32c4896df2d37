package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecureStringFormatBehavior(t *testing.T) {
	secret := SecureString("super-secret-password")

	require.Equal(t, redactedPlaceholder, secret.String())
	require.Equal(t, redactedPlaceholder, fmt.Sprintf("%v", secret))
	require.Equal(t, redactedPlaceholder, fmt.Sprintf("%#v", secret))
}

func TestSecureStringJSONMarshaling(t *testing.T) {
	type testStruct struct {
		Public string       `json:"public"`
		Secret SecureString `json:"secret"`
	}

	data := testStruct{Public: "visible-data", Secret: SecureString("hidden-secret")}

	out, err := json.Marshal(data)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(out), "hidden-secret"))
	require.JSONEq(t, `{"public":"visible-data","secret":"`+redactedPlaceholder+`"}`, string(out))
}

func TestSecureStringUnmarshalRoundTrips(t *testing.T) {
	var s SecureString
	require.NoError(t, json.Unmarshal([]byte(`"actual-value"`), &s))
	require.Equal(t, SecureString("actual-value"), s)
	require.Equal(t, redactedPlaceholder, s.String())
}
