package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentIDFromClientSecret(t *testing.T) {
	id, err := intentIDFromClientSecret("pi_3MtwBwLkdIwHu7ix28a3tqPa_secret_YrKJUKribcBjcG8HVhfZluoGH")
	require.NoError(t, err)
	assert.Equal(t, "pi_3MtwBwLkdIwHu7ix28a3tqPa", id)

	_, err = intentIDFromClientSecret("not-a-client-secret")
	assert.Error(t, err)
}

func TestCountryCode(t *testing.T) {
	assert.Equal(t, "IN", countryCode("India"))
	assert.Equal(t, "US", countryCode("United States"))
	assert.Equal(t, "DE", countryCode("DE")) // already a code, passes through
}

func TestConfirmationSucceeded(t *testing.T) {
	assert.True(t, Confirmation{Status: StatusSucceeded}.Succeeded())
	assert.False(t, Confirmation{Status: "failed"}.Succeeded())
	assert.False(t, Confirmation{}.Succeeded())
}
