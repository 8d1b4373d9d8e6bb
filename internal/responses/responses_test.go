package responses

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute(t *testing.T) {
	result := Substitute(
		"Hello /u/{username}, you owe {amount} on loan {loan_id}.",
		map[string]interface{}{
			"username": "alice",
			"amount":   "$10.00",
			"loan_id":  42,
		},
	)
	assert.Equal(t, "Hello /u/alice, you owe $10.00 on loan 42.", result)
}

func TestSubstituteLeavesUnknownPlaceholders(t *testing.T) {
	result := Substitute("{known} and {unknown}", map[string]interface{}{
		"known": "yes",
	})
	assert.Equal(t, "yes and {unknown}", result)
}

func TestSubstituteNoPlaceholders(t *testing.T) {
	assert.Equal(t, "Pong!", Substitute("Pong!", nil))
}
