package hybrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_IdentifierAware(t *testing.T) {
	tokens := Tokenize("fn authenticate_user(username: &str)")

	assert.Contains(t, tokens, "authenticate")
	assert.Contains(t, tokens, "user")
	assert.Contains(t, tokens, "username")
	assert.Contains(t, tokens, "str")
	assert.NotContains(t, tokens, "&")
}

func TestTokenize_CamelCase(t *testing.T) {
	assert.Equal(t, []string{"parse", "request", "body"}, Tokenize("parseRequestBody"))
	assert.Equal(t, []string{"http", "server"}, Tokenize("HttpServer"))
}

func TestTokenize_SnakeCase(t *testing.T) {
	assert.Equal(t, []string{"max", "retry", "count"}, Tokenize("max_retry_count"))
}

func TestTokenize_Lowercases(t *testing.T) {
	assert.Equal(t, []string{"select", "from", "users"}, Tokenize("SELECT FROM users"))
}

func TestTokenize_DropsShortTokens(t *testing.T) {
	tokens := Tokenize("a b x1 go i")
	assert.Equal(t, []string{"x1", "go"}, tokens)
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("  !@#$  "))
}

func TestTokenize_DigitsKeptInsideWords(t *testing.T) {
	assert.Equal(t, []string{"sha256", "sum"}, Tokenize("sha256_sum"))
}
