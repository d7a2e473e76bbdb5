package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://api.x.com/2/tweets", JoinURL("https://api.x.com", "/2/tweets"))
	assert.Equal(t, "https://api.x.com/2/tweets", JoinURL("https://api.x.com/", "2/tweets"))
	assert.Equal(t, "http://127.0.0.1:8080/proxy/2/tweets", JoinURL("http://127.0.0.1:8080/proxy", "/2/tweets"))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://discord.com/***", RedactURL("https://discord.com/api/webhooks/1/secret"))
	assert.Equal(t, "", RedactURL(""))
	assert.Equal(t, "****cdef", RedactSecret("abcdefabcdef"))
	assert.Equal(t, "****", RedactSecret("abc"))
}
