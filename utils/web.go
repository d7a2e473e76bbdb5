package utils

import (
	"net/url"
	"strings"
)

// JoinURL resolves relativePath against baseURL. A base without a trailing
// slash is treated as a directory so "https://api.x.com/" and
// "https://api.x.com" behave the same.
func JoinURL(baseURL, relativePath string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	relative, err := url.Parse(strings.TrimPrefix(relativePath, "/"))
	if err != nil {
		return ""
	}

	return base.ResolveReference(relative).String()
}

// RedactURL keeps scheme and host and masks the path, which for webhooks
// carries the secret.
func RedactURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://" + u.Host + "/***"
}

// RedactSecret shows only the last four characters of a token.
func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
