package httpkit

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderTwilioSignature is the header Twilio signs webhook requests with.
const HeaderTwilioSignature = "X-Twilio-Signature"

// TwilioSignature computes the webhook signature for fullURL and the POST form:
// base64(HMAC-SHA1(authToken, url + key1 + value1 + key2 + value2 ...)) with keys sorted.
func TwilioSignature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range form[k] {
			sb.WriteString(k)
			sb.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(sb.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateTwilioSignature rejects webhook calls whose signature does not match.
// publicBaseURL is the externally visible scheme+host the transport calls.
func ValidateTwilioSignature(enabled bool, authToken, publicBaseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			Error(c, http.StatusBadRequest, "invalid form body", nil)
			c.Abort()
			return
		}

		fullURL := publicBaseURL + c.Request.URL.RequestURI()
		expected := TwilioSignature(authToken, fullURL, c.Request.PostForm)
		got := c.GetHeader(HeaderTwilioSignature)
		if !hmac.Equal([]byte(expected), []byte(got)) {
			Error(c, http.StatusForbidden, "invalid signature", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
