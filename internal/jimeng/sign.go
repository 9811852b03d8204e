package jimeng

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Request signing for the generation API: HMAC-SHA256 with a date/region/
// service derived key chain and a canonical request over the signed headers.

const signedHeaders = "host;x-date;x-content-sha256;content-type"

// signature holds everything the HTTP layer needs to authenticate one request.
type signature struct {
	XDate         string // yyyyMMdd'T'HHmmss'Z'
	ContentSha256 string
	Authorization string
	Query         string // canonical, already encoded
}

// sign computes the request signature for a POST to path "/" with the given
// query parameters and body, at the given instant.
func (c *Client) sign(method string, query map[string]string, body []byte, at time.Time) signature {
	xDate := at.UTC().Format("20060102T150405Z")
	shortDate := xDate[:8]
	contentSha := hashSHA256(body)

	canonicalQuery := encodeQuery(query)

	canonical := strings.Join([]string{
		method,
		"/",
		canonicalQuery,
		"host:" + c.cfg.Endpoint,
		"x-date:" + xDate,
		"x-content-sha256:" + contentSha,
		"content-type:" + contentTypeJSON,
		"",
		signedHeaders,
		contentSha,
	}, "\n")

	scope := shortDate + "/" + c.cfg.Region + "/" + c.cfg.Service + "/request"
	stringToSign := strings.Join([]string{
		"HMAC-SHA256",
		xDate,
		scope,
		hashSHA256([]byte(canonical)),
	}, "\n")

	key := signingKey(c.cfg.SecretAccessKey, shortDate, c.cfg.Region, c.cfg.Service)
	sig := hex.EncodeToString(hmacSHA256(key, stringToSign))

	auth := "HMAC-SHA256" +
		" Credential=" + c.cfg.AccessKeyID + "/" + scope +
		", SignedHeaders=" + signedHeaders +
		", Signature=" + sig

	return signature{
		XDate:         xDate,
		ContentSha256: contentSha,
		Authorization: auth,
		Query:         canonicalQuery,
	}
}

// encodeQuery builds the canonical query string: keys sorted, RFC 3986
// percent-encoding with space as %20.
func encodeQuery(query map[string]string) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, percentEncode(k)+"="+percentEncode(query[k]))
	}
	return strings.Join(parts, "&")
}

func percentEncode(s string) string {
	// url.QueryEscape encodes space as '+', which the signer rejects.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func hashSHA256(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, content string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(content))
	return mac.Sum(nil)
}

// signingKey derives the request key: secret -> date -> region -> service -> "request".
func signingKey(secret, shortDate, region, service string) []byte {
	kDate := hmacSHA256([]byte(secret), shortDate)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "request")
}
