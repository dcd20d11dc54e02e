// Package sigv4 signs JSON POST requests with AWS Signature Version 4 using
// a fixed header set (content-type, host, x-amz-date) and no query string.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	// Algorithm is the signing algorithm tag.
	Algorithm = "AWS4-HMAC-SHA256"

	// SignedHeaders lists the headers covered by the signature.
	SignedHeaders = "content-type;host;x-amz-date"

	contentType = "application/json"
	terminator  = "aws4_request"
	amzFormat   = "20060102T150405Z"
)

// Credentials is a static access key pair.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Signer signs requests for one region and service.
type Signer struct {
	Credentials Credentials
	Region      string
	Service     string
}

// AmzDate formats t as a basic ISO-8601 UTC timestamp ("20250101T120000Z").
func AmzDate(t time.Time) string {
	return t.UTC().Format(amzFormat)
}

// HashHex returns the lowercase hex SHA-256 of data.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

// DeriveKey computes the signing key by chaining HMACs over the date stamp,
// region, service and the literal "aws4_request".
func DeriveKey(secret, dateStamp, region, service string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	k = hmacSHA256(k, region)
	k = hmacSHA256(k, service)
	return hmacSHA256(k, terminator)
}

// CanonicalRequest builds the canonical request string. The query component
// is always empty.
func CanonicalRequest(method, path, host, amzDate, payloadHash string) string {
	headers := "content-type:" + contentType + "\n" +
		"host:" + host + "\n" +
		"x-amz-date:" + amzDate + "\n"
	return method + "\n" + path + "\n\n" + headers + "\n" + SignedHeaders + "\n" + payloadHash
}

// Scope returns the credential scope "date/region/service/aws4_request".
func Scope(dateStamp, region, service string) string {
	return dateStamp + "/" + region + "/" + service + "/" + terminator
}

// StringToSign combines the algorithm, timestamp, scope and canonical
// request digest.
func StringToSign(amzDate, scope, canonicalRequest string) string {
	return Algorithm + "\n" + amzDate + "\n" + scope + "\n" + HashHex([]byte(canonicalRequest))
}

// Signature is the result of signing one request.
type Signature struct {
	AmzDate       string
	Authorization string
}

// Compute signs a request described by its method, host, path and body.
func (s Signer) Compute(method, host, path string, body []byte, now time.Time) Signature {
	amzDate := AmzDate(now)
	dateStamp := amzDate[:8]

	canonical := CanonicalRequest(method, path, host, amzDate, HashHex(body))
	scope := Scope(dateStamp, s.Region, s.Service)
	key := DeriveKey(s.Credentials.SecretKey, dateStamp, s.Region, s.Service)
	sig := hex.EncodeToString(hmacSHA256(key, StringToSign(amzDate, scope, canonical)))

	return Signature{
		AmzDate: amzDate,
		Authorization: fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			Algorithm, s.Credentials.AccessKey, scope, SignedHeaders, sig),
	}
}

// Sign sets Content-Type, Host, X-Amz-Date and Authorization on req. body
// must be the exact bytes that will be sent.
func (s Signer) Sign(req *http.Request, body []byte, now time.Time) error {
	if s.Credentials.AccessKey == "" || s.Credentials.SecretKey == "" {
		return errors.New("sigv4: missing credentials")
	}
	host := req.URL.Host
	path := req.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	sig := s.Compute(req.Method, host, path, body, now)

	req.Host = host
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Host", host)
	req.Header.Set("X-Amz-Date", sig.AmzDate)
	req.Header.Set("Authorization", sig.Authorization)
	return nil
}
