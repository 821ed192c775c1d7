// Package auth implements server-side verification of AWS Signature
// Version 4 signed requests against a single static credential pair.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	autherrors "github.com/wozozo/smpit/pkg/errors"
)

const algorithmPrefix = "AWS4-HMAC-SHA256 "

// Credentials is the static access key pair the verifier accepts.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Verifier checks the SigV4 signature of incoming requests.
type Verifier struct {
	credentials Credentials
}

// NewVerifier creates a verifier for the provided credential pair
func NewVerifier(credentials Credentials) *Verifier {
	return &Verifier{credentials: credentials}
}

// authorizationHeader is the parsed form of the Authorization header
type authorizationHeader struct {
	credential    string
	signedHeaders []string
	signature     string
}

// Verify authenticates the request against the configured credentials.
// The body must be the fully buffered request payload; SigV4 signs its
// SHA256 hash.
func (v *Verifier) Verify(r *http.Request, body []byte) error {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return autherrors.ErrMissingAuthHeader
	}

	amzDate := r.Header.Get("X-Amz-Date")
	if amzDate == "" {
		return autherrors.ErrMissingDate
	}

	auth, err := parseAuthorizationHeader(authorization)
	if err != nil {
		return err
	}

	credParts := strings.Split(auth.credential, "/")
	if len(credParts) != 5 || credParts[4] != "aws4_request" {
		return autherrors.ErrInvalidCredential
	}

	accessKeyID := credParts[0]
	dateStamp := credParts[1]
	region := credParts[2]
	service := credParts[3]

	if accessKeyID != v.credentials.AccessKeyID {
		return autherrors.ErrInvalidAccessKey
	}

	canonicalRequest := CanonicalRequest(r, auth.signedHeaders, body)
	expected := Signature(
		v.credentials.SecretAccessKey,
		dateStamp, amzDate, region, service,
		canonicalRequest,
	)

	if !hmac.Equal([]byte(expected), []byte(auth.signature)) {
		return autherrors.ErrSignatureMismatch
	}

	return nil
}

// parseAuthorizationHeader splits the SigV4 Authorization header into its
// Credential, SignedHeaders and Signature components
func parseAuthorizationHeader(value string) (*authorizationHeader, error) {
	if !strings.HasPrefix(value, algorithmPrefix) {
		return nil, autherrors.WrapAuthError("algorithm", autherrors.ErrUnsupportedAuthVersion)
	}

	auth := &authorizationHeader{}

	for _, part := range strings.Split(value[len(algorithmPrefix):], ",") {
		part = strings.TrimSpace(part)

		switch {
		case strings.HasPrefix(part, "Credential="):
			auth.credential = strings.TrimPrefix(part, "Credential=")
		case strings.HasPrefix(part, "SignedHeaders="):
			names := strings.TrimPrefix(part, "SignedHeaders=")
			for _, name := range strings.Split(names, ";") {
				if name != "" {
					auth.signedHeaders = append(auth.signedHeaders, strings.ToLower(name))
				}
			}
		case strings.HasPrefix(part, "Signature="):
			auth.signature = strings.TrimPrefix(part, "Signature=")
		}
	}

	if auth.credential == "" || auth.signature == "" || len(auth.signedHeaders) == 0 {
		return nil, autherrors.ErrIncompleteAuthHeader
	}

	return auth, nil
}

// CanonicalRequest builds the SigV4 canonical request string.
//
// https://docs.aws.amazon.com/IAM/latest/UserGuide/reference_sigv-create-signed-request.html#create-canonical-request
func CanonicalRequest(r *http.Request, signedHeaders []string, body []byte) string {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	canonicalURI := uriEncode(path, false)
	canonicalQuery := canonicalizeQuery(r.URL.RawQuery)

	// Collect the signed headers. When the same header name appears more
	// than once the last occurrence wins.
	headers := make(map[string]string, len(signedHeaders))
	for name, values := range r.Header {
		key := strings.ToLower(name)
		if !containsHeader(signedHeaders, key) {
			continue
		}
		for _, value := range values {
			headers[key] = strings.TrimSpace(value)
		}
	}
	if containsHeader(signedHeaders, "host") {
		headers["host"] = r.Host
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var canonicalHeaders strings.Builder
	for _, name := range names {
		canonicalHeaders.WriteString(name)
		canonicalHeaders.WriteString(":")
		canonicalHeaders.WriteString(headers[name])
		canonicalHeaders.WriteString("\n")
	}

	payloadHash := sha256.Sum256(body)

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n%s",
		r.Method,
		canonicalURI,
		canonicalQuery,
		canonicalHeaders.String(),
		strings.Join(names, ";"),
		hex.EncodeToString(payloadHash[:]),
	)
}

// Signature derives the SigV4 signing key and signs the string-to-sign
// built from the canonical request.
func Signature(secretAccessKey, dateStamp, amzDate, region, service, canonicalRequest string) string {
	kDate := hmacSHA256([]byte("AWS4"+secretAccessKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	kSigning := hmacSHA256(kService, []byte("aws4_request"))

	hashedCanonicalRequest := sha256.Sum256([]byte(canonicalRequest))
	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, region, service)

	stringToSign := fmt.Sprintf("AWS4-HMAC-SHA256\n%s\n%s\n%s",
		amzDate,
		credentialScope,
		hex.EncodeToString(hashedCanonicalRequest[:]),
	)

	return hex.EncodeToString(hmacSHA256(kSigning, []byte(stringToSign)))
}

func containsHeader(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}

// canonicalizeQuery sorts query pairs by key bytes and applies the AWS
// URI encoding to both keys and values (slashes included).
func canonicalizeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	type pair struct{ key, value string }
	var pairs []pair

	for _, kv := range strings.Split(rawQuery, "&") {
		if kv == "" {
			continue
		}
		key, value, _ := strings.Cut(kv, "=")
		pairs = append(pairs, pair{key: key, value: value})
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	encoded := make([]string, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, uriEncode(p.key, true)+"="+uriEncode(p.value, true))
	}

	return strings.Join(encoded, "&")
}

// uriEncode applies the AWS flavor of percent-encoding: unreserved
// characters pass through, the path separator is preserved unless
// encodeSlash is set, and everything else becomes uppercase %HH.
func uriEncode(input string, encodeSlash bool) string {
	var out strings.Builder
	for i := 0; i < len(input); i++ {
		b := input[i]
		switch {
		case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9',
			b == '-', b == '.', b == '_', b == '~':
			out.WriteByte(b)
		case b == '/' && !encodeSlash:
			out.WriteByte(b)
		default:
			out.WriteString(fmt.Sprintf("%%%02X", b))
		}
	}
	return out.String()
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
