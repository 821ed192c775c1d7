package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/wozozo/smpit/internal/config"
	"github.com/wozozo/smpit/pkg/auth"
)

// SignedRequest builds a SigV4-signed RPC request the way an SDK client
// would, against the credentials in cfg.
func SignedRequest(t *testing.T, cfg *config.Config, target string, payload any) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", "secretsmanager."+target)

	now := time.Now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")
	req.Header.Set("X-Amz-Date", amzDate)

	signedHeaders := []string{"content-type", "host", "x-amz-date", "x-amz-target"}
	canonical := auth.CanonicalRequest(req, signedHeaders, body)
	signature := auth.Signature(cfg.SecretAccessKey, dateStamp, amzDate,
		cfg.Region, "secretsmanager", canonical)

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s/%s/secretsmanager/aws4_request, SignedHeaders=%s, Signature=%s",
		cfg.AccessKeyID, dateStamp, cfg.Region,
		strings.Join(signedHeaders, ";"), signature,
	))

	return req
}

// DoRequest runs the request through the router and decodes the JSON
// response body.
func DoRequest(t *testing.T, engine *gin.Engine, req *http.Request) (int, map[string]any) {
	t.Helper()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var decoded map[string]any
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w.Code, decoded
}
