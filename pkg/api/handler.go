package api

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/wozozo/smpit/pkg/storage"
)

// DefaultAccountID is the account id used in generated ARNs.
const DefaultAccountID = "1"

const targetPrefix = "secretsmanager."

// Handler dispatches JSON 1.1 RPC requests to the operation handlers.
type Handler struct {
	store     *storage.Store
	region    string
	accountID string

	operations map[string]operation
}

type operation func(ctx context.Context, body []byte) (any, error)

// NewHandler creates the RPC dispatcher over the given store. The region
// only affects generated ARNs.
func NewHandler(store *storage.Store, region string) *Handler {
	h := &Handler{
		store:     store,
		region:    region,
		accountID: DefaultAccountID,
	}

	h.operations = map[string]operation{
		"CreateSecret":             h.createSecret,
		"DeleteSecret":             h.deleteSecret,
		"DescribeSecret":           h.describeSecret,
		"GetSecretValue":           h.getSecretValue,
		"PutSecretValue":           h.putSecretValue,
		"RestoreSecret":            h.restoreSecret,
		"UpdateSecret":             h.updateSecret,
		"UpdateSecretVersionStage": h.updateSecretVersionStage,
		"TagResource":              h.tagResource,
		"UntagResource":            h.untagResource,
		"ListSecrets":              h.listSecrets,
		"ListSecretVersionIds":     h.listSecretVersionIds,
		"BatchGetSecretValue":      h.batchGetSecretValue,
		"GetRandomPassword":        h.getRandomPassword,
	}
	return h
}

// Handle serves one RPC call, routed by the X-Amz-Target header.
func (h *Handler) Handle(c *gin.Context) {
	target := c.GetHeader("X-Amz-Target")
	if target == "" {
		WriteError(c, invalidRequest("Missing X-Amz-Target header."))
		return
	}

	name, ok := cutTarget(target)
	if !ok {
		WriteError(c, unknownOperation())
		return
	}
	op, ok := h.operations[name]
	if !ok {
		WriteError(c, unknownOperation())
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		WriteError(c, invalidRequest("Unable to read request body."))
		return
	}

	resp, err := op(c.Request.Context(), body)
	if err != nil {
		if _, ok := err.(*apiError); !ok {
			log.WithError(err).WithField("target", target).Error("Operation failed")
		}
		WriteError(c, err)
		return
	}

	c.JSON(200, resp)
}

func cutTarget(target string) (string, bool) {
	if len(target) <= len(targetPrefix) || target[:len(targetPrefix)] != targetPrefix {
		return "", false
	}
	return target[len(targetPrefix):], true
}
