package api

import (
	"context"
	"errors"

	"github.com/google/uuid"

	smerrors "github.com/wozozo/smpit/pkg/errors"
	"github.com/wozozo/smpit/pkg/storage"
)

type createSecretRequest struct {
	Name               string     `json:"Name"`
	ClientRequestToken *string    `json:"ClientRequestToken"`
	Description        *string    `json:"Description"`
	SecretString       *string    `json:"SecretString"`
	SecretBinary       []byte     `json:"SecretBinary"`
	Tags               []tagInput `json:"Tags"`
}

type createSecretResponse struct {
	ARN       string `json:"ARN"`
	Name      string `json:"Name"`
	VersionId string `json:"VersionId"`
}

// createSecret creates a secret with an initial AWSCURRENT version.
// Repeating the call with the same client request token and payload is
// idempotent.
func (h *Handler) createSecret(ctx context.Context, body []byte) (any, error) {
	req, err := decode[createSecretRequest](body)
	if err != nil {
		return nil, err
	}

	if err := validateSecretName(req.Name); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}
	if err := validateSecretValue(req.SecretString, req.SecretBinary, true); err != nil {
		return nil, err
	}
	if err := validateTags(req.Tags); err != nil {
		return nil, err
	}

	token := uuid.NewString()
	if req.ClientRequestToken != nil {
		if err := validateClientToken(*req.ClientRequestToken); err != nil {
			return nil, err
		}
		token = *req.ClientRequestToken
	}

	arn := h.newARN(req.Name)
	err = h.store.CreateSecret(ctx, storage.CreateSecretParams{
		ARN:          arn,
		Name:         req.Name,
		Description:  req.Description,
		Tags:         toStorageTags(req.Tags),
		VersionID:    token,
		SecretString: req.SecretString,
		SecretBinary: req.SecretBinary,
	})
	if errors.Is(err, smerrors.ErrSecretExists) {
		return h.recoverExistingSecret(ctx, req, token)
	}
	if err != nil {
		return nil, err
	}

	return &createSecretResponse{ARN: arn, Name: req.Name, VersionId: token}, nil
}

// recoverExistingSecret handles a name collision: a repeat of an earlier
// request (same token, same payload) succeeds, anything else fails with
// ResourceExistsException.
func (h *Handler) recoverExistingSecret(ctx context.Context, req *createSecretRequest, token string) (any, error) {
	secret, err := h.store.GetSecret(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if secret.DeletedAt != nil {
		return nil, invalidRequest(
			"You can't create this secret because a secret with this name is already scheduled for deletion.")
	}

	version, err := h.store.GetVersion(ctx, secret.ARN, token)
	if err == nil && samePayload(version, req.SecretString, req.SecretBinary) {
		return &createSecretResponse{
			ARN: secret.ARN, Name: secret.Name, VersionId: token,
		}, nil
	}

	return nil, resourceExists(
		"The operation failed because the secret %s already exists.", req.Name)
}
