package api

import (
	"context"
	"errors"

	smerrors "github.com/wozozo/smpit/pkg/errors"
)

type restoreSecretRequest struct {
	SecretId string `json:"SecretId"`
}

type restoreSecretResponse struct {
	ARN  string `json:"ARN"`
	Name string `json:"Name"`
}

// restoreSecret cancels a pending deletion. Restoring a secret that is
// not scheduled for deletion is a no-op.
func (h *Handler) restoreSecret(ctx context.Context, body []byte) (any, error) {
	req, err := decode[restoreSecretRequest](body)
	if err != nil {
		return nil, err
	}
	if err := validateSecretID(req.SecretId); err != nil {
		return nil, err
	}

	secret, err := h.store.GetSecret(ctx, req.SecretId)
	if errors.Is(err, smerrors.ErrSecretNotFound) {
		return nil, resourceNotFound()
	}
	if err != nil {
		return nil, err
	}

	if err := h.store.RestoreSecret(ctx, secret.ARN); err != nil {
		return nil, err
	}

	return &restoreSecretResponse{ARN: secret.ARN, Name: secret.Name}, nil
}
