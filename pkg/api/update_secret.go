package api

import (
	"context"
	"errors"

	"github.com/google/uuid"

	smerrors "github.com/wozozo/smpit/pkg/errors"
	"github.com/wozozo/smpit/pkg/storage"
)

type updateSecretRequest struct {
	SecretId           string  `json:"SecretId"`
	ClientRequestToken *string `json:"ClientRequestToken"`
	Description        *string `json:"Description"`
	SecretString       *string `json:"SecretString"`
	SecretBinary       []byte  `json:"SecretBinary"`
}

type updateSecretResponse struct {
	ARN       string  `json:"ARN"`
	Name      string  `json:"Name"`
	VersionId *string `json:"VersionId,omitempty"`
}

// updateSecret changes the description and, when a value is provided,
// stores it as a new AWSCURRENT version. A repeated client request token
// leaves the existing version in place and omits VersionId from the
// response.
func (h *Handler) updateSecret(ctx context.Context, body []byte) (any, error) {
	req, err := decode[updateSecretRequest](body)
	if err != nil {
		return nil, err
	}
	if err := validateSecretID(req.SecretId); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}
	if err := validateSecretValue(req.SecretString, req.SecretBinary, false); err != nil {
		return nil, err
	}

	token := uuid.NewString()
	if req.ClientRequestToken != nil {
		if err := validateClientToken(*req.ClientRequestToken); err != nil {
			return nil, err
		}
		token = *req.ClientRequestToken
	}

	secret, err := h.store.GetSecret(ctx, req.SecretId)
	if errors.Is(err, smerrors.ErrSecretNotFound) {
		return nil, resourceNotFound()
	}
	if err != nil {
		return nil, err
	}
	if secret.DeletedAt != nil {
		return nil, invalidRequest(
			"You can't perform this operation on the secret because it was marked for deletion.")
	}

	versionCut, err := h.store.UpdateSecret(ctx, storage.UpdateSecretParams{
		ARN:          secret.ARN,
		Description:  req.Description,
		VersionID:    token,
		SecretString: req.SecretString,
		SecretBinary: req.SecretBinary,
		PutValue:     req.SecretString != nil || len(req.SecretBinary) > 0,
	})
	if err != nil {
		return nil, err
	}

	resp := &updateSecretResponse{ARN: secret.ARN, Name: secret.Name}
	if versionCut {
		resp.VersionId = &token
	}
	return resp, nil
}
