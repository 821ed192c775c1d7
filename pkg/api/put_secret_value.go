package api

import (
	"context"
	"errors"

	"github.com/google/uuid"

	smerrors "github.com/wozozo/smpit/pkg/errors"
	"github.com/wozozo/smpit/pkg/storage"
)

type putSecretValueRequest struct {
	SecretId           string    `json:"SecretId"`
	ClientRequestToken *string   `json:"ClientRequestToken"`
	SecretString       *string   `json:"SecretString"`
	SecretBinary       []byte    `json:"SecretBinary"`
	VersionStages      *[]string `json:"VersionStages"`
}

type putSecretValueResponse struct {
	ARN           string   `json:"ARN"`
	Name          string   `json:"Name"`
	VersionId     string   `json:"VersionId"`
	VersionStages []string `json:"VersionStages"`
}

// putSecretValue adds a new version to a secret. Without explicit
// VersionStages the new version becomes AWSCURRENT. Repeating the call
// with the same client request token and payload is idempotent.
func (h *Handler) putSecretValue(ctx context.Context, body []byte) (any, error) {
	req, err := decode[putSecretValueRequest](body)
	if err != nil {
		return nil, err
	}

	if err := validateSecretID(req.SecretId); err != nil {
		return nil, err
	}
	if err := validateSecretValue(req.SecretString, req.SecretBinary, true); err != nil {
		return nil, err
	}
	if req.VersionStages != nil {
		if len(*req.VersionStages) == 0 {
			return nil, invalidParameter("VersionStages must not be empty.")
		}
		if len(*req.VersionStages) > maxVersionStages {
			return nil, invalidParameter(
				"VersionStages can contain at most %d staging labels.", maxVersionStages)
		}
		for _, stage := range *req.VersionStages {
			if err := validateVersionStage(stage); err != nil {
				return nil, err
			}
		}
	}

	token := uuid.NewString()
	if req.ClientRequestToken != nil {
		if err := validateClientToken(*req.ClientRequestToken); err != nil {
			return nil, err
		}
		token = *req.ClientRequestToken
	}

	stages := []string{storage.StageCurrent}
	if req.VersionStages != nil {
		stages = *req.VersionStages
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

	err = h.store.PutVersion(ctx, secret.ARN, token, req.SecretString, req.SecretBinary, stages)
	if errors.Is(err, smerrors.ErrVersionExists) {
		version, verr := h.store.GetVersion(ctx, secret.ARN, token)
		if verr == nil && samePayload(version, req.SecretString, req.SecretBinary) {
			return &putSecretValueResponse{
				ARN:           secret.ARN,
				Name:          secret.Name,
				VersionId:     token,
				VersionStages: version.Stages,
			}, nil
		}
		return nil, resourceExists(
			"The operation failed because the version %s already exists.", token)
	}
	if err != nil {
		return nil, err
	}

	return &putSecretValueResponse{
		ARN:           secret.ARN,
		Name:          secret.Name,
		VersionId:     token,
		VersionStages: stages,
	}, nil
}
