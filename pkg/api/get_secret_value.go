package api

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	smerrors "github.com/wozozo/smpit/pkg/errors"
	"github.com/wozozo/smpit/pkg/storage"
)

type getSecretValueRequest struct {
	SecretId     string  `json:"SecretId"`
	VersionId    *string `json:"VersionId"`
	VersionStage *string `json:"VersionStage"`
}

type getSecretValueResponse struct {
	ARN           string   `json:"ARN"`
	Name          string   `json:"Name"`
	VersionId     string   `json:"VersionId"`
	SecretString  *string  `json:"SecretString,omitempty"`
	SecretBinary  []byte   `json:"SecretBinary,omitempty"`
	VersionStages []string `json:"VersionStages"`
	CreatedDate   int64    `json:"CreatedDate"`
}

// getSecretValue resolves a version by id, stage label, or both; without
// either it reads AWSCURRENT.
func (h *Handler) getSecretValue(ctx context.Context, body []byte) (any, error) {
	req, err := decode[getSecretValueRequest](body)
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
	if secret.DeletedAt != nil {
		return nil, invalidRequest(
			"You can't perform this operation on the secret because it was marked for deletion.")
	}

	var value *storage.SecretValue
	switch {
	case req.VersionId != nil && req.VersionStage != nil:
		value, err = h.store.GetValueByVersionAndStage(ctx, req.SecretId, *req.VersionId, *req.VersionStage)
	case req.VersionId != nil:
		value, err = h.store.GetValueByVersionID(ctx, req.SecretId, *req.VersionId)
	case req.VersionStage != nil:
		value, err = h.store.GetValueByStage(ctx, req.SecretId, *req.VersionStage)
	default:
		value, err = h.store.GetValueByStage(ctx, req.SecretId, storage.StageCurrent)
	}
	if errors.Is(err, smerrors.ErrVersionNotFound) {
		if req.VersionId != nil {
			return nil, &apiError{
				Code:    CodeResourceNotFound,
				Message: "Secrets Manager can't find the specified secret value for VersionId: " + *req.VersionId,
				Status:  400,
			}
		}
		stage := storage.StageCurrent
		if req.VersionStage != nil {
			stage = *req.VersionStage
		}
		return nil, &apiError{
			Code:    CodeResourceNotFound,
			Message: "Secrets Manager can't find the specified secret value for staging label: " + stage,
			Status:  400,
		}
	}
	if err != nil {
		return nil, err
	}

	if err := h.store.TouchLastAccessed(ctx, value.Secret.ARN, value.Version.VersionID); err != nil {
		log.WithError(err).Warn("Failed to record secret access")
	}

	// CreatedDate reports the secret's creation time unless the caller
	// pinned an explicit version.
	createdAt := value.Secret.CreatedAt
	if req.VersionId != nil {
		createdAt = value.Version.CreatedAt
	}

	return &getSecretValueResponse{
		ARN:           value.Secret.ARN,
		Name:          value.Secret.Name,
		VersionId:     value.Version.VersionID,
		SecretString:  value.Version.SecretString,
		SecretBinary:  value.Version.SecretBinary,
		VersionStages: value.Version.Stages,
		CreatedDate:   epochSeconds(createdAt),
	}, nil
}
