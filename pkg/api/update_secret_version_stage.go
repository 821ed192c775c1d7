package api

import (
	"context"
	"errors"

	smerrors "github.com/wozozo/smpit/pkg/errors"
)

type updateSecretVersionStageRequest struct {
	SecretId            string  `json:"SecretId"`
	VersionStage        string  `json:"VersionStage"`
	RemoveFromVersionId *string `json:"RemoveFromVersionId"`
	MoveToVersionId     *string `json:"MoveToVersionId"`
}

type updateSecretVersionStageResponse struct {
	ARN  string `json:"ARN"`
	Name string `json:"Name"`
}

// updateSecretVersionStage moves a stage label between versions. Moving
// AWSCURRENT relabels the displaced version as AWSPREVIOUS.
func (h *Handler) updateSecretVersionStage(ctx context.Context, body []byte) (any, error) {
	req, err := decode[updateSecretVersionStageRequest](body)
	if err != nil {
		return nil, err
	}
	if err := validateSecretID(req.SecretId); err != nil {
		return nil, err
	}
	if err := validateVersionStage(req.VersionStage); err != nil {
		return nil, err
	}
	if req.RemoveFromVersionId == nil && req.MoveToVersionId == nil {
		return nil, invalidParameter(
			"You must provide RemoveFromVersionId, MoveToVersionId or both.")
	}

	secret, err := h.store.GetSecret(ctx, req.SecretId)
	if errors.Is(err, smerrors.ErrSecretNotFound) {
		return nil, resourceNotFound()
	}
	if err != nil {
		return nil, err
	}

	err = h.store.UpdateVersionStage(ctx, secret.ARN, req.VersionStage,
		req.RemoveFromVersionId, req.MoveToVersionId)
	switch {
	case errors.Is(err, smerrors.ErrStageNotAttached):
		return nil, invalidRequest(
			"The staging label %s isn't attached to version %s.",
			req.VersionStage, *req.RemoveFromVersionId)
	case errors.Is(err, smerrors.ErrVersionNotFound):
		return nil, &apiError{
			Code:    CodeResourceNotFound,
			Message: "Secrets Manager can't find the specified secret version: " + *req.MoveToVersionId,
			Status:  400,
		}
	case errors.Is(err, smerrors.ErrStageTaken):
		return nil, invalidRequest(
			"The staging label %s is already attached to another version.",
			req.VersionStage)
	case err != nil:
		return nil, err
	}

	return &updateSecretVersionStageResponse{ARN: secret.ARN, Name: secret.Name}, nil
}
