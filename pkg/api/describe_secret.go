package api

import (
	"context"
	"errors"

	smerrors "github.com/wozozo/smpit/pkg/errors"
)

type describeSecretRequest struct {
	SecretId string `json:"SecretId"`
}

type describeSecretResponse struct {
	ARN                string              `json:"ARN"`
	Name               string              `json:"Name"`
	Description        *string             `json:"Description,omitempty"`
	RotationEnabled    *bool               `json:"RotationEnabled"`
	RotationLambdaARN  *string             `json:"RotationLambdaARN"`
	RotationRules      *struct{}           `json:"RotationRules"`
	LastChangedDate    float64             `json:"LastChangedDate"`
	LastAccessedDate   *float64            `json:"LastAccessedDate,omitempty"`
	DeletedDate        *float64            `json:"DeletedDate,omitempty"`
	NextRotationDate   *float64            `json:"NextRotationDate"`
	Tags               []tagOutput         `json:"Tags"`
	VersionIdsToStages map[string][]string `json:"VersionIdsToStages"`
	OwningService      *string             `json:"OwningService"`
	CreatedDate        float64             `json:"CreatedDate"`
	PrimaryRegion      *string             `json:"PrimaryRegion"`
}

// describeSecret returns secret metadata, including for secrets already
// scheduled for deletion. Rotation and replication fields are always
// null.
func (h *Handler) describeSecret(ctx context.Context, body []byte) (any, error) {
	req, err := decode[describeSecretRequest](body)
	if err != nil {
		return nil, err
	}
	if err := validateSecretID(req.SecretId); err != nil {
		return nil, err
	}

	details, err := h.store.DescribeSecret(ctx, req.SecretId)
	if errors.Is(err, smerrors.ErrSecretNotFound) {
		return nil, resourceNotFound()
	}
	if err != nil {
		return nil, err
	}

	return &describeSecretResponse{
		ARN:                details.Secret.ARN,
		Name:               details.Secret.Name,
		Description:        details.Secret.Description,
		LastChangedDate:    epochFloat(details.LastChangedAt),
		LastAccessedDate:   epochFloatPtr(details.LastAccessedAt),
		DeletedDate:        epochFloatPtr(details.Secret.DeletedAt),
		Tags:               toTagOutputs(details.Tags),
		VersionIdsToStages: details.VersionsToStages,
		CreatedDate:        epochFloat(details.Secret.CreatedAt),
	}, nil
}
