package api

import (
	"context"
	"errors"
	"time"

	smerrors "github.com/wozozo/smpit/pkg/errors"
)

type deleteSecretRequest struct {
	SecretId                   string `json:"SecretId"`
	RecoveryWindowInDays       *int64 `json:"RecoveryWindowInDays"`
	ForceDeleteWithoutRecovery *bool  `json:"ForceDeleteWithoutRecovery"`
}

type deleteSecretResponse struct {
	ARN          string `json:"ARN"`
	Name         string `json:"Name"`
	DeletionDate int64  `json:"DeletionDate"`
}

// deleteSecret schedules a secret for deletion after the recovery window,
// or removes it immediately when ForceDeleteWithoutRecovery is set.
func (h *Handler) deleteSecret(ctx context.Context, body []byte) (any, error) {
	req, err := decode[deleteSecretRequest](body)
	if err != nil {
		return nil, err
	}
	if err := validateSecretID(req.SecretId); err != nil {
		return nil, err
	}

	force := req.ForceDeleteWithoutRecovery != nil && *req.ForceDeleteWithoutRecovery
	if force && req.RecoveryWindowInDays != nil {
		return nil, invalidParameter(
			"You can't use ForceDeleteWithoutRecovery in conjunction with RecoveryWindowInDays.")
	}

	recoveryDays := int64(defaultRecoveryDays)
	if req.RecoveryWindowInDays != nil {
		recoveryDays = *req.RecoveryWindowInDays
		if recoveryDays < minRecoveryWindowDays || recoveryDays > maxRecoveryWindowDays {
			return nil, invalidParameter(
				"RecoveryWindowInDays must be between %d and %d days.",
				minRecoveryWindowDays, maxRecoveryWindowDays)
		}
	}

	secret, err := h.store.GetSecret(ctx, req.SecretId)
	if errors.Is(err, smerrors.ErrSecretNotFound) {
		return nil, resourceNotFound()
	}
	if err != nil {
		return nil, err
	}
	// Deleting an already-scheduled secret reports the original schedule.
	if secret.ScheduledDeleteAt != nil && !force {
		return &deleteSecretResponse{
			ARN:          secret.ARN,
			Name:         secret.Name,
			DeletionDate: epochSeconds(*secret.ScheduledDeleteAt),
		}, nil
	}

	if force {
		if err := h.store.DeleteSecret(ctx, secret.ARN); err != nil {
			return nil, err
		}
		return &deleteSecretResponse{
			ARN:          secret.ARN,
			Name:         secret.Name,
			DeletionDate: epochSeconds(time.Now()),
		}, nil
	}

	scheduledAt, err := h.store.ScheduleDelete(ctx, secret.ARN, time.Duration(recoveryDays)*24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &deleteSecretResponse{
		ARN:          secret.ARN,
		Name:         secret.Name,
		DeletionDate: epochSeconds(scheduledAt),
	}, nil
}
