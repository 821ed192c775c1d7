package api

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	smerrors "github.com/wozozo/smpit/pkg/errors"
	"github.com/wozozo/smpit/pkg/storage"
)

const defaultBatchPageSize = 20

type batchGetSecretValueRequest struct {
	SecretIdList []string      `json:"SecretIdList"`
	Filters      []filterInput `json:"Filters"`
	MaxResults   *int64        `json:"MaxResults"`
	NextToken    *string       `json:"NextToken"`
}

type batchGetError struct {
	SecretId  string `json:"SecretId"`
	ErrorCode string `json:"ErrorCode"`
	Message   string `json:"Message"`
}

type batchGetSecretValueResponse struct {
	SecretValues []getSecretValueResponse `json:"SecretValues"`
	Errors       []batchGetError          `json:"Errors"`
	NextToken    *string                  `json:"NextToken,omitempty"`
}

// batchGetSecretValue reads the AWSCURRENT value of a set of secrets,
// selected either by an explicit id list or by filters. Per-secret
// failures land in Errors instead of failing the call.
func (h *Handler) batchGetSecretValue(ctx context.Context, body []byte) (any, error) {
	req, err := decode[batchGetSecretValueRequest](body)
	if err != nil {
		return nil, err
	}

	hasIDs := len(req.SecretIdList) > 0
	hasFilters := len(req.Filters) > 0
	if hasIDs == hasFilters {
		return nil, invalidParameter(
			"You must provide either SecretIdList or Filters, but not both.")
	}
	if hasIDs && len(req.SecretIdList) > defaultBatchPageSize {
		return nil, invalidParameter(
			"SecretIdList can contain at most %d secrets.", defaultBatchPageSize)
	}

	resp := &batchGetSecretValueResponse{
		SecretValues: []getSecretValueResponse{},
		Errors:       []batchGetError{},
	}

	if hasIDs {
		for _, secretID := range req.SecretIdList {
			value, err := h.currentValue(ctx, secretID)
			if err != nil {
				resp.Errors = append(resp.Errors, toBatchError(secretID, err))
				continue
			}
			resp.SecretValues = append(resp.SecretValues, *value)
		}
		return resp, nil
	}

	filters, err := toStorageFilters(req.Filters)
	if err != nil {
		return nil, err
	}
	token, err := resolvePage(req.NextToken, req.MaxResults, defaultBatchPageSize)
	if err != nil {
		return nil, err
	}

	var (
		details []storage.SecretDetails
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		details, err = h.store.ListSecrets(gctx, storage.ListSecretsParams{
			Filters: filters,
			Limit:   token.Size,
			Offset:  token.Offset(),
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = h.store.CountSecrets(gctx, filters, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, d := range details {
		value, err := h.currentValue(ctx, d.Secret.ARN)
		if err != nil {
			resp.Errors = append(resp.Errors, toBatchError(d.Secret.Name, err))
			continue
		}
		resp.SecretValues = append(resp.SecretValues, *value)
	}
	resp.NextToken = token.Next(total)

	return resp, nil
}

// currentValue resolves the AWSCURRENT value of one secret with the same
// semantics as GetSecretValue.
func (h *Handler) currentValue(ctx context.Context, secretID string) (*getSecretValueResponse, error) {
	secret, err := h.store.GetSecret(ctx, secretID)
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

	value, err := h.store.GetValueByStage(ctx, secretID, storage.StageCurrent)
	if errors.Is(err, smerrors.ErrVersionNotFound) {
		return nil, &apiError{
			Code:    CodeResourceNotFound,
			Message: "Secrets Manager can't find the specified secret value for staging label: " + storage.StageCurrent,
			Status:  400,
		}
	}
	if err != nil {
		return nil, err
	}

	if err := h.store.TouchLastAccessed(ctx, value.Secret.ARN, value.Version.VersionID); err != nil {
		return nil, err
	}

	return &getSecretValueResponse{
		ARN:           value.Secret.ARN,
		Name:          value.Secret.Name,
		VersionId:     value.Version.VersionID,
		SecretString:  value.Version.SecretString,
		SecretBinary:  value.Version.SecretBinary,
		VersionStages: value.Version.Stages,
		CreatedDate:   epochSeconds(value.Secret.CreatedAt),
	}, nil
}

func toBatchError(secretID string, err error) batchGetError {
	apiErr, ok := err.(*apiError)
	if !ok {
		apiErr = internalError()
	}
	return batchGetError{
		SecretId:  secretID,
		ErrorCode: apiErr.Code,
		Message:   apiErr.Message,
	}
}
