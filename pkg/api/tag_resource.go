package api

import (
	"context"
	"errors"

	smerrors "github.com/wozozo/smpit/pkg/errors"
)

type tagResourceRequest struct {
	SecretId string     `json:"SecretId"`
	Tags     []tagInput `json:"Tags"`
}

type untagResourceRequest struct {
	SecretId string   `json:"SecretId"`
	TagKeys  []string `json:"TagKeys"`
}

// tagResource attaches tags to a secret, overwriting values of existing
// keys.
func (h *Handler) tagResource(ctx context.Context, body []byte) (any, error) {
	req, err := decode[tagResourceRequest](body)
	if err != nil {
		return nil, err
	}
	if err := validateSecretID(req.SecretId); err != nil {
		return nil, err
	}
	if len(req.Tags) == 0 {
		return nil, invalidParameter("The parameter Tags is required.")
	}
	if err := validateTags(req.Tags); err != nil {
		return nil, err
	}

	secret, err := h.resolveLiveSecret(ctx, req.SecretId)
	if err != nil {
		return nil, err
	}

	if err := h.store.UpsertTags(ctx, secret.ARN, toStorageTags(req.Tags)); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

// untagResource removes tags by key. Keys that are not attached are
// ignored.
func (h *Handler) untagResource(ctx context.Context, body []byte) (any, error) {
	req, err := decode[untagResourceRequest](body)
	if err != nil {
		return nil, err
	}
	if err := validateSecretID(req.SecretId); err != nil {
		return nil, err
	}
	if len(req.TagKeys) == 0 {
		return nil, invalidParameter("The parameter TagKeys is required.")
	}

	secret, err := h.resolveLiveSecret(ctx, req.SecretId)
	if err != nil {
		return nil, err
	}

	if err := h.store.DeleteTags(ctx, secret.ARN, req.TagKeys); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

// resolveLiveSecret looks up a secret and rejects ones scheduled for
// deletion.
func (h *Handler) resolveLiveSecret(ctx context.Context, secretID string) (*secretRef, error) {
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
	return &secretRef{ARN: secret.ARN, Name: secret.Name}, nil
}

type secretRef struct {
	ARN  string
	Name string
}
