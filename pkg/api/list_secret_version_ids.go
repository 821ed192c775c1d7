package api

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	smerrors "github.com/wozozo/smpit/pkg/errors"
	"github.com/wozozo/smpit/pkg/storage"
)

type listSecretVersionIdsRequest struct {
	SecretId          string  `json:"SecretId"`
	IncludeDeprecated *bool   `json:"IncludeDeprecated"`
	MaxResults        *int64  `json:"MaxResults"`
	NextToken         *string `json:"NextToken"`
}

type secretVersionEntry struct {
	VersionId        string   `json:"VersionId"`
	VersionStages    []string `json:"VersionStages,omitempty"`
	CreatedDate      float64  `json:"CreatedDate"`
	LastAccessedDate *float64 `json:"LastAccessedDate,omitempty"`
}

type listSecretVersionIdsResponse struct {
	ARN       string               `json:"ARN"`
	Name      string               `json:"Name"`
	Versions  []secretVersionEntry `json:"Versions"`
	NextToken *string              `json:"NextToken,omitempty"`
}

// listSecretVersionIds pages through a secret's versions, newest first.
// Versions with no stage label are hidden unless IncludeDeprecated is
// set.
func (h *Handler) listSecretVersionIds(ctx context.Context, body []byte) (any, error) {
	req, err := decode[listSecretVersionIdsRequest](body)
	if err != nil {
		return nil, err
	}
	if err := validateSecretID(req.SecretId); err != nil {
		return nil, err
	}

	token, err := resolvePage(req.NextToken, req.MaxResults, defaultListPageSize)
	if err != nil {
		return nil, err
	}

	secret, err := h.store.GetSecret(ctx, req.SecretId)
	if errors.Is(err, smerrors.ErrSecretNotFound) {
		return nil, resourceNotFound()
	}
	if err != nil {
		return nil, err
	}

	includeDeprecated := req.IncludeDeprecated != nil && *req.IncludeDeprecated

	var (
		versions []storage.SecretVersion
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		versions, err = h.store.ListVersions(gctx, secret.ARN,
			includeDeprecated, token.Size, token.Offset())
		return err
	})
	g.Go(func() error {
		var err error
		total, err = h.store.CountVersions(gctx, secret.ARN, includeDeprecated)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]secretVersionEntry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, secretVersionEntry{
			VersionId:        v.VersionID,
			VersionStages:    v.Stages,
			CreatedDate:      epochFloat(v.CreatedAt),
			LastAccessedDate: epochFloatPtr(v.LastAccessedAt),
		})
	}

	return &listSecretVersionIdsResponse{
		ARN:       secret.ARN,
		Name:      secret.Name,
		Versions:  entries,
		NextToken: token.Next(total),
	}, nil
}
