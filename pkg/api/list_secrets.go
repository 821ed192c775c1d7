package api

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wozozo/smpit/pkg/storage"
)

const defaultListPageSize = 100

type listSecretsRequest struct {
	Filters                []filterInput `json:"Filters"`
	IncludePlannedDeletion *bool         `json:"IncludePlannedDeletion"`
	SortOrder              *string       `json:"SortOrder"`
	MaxResults             *int64        `json:"MaxResults"`
	NextToken              *string       `json:"NextToken"`
}

type secretListEntry struct {
	ARN                    string              `json:"ARN"`
	Name                   string              `json:"Name"`
	Description            *string             `json:"Description,omitempty"`
	RotationEnabled        *bool               `json:"RotationEnabled"`
	RotationLambdaARN      *string             `json:"RotationLambdaARN"`
	RotationRules          *struct{}           `json:"RotationRules"`
	LastChangedDate        float64             `json:"LastChangedDate"`
	LastAccessedDate       *float64            `json:"LastAccessedDate,omitempty"`
	DeletedDate            *float64            `json:"DeletedDate,omitempty"`
	NextRotationDate       *float64            `json:"NextRotationDate"`
	Tags                   []tagOutput         `json:"Tags"`
	SecretVersionsToStages map[string][]string `json:"SecretVersionsToStages"`
	OwningService          *string             `json:"OwningService"`
	CreatedDate            float64             `json:"CreatedDate"`
	PrimaryRegion          *string             `json:"PrimaryRegion"`
}

type listSecretsResponse struct {
	SecretList []secretListEntry `json:"SecretList"`
	NextToken  *string           `json:"NextToken,omitempty"`
}

// listSecrets returns one page of secrets matching the filters. Secrets
// scheduled for deletion are hidden unless IncludePlannedDeletion is set.
func (h *Handler) listSecrets(ctx context.Context, body []byte) (any, error) {
	req, err := decode[listSecretsRequest](body)
	if err != nil {
		return nil, err
	}

	filters, err := toStorageFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	token, err := resolvePage(req.NextToken, req.MaxResults, defaultListPageSize)
	if err != nil {
		return nil, err
	}

	includeDeleted := req.IncludePlannedDeletion != nil && *req.IncludePlannedDeletion

	sortAscending := false
	if req.SortOrder != nil {
		switch *req.SortOrder {
		case "asc":
			sortAscending = true
		case "desc":
		default:
			return nil, invalidParameter("SortOrder must be either asc or desc.")
		}
	}

	var (
		details []storage.SecretDetails
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		details, err = h.store.ListSecrets(gctx, storage.ListSecretsParams{
			Filters:                filters,
			IncludePlannedDeletion: includeDeleted,
			SortAscending:          sortAscending,
			Limit:                  token.Size,
			Offset:                 token.Offset(),
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = h.store.CountSecrets(gctx, filters, includeDeleted)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]secretListEntry, 0, len(details))
	for _, d := range details {
		entries = append(entries, secretListEntry{
			ARN:                    d.Secret.ARN,
			Name:                   d.Secret.Name,
			Description:            d.Secret.Description,
			LastChangedDate:        epochFloat(d.LastChangedAt),
			LastAccessedDate:       epochFloatPtr(d.LastAccessedAt),
			DeletedDate:            epochFloatPtr(d.Secret.DeletedAt),
			Tags:                   toTagOutputs(d.Tags),
			SecretVersionsToStages: d.VersionsToStages,
			CreatedDate:            epochFloat(d.Secret.CreatedAt),
		})
	}

	return &listSecretsResponse{
		SecretList: entries,
		NextToken:  token.Next(total),
	}, nil
}
