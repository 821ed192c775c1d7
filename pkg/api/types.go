package api

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/wozozo/smpit/pkg/storage"
)

// tagInput is a tag as it appears in request bodies.
type tagInput struct {
	Key   *string `json:"Key"`
	Value *string `json:"Value"`
}

// tagOutput is a tag as it appears in responses.
type tagOutput struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// filterInput is one ListSecrets / BatchGetSecretValue filter clause.
type filterInput struct {
	Key    string   `json:"Key"`
	Values []string `json:"Values"`
}

func toStorageTags(tags []tagInput) []storage.Tag {
	out := make([]storage.Tag, 0, len(tags))
	for _, tag := range tags {
		value := ""
		if tag.Value != nil {
			value = *tag.Value
		}
		out = append(out, storage.Tag{Key: *tag.Key, Value: value})
	}
	return out
}

func toTagOutputs(tags []storage.Tag) []tagOutput {
	out := make([]tagOutput, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tagOutput{Key: tag.Key, Value: tag.Value})
	}
	return out
}

var filterValuePattern = regexp.MustCompile(`^!?[A-Za-z0-9 :_@/+=.\-!]+$`)

func toStorageFilters(filters []filterInput) ([]storage.Filter, error) {
	out := make([]storage.Filter, 0, len(filters))
	for _, f := range filters {
		if !storage.ValidFilterKey(f.Key) {
			return nil, invalidRequest("Invalid filter key: %s.", f.Key)
		}
		if len(f.Values) == 0 || len(f.Values) > maxFilterValues {
			return nil, invalidRequest(
				"Filters must carry between 1 and %d values per key.", maxFilterValues)
		}
		for _, value := range f.Values {
			if len(value) == 0 || len(value) > 512 || !filterValuePattern.MatchString(value) {
				return nil, invalidRequest("Invalid filter value: %s.", value)
			}
		}
		out = append(out, storage.Filter{Key: f.Key, Values: f.Values})
	}
	return out, nil
}

// decode unmarshals a request body, treating an empty body as an empty
// object. Malformed JSON fails with InvalidRequestException.
func decode[T any](body []byte) (*T, error) {
	if len(body) == 0 {
		body = []byte("{}")
	}
	var req T
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, invalidRequest("Invalid request body.")
	}
	return &req, nil
}

// samePayload reports whether a stored version carries exactly the
// payload of the request, for idempotency checks on repeated client
// request tokens.
func samePayload(version *storage.SecretVersion, secretString *string, secretBinary []byte) bool {
	if (version.SecretString == nil) != (secretString == nil) {
		return false
	}
	if version.SecretString != nil && *version.SecretString != *secretString {
		return false
	}
	return bytes.Equal(version.SecretBinary, secretBinary)
}

const arnSuffixChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// arnSuffix returns the random six-character tail Secrets Manager
// appends to secret ARNs.
func arnSuffix() string {
	buf := make([]byte, 6)
	rand.Read(buf)
	for i := range buf {
		buf[i] = arnSuffixChars[int(buf[i])%len(arnSuffixChars)]
	}
	return string(buf)
}

func (h *Handler) newARN(name string) string {
	return fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:%s-%s",
		h.region, h.accountID, name, arnSuffix())
}
