package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// pageToken is the opaque pagination cursor handed out as NextToken,
// rendered as "<pageSize>:<pageIndex>".
type pageToken struct {
	Size  int64
	Index int64
}

// parsePageToken decodes a NextToken. A malformed token fails with
// InvalidRequestException.
func parsePageToken(value string) (pageToken, error) {
	size, index, found := strings.Cut(value, ":")
	if !found {
		return pageToken{}, invalidRequest("Invalid NextToken.")
	}

	sizeN, err := strconv.ParseInt(size, 10, 64)
	if err != nil || sizeN < 0 {
		return pageToken{}, invalidRequest("Invalid NextToken.")
	}
	indexN, err := strconv.ParseInt(index, 10, 64)
	if err != nil || indexN < 0 {
		return pageToken{}, invalidRequest("Invalid NextToken.")
	}

	return pageToken{Size: sizeN, Index: indexN}, nil
}

func (t pageToken) String() string {
	return fmt.Sprintf("%d:%d", t.Size, t.Index)
}

// Offset is the number of rows the token skips, saturating instead of
// overflowing.
func (t pageToken) Offset() int64 {
	if t.Index != 0 && t.Size > math.MaxInt64/t.Index {
		return math.MaxInt64
	}
	return t.Size * t.Index
}

// Next returns the cursor for the following page when more rows remain
// beyond this page, guarding against overflow.
func (t pageToken) Next(total int64) *string {
	offset := t.Offset()
	if offset > math.MaxInt64-t.Size {
		return nil
	}
	if offset+t.Size >= total {
		return nil
	}
	next := pageToken{Size: t.Size, Index: t.Index + 1}.String()
	return &next
}

// resolvePage combines the optional NextToken and MaxResults request
// fields into a cursor. MaxResults always overrides the page size carried
// in the token.
func resolvePage(nextToken *string, maxResults *int64, defaultSize int64) (pageToken, error) {
	token := pageToken{Size: defaultSize, Index: 0}

	if nextToken != nil && *nextToken != "" {
		parsed, err := parsePageToken(*nextToken)
		if err != nil {
			return pageToken{}, err
		}
		token = parsed
	}

	if maxResults != nil {
		if *maxResults < 1 || *maxResults > 100 {
			return pageToken{}, invalidParameter(
				"MaxResults must be between 1 and 100.")
		}
		token.Size = *maxResults
	}

	if token.Size == 0 {
		token.Size = defaultSize
	}

	return token, nil
}
