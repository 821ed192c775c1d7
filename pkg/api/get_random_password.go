package api

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	lowercaseChars   = "abcdefghijklmnopqrstuvwxyz"
	uppercaseChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numberChars      = "0123456789"
	punctuationChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

	defaultPasswordLength = 32
	maxPasswordLength     = 4096
)

type getRandomPasswordRequest struct {
	ExcludeCharacters       *string `json:"ExcludeCharacters"`
	ExcludeLowercase        *bool   `json:"ExcludeLowercase"`
	ExcludeNumbers          *bool   `json:"ExcludeNumbers"`
	ExcludePunctuation      *bool   `json:"ExcludePunctuation"`
	ExcludeUppercase        *bool   `json:"ExcludeUppercase"`
	IncludeSpace            *bool   `json:"IncludeSpace"`
	PasswordLength          *int64  `json:"PasswordLength"`
	RequireEachIncludedType *bool   `json:"RequireEachIncludedType"`
}

type getRandomPasswordResponse struct {
	RandomPassword string `json:"RandomPassword"`
}

// getRandomPassword generates a password from the requested character
// classes using a CSPRNG.
func (h *Handler) getRandomPassword(ctx context.Context, body []byte) (any, error) {
	req, err := decode[getRandomPasswordRequest](body)
	if err != nil {
		return nil, err
	}

	length := int64(defaultPasswordLength)
	if req.PasswordLength != nil {
		length = *req.PasswordLength
	}
	if length < 1 || length > maxPasswordLength {
		return nil, invalidParameter(
			"PasswordLength must be between 1 and %d.", maxPasswordLength)
	}

	excluded := ""
	if req.ExcludeCharacters != nil {
		excluded = *req.ExcludeCharacters
	}

	var typeSets [][]byte
	for _, set := range []struct {
		chars    string
		excluded bool
	}{
		{lowercaseChars, boolValue(req.ExcludeLowercase)},
		{uppercaseChars, boolValue(req.ExcludeUppercase)},
		{numberChars, boolValue(req.ExcludeNumbers)},
		{punctuationChars, boolValue(req.ExcludePunctuation)},
	} {
		if set.excluded {
			continue
		}
		typeSets = append(typeSets, filterAllowed(set.chars, excluded))
	}

	var allowed []byte
	for _, set := range typeSets {
		allowed = append(allowed, set...)
	}
	if boolValue(req.IncludeSpace) && !strings.ContainsRune(excluded, ' ') {
		allowed = append(allowed, ' ')
	}
	if len(allowed) == 0 {
		return nil, invalidRequest("All password characters are excluded.")
	}

	password := make([]byte, 0, length)

	if boolValue(req.RequireEachIncludedType) {
		if length < int64(len(typeSets)) {
			return nil, invalidRequest(
				"PasswordLength is too short to include each required character type.")
		}
		// One character from each remaining type set, then fill, then
		// shuffle so the required characters are not all at the front.
		for _, set := range typeSets {
			if len(set) == 0 {
				return nil, invalidRequest(
					"A required character type is fully excluded by ExcludeCharacters.")
			}
			password = append(password, set[randIndex(len(set))])
		}
		for int64(len(password)) < length {
			password = append(password, allowed[randIndex(len(allowed))])
		}
		for i := len(password) - 1; i > 0; i-- {
			j := randIndex(i + 1)
			password[i], password[j] = password[j], password[i]
		}
	} else {
		for int64(len(password)) < length {
			password = append(password, allowed[randIndex(len(allowed))])
		}
	}

	return &getRandomPasswordResponse{RandomPassword: string(password)}, nil
}

func filterAllowed(set, excluded string) []byte {
	out := make([]byte, 0, len(set))
	for i := 0; i < len(set); i++ {
		if !strings.ContainsRune(excluded, rune(set[i])) {
			out = append(out, set[i])
		}
	}
	return out
}

func randIndex(n int) int {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	return int(idx.Int64())
}

func boolValue(v *bool) bool {
	return v != nil && *v
}
