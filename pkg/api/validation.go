package api

import "regexp"

// Request field limits, matching the AWS Secrets Manager API reference.
const (
	maxNameLength         = 512
	maxSecretIDLength     = 2048
	minClientTokenLength  = 32
	maxClientTokenLength  = 64
	maxDescriptionLength  = 2048
	maxSecretValueLength  = 65536
	maxTagKeyLength       = 128
	maxTagValueLength     = 256
	maxVersionStageLength = 256
	maxVersionStages      = 20
	maxFilterValues       = 10
	minRecoveryWindowDays = 7
	maxRecoveryWindowDays = 30
	defaultRecoveryDays   = 30
)

var secretNamePattern = regexp.MustCompile(`^[A-Za-z0-9/_+=.@-]+$`)

func validateSecretName(name string) error {
	if name == "" {
		return invalidParameter("The parameter Name is required.")
	}
	if len(name) > maxNameLength {
		return invalidParameter("The parameter Name exceeds the maximum length of %d.", maxNameLength)
	}
	if !secretNamePattern.MatchString(name) {
		return invalidParameter(
			"The parameter Name may only contain alphanumeric characters and /_+=.@-")
	}
	return nil
}

func validateSecretID(secretID string) error {
	if secretID == "" {
		return invalidParameter("The parameter SecretId is required.")
	}
	if len(secretID) > maxSecretIDLength {
		return invalidParameter(
			"SecretId exceeds the maximum length of %d.", maxSecretIDLength)
	}
	return nil
}

func validateClientToken(token string) error {
	if len(token) < minClientTokenLength || len(token) > maxClientTokenLength {
		return invalidParameter(
			"ClientRequestToken must be %d to %d characters.",
			minClientTokenLength, maxClientTokenLength)
	}
	return nil
}

func validateDescription(description *string) error {
	if description != nil && len(*description) > maxDescriptionLength {
		return invalidParameter(
			"Description exceeds the maximum length of %d.", maxDescriptionLength)
	}
	return nil
}

// validateSecretValue checks the SecretString/SecretBinary pair: exactly
// one may be set, and it must fit the size limit.
func validateSecretValue(secretString *string, secretBinary []byte, required bool) error {
	hasString := secretString != nil
	hasBinary := len(secretBinary) > 0

	if hasString && hasBinary {
		return invalidRequest(
			"You can't specify both SecretString and SecretBinary.")
	}
	if required && !hasString && !hasBinary {
		return invalidRequest(
			"You must provide either SecretString or SecretBinary.")
	}
	if hasString && len(*secretString) > maxSecretValueLength {
		return invalidParameter(
			"SecretString exceeds the maximum length of %d.", maxSecretValueLength)
	}
	if hasBinary && len(secretBinary) > maxSecretValueLength {
		return invalidParameter(
			"SecretBinary exceeds the maximum length of %d.", maxSecretValueLength)
	}
	return nil
}

func validateTags(tags []tagInput) error {
	for _, tag := range tags {
		if tag.Key == nil || *tag.Key == "" {
			return invalidParameter("Tag keys must not be empty.")
		}
		if len(*tag.Key) > maxTagKeyLength {
			return invalidParameter(
				"Tag key exceeds the maximum length of %d.", maxTagKeyLength)
		}
		if tag.Value != nil && len(*tag.Value) > maxTagValueLength {
			return invalidParameter(
				"Tag value exceeds the maximum length of %d.", maxTagValueLength)
		}
	}
	return nil
}

func validateVersionStage(stage string) error {
	if stage == "" || len(stage) > maxVersionStageLength {
		return invalidParameter(
			"VersionStage must be 1 to %d characters.", maxVersionStageLength)
	}
	return nil
}
