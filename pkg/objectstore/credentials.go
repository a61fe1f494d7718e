package objectstore

import "github.com/vaultspace/artifactd/pkg/datastorage/models"

// ServerDefaults is the server-wide object-store configuration used when an
// artifact (and its parent chain) carries no owned S3 credentials.
type ServerDefaults struct {
	Endpoint       string
	Region         string
	AccessKeyID    string
	SecretAccessKey string
	Bucket         string
	PublicEndpoint string
}

// ResolveCredentials merges parent.secrets then artifact.secrets (the
// artifact's own values override the parent's) and returns artifact-owned
// credentials when both S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are
// present after the merge. Otherwise it falls back to the server-wide
// defaults with an empty key prefix and the default workspace bucket.
func ResolveCredentials(parent, artifact *models.Artifact, def ServerDefaults) Credentials {
	merged := map[string]interface{}{}
	if parent != nil {
		for k, v := range parent.Secrets {
			merged[k] = v
		}
	}
	if artifact != nil {
		for k, v := range artifact.Secrets {
			merged[k] = v
		}
	}

	accessKeyID, _ := merged["S3_ACCESS_KEY_ID"].(string)
	secretAccessKey, _ := merged["S3_SECRET_ACCESS_KEY"].(string)
	if accessKeyID != "" && secretAccessKey != "" {
		creds := Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		}
		if v, ok := merged["S3_ENDPOINT"].(string); ok {
			creds.Endpoint = v
		}
		if v, ok := merged["S3_REGION"].(string); ok {
			creds.Region = v
		}
		if v, ok := merged["S3_BUCKET"].(string); ok {
			creds.Bucket = v
		}
		if v, ok := merged["S3_PREFIX"].(string); ok {
			creds.Prefix = v
		}
		if v, ok := merged["S3_PUBLIC_ENDPOINT"].(string); ok {
			creds.PublicEndpoint = v
		}
		if creds.Bucket == "" {
			creds.Bucket = def.Bucket
		}
		return creds
	}

	return Credentials{
		Endpoint:        def.Endpoint,
		Region:          def.Region,
		AccessKeyID:     def.AccessKeyID,
		SecretAccessKey: def.SecretAccessKey,
		Bucket:          def.Bucket,
		Prefix:          "",
		PublicEndpoint:  def.PublicEndpoint,
	}
}
