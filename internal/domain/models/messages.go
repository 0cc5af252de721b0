package models

// ManifestUpdateRequest identifies the deployment manifest to rewrite and the image it must reference.
// It is built from pipeline step arguments or a webhook body, consumed once, and never persisted.
type ManifestUpdateRequest struct {
	Service    string
	Repository string
	Tag        string
}

// ManifestFileName returns the name of the deployment manifest governing the service.
func (m ManifestUpdateRequest) ManifestFileName() string {
	return m.Service + "-deployment.yaml"
}

// ImageReference returns the full image reference the manifest must point at.
func (m ManifestUpdateRequest) ImageReference() string {
	return m.Repository + ":" + m.Tag
}

// UpdateResult captures the outcome of a single manifest update.
type UpdateResult struct {
	// CommitSha is the commit pushed to the manifest repository. Empty when NoOp is true.
	CommitSha string
	// NoOp indicates the manifest already referenced the requested image, so nothing was pushed.
	NoOp bool
}

// ErrorResponse is the response sent to the client if there was an error
type ErrorResponse struct {
	Status  string
	Message string
}
