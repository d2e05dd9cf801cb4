// Package upload defines a cloud-upload interface for pushing a final
// archive to a remote destination. Concrete cloud backends are out of
// scope for this repository (see spec.md's Non-goals); only the
// interface and a no-op implementation live here. internal/backup does
// not call an Uploader: a backup run ends once the archive is written and
// the config persisted.
package upload

import "context"

// Uploader pushes a finished archive to a remote destination. Username
// and CloudOptions are passed through from Options verbatim; this package
// does not interpret them.
type Uploader interface {
	Upload(ctx context.Context, archivePath, username string, options map[string]string) error
}

// NoopUploader implements Uploader by doing nothing. It is the default
// when no cloud destination is configured.
type NoopUploader struct{}

// Upload always succeeds without transferring anything.
func (NoopUploader) Upload(ctx context.Context, archivePath, username string, options map[string]string) error {
	return nil
}
