package modelstore

import "errors"

// ErrArtifactMissing is returned when the model artifact does not exist at
// the configured path. It is distinct from [crypto.ErrIntegrity] so callers
// can tell "file missing" from "corrupted or wrong key".
var ErrArtifactMissing = errors.New("model artifact not found")
