package ferry

import "github.com/meigma/ferry/core"

// Hosting performs the remote API calls of an upload.
// This interface is implemented by internal/hosting.
type Hosting = core.Hosting

// Credentials identify the account on the hosting service.
type Credentials = core.Credentials

// LinkRequest contains the parameters of an upload link request.
type LinkRequest = core.LinkRequest

// UploadLink is a one-shot URL that accepts a single file upload.
type UploadLink = core.UploadLink

// UploadResult describes a file stored by the hosting service.
type UploadResult = core.UploadResult
