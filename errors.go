package gobzlshard

import (
	"errors"

	"github.com/albertocavalcante/go-bzlshard/label"
)

// Sentinel errors for configuration failures. Query failures are never
// returned as errors; they are reported through ShardResult.Status.
var (
	// ErrNothingToExclude indicates excluded targets were given without any included target.
	ErrNothingToExclude = label.ErrNothingToExclude

	// ErrNoQueryRunner indicates a Sharder was created without a query runner.
	ErrNoQueryRunner = errors.New("query runner is required")

	// ErrNoWorkspaceRoot indicates an approach that walks the filesystem was
	// selected without a workspace root.
	ErrNoWorkspaceRoot = errors.New("workspace root is required")
)
