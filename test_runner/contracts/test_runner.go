package contracts

import (
	"context"

	"github.com/meysamhadeli/scaffai/test_runner/models"
)

// ITestRunner discovers and runs every test reachable from a workspace root.
type ITestRunner interface {
	Run(ctx context.Context, workspace string) (*models.TestOutcome, error)
}
