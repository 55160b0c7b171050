package contracts

import (
	"context"
	"errors"
	"fmt"
)

// ErrGenerationUnavailable marks a provider that is unreachable, misconfigured,
// timed out, or returned an unusable response. Callers match it with errors.Is.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// IGenerator is the text-completion capability every provider implements.
type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// IModelLister is implemented by providers that can enumerate their models.
type IModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Unavailable wraps cause so that errors.Is(err, ErrGenerationUnavailable) holds.
func Unavailable(provider string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", provider, ErrGenerationUnavailable)
	}
	return fmt.Errorf("%s: %w: %w", provider, ErrGenerationUnavailable, cause)
}
