package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshsymonds/labelcast/internal/gmail"
)

// ErrLabelNotFound is the normal outcome of resolving a name the account
// does not have.
var ErrLabelNotFound = errors.New("label not found")

// ResolveLabel maps a label name to its identifier using an exact,
// case-sensitive match. The first matching label wins.
func ResolveLabel(ctx context.Context, client gmail.Client, name string) (gmail.LabelID, error) {
	labels, err := client.ListLabels(ctx)
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range labels {
		if l.Name == name {
			return l.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrLabelNotFound, name)
}
