package placeid

import (
	"context"
	"regexp"
	"strings"

	"github.com/sells-group/redflag-cli/internal/model"
)

var bareIDRe = regexp.MustCompile(`^\d+$`)

// Offline resolves without network access. It accepts a bare numeric id or a
// URL that already carries the id in its path or query string.
type Offline struct{}

func (Offline) Resolve(_ context.Context, raw string) (model.PlaceID, error) {
	raw = strings.TrimSpace(raw)
	if bareIDRe.MatchString(raw) {
		return model.PlaceID(raw), nil
	}
	if id, ok := matchURL(raw); ok {
		return id, nil
	}
	return "", &model.NotFoundError{URL: raw}
}
