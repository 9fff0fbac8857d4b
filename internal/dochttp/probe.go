package dochttp

import (
	"context"
	"io/fs"

	"github.com/keithlinneman/chaingate/internal/health"
	"github.com/keithlinneman/chaingate/internal/xerrors"
)

// Probe reports whether the doc tree is servable. The root must stat, or
// readiness fails and the instance stays out of rotation until the doc
// bundle lands on disk.
func Probe(fsys fs.FS) health.CheckFunc {
	return func(context.Context) error {
		if _, err := fs.Stat(fsys, "."); err != nil {
			return xerrors.Wrap(err, "doc root unreadable")
		}
		return nil
	}
}
