// Package watch notices when a path registered for an application has
// disappeared out-of-band (an operator running rm by hand). It is a
// trimmed, single-purpose descendant of nestybox-sysbox-libs/fileMonitor's
// polling file-removal monitor: where fileMonitor tracks an arbitrary,
// dynamically changing set of paths with a background goroutine and an
// event channel, this package only needs a point-in-time "did these paths
// survive" check, invoked by C8's `display` on the draft's paths and logged
// through logrus.
package watch

import (
	"os"

	"github.com/sirupsen/logrus"
)

// CheckSurvived logs a warning for every path in want that no longer
// exists, and returns the subset that is still present. It is the
// synchronous, on-demand counterpart of fileMonitor's background polling:
// this daemon only needs to know "is it still there" when a command
// touches the draft, not a continuous event stream.
func CheckSurvived(log logrus.FieldLogger, id string, paths []string) []string {
	if log == nil {
		log = logrus.StandardLogger()
	}
	present := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				log.WithFields(logrus.Fields{"id": id, "path": p}).
					Warn("installed artifact missing out-of-band")
				continue
			}
			log.WithFields(logrus.Fields{"id": id, "path": p, "error": err}).
				Warn("could not stat installed artifact")
			continue
		}
		present = append(present, p)
	}
	return present
}
