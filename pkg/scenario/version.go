package scenario

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/ormasoftchile/wetest/pkg/value"
)

// ToolVersion is the newest file format this build reads.
const ToolVersion = "1.2.0"

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Bugfix)
}

// SupportsVersion checks a file version against the tool version. The major
// must match and the file minor must not be ahead; a newer bugfix is
// accepted. An older minor is accepted with a warning.
func SupportsVersion(file Version, tool string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	tv, err := semver.NewVersion(tool)
	if err != nil {
		return fmt.Errorf("tool version %q: %w", tool, err)
	}
	if file.Major < 0 || file.Minor < 0 || file.Bugfix < 0 {
		return &UnsupportedFileFormatError{File: file, Tool: tv.String()}
	}
	fv := semver.New(uint64(file.Major), uint64(file.Minor), uint64(file.Bugfix), "", "")
	logger.Debug("scenario file version", zap.Stringer("version", fv))

	c, err := semver.NewConstraint(fmt.Sprintf(">= %d.0.0, < %d.%d.0", tv.Major(), tv.Major(), tv.Minor()+1))
	if err != nil {
		return fmt.Errorf("version constraint: %w", err)
	}
	if !c.Check(fv) {
		return &UnsupportedFileFormatError{File: file, Tool: tv.String()}
	}
	if fv.Minor() < tv.Minor() {
		logger.Warn("A new file version is available",
			zap.Stringer("current", tv),
			zap.Stringer("file", fv),
			zap.String("changelog", Repository))
	}
	return nil
}

// versionOf reads the version mapping of a resolved document.
func versionOf(path string, content map[string]any) (Version, error) {
	raw, ok := content["version"].(map[string]any)
	if !ok {
		return Version{}, invalidContent(path, "`version` should be a mapping with major, minor and bugfix")
	}
	var v Version
	for _, f := range []struct {
		key string
		dst *int
	}{{"major", &v.Major}, {"minor", &v.Minor}, {"bugfix", &v.Bugfix}} {
		n, ok := value.Int(raw[f.key])
		if !ok {
			return Version{}, invalidContent(path, "`version.%s` should be an integer but got: %s", f.key, value.Stringify(raw[f.key]))
		}
		*f.dst = n
	}
	return v, nil
}
