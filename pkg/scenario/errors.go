package scenario

import (
	"fmt"
	"strings"
)

// Repository is where the file format changelog is published.
const Repository = "https://github.com/ormasoftchile/wetest"

// FileNotFoundError reports a scenario path that matched no candidate.
type FileNotFoundError struct {
	Path  string
	Tried []string
}

func (e *FileNotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("could not find file: %s", e.Path)
	}
	return "Could not find either of these files:\n- " + strings.Join(e.Tried, "\n- ")
}

// UnsupportedFileFormatError reports a file version the tool cannot read.
type UnsupportedFileFormatError struct {
	File Version
	Tool string
}

func (e *UnsupportedFileFormatError) Error() string {
	return fmt.Sprintf("Scenario version '%s' not supported. Current WeTest version: '%s'.\n"+
		"Look at the WeTest repository for the CHANGELOG:\n%s", e.File, e.Tool, Repository)
}

// InvalidFileContentError reports a document that cannot be interpreted.
type InvalidFileContentError struct {
	Path string
	Msg  string
	Err  error
}

func (e *InvalidFileContentError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Path == "" {
		return msg
	}
	return e.Path + ": " + msg
}

func (e *InvalidFileContentError) Unwrap() error { return e.Err }

func invalidContent(path, format string, args ...any) *InvalidFileContentError {
	return &InvalidFileContentError{Path: path, Msg: fmt.Sprintf(format, args...)}
}
