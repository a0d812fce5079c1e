package errors

import (
	"errors"
	"fmt"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamPath   string `json:"upstream_path,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}

// UpstreamError describes a failed call to the purchasing backend.
type UpstreamError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		d.UpstreamStatus = upstream.Status
		d.UpstreamPath = upstream.Path
		d.UpstreamBody = upstream.Message
	}

	return d
}
