package models

import (
	"errors"
	"fmt"
)

// ErrAlreadyExists is returned when a finalize run targets a sequence name
// that is already on disk or already being finalized.
var ErrAlreadyExists = errors.New("sequence already exists")

// ValidationError reports unusable input, e.g. fewer than two images.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// FileSystemError wraps a failed store operation with the path it touched.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error { return e.Err }

// CodecError wraps an image read/resize/composite failure.
type CodecError struct {
	Image string
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Image, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// SessionError means the session-based platform refused to open an upload
// session; the whole destination is aborted without uploading anything.
type SessionError struct {
	Reason string
}

func (e *SessionError) Error() string {
	return "MapillarySession: " + e.Reason
}

// UploadError reports the first image whose upload retries were exhausted.
type UploadError struct {
	Image string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("MapillaryUploadImage %s: %v", e.Image, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PostError reports a failed direct sequence post to the second platform.
type PostError struct {
	Reason string
}

func (e *PostError) Error() string {
	return "MTPSequence: " + e.Reason
}

// LinkError reports a failed cross-reference between the two remote records.
// The post it follows is never rolled back.
type LinkError struct {
	Reason string
}

func (e *LinkError) Error() string {
	return "MTPLinkSequence: " + e.Reason
}
