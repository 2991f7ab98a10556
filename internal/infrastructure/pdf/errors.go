package pdf

import "fmt"

// RenderError means no document could be produced; callers may retry.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	if e.Err == nil {
		return "render " + e.Op + " failed"
	}
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ImageDrawError means the archetype image was unusable. Renderers recover
// from it by drawing the page without the image.
type ImageDrawError struct {
	Path string
	Err  error
}

func (e *ImageDrawError) Error() string {
	return fmt.Sprintf("could not draw image %s: %v", e.Path, e.Err)
}

func (e *ImageDrawError) Unwrap() error { return e.Err }
