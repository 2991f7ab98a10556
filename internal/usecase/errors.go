package usecase

type ErrNotFound string

func (e ErrNotFound) Error() string { return string(e) + " not found" }

// ErrBadRequest is a request that failed validation; it never reaches the renderer.
type ErrBadRequest string

func (e ErrBadRequest) Error() string { return string(e) }
