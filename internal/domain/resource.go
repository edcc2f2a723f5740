package domain

type ResourceStatus string

const (
	ResourceLoading ResourceStatus = "loading"
	ResourceSuccess ResourceStatus = "success"
	ResourceError   ResourceStatus = "error"
)

// Resource carries a value together with the state of the load producing it.
type Resource[T any] struct {
	Status ResourceStatus
	Data   T
	Err    error
}

func Loading[T any](data T) Resource[T] {
	return Resource[T]{Status: ResourceLoading, Data: data}
}

func Success[T any](data T) Resource[T] {
	return Resource[T]{Status: ResourceSuccess, Data: data}
}

func Failure[T any](err error, data T) Resource[T] {
	return Resource[T]{Status: ResourceError, Data: data, Err: err}
}

// Done reports whether the resource reached a terminal state.
func (r Resource[T]) Done() bool {
	return r.Status == ResourceSuccess || r.Status == ResourceError
}
