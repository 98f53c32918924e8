package store

// Status is the posts.post_status_id lifecycle enum. Every status other
// than StatusUncatalogued is terminal: a post transitions out of
// StatusUncatalogued at most once and never returns.
type Status int

const (
	StatusUncatalogued Status = iota + 1
	StatusFetchPostError
	StatusFetchImageError
	StatusClassifyImageError
	StatusDropped
	StatusComplete
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool { return s != StatusUncatalogued }

func (s Status) String() string {
	switch s {
	case StatusUncatalogued:
		return "UNCATALOGUED"
	case StatusFetchPostError:
		return "FETCH_POST_ERROR"
	case StatusFetchImageError:
		return "FETCH_IMAGE_ERROR"
	case StatusClassifyImageError:
		return "CLASSIFY_IMAGE_ERROR"
	case StatusDropped:
		return "DROPPED"
	case StatusComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}
