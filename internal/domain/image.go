package domain

// StagedImage is an image already fetched into temporary storage. It becomes
// visible under Path only once Commit succeeds; Discard drops it. A staged
// image is committed or discarded at most once.
type StagedImage interface {
	Path() string
	Commit() error
	Discard()
}
